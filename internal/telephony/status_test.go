package telephony

import "testing"

func TestParseCallStatus(t *testing.T) {
	st, ok := ParseCallStatus(" In-Progress ")
	if !ok || st != StatusInProgress {
		t.Fatalf("ParseCallStatus = %q, %v", st, ok)
	}
	if _, ok := ParseCallStatus("exploded"); ok {
		t.Fatalf("unknown status accepted")
	}
}

func TestTerminal(t *testing.T) {
	for _, st := range []CallStatus{StatusCompleted, StatusFailed, StatusBusy, StatusNoAnswer, StatusCanceled} {
		if !st.Terminal() {
			t.Fatalf("%s should be terminal", st)
		}
	}
	for _, st := range []CallStatus{StatusQueued, StatusInitiated, StatusRinging, StatusAnswered, StatusInProgress} {
		if st.Terminal() {
			t.Fatalf("%s should not be terminal", st)
		}
	}
}
