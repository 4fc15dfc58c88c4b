package telephony

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestDecodeStart(t *testing.T) {
	frame := `{"event":"start","sequenceNumber":"1","start":{"accountSid":"AC1","streamSid":"MZ1","callSid":"CA1","tracks":["inbound"],"mediaFormat":{"encoding":"audio/x-mulaw","sampleRate":8000,"channels":1},"customParameters":{"campaign":"c1"}},"streamSid":"MZ1"}`
	ev, err := DecodeEvent([]byte(frame))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	st, ok := ev.(Start)
	if !ok {
		t.Fatalf("expected Start, got %T", ev)
	}
	if st.StreamSID != "MZ1" || st.CallSID != "CA1" || st.AccountSID != "AC1" {
		t.Fatalf("unexpected start: %+v", st)
	}
	if st.MediaFormat.Encoding != "audio/x-mulaw" || st.MediaFormat.SampleRate != 8000 {
		t.Fatalf("unexpected media format: %+v", st.MediaFormat)
	}
	if st.CustomParameters["campaign"] != "c1" {
		t.Fatalf("custom parameters not decoded: %v", st.CustomParameters)
	}
}

func TestDecodeStartFallsBackToEnvelopeSID(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"event":"start","start":{},"streamSid":"MZ9"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.(Start).StreamSID != "MZ9" {
		t.Fatalf("stream sid = %q", ev.(Start).StreamSID)
	}
}

func TestDecodeMediaKeepsPayload(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"event":"media","media":{"track":"inbound","chunk":"2","timestamp":"20","payload":"//7+/f8="},"streamSid":"MZ1"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	m := ev.(Media)
	if m.Payload != "//7+/f8=" || m.Track != "inbound" || m.StreamSID != "MZ1" {
		t.Fatalf("unexpected media: %+v", m)
	}
}

func TestDecodeMalformed(t *testing.T) {
	frames := []string{
		`not json`,
		`{"streamSid":"MZ1"}`,
		`{"event":"start"}`,
		`{"event":"start","start":{}}`,
		`{"event":"media","media":{}}`,
		`{"event":"media"}`,
	}
	for _, f := range frames {
		if _, err := DecodeEvent([]byte(f)); !errors.Is(err, ErrMalformed) {
			t.Fatalf("DecodeEvent(%s) err = %v; want ErrMalformed", f, err)
		}
	}
}

func TestDecodeOtherKinds(t *testing.T) {
	tests := []struct {
		frame string
		want  Event
	}{
		{`{"event":"connected","protocol":"Call","version":"1.0.0"}`, Connected{Protocol: "Call", Version: "1.0.0"}},
		{`{"event":"stop","stop":{"accountSid":"AC1","callSid":"CA1"},"streamSid":"MZ1"}`, Stop{StreamSID: "MZ1", CallSID: "CA1"}},
		{`{"event":"mark","mark":{"name":"response_done"},"streamSid":"MZ1"}`, Mark{StreamSID: "MZ1", Name: "response_done"}},
		{`{"event":"dtmf","dtmf":{"track":"inbound_track","digit":"5"},"streamSid":"MZ1"}`, DTMF{StreamSID: "MZ1", Track: "inbound_track", Digit: "5"}},
		{`{"event":"clear","streamSid":"MZ1"}`, Unknown{Name: "clear"}},
	}
	for _, tt := range tests {
		got, err := DecodeEvent([]byte(tt.frame))
		if err != nil {
			t.Fatalf("decode %s: %v", tt.frame, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("decode %s = %#v; want %#v", tt.frame, got, tt.want)
		}
	}
}

func TestEncodeMedia(t *testing.T) {
	b, err := EncodeMedia("S1", "BBB")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := map[string]any{"event": "media", "streamSid": "S1", "media": map[string]any{"payload": "BBB"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("media message = %v; want %v", got, want)
	}
}

func TestEncodeMark(t *testing.T) {
	b, err := EncodeMark("S1", MarkResponseDone)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(b) != `{"event":"mark","streamSid":"S1","mark":{"name":"response_done"}}` {
		t.Fatalf("mark message = %s", b)
	}
}
