package telephony

import "strings"

// CallStatus is the lifecycle state Twilio reports for a call.
type CallStatus string

const (
	StatusQueued     CallStatus = "queued"
	StatusInitiated  CallStatus = "initiated"
	StatusRinging    CallStatus = "ringing"
	StatusAnswered   CallStatus = "answered"
	StatusInProgress CallStatus = "in-progress"
	StatusCompleted  CallStatus = "completed"
	StatusFailed     CallStatus = "failed"
	StatusBusy       CallStatus = "busy"
	StatusNoAnswer   CallStatus = "no-answer"
	StatusCanceled   CallStatus = "canceled"
)

// StatusCallbackEvents are the status callback events requested for
// outbound calls.
var StatusCallbackEvents = []string{"initiated", "ringing", "answered", "completed"}

// ParseCallStatus normalizes s and reports whether it is a known status.
func ParseCallStatus(s string) (CallStatus, bool) {
	st := CallStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusQueued, StatusInitiated, StatusRinging, StatusAnswered, StatusInProgress,
		StatusCompleted, StatusFailed, StatusBusy, StatusNoAnswer, StatusCanceled:
		return st, true
	}
	return st, false
}

// Terminal reports whether no further transitions are expected.
func (s CallStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusBusy, StatusNoAnswer, StatusCanceled:
		return true
	}
	return false
}
