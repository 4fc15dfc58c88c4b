package bridge

import "sync/atomic"

// StreamState holds the stream identifier announced by the telephony side.
// It is written once by the inbound loop and read by the outbound loop.
type StreamState struct {
	sid atomic.Pointer[string]
}

// Set records sid if no identifier has been recorded yet. It reports
// whether sid was stored.
func (s *StreamState) Set(sid string) bool {
	if sid == "" {
		return false
	}
	return s.sid.CompareAndSwap(nil, &sid)
}

// SID returns the recorded identifier and whether one is present.
func (s *StreamState) SID() (string, bool) {
	p := s.sid.Load()
	if p == nil {
		return "", false
	}
	return *p, true
}

// State is the lifecycle position of a relay.
type State int32

const (
	StateConnecting State = iota
	StateConfiguring
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConfiguring:
		return "configuring"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
