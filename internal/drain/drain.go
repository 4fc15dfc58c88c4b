// Package drain holds the process-wide flag that refuses new calls and
// media streams during shutdown.
package drain

import (
	"sync/atomic"
	"time"
)

var since atomic.Pointer[time.Time]

// Start marks the process as draining. Repeated calls keep the first
// start time.
func Start() {
	now := time.Now()
	since.CompareAndSwap(nil, &now)
}

// Stop clears the draining flag.
func Stop() { since.Store(nil) }

// IsDraining reports whether draining is in progress.
func IsDraining() bool { return since.Load() != nil }

// Since returns when draining started, or the zero time.
func Since() time.Time {
	if t := since.Load(); t != nil {
		return *t
	}
	return time.Time{}
}
