// Package sessions keeps a registry of live media stream relays. The
// registry serves shutdown and observability only; relays never read it.
package sessions

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

// Info is a point-in-time view of one relay.
type Info struct {
	ID        string    `json:"id"`
	StreamSID string    `json:"stream_sid,omitempty"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"started_at"`
}

// Handle lets the tracker act on a relay it does not own.
type Handle struct {
	Cancel func()
	Info   func() Info
}

type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*trackedSession
	wg       sync.WaitGroup
}

type trackedSession struct {
	handle Handle
	once   sync.Once
}

func NewTracker() *Tracker {
	return &Tracker{sessions: make(map[string]*trackedSession)}
}

// Register adds a relay under id. A previous entry with the same id is
// released. The returned func removes the entry and is safe to call more
// than once.
func (t *Tracker) Register(id string, h Handle) (unregister func()) {
	if t == nil {
		return func() {}
	}

	entry := &trackedSession{handle: h}

	t.mu.Lock()
	if t.sessions == nil {
		t.sessions = make(map[string]*trackedSession)
	}
	old := t.sessions[id]
	t.sessions[id] = entry
	t.wg.Add(1)
	t.mu.Unlock()

	if old != nil {
		t.unregister(id, old)
	}

	return func() { t.unregister(id, entry) }
}

func (t *Tracker) unregister(id string, entry *trackedSession) {
	if t == nil || entry == nil {
		return
	}
	entry.once.Do(func() {
		t.mu.Lock()
		if t.sessions != nil && t.sessions[id] == entry {
			delete(t.sessions, id)
		}
		t.mu.Unlock()
		t.wg.Done()
	})
}

func (t *Tracker) Count() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// Snapshot returns the live relays ordered by start time.
func (t *Tracker) Snapshot() []Info {
	if t == nil {
		return nil
	}
	var infos []func() Info
	t.mu.Lock()
	for id, entry := range t.sessions {
		if entry.handle.Info == nil {
			id := id
			infos = append(infos, func() Info { return Info{ID: id} })
			continue
		}
		infos = append(infos, entry.handle.Info)
	}
	t.mu.Unlock()

	out := make([]Info, 0, len(infos))
	for _, f := range infos {
		out = append(out, f())
	}
	slices.SortFunc(out, func(a, b Info) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// CancelAll cancels every registered relay and reports how many were
// signalled.
func (t *Tracker) CancelAll() (canceled int) {
	if t == nil {
		return 0
	}

	var cancels []func()
	t.mu.Lock()
	for _, entry := range t.sessions {
		if entry == nil || entry.handle.Cancel == nil {
			continue
		}
		cancels = append(cancels, entry.handle.Cancel)
	}
	t.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
		canceled++
	}
	return canceled
}

// Wait blocks until every registered relay has unregistered or ctx is done.
// It reports whether all relays finished.
func (t *Tracker) Wait(ctx context.Context) bool {
	if t == nil {
		return true
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		t.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
