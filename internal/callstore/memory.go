package callstore

import (
	"context"
	"sync"
	"time"

	"github.com/gaspardpetit/callrelay/internal/telephony"
)

// MemoryStore keeps records in process. Records older than the TTL are
// dropped lazily.
type MemoryStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	calls map[string]Call
	now   func() time.Time
}

// NewMemoryStore returns an empty store. A ttl of zero keeps records
// forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, calls: map[string]Call{}, now: time.Now}
}

func (m *MemoryStore) Create(_ context.Context, c Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()
	m.calls[c.SID] = mergeCreate(m.liveLocked(c.SID), c)
	return nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, sid string, status telephony.CallStatus, at time.Time) (Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := applyStatus(m.liveLocked(sid), sid, status, at)
	m.calls[sid] = c
	return c, nil
}

func (m *MemoryStore) Get(_ context.Context, sid string) (Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.liveLocked(sid)
	if c.SID == "" {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (m *MemoryStore) expired(c Call) bool {
	if m.ttl <= 0 {
		return false
	}
	last := c.UpdatedAt
	if last.IsZero() {
		last = c.CreatedAt
	}
	return m.now().Sub(last) > m.ttl
}

func (m *MemoryStore) liveLocked(sid string) Call {
	c, ok := m.calls[sid]
	if !ok {
		return Call{}
	}
	if m.expired(c) {
		delete(m.calls, sid)
		return Call{}
	}
	return c
}

func (m *MemoryStore) pruneLocked() {
	for sid, c := range m.calls {
		if m.expired(c) {
			delete(m.calls, sid)
		}
	}
}
