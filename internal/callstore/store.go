// Package callstore records the lifecycle of outbound calls as reported by
// status callbacks. Relay code never reads it.
package callstore

import (
	"context"
	"errors"
	"time"

	"github.com/gaspardpetit/callrelay/internal/telephony"
)

// ErrNotFound is returned when no record exists for a call SID.
var ErrNotFound = errors.New("call not found")

// Call is the stored view of one outbound call.
type Call struct {
	SID       string               `json:"call_sid"`
	To        string               `json:"to,omitempty"`
	From      string               `json:"from,omitempty"`
	Status    telephony.CallStatus `json:"status"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// Store persists call records.
type Store interface {
	// Create records a placed call. When a status callback already created
	// the record, its status is kept and the call details are filled in.
	Create(ctx context.Context, c Call) error
	// UpdateStatus applies a status notification. Unknown SIDs get a new
	// record. A call in a terminal status keeps it.
	UpdateStatus(ctx context.Context, sid string, status telephony.CallStatus, at time.Time) (Call, error)
	Get(ctx context.Context, sid string) (Call, error)
}

// mergeCreate folds a newly placed call into an existing record.
func mergeCreate(cur, c Call) Call {
	if cur.SID == "" {
		return c
	}
	cur.To, cur.From = c.To, c.From
	if !c.CreatedAt.IsZero() && (cur.CreatedAt.IsZero() || c.CreatedAt.Before(cur.CreatedAt)) {
		cur.CreatedAt = c.CreatedAt
	}
	return cur
}

// applyStatus returns c moved to status unless c is already terminal.
func applyStatus(c Call, sid string, status telephony.CallStatus, at time.Time) Call {
	if c.SID == "" {
		c = Call{SID: sid, CreatedAt: at}
	}
	if c.Status.Terminal() {
		return c
	}
	c.Status = status
	c.UpdatedAt = at
	return c
}
