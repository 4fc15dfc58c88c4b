package sessions

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestRegisterUnregister(t *testing.T) {
	tr := NewTracker()
	un := tr.Register("a", Handle{})
	if tr.Count() != 1 {
		t.Fatalf("count = %d", tr.Count())
	}
	un()
	un()
	if tr.Count() != 0 {
		t.Fatalf("count after unregister = %d", tr.Count())
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if !tr.Wait(ctx) {
		t.Fatalf("wait should return immediately once empty")
	}
}

func TestRegisterReplacesDuplicate(t *testing.T) {
	tr := NewTracker()
	first := tr.Register("a", Handle{})
	second := tr.Register("a", Handle{})
	if tr.Count() != 1 {
		t.Fatalf("count = %d", tr.Count())
	}
	first()
	if tr.Count() != 1 {
		t.Fatalf("stale unregister removed replacement")
	}
	second()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if !tr.Wait(ctx) {
		t.Fatalf("wait group out of balance")
	}
}

func TestCancelAllAndWait(t *testing.T) {
	tr := NewTracker()
	var cancelled atomic.Int32
	for _, id := range []string{"a", "b"} {
		var un func()
		un = tr.Register(id, Handle{Cancel: func() {
			cancelled.Add(1)
			go un()
		}})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if tr.Wait(ctx) {
		t.Fatalf("wait should time out while relays are live")
	}

	if n := tr.CancelAll(); n != 2 {
		t.Fatalf("CancelAll = %d", n)
	}
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	if !tr.Wait(ctx2) {
		t.Fatalf("relays did not finish after cancel")
	}
	if cancelled.Load() != 2 {
		t.Fatalf("cancelled = %d", cancelled.Load())
	}
}

func TestSnapshotOrdered(t *testing.T) {
	tr := NewTracker()
	now := time.Now()
	tr.Register("late", Handle{Info: func() Info {
		return Info{ID: "late", State: "active", StartedAt: now.Add(time.Second)}
	}})
	tr.Register("early", Handle{Info: func() Info {
		return Info{ID: "early", StreamSID: "MZ1", State: "configuring", StartedAt: now}
	}})
	tr.Register("bare", Handle{})

	got := tr.Snapshot()
	if len(got) != 3 {
		t.Fatalf("snapshot len = %d", len(got))
	}
	if got[0].ID != "bare" || got[1].ID != "early" || got[2].ID != "late" {
		t.Fatalf("order = %v", got)
	}
	if got[1].StreamSID != "MZ1" {
		t.Fatalf("stream sid = %q", got[1].StreamSID)
	}
}

func TestNilTracker(t *testing.T) {
	var tr *Tracker
	tr.Register("x", Handle{})()
	if tr.Count() != 0 || tr.CancelAll() != 0 || tr.Snapshot() != nil {
		t.Fatalf("nil tracker should be inert")
	}
	if !tr.Wait(context.Background()) {
		t.Fatalf("nil tracker wait")
	}
}
