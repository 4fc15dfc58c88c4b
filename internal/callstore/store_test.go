package callstore

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/gaspardpetit/callrelay/internal/telephony"
)

// exerciseStore runs the behaviour every Store implementation shares.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if _, err := s.Get(ctx, "CA404"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get unknown err = %v; want ErrNotFound", err)
	}

	if err := s.Create(ctx, Call{SID: "CA1", To: "+15550001111", From: "+15550002222", Status: telephony.StatusQueued, CreatedAt: t0, UpdatedAt: t0}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	c, err := s.UpdateStatus(ctx, "CA1", telephony.StatusRinging, t0.Add(time.Second))
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if c.Status != telephony.StatusRinging || c.To != "+15550001111" || !c.CreatedAt.Equal(t0) {
		t.Fatalf("after ringing = %+v", c)
	}

	if _, err := s.UpdateStatus(ctx, "CA1", telephony.StatusCompleted, t0.Add(2*time.Second)); err != nil {
		t.Fatalf("UpdateStatus completed: %v", err)
	}
	c, err = s.UpdateStatus(ctx, "CA1", telephony.StatusRinging, t0.Add(3*time.Second))
	if err != nil {
		t.Fatalf("UpdateStatus late: %v", err)
	}
	if c.Status != telephony.StatusCompleted || !c.UpdatedAt.Equal(t0.Add(2*time.Second)) {
		t.Fatalf("terminal status not sticky: %+v", c)
	}
	got, err := s.Get(ctx, "CA1")
	if err != nil || got.Status != telephony.StatusCompleted {
		t.Fatalf("Get = %+v, %v", got, err)
	}

	c, err = s.UpdateStatus(ctx, "CA2", telephony.StatusInitiated, t0)
	if err != nil {
		t.Fatalf("UpdateStatus unknown: %v", err)
	}
	if c.SID != "CA2" || c.Status != telephony.StatusInitiated || !c.CreatedAt.Equal(t0) {
		t.Fatalf("created from callback = %+v", c)
	}

	// The placed call lands after its first callback.
	if err := s.Create(ctx, Call{SID: "CA2", To: "+15550003333", Status: telephony.StatusQueued, CreatedAt: t0.Add(time.Second)}); err != nil {
		t.Fatalf("Create after callback: %v", err)
	}
	got, err = s.Get(ctx, "CA2")
	if err != nil || got.Status != telephony.StatusInitiated || got.To != "+15550003333" || !got.CreatedAt.Equal(t0) {
		t.Fatalf("merged record = %+v, %v", got, err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(0))
}

func TestMemoryStoreTTL(t *testing.T) {
	ms := NewMemoryStore(time.Hour)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ms.now = func() time.Time { return now }
	ctx := context.Background()
	if err := ms.Create(ctx, Call{SID: "CA1", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	now = now.Add(30 * time.Minute)
	if _, err := ms.Get(ctx, "CA1"); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}
	now = now.Add(time.Hour)
	if _, err := ms.Get(ctx, "CA1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after expiry err = %v", err)
	}
}

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	rs, err := NewRedisStore(context.Background(), mr.Addr(), time.Hour)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer rs.Close()
	exerciseStore(t, rs)

	if ttl := mr.TTL(keyPrefix + "CA1"); ttl != time.Hour {
		t.Fatalf("ttl = %v", ttl)
	}
	mr.FastForward(2 * time.Hour)
	if _, err := rs.Get(context.Background(), "CA1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after expiry err = %v", err)
	}

	// A second client sees records written by the first.
	if err := rs.Create(context.Background(), Call{SID: "CA9", Status: telephony.StatusQueued}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	rs2, err := NewRedisStore(context.Background(), "redis://"+mr.Addr()+"/0", time.Hour)
	if err != nil {
		t.Fatalf("NewRedisStore url: %v", err)
	}
	defer rs2.Close()
	if c, err := rs2.Get(context.Background(), "CA9"); err != nil || c.Status != telephony.StatusQueued {
		t.Fatalf("shared Get = %+v, %v", c, err)
	}
}

func TestRedisStoreUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := NewRedisStore(ctx, "127.0.0.1:1", 0); err == nil {
		t.Fatalf("expected connection error")
	}
}

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		url    string
		addrs  int
		master string
		db     int
		tls    bool
	}{
		{"localhost:6379", 1, "", 0, false},
		{"redis://:pass@localhost:6379/1", 1, "", 1, false},
		{"rediss://host1:6379,host2:6379/0", 2, "", 0, true},
		{"redis://localhost:6379?db=3", 1, "", 3, false},
		{"redis-sentinel://localhost:26379/mymaster?db=2", 1, "mymaster", 2, false},
	}
	for _, tt := range tests {
		opts, err := parseRedisURL(tt.url)
		if err != nil {
			t.Fatalf("parseRedisURL(%q): %v", tt.url, err)
		}
		if len(opts.Addrs) != tt.addrs || opts.MasterName != tt.master || opts.DB != tt.db || (opts.TLSConfig != nil) != tt.tls {
			t.Fatalf("%q parsed = %+v", tt.url, opts)
		}
	}
	for _, bad := range []string{"http://localhost", "redis://localhost/notadb"} {
		if _, err := parseRedisURL(bad); err == nil {
			t.Fatalf("parseRedisURL(%q) should fail", bad)
		}
	}
}
