package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/gaspardpetit/callrelay/internal/drain"
	"github.com/gaspardpetit/callrelay/internal/logx"
	"github.com/gaspardpetit/callrelay/internal/sessions"
	"github.com/gaspardpetit/callrelay/internal/tasks"
)

// State is the body of GET /api/state.
type State struct {
	Version       string          `json:"version"`
	Draining      bool            `json:"draining"`
	DrainingSince *time.Time      `json:"draining_since,omitempty"`
	ActiveRelays  int             `json:"active_relays"`
	Relays        []sessions.Info `json:"relays"`
	CallTasks     TaskState       `json:"call_tasks"`
	Host          *HostState      `json:"host,omitempty"`
}

type TaskState struct {
	InFlight int64 `json:"in_flight"`
	Limit    int64 `json:"limit"`
	Failed   int64 `json:"failed"`
}

// HostState is a coarse view of the machine running the relay.
type HostState struct {
	MemTotal       uint64  `json:"mem_total_bytes"`
	MemUsedPercent float64 `json:"mem_used_percent"`
	Load1          float64 `json:"load1"`
	Load5          float64 `json:"load5"`
	Load15         float64 `json:"load15"`
}

// StateHandler serves state snapshots and streams.
type StateHandler struct {
	Version string
	Tracker *sessions.Tracker
	Pool    *tasks.Pool
	// HostStats is replaced in tests.
	HostStats func(ctx context.Context) *HostState
}

// Snapshot assembles the current state.
func (h *StateHandler) Snapshot(ctx context.Context) State {
	relays := h.Tracker.Snapshot()
	if relays == nil {
		relays = []sessions.Info{}
	}
	st := State{
		Version:      h.Version,
		Draining:     drain.IsDraining(),
		ActiveRelays: len(relays),
		Relays:       relays,
	}
	if st.Draining {
		since := drain.Since()
		st.DrainingSince = &since
	}
	if h.Pool != nil {
		st.CallTasks = TaskState{InFlight: h.Pool.InFlight(), Limit: h.Pool.Limit(), Failed: h.Pool.Failed()}
	}
	stats := h.HostStats
	if stats == nil {
		stats = hostStats
	}
	st.Host = stats(ctx)
	return st
}

// GetState returns a JSON snapshot.
func (h *StateHandler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Snapshot(r.Context()))
}

// GetStateStream streams state snapshots as Server-Sent Events.
func (h *StateHandler) GetStateStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	send := func() bool {
		b, err := json.Marshal(h.Snapshot(r.Context()))
		if err != nil {
			logx.Log.Error().Err(err).Msg("encode state")
			return false
		}
		if _, err := w.Write([]byte("data: ")); err != nil {
			return false
		}
		if _, err := w.Write(b); err != nil {
			return false
		}
		if _, err := w.Write([]byte("\n\n")); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}
	if !send() {
		return
	}
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if !send() {
				return
			}
		}
	}
}

func hostStats(ctx context.Context) *HostState {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		logx.Log.Debug().Err(err).Msg("host memory stats")
		return nil
	}
	hs := &HostState{MemTotal: vm.Total, MemUsedPercent: vm.UsedPercent}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		hs.Load1, hs.Load5, hs.Load15 = avg.Load1, avg.Load5, avg.Load15
	}
	return hs
}
