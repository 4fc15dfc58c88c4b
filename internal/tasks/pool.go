// Package tasks runs fire-and-forget work such as placing outbound calls
// under a concurrency bound, detached from the request that queued it.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/gaspardpetit/callrelay/internal/logx"
)

var (
	// ErrSaturated is returned by Go when every slot is busy.
	ErrSaturated = errors.New("task pool saturated")
	// ErrClosed is returned by Go after Close.
	ErrClosed = errors.New("task pool closed")
)

// Func is one unit of work. ctx is cancelled when the task times out or the
// pool is closed.
type Func func(ctx context.Context) error

// Pool runs tasks with at most limit in flight.
type Pool struct {
	sem     *semaphore.Weighted
	limit   int64
	timeout time.Duration

	base   context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	running counter
	failed  atomic.Int64

	// OnDone, when set, observes every finished task.
	OnDone func(name string, err error)
}

// NewPool returns a pool allowing limit concurrent tasks, each bounded by
// timeout. Non-positive values fall back to 1 task and no timeout.
func NewPool(limit int, timeout time.Duration) *Pool {
	if limit <= 0 {
		limit = 1
	}
	base, cancel := context.WithCancel(context.Background())
	return &Pool{
		sem:     semaphore.NewWeighted(int64(limit)),
		limit:   int64(limit),
		timeout: timeout,
		base:    base,
		cancel:  cancel,
	}
}

// Go starts fn in the background if a slot is free. It never blocks.
func (p *Pool) Go(name string, fn Func) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if !p.sem.TryAcquire(1) {
		return ErrSaturated
	}
	p.running.inc()
	go p.run(name, fn)
	return nil
}

func (p *Pool) run(name string, fn Func) {
	log := logx.Log.With().Str("task", name).Logger()
	start := time.Now()
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			log.Error().Str("stack", string(debug.Stack())).Msg("task panicked")
		}
		if err != nil {
			p.failed.Add(1)
			log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("task failed")
		} else {
			log.Debug().Dur("elapsed", time.Since(start)).Msg("task done")
		}
		if p.OnDone != nil {
			p.OnDone(name, err)
		}
		p.sem.Release(1)
		p.running.dec()
	}()

	ctx := p.base
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	err = fn(ctx)
}

// InFlight returns the number of running tasks.
func (p *Pool) InFlight() int64 { return p.running.load() }

// Failed returns how many tasks have returned an error or panicked.
func (p *Pool) Failed() int64 { return p.failed.Load() }

// Limit returns the configured concurrency bound.
func (p *Pool) Limit() int64 { return p.limit }

// Wait blocks until no task is running or ctx is done. It reports whether
// the pool drained.
func (p *Pool) Wait(ctx context.Context) bool { return p.running.waitForZero(ctx) }

// Close refuses new tasks and cancels the context of running ones.
func (p *Pool) Close() {
	p.closed.Store(true)
	p.cancel()
}
