package tasks

import (
	"context"
	"sync"
)

// counter tracks running tasks and lets shutdown wait for zero.
type counter struct {
	mu     sync.Mutex
	count  int64
	zeroCh chan struct{}
}

func (c *counter) zeroLocked() chan struct{} {
	if c.zeroCh == nil {
		c.zeroCh = make(chan struct{})
		if c.count == 0 {
			close(c.zeroCh)
		}
	}
	return c.zeroCh
}

func (c *counter) inc() {
	c.mu.Lock()
	c.zeroLocked()
	if c.count == 0 {
		c.zeroCh = make(chan struct{})
	}
	c.count++
	c.mu.Unlock()
}

func (c *counter) dec() {
	c.mu.Lock()
	ch := c.zeroLocked()
	if c.count > 0 {
		c.count--
		if c.count == 0 {
			close(ch)
		}
	}
	c.mu.Unlock()
}

func (c *counter) load() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// waitForZero blocks until the count is zero or ctx is done.
func (c *counter) waitForZero(ctx context.Context) bool {
	c.mu.Lock()
	ch := c.zeroLocked()
	c.mu.Unlock()
	select {
	case <-ch:
		return true
	case <-ctx.Done():
		return false
	}
}
