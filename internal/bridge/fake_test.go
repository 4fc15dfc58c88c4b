package bridge

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/gaspardpetit/callrelay/internal/realtime"
)

// fakeConn is a scripted Conn. Frames queued with push are returned by
// Read; hangup simulates the peer closing the socket.
type fakeConn struct {
	frames chan []byte

	mu       sync.Mutex
	writes   [][]byte
	onWrite  func([]byte)
	writeErr error
	pings    int
	// pingStalled makes Ping wait for its context, like a peer that
	// stopped answering.
	pingStalled bool
	closed      bool
	closeCode   websocket.StatusCode
	closeReason string

	done      chan struct{}
	closeOnce sync.Once
	hangOnce  sync.Once
}

func newFakeConn(frames ...string) *fakeConn {
	f := &fakeConn{frames: make(chan []byte, 64), done: make(chan struct{})}
	for _, fr := range frames {
		f.push(fr)
	}
	return f
}

func (f *fakeConn) push(frame string) { f.frames <- []byte(frame) }

func (f *fakeConn) hangup() { f.hangOnce.Do(func() { close(f.frames) }) }

func (f *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case b, ok := <-f.frames:
		if !ok {
			return nil, websocket.CloseError{Code: websocket.StatusNormalClosure}
		}
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.done:
		return nil, net.ErrClosed
	}
}

func (f *fakeConn) Write(_ context.Context, data []byte) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return net.ErrClosed
	}
	if f.writeErr != nil {
		err := f.writeErr
		f.mu.Unlock()
		return err
	}
	f.writes = append(f.writes, append([]byte(nil), data...))
	hook := f.onWrite
	f.mu.Unlock()
	if hook != nil {
		hook(data)
	}
	return nil
}

func (f *fakeConn) Ping(ctx context.Context) error {
	f.mu.Lock()
	f.pings++
	stalled := f.pingStalled
	f.mu.Unlock()
	if !stalled {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeConn) pingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pings
}

func (f *fakeConn) Close(code websocket.StatusCode, reason string) error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.closeCode = code
		f.closeReason = reason
		f.mu.Unlock()
		close(f.done)
	})
	return nil
}

func (f *fakeConn) written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.writes))
	copy(out, f.writes)
	return out
}

func (f *fakeConn) commandTypes() []string {
	var out []string
	for _, w := range f.written() {
		out = append(out, realtime.CommandType(w))
	}
	return out
}

func (f *fakeConn) closeStatus() (bool, websocket.StatusCode, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed, f.closeCode, f.closeReason
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func staticDialer(c Conn) Dialer {
	return func(context.Context) (Conn, error) { return c, nil }
}
