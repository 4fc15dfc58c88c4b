// Package bridge relays one Twilio media stream to one OpenAI realtime
// session and back.
package bridge

import (
	"context"

	"github.com/coder/websocket"

	"github.com/gaspardpetit/callrelay/internal/realtime"
)

// Conn is one side of a relay: a socket carrying JSON text frames.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close(code websocket.StatusCode, reason string) error
	// Ping sends a ping and waits for the matching pong. It needs a
	// concurrent Read to observe the pong.
	Ping(ctx context.Context) error
}

type wsConn struct {
	c *websocket.Conn
}

// WrapWebsocket adapts a websocket connection to Conn. Frames are written
// as text messages.
func WrapWebsocket(c *websocket.Conn) Conn { return wsConn{c: c} }

func (w wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.c.Read(ctx)
	return data, err
}

func (w wsConn) Write(ctx context.Context, data []byte) error {
	return w.c.Write(ctx, websocket.MessageText, data)
}

func (w wsConn) Ping(ctx context.Context) error {
	return w.c.Ping(ctx)
}

func (w wsConn) Close(code websocket.StatusCode, reason string) error {
	return w.c.Close(code, reason)
}

// Dialer opens the AI side of a relay.
type Dialer func(ctx context.Context) (Conn, error)

// RealtimeDialer returns a Dialer that connects with realtime.Dial.
func RealtimeDialer(opts realtime.DialOptions) Dialer {
	return func(ctx context.Context) (Conn, error) {
		c, err := realtime.Dial(ctx, opts)
		if err != nil {
			return nil, err
		}
		return WrapWebsocket(c), nil
	}
}
