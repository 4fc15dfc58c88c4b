package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/gaspardpetit/callrelay/internal/realtime"
)

// DefaultGreetingRole authors the greeting item.
const DefaultGreetingRole = "system"

// Configurator prepares a fresh realtime session: it applies the session
// settings, waits for them to settle, seeds the greeting and asks for the
// first response.
type Configurator struct {
	Session     realtime.SessionConfig
	Greeting    string
	Role        string
	SettleDelay time.Duration
}

// Configure sends session.update, waits SettleDelay, then sends
// conversation.item.create with the greeting followed by response.create.
// An empty greeting skips the item but still requests a response.
func (c Configurator) Configure(ctx context.Context, ai Conn) error {
	update, err := realtime.SessionUpdate(c.Session)
	if err != nil {
		return fmt.Errorf("encode session.update: %w", err)
	}
	if err := ai.Write(ctx, update); err != nil {
		return fmt.Errorf("send session.update: %w", err)
	}

	if c.SettleDelay > 0 {
		t := time.NewTimer(c.SettleDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	if c.Greeting != "" {
		role := c.Role
		if role == "" {
			role = DefaultGreetingRole
		}
		item, err := realtime.TextMessage(role, c.Greeting)
		if err != nil {
			return fmt.Errorf("encode greeting: %w", err)
		}
		if err := ai.Write(ctx, item); err != nil {
			return fmt.Errorf("send greeting: %w", err)
		}
	}
	if err := ai.Write(ctx, realtime.ResponseCreate()); err != nil {
		return fmt.Errorf("send response.create: %w", err)
	}
	return nil
}
