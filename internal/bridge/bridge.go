package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gaspardpetit/callrelay/internal/logx"
	"github.com/gaspardpetit/callrelay/internal/metrics"
	"github.com/gaspardpetit/callrelay/internal/sessions"
)

// DialFailureReason is the close reason sent to the telephony side when the
// realtime service cannot be reached.
const DialFailureReason = "Failed to connect to AI service"

// DefaultFinalizeTimeout bounds the commit and response.create sent when
// the inbound stream ends.
const DefaultFinalizeTimeout = 2 * time.Second

// Realtime socket defaults: how long the handshake may take and how often
// the connection is probed once established.
const (
	DefaultDialTimeout  = 10 * time.Second
	DefaultPingInterval = 20 * time.Second
	DefaultPingTimeout  = 10 * time.Second
)

// Bridge owns the relay of every accepted media stream.
type Bridge struct {
	Dial            Dialer
	Configurator    Configurator
	Tracker         *sessions.Tracker
	FinalizeTimeout time.Duration
	DialTimeout     time.Duration
	// PingInterval spaces keepalive pings on the realtime socket. A ping
	// unanswered within PingTimeout ends the relay.
	PingInterval time.Duration
	PingTimeout  time.Duration
}

// New returns a Bridge that opens realtime sessions with dial.
func New(dial Dialer, cfg Configurator, tracker *sessions.Tracker) *Bridge {
	return &Bridge{
		Dial:            dial,
		Configurator:    cfg,
		Tracker:         tracker,
		FinalizeTimeout: DefaultFinalizeTimeout,
		DialTimeout:     DefaultDialTimeout,
		PingInterval:    DefaultPingInterval,
		PingTimeout:     DefaultPingTimeout,
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Handle relays one inbound media stream until either side ends, then
// closes both sockets. It returns an error when the realtime session could
// not be set up or a socket failed mid-call.
func (b *Bridge) Handle(ctx context.Context, inbound Conn) error {
	r := &relay{
		id:              uuid.NewString(),
		started:         time.Now(),
		inbound:         inbound,
		finalizeTimeout: orDefault(b.FinalizeTimeout, DefaultFinalizeTimeout),
		pingInterval:    orDefault(b.PingInterval, DefaultPingInterval),
		pingTimeout:     orDefault(b.PingTimeout, DefaultPingTimeout),
	}
	r.log = logx.Log.With().Str("relay_id", r.id).Logger()
	r.setState(StateConnecting)

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	unregister := b.Tracker.Register(r.id, sessions.Handle{Cancel: func() {
		r.shutdown.Store(true)
		cancel()
	}, Info: r.info})
	defer unregister()
	metrics.RelayStarted()
	defer func() { metrics.RelayFinished(time.Since(r.started)) }()

	// The inbound socket is not read during the handshake, so a stalled
	// upgrade must not hold the caller open.
	dctx, dcancel := context.WithTimeout(ctx, orDefault(b.DialTimeout, DefaultDialTimeout))
	ai, err := b.Dial(dctx)
	dcancel()
	if err != nil {
		metrics.RecordSetupFailure(metrics.StageDial)
		r.log.Error().Err(err).Msg("connect to realtime service")
		_ = inbound.Close(websocket.StatusInternalError, DialFailureReason)
		r.setState(StateClosed)
		return fmt.Errorf("dial realtime: %w", err)
	}
	r.ai = ai
	r.log.Info().Msg("realtime session connected")

	r.setState(StateConfiguring)
	if err := b.Configurator.Configure(ctx, ai); err != nil {
		metrics.RecordSetupFailure(metrics.StageConfigure)
		r.log.Error().Err(err).Msg("configure realtime session")
		r.setState(StateClosing)
		_ = ai.Close(websocket.StatusInternalError, "session setup failed")
		_ = inbound.Close(websocket.StatusInternalError, "session setup failed")
		r.setState(StateClosed)
		return fmt.Errorf("configure session: %w", err)
	}

	r.setState(StateActive)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return r.telephonyToAI(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return r.aiToTelephony(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return r.keepalive(gctx)
	})
	err = g.Wait()

	r.setState(StateClosing)
	code, reason := websocket.StatusNormalClosure, ""
	if r.shutdown.Load() || parent.Err() != nil {
		code, reason = websocket.StatusGoingAway, "server shutting down"
	}
	_ = ai.Close(code, reason)
	_ = inbound.Close(code, reason)
	r.setState(StateClosed)

	ev := r.log.Info()
	if err != nil {
		ev = r.log.Warn().Err(err)
	}
	ev.Dur("duration", time.Since(r.started)).Msg("relay closed")
	return err
}
