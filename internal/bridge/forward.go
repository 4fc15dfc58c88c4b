package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/gaspardpetit/callrelay/internal/metrics"
	"github.com/gaspardpetit/callrelay/internal/realtime"
	"github.com/gaspardpetit/callrelay/internal/sessions"
	"github.com/gaspardpetit/callrelay/internal/telephony"
)

const (
	directionToAI        = "to_ai"
	directionToTelephony = "to_telephony"
)

// relay is the per-call state shared by the two forwarding loops.
type relay struct {
	id      string
	log     zerolog.Logger
	started time.Time

	inbound Conn
	ai      Conn

	stream   StreamState
	state    atomic.Int32
	aiClosed atomic.Bool
	shutdown atomic.Bool

	finalizeOnce    sync.Once
	finalizeTimeout time.Duration

	pingInterval time.Duration
	pingTimeout  time.Duration
}

func (r *relay) setState(s State) {
	r.state.Store(int32(s))
	r.log.Debug().Str("state", s.String()).Msg("relay state")
}

func (r *relay) State() State { return State(r.state.Load()) }

func (r *relay) info() sessions.Info {
	sid, _ := r.stream.SID()
	return sessions.Info{ID: r.id, StreamSID: sid, State: r.State().String(), StartedAt: r.started}
}

// telephonyToAI forwards caller audio until the stream stops, the caller
// disconnects or ctx is cancelled.
func (r *relay) telephonyToAI(ctx context.Context) error {
	defer r.finalize(ctx)
	for {
		data, err := r.inbound.Read(ctx)
		if err != nil {
			return r.readEnded(ctx, "telephony", err)
		}
		ev, err := telephony.DecodeEvent(data)
		if err != nil {
			metrics.RecordMalformed("telephony")
			r.log.Warn().Err(err).Msg("dropping telephony frame")
			continue
		}
		switch e := ev.(type) {
		case telephony.Start:
			if r.stream.Set(e.StreamSID) {
				r.log.Info().Str("stream_sid", e.StreamSID).Str("call_sid", e.CallSID).Msg("media stream started")
			} else {
				r.log.Warn().Str("stream_sid", e.StreamSID).Msg("stream identifier already set; ignoring start")
			}
		case telephony.Media:
			cmd, err := realtime.AppendAudio(e.Payload)
			if err != nil {
				r.log.Warn().Err(err).Msg("encode audio append")
				continue
			}
			if err := r.ai.Write(ctx, cmd); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("forward audio to realtime: %w", err)
			}
			metrics.RecordForwarded(directionToAI, "media")
		case telephony.Stop:
			r.log.Info().Str("call_sid", e.CallSID).Msg("media stream stopped")
			return nil
		case telephony.Connected, telephony.Mark, telephony.DTMF:
			r.log.Debug().Str("event", string(e.Kind())).Msg("telephony event")
		default:
			r.log.Trace().Str("event", string(ev.Kind())).Msg("ignoring telephony event")
		}
	}
}

// finalize commits any buffered caller audio and asks for a response. It
// runs once per relay and only while the realtime socket is open. Errors are
// not reported.
func (r *relay) finalize(ctx context.Context) {
	r.finalizeOnce.Do(func() {
		if r.aiClosed.Load() {
			return
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.finalizeTimeout)
		defer cancel()
		if err := r.ai.Write(fctx, realtime.CommitAudio()); err != nil {
			r.log.Debug().Err(err).Msg("finalize: commit audio")
			return
		}
		if err := r.ai.Write(fctx, realtime.ResponseCreate()); err != nil {
			r.log.Debug().Err(err).Msg("finalize: response.create")
		}
	})
}

// aiToTelephony forwards synthesized audio and response boundaries until
// the realtime socket closes or ctx is cancelled.
func (r *relay) aiToTelephony(ctx context.Context) error {
	for {
		data, err := r.ai.Read(ctx)
		if err != nil {
			r.aiClosed.Store(true)
			return r.readEnded(ctx, "realtime", err)
		}
		ev, err := realtime.DecodeEvent(data)
		if err != nil {
			metrics.RecordMalformed("ai")
			r.log.Warn().Err(err).Msg("dropping realtime frame")
			continue
		}
		switch e := ev.(type) {
		case realtime.AudioDelta:
			if e.Delta == "" {
				continue
			}
			sid, ok := r.stream.SID()
			if !ok {
				metrics.RecordDeltaDropped()
				r.log.Debug().Str("response_id", e.ResponseID).Msg("audio before stream start; dropped")
				continue
			}
			msg, err := telephony.EncodeMedia(sid, e.Delta)
			if err != nil {
				r.log.Warn().Err(err).Msg("encode media")
				continue
			}
			if err := r.inbound.Write(ctx, msg); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("forward audio to telephony: %w", err)
			}
			metrics.RecordForwarded(directionToTelephony, "media")
		case realtime.ResponseDone:
			r.log.Debug().Str("response_id", e.ResponseID).Str("status", e.Status).Msg("response done")
			sid, ok := r.stream.SID()
			if !ok {
				continue
			}
			msg, err := telephony.EncodeMark(sid, telephony.MarkResponseDone)
			if err != nil {
				r.log.Warn().Err(err).Msg("encode mark")
				continue
			}
			if err := r.inbound.Write(ctx, msg); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("send mark: %w", err)
			}
			metrics.RecordForwarded(directionToTelephony, "mark")
		case realtime.TranscriptDelta:
			r.log.Debug().Str("response_id", e.ResponseID).Str("delta", e.Delta).Msg("assistant transcript")
		case realtime.InputTranscription:
			r.log.Info().Str("item_id", e.ItemID).Str("transcript", e.Transcript).Msg("caller transcript")
		case realtime.Error:
			metrics.RecordAIError(e.ErrType)
			r.log.Error().Str("type", e.ErrType).Str("code", e.Code).Str("param", e.Param).
				Str("event_id", e.EventID).Msg(e.Message)
		case realtime.SessionCreated:
			r.log.Info().Str("session_id", e.SessionID).Str("model", e.Model).Msg(realtime.TypeSessionCreated)
		case realtime.RateLimits:
			le := r.log.Info()
			for _, l := range e.Limits {
				le = le.Int(l.Name+"_remaining", l.Remaining)
			}
			le.Msg(realtime.TypeRateLimitsUpdated)
		case realtime.Lifecycle:
			r.log.Info().Msg(e.Type)
		default:
			r.log.Trace().Str("type", ev.EventType()).Msg("ignoring realtime event")
		}
	}
}

// keepalive pings the realtime socket until ctx is cancelled. A ping that
// fails or goes unanswered ends the relay.
func (r *relay) keepalive(ctx context.Context) error {
	ticker := time.NewTicker(r.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, r.pingTimeout)
			err := r.ai.Ping(pctx)
			cancel()
			if err == nil {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			r.aiClosed.Store(true)
			return fmt.Errorf("realtime keepalive: %w", err)
		}
	}
}

// readEnded classifies a read failure. A peer close or a cancelled context
// ends the loop normally; anything else is a transport failure.
func (r *relay) readEnded(ctx context.Context, side string, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	if code := websocket.CloseStatus(err); code != -1 {
		r.log.Info().Str("side", side).Int("code", int(code)).Msg("peer closed socket")
		return nil
	}
	if errors.Is(err, io.EOF) {
		r.log.Info().Str("side", side).Msg("peer disconnected")
		return nil
	}
	return fmt.Errorf("read %s: %w", side, err)
}
