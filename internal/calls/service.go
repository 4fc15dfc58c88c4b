// Package calls queues outbound calls and answers lookups about them. It
// backs both the HTTP endpoint and the MCP tools.
package calls

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gaspardpetit/callrelay/internal/callstore"
	"github.com/gaspardpetit/callrelay/internal/drain"
	"github.com/gaspardpetit/callrelay/internal/logx"
	"github.com/gaspardpetit/callrelay/internal/metrics"
	"github.com/gaspardpetit/callrelay/internal/tasks"
	"github.com/gaspardpetit/callrelay/internal/telephony"
)

var (
	ErrMissingTo = errors.New("missing 'to' phone number")
	ErrNoDomain  = errors.New("domain is not configured")
	ErrDraining  = errors.New("server is draining")
)

// Service places calls through Dialer on the task pool and records them
// in Store.
type Service struct {
	Dialer telephony.Dialer
	Store  callstore.Store
	Pool   *tasks.Pool

	From string
	// Domain is the public host Twilio calls back. Empty disables calling.
	Domain string

	now func() time.Time
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// Queue validates the request and hands the call to the task pool. It
// returns before the provider has been contacted.
func (s *Service) Queue(to string) error {
	to = strings.TrimSpace(to)
	switch {
	case to == "":
		return ErrMissingTo
	case s.Domain == "":
		return ErrNoDomain
	case drain.IsDraining():
		return ErrDraining
	}
	req := telephony.CallRequest{
		To:                to,
		From:              s.From,
		TwimlURL:          "https://" + s.Domain + "/outbound-twiml",
		StatusCallbackURL: "https://" + s.Domain + "/call-status",
	}
	if err := s.Pool.Go("place_call", func(ctx context.Context) error { return s.place(ctx, req) }); err != nil {
		metrics.RecordCallRequest("rejected")
		return err
	}
	metrics.RecordCallRequest("queued")
	return nil
}

func (s *Service) place(ctx context.Context, req telephony.CallRequest) error {
	placed, err := s.Dialer.PlaceCall(ctx, req)
	if err != nil {
		metrics.RecordCallRequest("failed")
		return err
	}
	metrics.RecordCallRequest("placed")
	logx.Log.Info().Str("call_sid", placed.SID).Str("to", req.To).Str("status", string(placed.Status)).Msg("call placed")
	if s.Store == nil || placed.SID == "" {
		return nil
	}
	now := s.clock()
	c := callstore.Call{SID: placed.SID, To: req.To, From: req.From, Status: placed.Status, CreatedAt: now, UpdatedAt: now}
	if err := s.Store.Create(ctx, c); err != nil {
		return fmt.Errorf("record call %s: %w", placed.SID, err)
	}
	return nil
}

// RecordStatus applies a status callback.
func (s *Service) RecordStatus(ctx context.Context, sid, status string) (callstore.Call, error) {
	st, ok := telephony.ParseCallStatus(status)
	if !ok {
		logx.Log.Warn().Str("call_sid", sid).Str("status", status).Msg("unrecognised call status")
	}
	metrics.RecordCallStatus(string(st))
	if s.Store == nil || sid == "" {
		return callstore.Call{SID: sid, Status: st}, nil
	}
	return s.Store.UpdateStatus(ctx, sid, st, s.clock())
}

// Get returns the stored record for sid.
func (s *Service) Get(ctx context.Context, sid string) (callstore.Call, error) {
	if s.Store == nil {
		return callstore.Call{}, callstore.ErrNotFound
	}
	return s.Store.Get(ctx, sid)
}
