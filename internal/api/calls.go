package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/gaspardpetit/callrelay/internal/calls"
	"github.com/gaspardpetit/callrelay/internal/callstore"
	"github.com/gaspardpetit/callrelay/internal/logx"
	"github.com/gaspardpetit/callrelay/internal/tasks"
	"github.com/gaspardpetit/callrelay/internal/telephony"
)

// CallService is implemented by calls.Service.
type CallService interface {
	Queue(to string) error
	RecordStatus(ctx context.Context, sid, status string) (callstore.Call, error)
	Get(ctx context.Context, sid string) (callstore.Call, error)
}

// CallsHandler serves the telephony webhooks and the call API.
type CallsHandler struct {
	Calls CallService
	// Domain is the public host name. TwiML cannot be produced without it.
	Domain string
	// StreamURL is announced in TwiML as the media stream target.
	StreamURL string
}

type outboundCallRequest struct {
	To string `json:"to"`
}

// OutboundCall queues a call to the number in the JSON body.
func (h *CallsHandler) OutboundCall(w http.ResponseWriter, r *http.Request) {
	var req outboundCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	err := h.Calls.Queue(req.To)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"message": "Call request queued."})
	case errors.Is(err, calls.ErrMissingTo), errors.Is(err, calls.ErrNoDomain):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, calls.ErrDraining), errors.Is(err, tasks.ErrSaturated), errors.Is(err, tasks.ErrClosed):
		w.Header().Set("Retry-After", "5")
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// OutboundTwiML tells Twilio to connect the answered call to the media
// stream endpoint.
func (h *CallsHandler) OutboundTwiML(w http.ResponseWriter, r *http.Request) {
	if h.Domain == "" {
		writeError(w, http.StatusBadRequest, "DOMAIN not configured")
		return
	}
	body, err := telephony.ConnectStream(h.StreamURL, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "render twiml")
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logx.Log.Error().Err(err).Msg("write twiml")
	}
}

// CallStatus records a Twilio status callback.
func (h *CallsHandler) CallStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	sid := r.PostForm.Get("CallSid")
	status := r.PostForm.Get("CallStatus")
	logx.Log.Info().Str("call_sid", sid).Str("status", status).
		Str("answered_by", r.PostForm.Get("AnsweredBy")).Msg("call status")
	if _, err := h.Calls.RecordStatus(r.Context(), sid, status); err != nil {
		writeError(w, http.StatusInternalServerError, "record call status: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

// GetCall returns the stored record for the call_sid path parameter.
func (h *CallsHandler) GetCall(w http.ResponseWriter, r *http.Request) {
	var sid string
	err := runtime.BindStyledParameterWithOptions("simple", "call_sid", chi.URLParam(r, "call_sid"), &sid,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid call_sid: "+err.Error())
		return
	}
	c, err := h.Calls.Get(r.Context(), sid)
	if errors.Is(err, callstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "call not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c)
}
