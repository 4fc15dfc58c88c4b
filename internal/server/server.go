package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gaspardpetit/callrelay/internal/api"
	"github.com/gaspardpetit/callrelay/internal/bridge"
	"github.com/gaspardpetit/callrelay/internal/config"
	"github.com/gaspardpetit/callrelay/internal/mcpserver"
	"github.com/gaspardpetit/callrelay/internal/realtime"
	"github.com/gaspardpetit/callrelay/internal/sessions"
)

// CallService is what the HTTP and MCP surfaces need from the call service.
type CallService interface {
	api.CallService
	mcpserver.CallService
}

// Deps carries the collaborators the router hands requests to.
type Deps struct {
	Version string
	Relay   api.Relay
	Calls   CallService
	State   *api.StateHandler
	// Metrics is served on /metrics when the metrics address shares the
	// main port. Nil falls back to the default gatherer.
	Metrics prometheus.Gatherer
}

// New constructs the HTTP handler for the server.
func New(cfg config.ServerConfig, d Deps) http.Handler {
	r := chi.NewRouter()
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		}))
	}
	for _, m := range api.MiddlewareChain() {
		r.Use(m)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Get("/state", StatusHandler())
	r.Get("/media-stream", api.MediaStreamHandler(d.Relay))

	ch := &api.CallsHandler{Calls: d.Calls, Domain: cfg.Domain, StreamURL: cfg.StreamURL()}
	r.Group(func(r chi.Router) {
		if cfg.VerifyTwilioSignature {
			r.Use(api.TwilioSignatureMiddleware(cfg.TwilioAuthToken, cfg.Domain))
		}
		r.HandleFunc("/outbound-twiml", ch.OutboundTwiML)
		r.Post("/call-status", ch.CallStatus)
	})

	r.Group(func(r chi.Router) {
		r.Use(api.APIKeyMiddleware(cfg.APIKey))
		r.Post("/outbound-call", ch.OutboundCall)
		r.Route("/api", func(r chi.Router) {
			r.Get("/calls/{call_sid}", ch.GetCall)
			if d.State != nil {
				r.Get("/state", d.State.GetState)
				r.Get("/state/stream", d.State.GetStateStream)
			}
			r.Get("/openapi.json", api.OpenAPIHandler(d.Version))
		})
		r.Handle("/mcp", mcpserver.NewHandler(d.Calls, d.Version))
	})

	if cfg.MetricsAddr == fmt.Sprintf(":%d", cfg.Port) {
		r.Handle("/metrics", MetricsHandler(d.Metrics))
	}
	return r
}

// MetricsHandler serves g, or the default gatherer when g is nil.
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// NewConfigurator derives the realtime session setup from cfg.
func NewConfigurator(cfg config.ServerConfig) bridge.Configurator {
	session := realtime.SessionConfig{
		Voice:             cfg.Voice,
		Instructions:      cfg.SystemMessage,
		Temperature:       cfg.Temperature,
		Modalities:        []string{"text", "audio"},
		TurnDetection:     realtime.ServerVAD(),
		InputAudioFormat:  realtime.AudioFormatG711ULaw,
		OutputAudioFormat: realtime.AudioFormatG711ULaw,
	}
	if cfg.TranscriptionModel != "" {
		session.InputAudioTranscription = &realtime.Transcription{Model: cfg.TranscriptionModel}
	}
	return bridge.Configurator{
		Session:     session,
		Greeting:    cfg.GreetingPrompt,
		Role:        bridge.DefaultGreetingRole,
		SettleDelay: cfg.SettleDelay,
	}
}

// NewBridge builds the media stream relay from cfg.
func NewBridge(cfg config.ServerConfig, tracker *sessions.Tracker) *bridge.Bridge {
	b := bridge.New(bridge.RealtimeDialer(NewDialOptions(cfg)), NewConfigurator(cfg), tracker)
	if cfg.DialTimeout > 0 {
		b.DialTimeout = cfg.DialTimeout
	}
	if cfg.PingInterval > 0 {
		b.PingInterval = cfg.PingInterval
	}
	return b
}

// NewDialOptions derives the realtime dial settings from cfg.
func NewDialOptions(cfg config.ServerConfig) realtime.DialOptions {
	return realtime.DialOptions{URL: cfg.RealtimeURL, Model: cfg.RealtimeModel, APIKey: cfg.OpenAIAPIKey}
}
