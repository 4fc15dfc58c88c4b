package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/gaspardpetit/callrelay/core/secret"
	"github.com/gaspardpetit/callrelay/internal/api"
	"github.com/gaspardpetit/callrelay/internal/calls"
	"github.com/gaspardpetit/callrelay/internal/callstore"
	"github.com/gaspardpetit/callrelay/internal/config"
	"github.com/gaspardpetit/callrelay/internal/drain"
	"github.com/gaspardpetit/callrelay/internal/logx"
	"github.com/gaspardpetit/callrelay/internal/metrics"
	"github.com/gaspardpetit/callrelay/internal/server"
	"github.com/gaspardpetit/callrelay/internal/sessions"
	"github.com/gaspardpetit/callrelay/internal/tasks"
	"github.com/gaspardpetit/callrelay/internal/telephony"
)

var (
	version   = "dev"
	buildSHA  = "unknown"
	buildDate = "unknown"
)

// placeCallTimeout bounds one provider request for an outbound call.
const placeCallTimeout = 30 * time.Second

// configFromArgs returns the --config value, if any, so the file can be
// loaded before flags are bound.
func configFromArgs(args []string) (string, bool) {
	for i := 0; i < len(args); i++ {
		a := strings.TrimPrefix(args[i], "-")
		if a == "-config" || a == "config" {
			if i+1 < len(args) {
				return args[i+1], true
			}
			return "", false
		}
		if v, ok := strings.CutPrefix(a, "-config="); ok {
			return v, true
		}
		if v, ok := strings.CutPrefix(a, "config="); ok {
			return v, true
		}
	}
	return "", false
}

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	var cfg config.ServerConfig
	// Resolve config with precedence: defaults < file < env < args
	cfg.SetDefaults()
	cfg.ApplyEnv() // allows CONFIG_FILE from env
	if p, ok := configFromArgs(os.Args[1:]); ok {
		cfg.ConfigFile = p
	}
	if cfg.ConfigFile != "" {
		if err := cfg.LoadFile(cfg.ConfigFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			logx.Log.Fatal().Err(err).Str("path", cfg.ConfigFile).Msg("load config")
		}
	}
	cfg.ApplyEnv()
	cfg.BindFlagsFromCurrent()
	flag.Usage = func() {
		_, _ = fmt.Fprintf(flag.CommandLine.Output(), "callrelay version=%s sha=%s date=%s\n\n", version, buildSHA, buildDate)
		flag.PrintDefaults()
	}
	flag.Parse()
	if *showVersion {
		fmt.Printf("callrelay version=%s sha=%s date=%s\n", version, buildSHA, buildDate)
		return
	}
	cfg.Normalize()

	logx.Configure(cfg.LogLevel, cfg.LogFile)
	defer logx.Close()
	if err := cfg.Validate(); err != nil {
		logx.Log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.Domain == "" {
		logx.Log.Warn().Msg("DOMAIN not set; outbound calls and TwiML are disabled")
	}
	logx.Log.Debug().
		Str("twilio_account_sid", cfg.TwilioAccountSID).
		Str("twilio_auth_token", secret.Mask(cfg.TwilioAuthToken)).
		Str("openai_api_key", secret.Mask(cfg.OpenAIAPIKey)).
		Str("api_key", secret.Mask(cfg.APIKey)).
		Msg("credentials loaded")

	preg := prometheus.NewRegistry()
	preg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(preg)
	metrics.SetServerBuildInfo(version, buildSHA, buildDate)

	var store callstore.Store
	if cfg.RedisAddr != "" {
		rs, err := callstore.NewRedisStore(context.Background(), cfg.RedisAddr, cfg.CallRecordTTL)
		if err != nil {
			logx.Log.Fatal().Err(err).Msg("connect redis")
		}
		defer func() { _ = rs.Close() }()
		store = rs
		logx.Log.Info().Str("addr", cfg.RedisAddr).Msg("using redis call store")
	} else {
		store = callstore.NewMemoryStore(cfg.CallRecordTTL)
	}

	pool := tasks.NewPool(cfg.CallTaskLimit, placeCallTimeout)
	tracker := sessions.NewTracker()
	svc := &calls.Service{
		Dialer: telephony.NewTwilioDialer(cfg.TwilioAccountSID, cfg.TwilioAuthToken),
		Store:  store,
		Pool:   pool,
		From:   cfg.FromNumber,
		Domain: cfg.Domain,
	}
	relay := server.NewBridge(cfg, tracker)

	handler := server.New(cfg, server.Deps{
		Version: version,
		Relay:   relay,
		Calls:   svc,
		State:   &api.StateHandler{Version: version, Tracker: tracker, Pool: pool},
		Metrics: preg,
	})
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	var metricsSrv *http.Server
	if cfg.MetricsAddr != fmt.Sprintf(":%d", cfg.Port) {
		mux := http.NewServeMux()
		mux.Handle("/metrics", server.MetricsHandler(preg))
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		for range sigCh {
			if drain.IsDraining() || cfg.DrainTimeout == 0 {
				logx.Log.Warn().Msg("termination requested")
				cancel()
				return
			}
			drain.Start()
			waitCtx := ctx
			var stop context.CancelFunc
			if cfg.DrainTimeout > 0 {
				logx.Log.Info().Dur("timeout", cfg.DrainTimeout).Int("relays", tracker.Count()).Msg("draining; send SIGTERM again to terminate immediately")
				waitCtx, stop = context.WithTimeout(ctx, cfg.DrainTimeout)
			} else {
				logx.Log.Info().Int("relays", tracker.Count()).Msg("draining; send SIGTERM again to terminate immediately")
			}
			go func(stop context.CancelFunc, waitCtx context.Context) {
				if stop != nil {
					defer stop()
				}
				if tracker.Wait(waitCtx) && pool.Wait(waitCtx) {
					logx.Log.Info().Msg("drain complete; terminating")
					cancel()
					return
				}
				if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
					logx.Log.Warn().Int("relays", tracker.Count()).Int64("call_tasks", pool.InFlight()).Msg("drain timeout exceeded; terminating")
					cancel()
				}
			}(stop, waitCtx)
		}
	}()
	go func() {
		<-ctx.Done()
		// Hijacked media stream sockets are not tracked by Shutdown.
		if n := tracker.CancelAll(); n > 0 {
			logx.Log.Info().Int("relays", n).Msg("closing live relays")
		}
		pool.Close()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logx.Log.Error().Err(err).Msg("server shutdown")
		}
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				logx.Log.Error().Err(err).Msg("metrics server shutdown")
			}
		}
	}()

	if cfg.APIKey != "" {
		logx.Log.Info().Msg("API key auth enabled")
	}
	if cfg.VerifyTwilioSignature {
		logx.Log.Info().Msg("Twilio signature verification enabled")
	}
	logx.Log.Info().Int("port", cfg.Port).Str("domain", cfg.Domain).Str("model", cfg.RealtimeModel).Msg("server starting")
	if metricsSrv != nil {
		go func() {
			logx.Log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server starting")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logx.Log.Error().Err(err).Msg("metrics server error")
			}
		}()
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logx.Log.Fatal().Err(err).Msg("server error")
	}
	// Give relays closed by CancelAll a moment to unwind.
	waitCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	tracker.Wait(waitCtx)
	logx.Log.Info().Msg("server stopped")
}
