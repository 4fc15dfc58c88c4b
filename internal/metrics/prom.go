package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Setup stages reported by RecordSetupFailure.
const (
	StageDial      = "dial"
	StageConfigure = "configure"
)

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:        "callrelay_build_info",
			Help:        "Build information",
			ConstLabels: prometheus.Labels{"component": "server"},
		},
		[]string{"date", "sha", "version"},
	)

	activeRelays = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "callrelay_active_relays",
			Help: "Media stream relays currently open",
		},
	)

	relayDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "callrelay_relay_duration_seconds",
			Help:    "Lifetime of a media stream relay",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	setupFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callrelay_relay_setup_failures_total",
			Help: "Relays that failed before forwarding started",
		},
		[]string{"stage"},
	)

	framesForwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callrelay_frames_forwarded_total",
			Help: "Frames forwarded by direction",
		},
		[]string{"direction", "kind"},
	)

	framesMalformed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callrelay_frames_malformed_total",
			Help: "Frames dropped because they could not be decoded",
		},
		[]string{"source"},
	)

	deltasDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "callrelay_audio_deltas_dropped_total",
			Help: "AI audio deltas dropped because the stream identifier was not yet known",
		},
	)

	aiErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callrelay_ai_errors_total",
			Help: "Error events reported by the realtime service",
		},
		[]string{"type"},
	)

	callRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callrelay_call_requests_total",
			Help: "Outbound call requests by outcome",
		},
		[]string{"outcome"},
	)

	callStatus = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callrelay_call_status_total",
			Help: "Call status notifications received",
		},
		[]string{"status"},
	)
)

// Register registers all metrics with the provided registerer.
func Register(r prometheus.Registerer) {
	r.MustRegister(buildInfo, activeRelays, relayDuration, setupFailures, framesForwarded,
		framesMalformed, deltasDropped, aiErrors, callRequests, callStatus)
}

// SetServerBuildInfo sets the build info metric for the server.
func SetServerBuildInfo(version, sha, date string) {
	buildInfo.WithLabelValues(date, sha, version).Set(1)
}

// RelayStarted increments the active relay gauge.
func RelayStarted() { activeRelays.Inc() }

// RelayFinished decrements the active relay gauge and records its lifetime.
func RelayFinished(d time.Duration) {
	activeRelays.Dec()
	relayDuration.Observe(d.Seconds())
}

// RecordSetupFailure counts a relay that failed at stage.
func RecordSetupFailure(stage string) {
	setupFailures.WithLabelValues(stage).Inc()
}

// RecordForwarded counts one forwarded frame. direction is "to_ai" or
// "to_telephony".
func RecordForwarded(direction, kind string) {
	framesForwarded.WithLabelValues(direction, kind).Inc()
}

// RecordMalformed counts a dropped frame from source ("telephony" or "ai").
func RecordMalformed(source string) {
	framesMalformed.WithLabelValues(source).Inc()
}

// RecordDeltaDropped counts an audio delta that arrived before the stream
// identifier.
func RecordDeltaDropped() { deltasDropped.Inc() }

// RecordAIError counts an error event by its type.
func RecordAIError(errType string) {
	if errType == "" {
		errType = "unknown"
	}
	aiErrors.WithLabelValues(errType).Inc()
}

// RecordCallRequest counts an outbound call request. outcome is one of
// "queued", "rejected", "placed" or "failed".
func RecordCallRequest(outcome string) {
	callRequests.WithLabelValues(outcome).Inc()
}

// RecordCallStatus counts a status notification.
func RecordCallStatus(status string) {
	callStatus.WithLabelValues(status).Inc()
}
