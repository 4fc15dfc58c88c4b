package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPromMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)
	SetServerBuildInfo("1.0.0", "abc", "2024-01-01")
	RecordSetupFailure(StageDial)
	RecordForwarded("to_ai", "media")
	RecordMalformed("telephony")
	RecordAIError("invalid_request_error")
	RecordAIError("")
	RecordCallRequest("queued")
	RecordCallStatus("ringing")

	if v := testutil.ToFloat64(buildInfo.WithLabelValues("2024-01-01", "abc", "1.0.0")); v != 1 {
		t.Fatalf("build info: %v", v)
	}
	if v := testutil.ToFloat64(setupFailures.WithLabelValues(StageDial)); v != 1 {
		t.Fatalf("setup failures: %v", v)
	}
	if v := testutil.ToFloat64(framesForwarded.WithLabelValues("to_ai", "media")); v != 1 {
		t.Fatalf("forwarded: %v", v)
	}
	if v := testutil.ToFloat64(framesMalformed.WithLabelValues("telephony")); v != 1 {
		t.Fatalf("malformed: %v", v)
	}
	if v := testutil.ToFloat64(aiErrors.WithLabelValues("unknown")); v != 1 {
		t.Fatalf("ai errors: %v", v)
	}
	if v := testutil.ToFloat64(callRequests.WithLabelValues("queued")); v != 1 {
		t.Fatalf("call requests: %v", v)
	}
	if v := testutil.ToFloat64(callStatus.WithLabelValues("ringing")); v != 1 {
		t.Fatalf("call status: %v", v)
	}
}

func TestRelayGauge(t *testing.T) {
	before := testutil.ToFloat64(activeRelays)
	RelayStarted()
	if v := testutil.ToFloat64(activeRelays); v != before+1 {
		t.Fatalf("active relays: %v", v)
	}
	RelayFinished(2 * time.Second)
	if v := testutil.ToFloat64(activeRelays); v != before {
		t.Fatalf("active relays after finish: %v", v)
	}
	if n := testutil.CollectAndCount(relayDuration); n != 1 {
		t.Fatalf("duration series: %d", n)
	}
}

func TestDeltaDropped(t *testing.T) {
	before := testutil.ToFloat64(deltasDropped)
	RecordDeltaDropped()
	if v := testutil.ToFloat64(deltasDropped); v != before+1 {
		t.Fatalf("dropped: %v", v)
	}
}
