package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPromObsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := NewProm(reg)

	obs.IncCounter(FramesTotal, 5)
	if got := testutil.ToFloat64(obs.counters[FramesTotal]); got != 5 {
		t.Fatalf("expected frames counter 5, got %f", got)
	}

	obs.IncCounter(ActuatorFaultsTotal, 1)
	if got := testutil.ToFloat64(obs.counters[ActuatorFaultsTotal]); got != 1 {
		t.Fatalf("expected actuator fault counter 1, got %f", got)
	}

	obs.SetGauge(EpisodeActive, 1)
	if got := testutil.ToFloat64(obs.gauges[EpisodeActive]); got != 1 {
		t.Fatalf("expected active gauge 1, got %f", got)
	}

	obs.ObserveLatency(FrameProcessingSeconds, 0.02)
	hCollector := obs.histos[FrameProcessingSeconds].(prometheus.Collector)
	if samples := testutil.CollectAndCount(hCollector); samples != 1 {
		t.Fatalf("expected latency histogram to record 1 sample, got %d", samples)
	}

	// Unknown names are ignored
	obs.IncCounter("nope", 1)
	obs.SetGauge("nope", 1)

	if n, err := testutil.GatherAndCount(reg); err != nil || n != 12 {
		t.Fatalf("expected 12 registered metrics, got %d (%v)", n, err)
	}
}
