package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name, platform string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "platform" && label.GetValue() == platform {
					if metric.GetCounter() != nil {
						return metric.GetCounter().GetValue()
					}
				}
			}
		}
	}
	return 0
}

func TestSyncMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSyncMetrics(reg)

	m.IncSuccess("appstore")
	m.IncSuccess("appstore")
	m.IncFailure("stripe")
	m.AddProcessedDays("googleplay", 30)
	m.AddProcessedDays("googleplay", -1)
	m.AddSkippedDays("appstore", 2)
	m.ObserveChunkDuration("appstore", 3*time.Second)

	if got := counterValue(t, reg, "sync_success", "appstore"); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := counterValue(t, reg, "sync_failure", "stripe"); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
	if got := counterValue(t, reg, "sync_processed_days", "googleplay"); got != 30 {
		t.Fatalf("expected 30 processed days, got %v", got)
	}
	if got := counterValue(t, reg, "sync_skipped_days", "appstore"); got != 2 {
		t.Fatalf("expected 2 skipped days, got %v", got)
	}
}

func TestSyncMetricsNilSafe(t *testing.T) {
	var m *SyncMetrics
	m.IncSuccess("stripe")
	m.ObserveChunkDuration("", time.Second)

	empty := NewSyncMetrics(nil)
	empty.IncFailure("stripe")
}

func TestNormalizeLabel(t *testing.T) {
	if normalizeLabel("") != "unknown" {
		t.Fatal("empty platform should normalize to unknown")
	}
	if normalizeLabel("appstore") != "appstore" {
		t.Fatal("known platform should pass through")
	}
}
