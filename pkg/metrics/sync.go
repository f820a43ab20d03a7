package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics records outcomes of platform sync runs and backfill
// chunks.
type SyncMetrics struct {
	chunkDuration *prometheus.HistogramVec
	success       *prometheus.CounterVec
	failure       *prometheus.CounterVec
	processedDays *prometheus.CounterVec
	skippedDays   *prometheus.CounterVec
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	chunkDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_chunk_duration_seconds",
		Help:    "Duration of backfill chunk processing in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"platform"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_success",
		Help: "Platform sync runs that processed at least one day.",
	}, []string{"platform"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_failure",
		Help: "Platform sync runs that processed zero days.",
	}, []string{"platform"})
	processedDays := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_processed_days",
		Help: "Days of report data successfully processed.",
	}, []string{"platform"})
	skippedDays := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_skipped_days",
		Help: "Days skipped because the upstream report was not published yet.",
	}, []string{"platform"})
	reg.MustRegister(chunkDuration, success, failure, processedDays, skippedDays)
	return &SyncMetrics{
		chunkDuration: chunkDuration,
		success:       success,
		failure:       failure,
		processedDays: processedDays,
		skippedDays:   skippedDays,
	}
}

// ObserveChunkDuration records how long one chunk took for a platform.
func (m *SyncMetrics) ObserveChunkDuration(platform string, duration time.Duration) {
	if m == nil || m.chunkDuration == nil {
		return
	}
	m.chunkDuration.WithLabelValues(normalizeLabel(platform)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the platform.
func (m *SyncMetrics) IncSuccess(platform string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(platform)).Inc()
}

// IncFailure increments the failure counter for the platform.
func (m *SyncMetrics) IncFailure(platform string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(platform)).Inc()
}

// AddProcessedDays adds processed day counts for the platform.
func (m *SyncMetrics) AddProcessedDays(platform string, days int) {
	if m == nil || m.processedDays == nil || days <= 0 {
		return
	}
	m.processedDays.WithLabelValues(normalizeLabel(platform)).Add(float64(days))
}

// AddSkippedDays adds skipped day counts for the platform.
func (m *SyncMetrics) AddSkippedDays(platform string, days int) {
	if m == nil || m.skippedDays == nil || days <= 0 {
		return
	}
	m.skippedDays.WithLabelValues(normalizeLabel(platform)).Add(float64(days))
}

func normalizeLabel(platform string) string {
	if platform == "" {
		return "unknown"
	}
	return platform
}
