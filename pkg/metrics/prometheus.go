package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cyclesTotal   prometheus.Counter
	cycleDuration prometheus.Histogram
	errorsTotal   *prometheus.CounterVec
	ticksFetched  *prometheus.CounterVec
	cacheHits     *prometheus.CounterVec
	cacheMisses   prometheus.Counter
	latency       *prometheus.HistogramVec
	snapshotAge   *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		cyclesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tickpulse_cycles_total",
				Help: "Total number of completed aggregation cycles",
			},
		),
		cycleDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tickpulse_cycle_duration_seconds",
				Help:    "Duration of aggregation cycles in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		ticksFetched: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickpulse_ticks_fetched_total",
				Help: "Total number of ticks fetched from the terminal",
			},
			[]string{"symbol"},
		),
		cacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickpulse_cache_hits_total",
				Help: "Snapshot cache hits by tier",
			},
			[]string{"tier"},
		),
		cacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tickpulse_cache_misses_total",
				Help: "Snapshot cache misses across both tiers",
			},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tickpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		snapshotAge: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tickpulse_snapshot_age_seconds",
				Help: "Age of the latest cached snapshot per symbol",
			},
			[]string{"symbol"},
		),
	}
}

// RecordCycle records a finished aggregation cycle and its duration.
func (r *Recorder) RecordCycle(seconds float64) {
	r.cyclesTotal.Inc()
	r.cycleDuration.Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordTicksFetched records how many ticks a fetch returned.
func (r *Recorder) RecordTicksFetched(symbol string, n int) {
	r.ticksFetched.WithLabelValues(symbol).Add(float64(n))
}

// RecordCacheHit records a cache hit on the given tier.
func (r *Recorder) RecordCacheHit(tier string) {
	r.cacheHits.WithLabelValues(tier).Inc()
}

// RecordCacheMiss records a full cache miss.
func (r *Recorder) RecordCacheMiss() {
	r.cacheMisses.Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordSnapshotAge records the age of a symbol's latest snapshot.
func (r *Recorder) RecordSnapshotAge(symbol string, seconds float64) {
	r.snapshotAge.WithLabelValues(symbol).Set(seconds)
}
