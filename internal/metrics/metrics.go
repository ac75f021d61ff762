// Package metrics exposes Prometheus collectors for the acquisition pipeline.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	documentsTotal          *prometheus.CounterVec
	fetchesTotal            *prometheus.CounterVec
	fetchDurationSeconds    *prometheus.HistogramVec
	extractionFailuresTotal *prometheus.CounterVec
	duplicatesTotal         *prometheus.CounterVec
	cycleDurationSeconds    *prometheus.HistogramVec
	rateLimitDelaysSeconds  *prometheus.HistogramVec
	sourceHealthy           *prometheus.GaugeVec
	jobsTotal               *prometheus.CounterVec
	activeCycles            prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		documentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_documents_total",
				Help: "Total number of documents persisted, labeled by source and extraction method.",
			},
			[]string{"source", "method"},
		)

		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_fetches_total",
				Help: "Total number of fetch attempts, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_fetch_duration_seconds",
				Help:    "Histogram of fetch latencies, labeled by source.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
			},
			[]string{"source"},
		)

		extractionFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_extraction_failures_total",
				Help: "Total number of pages where no extraction strategy succeeded.",
			},
			[]string{"source"},
		)

		duplicatesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_duplicates_skipped_total",
				Help: "Total number of documents dropped as duplicates.",
			},
			[]string{"source"},
		)

		cycleDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_cycle_duration_seconds",
				Help:    "Histogram of full scrape cycle durations, labeled by source.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"source"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations, labeled by source.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"source"},
		)

		sourceHealthy = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pipeline_source_healthy",
				Help: "1 when the source's discovery is producing URLs, 0 when flagged.",
			},
			[]string{"source"},
		)

		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_jobs_total",
				Help: "Total number of job runs, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		activeCycles = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pipeline_active_cycles",
				Help: "Number of scrape cycles currently running.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDocument increments the persisted-document counter.
func ObserveDocument(source, method string) {
	documentsTotal.WithLabelValues(source, method).Inc()
}

// ObserveFetch records one fetch attempt and its latency.
func ObserveFetch(source, outcome string, duration time.Duration) {
	fetchesTotal.WithLabelValues(source, outcome).Inc()
	fetchDurationSeconds.WithLabelValues(source).Observe(duration.Seconds())
}

// ObserveExtractionFailure increments the extraction failure counter.
func ObserveExtractionFailure(source string) {
	extractionFailuresTotal.WithLabelValues(source).Inc()
}

// ObserveDuplicate increments the duplicate-skip counter.
func ObserveDuplicate(source string) {
	duplicatesTotal.WithLabelValues(source).Inc()
}

// ObserveCycle records the duration of a completed cycle.
func ObserveCycle(source string, duration time.Duration) {
	cycleDurationSeconds.WithLabelValues(source).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(source string, duration time.Duration) {
	rateLimitDelaysSeconds.WithLabelValues(source).Observe(duration.Seconds())
}

// SetSourceHealthy flips the per-source discovery health gauge.
func SetSourceHealthy(source string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	sourceHealthy.WithLabelValues(source).Set(v)
}

// ObserveJob increments the job counter for the given outcome.
func ObserveJob(outcome string) {
	jobsTotal.WithLabelValues(outcome).Inc()
}

// IncActiveCycles increments the active cycles gauge.
func IncActiveCycles() {
	activeCycles.Inc()
}

// DecActiveCycles decrements the active cycles gauge.
func DecActiveCycles() {
	activeCycles.Dec()
}
