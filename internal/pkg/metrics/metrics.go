// Package metrics exposes Prometheus instrumentation for the research
// pipeline. All methods are safe on a nil *Metrics so components can be
// built without telemetry in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "seo_research"

// Metrics holds all Prometheus metrics for the service
type Metrics struct {
	registry *prometheus.Registry

	// Source adapter metrics
	SourceRequestsTotal *prometheus.CounterVec
	SourceDuration      *prometheus.HistogramVec
	SourceRetriesTotal  *prometheus.CounterVec
	RateLimitWait       *prometheus.HistogramVec

	// Cache metrics
	CacheLookupsTotal *prometheus.CounterVec

	// Pipeline metrics
	RunsTotal          *prometheus.CounterVec
	RunDuration        prometheus.Histogram
	KeywordStatusTotal *prometheus.CounterVec

	// Clustering metrics
	ClusteringRunsTotal  *prometheus.CounterVec
	ClusteringIterations prometheus.Histogram
}

// New creates a dedicated registry with the Go and process collectors and
// registers all metrics on it.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		SourceRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "requests_total",
			Help:      "Source adapter fetches by outcome",
		}, []string{"source", "outcome"}),
		SourceDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "request_duration_seconds",
			Help:      "Source adapter fetch latency including retries",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		SourceRetriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "retries_total",
			Help:      "Retried source attempts",
		}, []string{"source"}),
		RateLimitWait: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "rate_limit_wait_seconds",
			Help:      "Time spent waiting for a rate limit token",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"source"}),

		CacheLookupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by layer and result",
		}, []string{"layer", "result"}),

		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Completed research runs",
		}, []string{"timed_out"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Research run wall time",
			Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 20, 30, 60},
		}),
		KeywordStatusTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "keywords_total",
			Help:      "Researched keywords by final status",
		}, []string{"status"}),

		ClusteringRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clustering",
			Name:      "runs_total",
			Help:      "Clustering runs by algorithm and cache result",
		}, []string{"algorithm", "cached"}),
		ClusteringIterations: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "clustering",
			Name:      "iterations",
			Help:      "Refinement iterations per clustering run",
			Buckets:   prometheus.LinearBuckets(1, 10, 10),
		}),
	}
}

// Registry returns the registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveSource records one adapter fetch.
func (m *Metrics) ObserveSource(source, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.SourceRequestsTotal.WithLabelValues(source, outcome).Inc()
	m.SourceDuration.WithLabelValues(source).Observe(d.Seconds())
}

// IncRetry counts a retried attempt.
func (m *Metrics) IncRetry(source string) {
	if m == nil {
		return
	}
	m.SourceRetriesTotal.WithLabelValues(source).Inc()
}

// ObserveRateLimitWait records how long a fetch waited for a token.
func (m *Metrics) ObserveRateLimitWait(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.RateLimitWait.WithLabelValues(source).Observe(d.Seconds())
}

// CacheLookup counts a cache lookup; layer is fast or remote, result is
// hit, miss, expired or error.
func (m *Metrics) CacheLookup(layer, result string) {
	if m == nil {
		return
	}
	m.CacheLookupsTotal.WithLabelValues(layer, result).Inc()
}

// RecordRun records a finalized research run.
func (m *Metrics) RecordRun(statusCounts map[string]int, d time.Duration, timedOut bool) {
	if m == nil {
		return
	}
	label := "false"
	if timedOut {
		label = "true"
	}
	m.RunsTotal.WithLabelValues(label).Inc()
	m.RunDuration.Observe(d.Seconds())
	for status, n := range statusCounts {
		m.KeywordStatusTotal.WithLabelValues(status).Add(float64(n))
	}
}

// RecordClustering records a clustering run.
func (m *Metrics) RecordClustering(algorithm string, iterations int, cached bool) {
	if m == nil {
		return
	}
	label := "false"
	if cached {
		label = "true"
	}
	m.ClusteringRunsTotal.WithLabelValues(algorithm, label).Inc()
	if !cached {
		m.ClusteringIterations.Observe(float64(iterations))
	}
}

// Register adds a custom collector to the registry.
func (m *Metrics) Register(c prometheus.Collector) error {
	if m == nil {
		return nil
	}
	return m.registry.Register(c)
}
