// Package metrics exposes Prometheus instruments for extraction runs and
// model calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quarterly_extractor"

// Metrics groups every instrument. A nil *Metrics is valid and records
// nothing, so packages can take one unconditionally.
type Metrics struct {
	registry *prometheus.Registry

	extractions   *prometheus.CounterVec
	engineResults *prometheus.CounterVec
	modelCalls    *prometheus.CounterVec
	modelLatency  *prometheus.HistogramVec
	cacheLookups  *prometheus.CounterVec
	anchorsFound  prometheus.Histogram
}

// New registers all instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Extraction requests by analysis mode and outcome.",
		}, []string{"mode", "outcome"}),
		engineResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_results_total",
			Help:      "Text extraction attempts by engine and failure reason.",
		}, []string{"engine", "reason"}),
		modelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_calls_total",
			Help:      "Model completions by backend and outcome.",
		}, []string{"backend", "outcome"}),
		modelLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_call_duration_seconds",
			Help:      "Model completion latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"backend"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_cache_lookups_total",
			Help:      "Chunk memo cache lookups by result.",
		}, []string{"result"}),
		anchorsFound: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quarter_anchors_found",
			Help:      "Number of quarter anchors located per request.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50},
		}),
	}
	reg.MustRegister(
		m.extractions,
		m.engineResults,
		m.modelCalls,
		m.modelLatency,
		m.cacheLookups,
		m.anchorsFound,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveExtraction counts one finished request.
func (m *Metrics) ObserveExtraction(mode, outcome string) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(mode, outcome).Inc()
}

// ObserveEngine counts one text extraction attempt. reason is "ok" on success.
func (m *Metrics) ObserveEngine(engine, reason string) {
	if m == nil {
		return
	}
	m.engineResults.WithLabelValues(engine, reason).Inc()
}

// ObserveModelCall records a completion and its latency.
func (m *Metrics) ObserveModelCall(backend, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.modelCalls.WithLabelValues(backend, outcome).Inc()
	m.modelLatency.WithLabelValues(backend).Observe(d.Seconds())
}

// ObserveCache counts a memo cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveAnchors records how many anchors a request found.
func (m *Metrics) ObserveAnchors(n int) {
	if m == nil {
		return
	}
	m.anchorsFound.Observe(float64(n))
}
