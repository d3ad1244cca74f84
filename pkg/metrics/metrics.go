// Package metrics defines the Prometheus collectors used by the indexer and
// the search service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing, so library code can take one unconditionally.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   *prometheus.HistogramVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	IndexBuildsTotal     *prometheus.CounterVec
	IndexBuildDuration   *prometheus.HistogramVec
	IndexedDocuments     prometheus.Gauge
	IndexedTerms         prometheus.Gauge
	SnapshotBytes        prometheus.Gauge
	RecordsIngestedTotal *prometheus.CounterVec
}

// New creates all collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer in services and prometheus.NewRegistry() in
// tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by kind (text, author, year, combined) and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
			[]string{"kind"},
		),
		SearchResultsCount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
			[]string{"kind"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_cache_hits_total",
				Help: "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_cache_misses_total",
				Help: "Total number of query cache misses.",
			},
		),
		IndexBuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_builds_total",
				Help: "Index build and update runs by mode and status.",
			},
			[]string{"mode", "status"},
		),
		IndexBuildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "index_build_duration_seconds",
				Help:    "Duration of index build and update runs.",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"mode"},
		),
		IndexedDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_documents",
				Help: "Documents in the published snapshot.",
			},
		),
		IndexedTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_terms",
				Help: "Distinct terms in the published snapshot.",
			},
		),
		SnapshotBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_snapshot_bytes",
				Help: "Size of the last persisted snapshot.",
			},
		),
		RecordsIngestedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "records_ingested_total",
				Help: "Publication records received from the ingest topic by status.",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.IndexBuildsTotal,
		m.IndexBuildDuration,
		m.IndexedDocuments,
		m.IndexedTerms,
		m.SnapshotBytes,
		m.RecordsIngestedTotal,
	)

	return m
}

// ObserveBuild records one build or update run. Mode is "build" or "update",
// status is "ok", "noop" or "error".
func (m *Metrics) ObserveBuild(mode, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.IndexBuildsTotal.WithLabelValues(mode, status).Inc()
	m.IndexBuildDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// SetIndexSize updates the snapshot gauges after a publish.
func (m *Metrics) SetIndexSize(docs, terms int) {
	if m == nil {
		return
	}
	m.IndexedDocuments.Set(float64(docs))
	m.IndexedTerms.Set(float64(terms))
}

func (m *Metrics) SetSnapshotBytes(n int64) {
	if m == nil {
		return
	}
	m.SnapshotBytes.Set(float64(n))
}

// ObserveSearch records one query.
func (m *Metrics) ObserveSearch(kind, outcome string, results int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(kind, outcome).Inc()
	m.SearchLatency.WithLabelValues(kind).Observe(elapsed.Seconds())
	m.SearchResultsCount.WithLabelValues(kind).Observe(float64(results))
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.CacheMissesTotal.Inc()
}

func (m *Metrics) RecordIngested(status string) {
	if m == nil {
		return
	}
	m.RecordsIngestedTotal.WithLabelValues(status).Inc()
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
