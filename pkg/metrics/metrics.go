// Package metrics defines the Prometheus collectors of the knowledge base and
// exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestsInFlight  prometheus.Gauge
	SearchQueriesTotal    *prometheus.CounterVec
	SearchLatency         *prometheus.HistogramVec
	SearchResultsCount    prometheus.Histogram
	ResolutionErrorsTotal prometheus.Counter
	CacheHitsTotal        *prometheus.CounterVec
	CacheMissesTotal      *prometheus.CounterVec
	PageTextFetchesTotal  *prometheus.CounterVec
	QueryLogDroppedTotal  prometheus.Counter
	ResourcesLoaded       *prometheus.GaugeVec
	CircuitBreakerState   *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests.
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
				Name: "kb_search_queries_total",
				Help: "Total search queries by outcome (matched, zero_result, empty).",
			},
			[]string{"outcome"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kb_search_latency_seconds",
				Help:    "Search latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kb_search_results_count",
				Help:    "Number of matched resources per search.",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
			},
		),
		ResolutionErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kb_term_resolution_errors_total",
				Help: "Term references that could not be followed during search.",
			},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kb_cache_hits_total",
				Help: "Cache hits by cache name.",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kb_cache_misses_total",
				Help: "Cache misses by cache name.",
			},
			[]string{"cache"},
		),
		PageTextFetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kb_page_text_fetches_total",
				Help: "Outbound page text fetches by outcome (ok, not_found, error).",
			},
			[]string{"outcome"},
		),
		QueryLogDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kb_query_log_dropped_total",
				Help: "Query log entries dropped because the recorder buffer was full.",
			},
		),
		ResourcesLoaded: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kb_resources_loaded",
				Help: "Resources in the corpus by type.",
			},
			[]string{"type"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.ResolutionErrorsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.PageTextFetchesTotal,
		m.QueryLogDroppedTotal,
		m.ResourcesLoaded,
		m.CircuitBreakerState,
	)

	return m
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
