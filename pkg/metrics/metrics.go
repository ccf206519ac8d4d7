// Package metrics defines the Prometheus collectors used by the pipeline and
// the HTTP API, and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RecordsIngestedTotal *prometheus.CounterVec
	RecordFailuresTotal  *prometheus.CounterVec
	BatchDuration        *prometheus.HistogramVec
	EnrichmentDuration   prometheus.Histogram
	SentimentCacheHits   prometheus.Counter
	SentimentCacheMisses prometheus.Counter
	EventsPublishedTotal *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates all collectors and registers them with reg. Passing a fresh
// prometheus.NewRegistry() keeps tests independent of the global registry.
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
		RecordsIngestedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "records_ingested_total",
				Help: "Records processed by collection and outcome (inserted, updated, unchanged).",
			},
			[]string{"collection", "outcome"},
		),
		RecordFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "record_failures_total",
				Help: "Records that could not be ingested, by collection and reason.",
			},
			[]string{"collection", "reason"},
		),
		BatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_batch_duration_seconds",
				Help:    "Time to ingest one batch.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"collection"},
		),
		EnrichmentDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sentiment_score_duration_seconds",
				Help:    "Time to score one article.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
		),
		SentimentCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sentiment_cache_hits_total",
				Help: "Sentiment scores served from the cache.",
			},
		),
		SentimentCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sentiment_cache_misses_total",
				Help: "Sentiment scores computed because the cache had none.",
			},
		),
		EventsPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_events_published_total",
				Help: "Record-ingested events by status (ok, error).",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.RecordsIngestedTotal,
		m.RecordFailuresTotal,
		m.BatchDuration,
		m.EnrichmentDuration,
		m.SentimentCacheHits,
		m.SentimentCacheMisses,
		m.EventsPublishedTotal,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}

	return m
}

// Handler returns the scrape handler for the registry m was created with,
// falling back to the default registry.
func (m *Metrics) Handler() http.Handler {
	if m.gatherer == nil || m.gatherer == prometheus.DefaultGatherer {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
