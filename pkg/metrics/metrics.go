// Package metrics defines the Prometheus collectors of the autocomplete
// services and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/bastiangx/autocomplete/pkg/suggest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query outcomes recorded in QueriesTotal.
const (
	ResultHit     = "hit"
	ResultEmpty   = "empty"
	ResultInvalid = "invalid"
)

// Metrics holds the collectors and the registry they are registered with.
type Metrics struct {
	Registry           *prometheus.Registry
	QueriesTotal       *prometheus.CounterVec
	QueryDuration      prometheus.Histogram
	ResultsCount       prometheus.Histogram
	Terms              prometheus.Gauge
	IngestEntriesTotal *prometheus.CounterVec
}

// New creates the collectors on a fresh registry, so several instances can
// coexist in one process.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autocomplete_queries_total",
				Help: "Total completion queries by result (hit, empty, invalid).",
			},
			[]string{"result"},
		),
		QueryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "autocomplete_query_duration_seconds",
				Help:    "Completion query latency in seconds.",
				Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
		),
		ResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "autocomplete_results_count",
				Help:    "Number of completions returned per query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		Terms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "autocomplete_terms",
				Help: "Number of terms in the vocabulary.",
			},
		),
		IngestEntriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autocomplete_ingest_entries_total",
				Help: "Ingested entries by status (applied, rejected).",
			},
			[]string{"status"},
		),
	}

	m.Registry.MustRegister(
		m.QueriesTotal,
		m.QueryDuration,
		m.ResultsCount,
		m.Terms,
		m.IngestEntriesTotal,
	)
	return m
}

// ObserveQuery records one completion query. A nil receiver is a no-op.
func (m *Metrics) ObserveQuery(elapsed time.Duration, results int, err error) {
	if m == nil {
		return
	}
	switch {
	case err != nil:
		m.QueriesTotal.WithLabelValues(ResultInvalid).Inc()
		return
	case results == 0:
		m.QueriesTotal.WithLabelValues(ResultEmpty).Inc()
	default:
		m.QueriesTotal.WithLabelValues(ResultHit).Inc()
	}
	m.QueryDuration.Observe(elapsed.Seconds())
	m.ResultsCount.Observe(float64(results))
}

// ObserveLoad records the outcome of a bulk load. A nil receiver is a no-op.
func (m *Metrics) ObserveLoad(report *suggest.LoadReport) {
	if m == nil || report == nil {
		return
	}
	m.IngestEntriesTotal.WithLabelValues("applied").Add(float64(report.Applied))
	m.IngestEntriesTotal.WithLabelValues("rejected").Add(float64(len(report.Failed)))
}

// ObserveUpsert records a single-term update. A nil receiver is a no-op.
func (m *Metrics) ObserveUpsert(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.IngestEntriesTotal.WithLabelValues("rejected").Inc()
		return
	}
	m.IngestEntriesTotal.WithLabelValues("applied").Inc()
}

// SetTerms updates the vocabulary size gauge. A nil receiver is a no-op.
func (m *Metrics) SetTerms(n int) {
	if m == nil {
		return
	}
	m.Terms.Set(float64(n))
}

// Handler returns the scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
