// Package metrics defines the Prometheus collectors for a pipeline run. They
// live on a private registry so the scrape server and the Pushgateway push
// export exactly this set.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "reviewterms"

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	Registry *prometheus.Registry

	ReviewsMappedTotal       *prometheus.CounterVec
	ObservationsEmittedTotal *prometheus.CounterVec
	RecordsReducedTotal      prometheus.Counter
	GroupsFlushedTotal       prometheus.Counter
	TablesWrittenTotal       *prometheus.CounterVec
	RowsPersistedTotal       *prometheus.CounterVec
	APIRequestsTotal         *prometheus.CounterVec
	PageCacheTotal           *prometheus.CounterVec
	ReviewsFetchedTotal      *prometheus.CounterVec
	CircuitBreakerState      *prometheus.GaugeVec
	StageDuration            *prometheus.HistogramVec
}

// New creates the collectors and registers them, together with the Go
// runtime collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ReviewsMappedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reviews_mapped_total",
				Help:      "Reviews run through the mapper, by category.",
			},
			[]string{"category"},
		),
		ObservationsEmittedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "observations_emitted_total",
				Help:      "Unit term observations emitted by the mapper, by bucket.",
			},
			[]string{"bucket"},
		),
		RecordsReducedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_reduced_total",
				Help:      "Sorted stream records consumed by the reducer.",
			},
		),
		GroupsFlushedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "groups_flushed_total",
				Help:      "(term, category) groups flushed into the aggregate.",
			},
		),
		TablesWrittenTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tables_written_total",
				Help:      "Ranked term tables written, by bucket.",
			},
			[]string{"bucket"},
		),
		RowsPersistedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_persisted_total",
				Help:      "Scored rows stored in the SQL sink, by driver.",
			},
			[]string{"driver"},
		),
		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Review API requests by endpoint and HTTP status.",
			},
			[]string{"endpoint", "status"},
		),
		PageCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "page_cache_total",
				Help:      "API page cache lookups by result (hit, miss, error).",
			},
			[]string{"result"},
		),
		ReviewsFetchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reviews_fetched_total",
				Help:      "Reviews stored by the collector, by category.",
			},
			[]string{"category"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Wall time of each pipeline stage.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"stage"},
		),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ReviewsMappedTotal,
		m.ObservationsEmittedTotal,
		m.RecordsReducedTotal,
		m.GroupsFlushedTotal,
		m.TablesWrittenTotal,
		m.RowsPersistedTotal,
		m.APIRequestsTotal,
		m.PageCacheTotal,
		m.ReviewsFetchedTotal,
		m.CircuitBreakerState,
		m.StageDuration,
	)

	return m
}

// Handler returns the scrape handler for m's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Push sends the current values to a Pushgateway under job. Batch runs end
// before a scraper would see them, so this is how a run reports.
func (m *Metrics) Push(ctx context.Context, url, job, runID string) error {
	err := push.New(url, job).
		Gatherer(m.Registry).
		Grouping("run_id", runID).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}
