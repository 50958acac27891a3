// Package metrics holds the Prometheus collectors for the HTTP API and the
// enrichment workers.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/phrazzld/fare-enricher/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fare_enricher"

// Registry holds every collector the service exports.
type Registry struct {
	reg prometheus.Registerer
	gat prometheus.Gatherer

	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Enrichment Metrics
	FlightsIngestedTotal prometheus.Counter
	TasksFinishedTotal   *prometheus.CounterVec
	TaskAttempts         prometheus.Histogram
	TaskDuration         *prometheus.HistogramVec
	AttemptFailuresTotal *prometheus.CounterVec
}

// NewRegistry registers all collectors on a fresh registry, together with the
// Go runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newRegistry(reg, reg)
}

func newRegistry(reg prometheus.Registerer, gat prometheus.Gatherer) *Registry {
	f := promauto.With(reg)
	return &Registry{
		reg: reg,
		gat: gat,

		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests processed by route, method, and status code",
			},
			[]string{"route", "method", "status_code"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency distribution in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"route", "method"},
		),
		HTTPRequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),

		FlightsIngestedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "flights_ingested_total",
				Help:      "Total flights accepted for enrichment",
			},
		),
		TasksFinishedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_finished_total",
				Help:      "Enrichment tasks that reached a terminal status",
			},
			[]string{"status"},
		),
		TaskAttempts: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_attempts",
				Help:      "Attempts used per finished enrichment task",
				Buckets:   []float64{1, 2, 3, 4, 5, 8},
			},
		),
		TaskDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Wall time from first attempt to terminal status",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"status"},
		),
		AttemptFailuresTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempt_failures_total",
				Help:      "Failed enrichment attempts by retryability",
			},
			[]string{"retryable"},
		),
	}
}

// AttemptFailed counts one failed enrichment attempt.
func (r *Registry) AttemptFailed(retryable bool) {
	r.AttemptFailuresTotal.WithLabelValues(strconv.FormatBool(retryable)).Inc()
}

// TaskFinished records a task that reached a terminal status.
func (r *Registry) TaskFinished(status domain.TaskStatus, attempts int, elapsed time.Duration) {
	s := string(status)
	r.TasksFinishedTotal.WithLabelValues(s).Inc()
	r.TaskAttempts.Observe(float64(attempts))
	r.TaskDuration.WithLabelValues(s).Observe(elapsed.Seconds())
}

// FlightIngested counts one accepted flight.
func (r *Registry) FlightIngested() {
	r.FlightsIngestedTotal.Inc()
}

// RegisterQueueDepth exports the backlog reported by depth as a gauge.
// Errors from depth are reported as zero.
func (r *Registry) RegisterQueueDepth(depth func(context.Context) (int64, error)) {
	promauto.With(r.reg).NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Enrichment jobs waiting in the queue",
		},
		func() float64 {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			n, err := depth(ctx)
			if err != nil {
				return 0
			}
			return float64(n)
		},
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.gat, promhttp.HandlerOpts{})
}
