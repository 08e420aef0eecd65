// Package metrics exposes Prometheus collectors for batch processing and
// the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/outletsync/internal/core"
)

// Row outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// Metrics owns a registry and every collector registered on it.
// It implements core.Observer.
type Metrics struct {
	registry *prometheus.Registry

	batches       *prometheus.CounterVec
	rows          *prometheus.CounterVec
	rowErrors     *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	rejected      *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers the collectors under namespace on a fresh registry.
// withRuntime adds the Go and process collectors.
func New(namespace string, withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_total",
				Help:      "Total number of processed outlet batches",
			},
			[]string{"strategy"},
		),
		rows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_total",
				Help:      "Total number of outlet rows by outcome",
			},
			[]string{"strategy", "outcome"},
		),
		rowErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "row_errors_total",
				Help:      "Total number of row errors by kind",
			},
			[]string{"kind", "code"},
		),
		batchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_duration_seconds",
				Help:      "Duration of outlet batch processing in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"strategy"},
		),
		rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_rejected_total",
				Help:      "Total number of batches that did not run, by reason",
			},
			[]string{"reason"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	reg.MustRegister(
		m.batches, m.rows, m.rowErrors, m.batchDuration, m.rejected,
		m.httpRequests, m.httpDuration,
	)
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// BatchCompleted records one finished batch. A row with several errors
// counts once as failed.
func (m *Metrics) BatchCompleted(strategy core.Strategy, rows int, entries []core.ErrorEntry, elapsed time.Duration) {
	s := string(strategy)

	failed := make(map[int]struct{}, len(entries))
	for _, e := range entries {
		failed[e.Row] = struct{}{}
		m.rowErrors.WithLabelValues(e.Kind.String(), e.Code).Inc()
	}
	succeeded := rows - len(failed)
	if succeeded < 0 {
		succeeded = 0
	}

	m.batches.WithLabelValues(s).Inc()
	m.rows.WithLabelValues(s, OutcomeSucceeded).Add(float64(succeeded))
	m.rows.WithLabelValues(s, OutcomeFailed).Add(float64(len(failed)))
	m.batchDuration.WithLabelValues(s).Observe(elapsed.Seconds())
}

// BatchRejected records a batch that never reached the engine.
func (m *Metrics) BatchRejected(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}

// Middleware records request counts and latency by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
