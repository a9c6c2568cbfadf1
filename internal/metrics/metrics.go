// Package metrics holds the Prometheus collectors of the server and the
// backup worker.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"weddingsync/internal/core"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	mutations       *prometheus.CounterVec
	aiCalls         *prometheus.CounterVec
	aiDuration      *prometheus.HistogramVec
	backups         *prometheus.CounterVec
	rateLimited     prometheus.Counter
	workspaceBudget prometheus.Gauge
	workspaceSpent  prometheus.Gauge
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weddingsync_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "weddingsync_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		mutations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weddingsync_mutations_total",
				Help: "Committed workspace mutations by reason",
			},
			[]string{"reason"},
		),
		aiCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weddingsync_ai_calls_total",
				Help: "AI gateway calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		aiDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "weddingsync_ai_call_duration_seconds",
				Help:    "AI gateway call latency",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 9),
			},
			[]string{"operation"},
		),
		backups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weddingsync_backups_total",
				Help: "Vault backups written by the worker",
			},
			[]string{"outcome"},
		),
		rateLimited: f.NewCounter(
			prometheus.CounterOpts{
				Name: "weddingsync_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
		),
		workspaceBudget: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "weddingsync_active_budget_euros",
				Help: "Master budget of the active profile",
			},
		),
		workspaceSpent: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "weddingsync_active_spent_euros",
				Help: "Total paid in the active profile",
			},
		),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, http.StatusText(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) ObserveAI(operation string, err error, d time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.aiCalls.WithLabelValues(operation, outcome).Inc()
	m.aiDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Metrics) RateLimited() { m.rateLimited.Inc() }

func (m *Metrics) BackupWritten(err error) {
	if err != nil {
		m.backups.WithLabelValues("error").Inc()
		return
	}
	m.backups.WithLabelValues("success").Inc()
}

// SetTotals records the headline figures of the active profile.
func (m *Metrics) SetTotals(budget, spent core.Money) {
	m.workspaceBudget.Set(budget.Euros())
	m.workspaceSpent.Set(spent.Euros())
}

// ProfileChanged counts the mutation. It lets Metrics subscribe to the
// workspace service.
func (m *Metrics) ProfileChanged(_ context.Context, ev core.ChangeEvent) error {
	m.mutations.WithLabelValues(ev.Reason).Inc()
	return nil
}
