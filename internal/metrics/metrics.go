// Package metrics exposes Prometheus counters for the kiosk: HTTP traffic,
// committed audit events, lost compare-and-swap races and expiration sweeps.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/seat-locker-kiosk/internal/model"
	"github.com/iliyamo/seat-locker-kiosk/internal/service"
)

const namespace = "kiosk"

type Metrics struct {
	registry *prometheus.Registry

	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	events    *prometheus.CounterVec
	conflicts prometheus.Counter
	sweeps    *prometheus.CounterVec
	expired   *prometheus.CounterVec
}

var _ service.Metrics = (*Metrics)(nil)

// New builds a private registry so tests can create as many as they like.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_events_total",
			Help:      "Committed audit events by type and actor.",
		}, []string{"type", "actor"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "version_conflicts_total",
			Help:      "Attempts that lost a resource version check.",
		}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expiration_sweeps_total",
			Help:      "Expiration passes by policy.",
		}, []string{"policy"}),
		expired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_sessions_total",
			Help:      "Overdue sessions seen by the sweep, by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		m.requests, m.latency, m.events, m.conflicts, m.sweeps, m.expired,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) EventCommitted(e model.AuditEvent) {
	m.events.WithLabelValues(string(e.Type), string(e.ActorRole)).Inc()
}

func (m *Metrics) VersionConflict() { m.conflicts.Inc() }

func (m *Metrics) SweepFinished(r service.SweepResult) {
	m.sweeps.WithLabelValues(string(r.Policy)).Inc()
	m.expired.WithLabelValues("applied").Add(float64(r.Applied))
	m.expired.WithLabelValues("failed").Add(float64(r.Failed))
	if skipped := r.Overdue - r.Applied - r.Failed; skipped > 0 {
		m.expired.WithLabelValues("skipped").Add(float64(skipped))
	}
}

// Middleware counts requests under their route template, so every seat id
// shares one series.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else if status < http.StatusBadRequest {
					status = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.latency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
