// Package metrics exposes Prometheus collectors for the HTTP server, the draft
// store and the summary composer.
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
)

// Result labels.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultInvalid = "invalid"
)

var defaultDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// Metrics owns a private registry so tests and multiple servers in one process
// do not collide on the global one. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	activeRequests prometheus.Gauge
	draftSaves     *prometheus.CounterVec
	draftLoads     *prometheus.CounterVec
	summaries      *prometheus.CounterVec
	reminders      *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "upo",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "upo",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   defaultDurationBuckets,
		}, []string{"method", "route"}),
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "upo",
			Name:      "http_active_requests",
			Help:      "Requests currently being served.",
		}),
		draftSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "upo",
			Name:      "draft_saves_total",
			Help:      "Draft saves by group and result.",
		}, []string{"group", "result"}),
		draftLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "upo",
			Name:      "draft_loads_total",
			Help:      "Draft loads by group and result (ok, missing, malformed, error).",
		}, []string{"group", "result"}),
		summaries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "upo",
			Name:      "summaries_total",
			Help:      "Composed summaries by variant and result.",
		}, []string{"variant", "result"}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "upo",
			Name:      "reminders_total",
			Help:      "Generated calendar reminders by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		m.requests, m.duration, m.activeRequests,
		m.draftSaves, m.draftLoads, m.summaries, m.reminders,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) DraftSaved(group, result string) {
	if m == nil {
		return
	}
	m.draftSaves.WithLabelValues(group, result).Inc()
}

func (m *Metrics) DraftLoaded(group, result string) {
	if m == nil {
		return
	}
	m.draftLoads.WithLabelValues(group, result).Inc()
}

func (m *Metrics) SummaryComposed(variant, result string) {
	if m == nil {
		return
	}
	m.summaries.WithLabelValues(variant, result).Inc()
}

func (m *Metrics) ReminderCreated(result string) {
	if m == nil {
		return
	}
	m.reminders.WithLabelValues(result).Inc()
}

// Middleware records request count, latency and in-flight requests.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			m.activeRequests.Inc()
			defer m.activeRequests.Dec()

			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			status := c.Response().Status
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			} else if err != nil {
				status = http.StatusInternalServerError
			}
			method := c.Request().Method
			m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
