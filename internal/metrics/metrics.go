// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package metrics exposes Prometheus metrics for the claim workflow.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	ClaimOutcomes   *prometheus.CounterVec
	Releases        *prometheus.CounterVec
	NotifyFailures  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New creates a Metrics instance on its own registry, including the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ClaimOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "foodmaps_claim_operations_total",
			Help: "Claim and confirm calls by outcome",
		}, []string{"operation", "outcome"}),
		Releases: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "foodmaps_claim_releases_total",
			Help: "Holds returned to available, by reason",
		}, []string{"reason"}),
		NotifyFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "foodmaps_notify_failures_total",
			Help: "Failed notification deliveries by channel",
		}, []string{"channel"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "foodmaps_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"method", "route", "status"}),
	}
}

// Outcome records the result of a claim workflow operation.
func (m *Metrics) Outcome(operation, outcome string) {
	m.ClaimOutcomes.WithLabelValues(operation, outcome).Inc()
}

// Released records a hold returned to available.
func (m *Metrics) Released(reason string) {
	m.Releases.WithLabelValues(reason).Inc()
}

// NotifyFailed records a failed delivery on channel.
func (m *Metrics) NotifyFailed(channel string) {
	m.NotifyFailures.WithLabelValues(channel).Inc()
}

// WatchPending registers a gauge that reports the number of armed release
// timers each time it is scraped.
func (m *Metrics) WatchPending(pending func() int) {
	promauto.With(m.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "foodmaps_claim_pending_timers",
		Help: "Release timers currently armed",
	}, func() float64 { return float64(pending()) })
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware observes request latency by route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				// let the error handler write the response so the status is final
				c.Error(err)
			}

			status := c.Response().Status
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.RequestDuration.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
