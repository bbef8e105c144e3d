// Package telemetry holds the prometheus collectors and the otel tracer used
// across the service.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clinicbook"

// Metrics exposes counters/histograms for scheduling flows and HTTP traffic.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	resolveTotal      *prometheus.CounterVec
	resolveDuration   prometheus.Histogram
	candidatesTotal   *prometheus.CounterVec
	availabilityTotal *prometheus.CounterVec
	conflictsTotal    *prometheus.CounterVec
	assistantTotal    *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpLatency       *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// NewMetrics registers collectors on reg. A nil reg uses a fresh registry so
// tests can construct several instances.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		resolveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "runs_total",
			Help:      "Alternative doctor searches by outcome",
		}, []string{"outcome"}),
		resolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "duration_seconds",
			Help:      "Latency of alternative doctor searches",
			Buckets:   prometheus.DefBuckets,
		}),
		candidatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "candidates_total",
			Help:      "Candidate evaluations by result",
		}, []string{"result"}),
		availabilityTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "availability",
			Name:      "checks_total",
			Help:      "Availability checks by result",
		}, []string{"result"}),
		conflictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conflicts",
			Name:      "events_total",
			Help:      "Conflict events by delivery state",
		}, []string{"state"}),
		assistantTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "chats_total",
			Help:      "Assistant chat requests by outcome",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		gatherer: reg,
	}
	reg.MustRegister(
		m.resolveTotal, m.resolveDuration, m.candidatesTotal, m.availabilityTotal,
		m.conflictsTotal, m.assistantTotal, m.httpRequests, m.httpLatency,
	)
	return m
}

func (m *Metrics) ObserveResolve(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.resolveTotal.WithLabelValues(outcome).Inc()
	m.resolveDuration.Observe(d.Seconds())
}

// ObserveCandidate records one candidate evaluation: available, unavailable
// or failed.
func (m *Metrics) ObserveCandidate(result string) {
	if m == nil {
		return
	}
	m.candidatesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveAvailability(result string) {
	if m == nil {
		return
	}
	m.availabilityTotal.WithLabelValues(result).Inc()
}

// ObserveConflict records a conflict event state: queued, dropped, written
// or failed.
func (m *Metrics) ObserveConflict(state string) {
	if m == nil {
		return
	}
	m.conflictsTotal.WithLabelValues(state).Inc()
}

// ObserveAssistant records one chat by outcome: ok, not_configured,
// api_key, quota, safety or error.
func (m *Metrics) ObserveAssistant(outcome string) {
	if m == nil {
		return
	}
	m.assistantTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the prometheus exposition for the registry.
func (m *Metrics) Handler() echo.HandlerFunc {
	if m == nil {
		return func(c echo.Context) error {
			return c.NoContent(http.StatusNotFound)
		}
	}
	return echo.WrapHandler(promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
}
