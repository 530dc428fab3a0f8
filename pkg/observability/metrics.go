// Package observability holds the Prometheus collectors exported on /metrics.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Event dispatch outcomes.
const (
	OutcomeHandled = "handled"
	OutcomeIgnored = "ignored"
	OutcomeFailed  = "failed"
)

// Metrics groups the collectors of one gateway on a dedicated registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	events        *prometheus.CounterVec
	auditRecords  *prometheus.CounterVec
	notifications *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// NewMetrics creates and registers every collector.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bpmgate_events_dispatched_total",
				Help: "Lifecycle events dispatched to the subscriber",
			},
			[]string{"family", "event", "outcome"},
		),
		auditRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bpmgate_audit_records_total",
				Help: "Audit records written",
			},
			[]string{"kind"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bpmgate_notifications_total",
				Help: "Notifications delivered per channel",
			},
			[]string{"kind", "channel"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bpmgate_http_requests_total",
				Help: "HTTP requests served",
			},
			[]string{"route", "code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bpmgate_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
	m.Registry.MustRegister(m.events, m.auditRecords, m.notifications, m.httpRequests, m.httpDuration)
	return m
}

func (m *Metrics) EventDispatched(family, event, outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(family, event, outcome).Inc()
}

func (m *Metrics) AuditRecorded(kind string) {
	if m == nil {
		return
	}
	m.auditRecords.WithLabelValues(kind).Inc()
}

func (m *Metrics) NotificationDelivered(kind, channel string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, channel).Inc()
}

func (m *Metrics) HTTPRequest(route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
