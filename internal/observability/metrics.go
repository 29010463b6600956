package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes prometheus collectors for the service.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpErrors       *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	eventsPublished  *prometheus.CounterVec
	publishFailures  *prometheus.CounterVec
	brokerReconnects prometheus.Counter
}

// NewMetrics registers collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_http_requests_total",
			Help: "HTTP requests handled, by path, method and status.",
		}, []string{"path", "method", "status"}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_http_errors_total",
			Help: "HTTP requests that resolved to an error code.",
		}, []string{"path", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ticket_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_events_published_total",
			Help: "Broker events handed to the channel, by event type.",
		}, []string{"event"}),
		publishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_event_publish_failures_total",
			Help: "Broker publish attempts that failed, by event type.",
		}, []string{"event"}),
		brokerReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ticket_broker_reconnects_total",
			Help: "Scheduled broker reconnect attempts.",
		}),
	}

	registry.MustRegister(
		m.httpRequests,
		m.httpErrors,
		m.httpDuration,
		m.eventsPublished,
		m.publishFailures,
		m.brokerReconnects,
	)
	return m
}

// Handler serves the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest counts a handled HTTP request.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError counts a request that resolved to an error code.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.httpErrors.WithLabelValues(path, method, code).Inc()
}

// RecordEventPublished counts a successfully handed-off broker event.
func (m *Metrics) RecordEventPublished(event string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(event).Inc()
}

// RecordPublishFailure counts a failed publish attempt.
func (m *Metrics) RecordPublishFailure(event string) {
	if m == nil {
		return
	}
	m.publishFailures.WithLabelValues(event).Inc()
}

// RecordBrokerReconnect counts a scheduled reconnect attempt.
func (m *Metrics) RecordBrokerReconnect() {
	if m == nil {
		return
	}
	m.brokerReconnects.Inc()
}
