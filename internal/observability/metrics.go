package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes Prometheus collectors for HTTP traffic and workflow activity.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	errors      *prometheus.CounterVec
	transitions *prometheus.CounterVec
	assignments prometheus.Counter
	queueDepth  *prometheus.GaugeVec
}

// NewMetrics registers collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by path, method and status.",
		}, []string{"path", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_request_errors_total",
			Help: "Domain errors surfaced to callers by code.",
		}, []string{"path", "method", "code"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workflow_transitions_total",
			Help: "Accepted case transitions by kind.",
		}, []string{"kind"}),
		assignments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workflow_assignments_total",
			Help: "Cases handed out by get-next-case.",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "workflow_queue_depth",
			Help: "Eligible cases waiting per line of business and level.",
		}, []string{"line_of_business", "level"}),
	}

	registry.MustRegister(m.requests, m.duration, m.errors, m.transitions, m.assignments, m.queueDepth)
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordTransition counts an accepted case transition.
func (m *Metrics) RecordTransition(kind string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(kind).Inc()
}

// RecordAssignment counts a successful get-next-case.
func (m *Metrics) RecordAssignment() {
	if m == nil {
		return
	}
	m.assignments.Inc()
}

// SetQueueDepth publishes the current depth of one queue bucket.
func (m *Metrics) SetQueueDepth(lob, level string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(lob, level).Set(float64(depth))
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
