package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. Each instance owns its registry so
// tests and multiple servers in one process never share counters.
//
// All methods are safe on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	storeOperations *prometheus.CounterVec
	retrieved       prometheus.Histogram
	learningDropped prometheus.Counter
	responseSeconds prometheus.Histogram
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memoryd_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "memoryd_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		storeOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memoryd_store_operations_total",
				Help: "Store operations by tier, operation and result",
			},
			[]string{"tier", "op", "result"},
		),
		retrieved: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "memoryd_retrieved_fragments",
				Help:    "Fragments returned per retrieval",
				Buckets: []float64{0, 1, 2, 3, 5, 10, 20, 50},
			},
		),
		learningDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "memoryd_learning_dropped_total",
				Help: "Interactions dropped because the learning queue was full",
			},
		),
		responseSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "memoryd_interaction_response_seconds",
				Help:    "Assistant response time reported with processed interactions",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),
	}

	m.registry.MustRegister(
		m.requestCount,
		m.requestDuration,
		m.storeOperations,
		m.retrieved,
		m.learningDropped,
		m.responseSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// StoreOp records one store call; a nil err counts as "ok".
func (m *Metrics) StoreOp(tier, op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.storeOperations.WithLabelValues(tier, op, result).Inc()
}

// Retrieved records the size of one retrieval result.
func (m *Metrics) Retrieved(n int) {
	if m == nil {
		return
	}
	m.retrieved.Observe(float64(n))
}

// LearningDropped counts an interaction dropped by the dispatcher.
func (m *Metrics) LearningDropped() {
	if m == nil {
		return
	}
	m.learningDropped.Inc()
}

// InteractionResponse records the assistant response time of an interaction.
func (m *Metrics) InteractionResponse(seconds float64) {
	if m == nil || seconds <= 0 {
		return
	}
	m.responseSeconds.Observe(seconds)
}
