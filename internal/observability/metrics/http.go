// Package metrics provides HTTP handler metrics for observability
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// HTTPMetrics contains Prometheus metrics for the control API
type HTTPMetrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	sseActiveConnections  prometheus.Gauge
	sseTotalConnections   *prometheus.CounterVec
	sseConnectionDuration prometheus.Histogram
	sseMessagesSent       *prometheus.CounterVec
	sseDropped            prometheus.Counter
}

// NewHTTPMetrics creates and registers new HTTP handler metrics
func NewHTTPMetrics(registry *prometheus.Registry) (*HTTPMetrics, error) {
	m := &HTTPMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *HTTPMetrics) initMetrics() error {
	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"}, // path is the route pattern, e.g. /api/v1/daf/start
	)

	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Time taken for HTTP requests",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12), // 1ms to ~4s
		},
		[]string{"method", "path"},
	)

	m.sseActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_sse_active_connections",
			Help: "Current number of active SSE connections",
		},
	)

	m.sseTotalConnections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_sse_connections_total",
			Help: "Total number of SSE connections",
		},
		[]string{"status"}, // status: established, closed
	)

	m.sseConnectionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "http_sse_connection_duration_seconds",
			Help:    "Duration of SSE connections in seconds",
			Buckets: prometheus.ExponentialBuckets(BucketStart1s, BucketFactor2, BucketCount15), // 1s to ~9 hours
		},
	)

	m.sseMessagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_sse_messages_sent_total",
			Help: "Total number of SSE messages sent",
		},
		[]string{"message_type"}, // message_type: event type or heartbeat
	)

	m.sseDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "http_sse_messages_dropped_total",
		Help: "Total number of SSE messages dropped for slow clients",
	})

	return nil
}

// getCollectors returns all collectors in order for Describe/Collect operations
func (m *HTTPMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.sseActiveConnections,
		m.sseTotalConnections,
		m.sseConnectionDuration,
		m.sseMessagesSent,
		m.sseDropped,
	}
}

// Describe implements the Collector interface
func (m *HTTPMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *HTTPMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}

// RecordHTTPRequest records an HTTP request
func (m *HTTPMetrics) RecordHTTPRequest(method, path string, statusCode int, duration float64) {
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// SSEConnectionStarted records a new SSE client
func (m *HTTPMetrics) SSEConnectionStarted() {
	m.sseActiveConnections.Inc()
	m.sseTotalConnections.WithLabelValues("established").Inc()
}

// SSEConnectionClosed records a client leaving after duration seconds
func (m *HTTPMetrics) SSEConnectionClosed(duration float64) {
	m.sseActiveConnections.Dec()
	m.sseTotalConnections.WithLabelValues("closed").Inc()
	m.sseConnectionDuration.Observe(duration)
}

// RecordSSEMessageSent counts one message delivered to one client
func (m *HTTPMetrics) RecordSSEMessageSent(messageType string) {
	m.sseMessagesSent.WithLabelValues(messageType).Inc()
}

// RecordSSEDropped counts a message skipped because a client buffer was full
func (m *HTTPMetrics) RecordSSEDropped() {
	m.sseDropped.Inc()
}

// GetActiveSSEConnections returns the current number of SSE clients
func (m *HTTPMetrics) GetActiveSSEConnections() float64 {
	metric := &dto.Metric{}
	if err := m.sseActiveConnections.Write(metric); err != nil {
		return 0
	}
	return metric.GetGauge().GetValue()
}
