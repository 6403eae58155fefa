package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MQTTMetrics contains Prometheus metrics for the MQTT event forwarder.
type MQTTMetrics struct {
	registry *prometheus.Registry

	connectionStatus prometheus.Gauge
	lastConnectTime  prometheus.Gauge
	published        *prometheus.CounterVec
	errors           *prometheus.CounterVec
	messageSize      prometheus.Histogram
	publishLatency   prometheus.Histogram
}

// NewMQTTMetrics creates and registers MQTT forwarder metrics
func NewMQTTMetrics(registry *prometheus.Registry) (*MQTTMetrics, error) {
	m := &MQTTMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize MQTT metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register MQTT metrics: %w", err)
	}
	return m, nil
}

func (m *MQTTMetrics) initMetrics() error {
	m.connectionStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "daf_mqtt_connection_status",
		Help: "Current MQTT connection status (1 for connected, 0 for disconnected)",
	})

	m.lastConnectTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "daf_mqtt_last_connect_time_seconds",
		Help: "Timestamp of the last successful MQTT connection",
	})

	m.published = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daf_mqtt_messages_published_total",
			Help: "Total number of events published to the broker",
		},
		[]string{"event_type"},
	)

	m.errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daf_mqtt_errors_total",
			Help: "Total number of MQTT errors",
		},
		[]string{"error_type"}, // error_type: connect, publish, encode, timeout
	)

	m.messageSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "daf_mqtt_message_size_bytes",
		Help:    "Size of MQTT messages in bytes",
		Buckets: prometheus.ExponentialBuckets(BucketStart64B, BucketFactor2, BucketCount10),
	})

	m.publishLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "daf_mqtt_publish_latency_seconds",
		Help:    "Latency of MQTT publish operations in seconds",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
	})

	return nil
}

func (m *MQTTMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.connectionStatus,
		m.lastConnectTime,
		m.published,
		m.errors,
		m.messageSize,
		m.publishLatency,
	}
}

// Describe implements the prometheus.Collector interface.
func (m *MQTTMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.getCollectors() {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *MQTTMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.getCollectors() {
		c.Collect(ch)
	}
}

// UpdateConnectionStatus updates the connection gauge and, on connect, the last connect time.
func (m *MQTTMetrics) UpdateConnectionStatus(connected bool) {
	if connected {
		m.connectionStatus.Set(1)
		m.lastConnectTime.SetToCurrentTime()
		return
	}
	m.connectionStatus.Set(0)
}

// RecordPublish records one delivered event of sizeBytes that took latency to acknowledge.
func (m *MQTTMetrics) RecordPublish(eventType string, sizeBytes int, latency time.Duration) {
	m.published.WithLabelValues(eventType).Inc()
	m.messageSize.Observe(float64(sizeBytes))
	m.publishLatency.Observe(latency.Seconds())
}

// RecordError increments the error counter for errorType.
func (m *MQTTMetrics) RecordError(errorType string) {
	m.errors.WithLabelValues(errorType).Inc()
}
