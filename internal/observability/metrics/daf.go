package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DAFMetrics contains Prometheus metrics for the delay line engine, the
// session lifecycle and headphone connectivity.
type DAFMetrics struct {
	registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec

	framesTotal   prometheus.Counter
	bytesTotal    prometheus.Counter
	sessionActive prometheus.Gauge

	headsetConnected *prometheus.GaugeVec
}

// NewDAFMetrics creates and registers DAF metrics
func NewDAFMetrics(registry *prometheus.Registry) (*DAFMetrics, error) {
	m := &DAFMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize DAF metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register DAF metrics: %w", err)
	}
	return m, nil
}

func (m *DAFMetrics) initMetrics() error {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daf_operations_total",
			Help: "Total number of DAF lifecycle operations",
		},
		[]string{"operation", "status"}, // operation: session_start, session_stop; status: success, error
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "daf_operation_duration_seconds",
			Help:    "Duration of DAF operations in seconds",
			Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount15), // 0.1ms to ~1.6s
		},
		[]string{"operation"},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daf_errors_total",
			Help: "Total number of DAF errors by operation and category",
		},
		[]string{"operation", "error_type"}, // error_type: device-unavailable, transient-io, teardown-timeout
	)

	m.framesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "daf_frames_total",
		Help: "Total number of delayed frames delivered to the playback sink",
	})

	m.bytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "daf_bytes_total",
		Help: "Total number of delayed PCM bytes delivered to the playback sink",
	})

	m.sessionActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "daf_session_active",
		Help: "Whether a DAF session is running (1) or idle (0)",
	})

	m.headsetConnected = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "daf_headset_connected",
			Help: "Headphone connectivity by kind (1 connected, 0 disconnected)",
		},
		[]string{"kind"}, // kind: wired, bluetooth
	)

	return nil
}

func (m *DAFMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.operationsTotal,
		m.operationDuration,
		m.errorsTotal,
		m.framesTotal,
		m.bytesTotal,
		m.sessionActive,
		m.headsetConnected,
	}
}

// Describe implements the prometheus.Collector interface.
func (m *DAFMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *DAFMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}

// RecordOperation implements Recorder
func (m *DAFMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder
func (m *DAFMetrics) RecordDuration(operation string, seconds float64) {
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder
func (m *DAFMetrics) RecordError(operation, errorType string) {
	m.errorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RecordFrame counts one frame of n bytes written to the sink
func (m *DAFMetrics) RecordFrame(n int) {
	m.framesTotal.Inc()
	m.bytesTotal.Add(float64(n))
}

// SetSessionActive sets the session gauge
func (m *DAFMetrics) SetSessionActive(active bool) {
	m.sessionActive.Set(boolToFloat(active))
}

// SetHeadsetConnected sets the connectivity gauge for kind ("wired" or "bluetooth")
func (m *DAFMetrics) SetHeadsetConnected(kind string, connected bool) {
	m.headsetConnected.WithLabelValues(kind).Set(boolToFloat(connected))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
