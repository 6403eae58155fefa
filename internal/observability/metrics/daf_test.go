package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Recorder = (*DAFMetrics)(nil)

func newTestDAFMetrics(t *testing.T) *DAFMetrics {
	t.Helper()
	m, err := NewDAFMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func TestDAFMetricsRegisterTwiceFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewDAFMetrics(registry)
	require.NoError(t, err)

	_, err = NewDAFMetrics(registry)
	assert.Error(t, err)
}

func TestDAFRecordOperationAndError(t *testing.T) {
	m := newTestDAFMetrics(t)

	m.RecordOperation(OpSessionStart, StatusSuccess)
	m.RecordOperation(OpSessionStart, StatusSuccess)
	m.RecordOperation(OpSessionStart, StatusError)
	m.RecordError(OpSessionStart, "device-unavailable")
	m.RecordError(OpSinkWrite, "transient-io")

	assert.InDelta(t, 2, testutil.ToFloat64(m.operationsTotal.WithLabelValues(OpSessionStart, StatusSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.operationsTotal.WithLabelValues(OpSessionStart, StatusError)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.errorsTotal.WithLabelValues(OpSessionStart, "device-unavailable")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.errorsTotal.WithLabelValues(OpSinkWrite, "transient-io")), 0)
}

func TestDAFRecordFrameCountsBytes(t *testing.T) {
	m := newTestDAFMetrics(t)

	for range 3 {
		m.RecordFrame(640)
	}

	assert.InDelta(t, 3, testutil.ToFloat64(m.framesTotal), 0)
	assert.InDelta(t, 1920, testutil.ToFloat64(m.bytesTotal), 0)
}

func TestDAFGauges(t *testing.T) {
	m := newTestDAFMetrics(t)

	m.SetSessionActive(true)
	assert.InDelta(t, 1, testutil.ToFloat64(m.sessionActive), 0)
	m.SetSessionActive(false)
	assert.InDelta(t, 0, testutil.ToFloat64(m.sessionActive), 0)

	m.SetHeadsetConnected(LabelWired, true)
	m.SetHeadsetConnected(LabelBluetooth, false)
	assert.InDelta(t, 1, testutil.ToFloat64(m.headsetConnected.WithLabelValues(LabelWired)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.headsetConnected.WithLabelValues(LabelBluetooth)), 0)
}

func TestDAFDurationHistogram(t *testing.T) {
	m := newTestDAFMetrics(t)

	m.RecordDuration(OpWorkerIteration, 0.0004)
	m.RecordDuration(OpWorkerIteration, 0.02)

	expected := `
# HELP daf_session_active Whether a DAF session is running (1) or idle (0)
# TYPE daf_session_active gauge
daf_session_active 0
`
	require.NoError(t, testutil.CollectAndCompare(m, strings.NewReader(expected), "daf_session_active"))
	assert.Equal(t, 1, testutil.CollectAndCount(m, "daf_operation_duration_seconds"))
}
