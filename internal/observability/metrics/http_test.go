package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEConnectionTracking(t *testing.T) {
	m, err := NewHTTPMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.SSEConnectionStarted()
	m.SSEConnectionStarted()
	assert.InDelta(t, 2, m.GetActiveSSEConnections(), 0)

	m.SSEConnectionClosed(12)
	assert.InDelta(t, 1, m.GetActiveSSEConnections(), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.sseTotalConnections.WithLabelValues("closed")), 0)
}

func TestRecordHTTPRequest(t *testing.T) {
	m, err := NewHTTPMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordHTTPRequest("POST", "/api/v1/daf/start", 202, 0.002)
	m.RecordSSEMessageSent("diagnostic")
	m.RecordSSEDropped()

	assert.InDelta(t, 1, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("POST", "/api/v1/daf/start", "202")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.sseMessagesSent.WithLabelValues("diagnostic")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.sseDropped), 0)
}
