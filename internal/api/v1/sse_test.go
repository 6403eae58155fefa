package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadme/daf/internal/events"
	"github.com/leadme/daf/internal/observability/metrics"
)

// readEvent returns the next SSE event name and data line
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && name != "":
			return name, data
		}
	}
}

func TestStreamEventsDeliversBusEvents(t *testing.T) {
	m, err := metrics.NewHTTPMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	e, c := newTestController(t, &fakeHost{}, WithMetrics(m), WithHeartbeat(time.Hour))
	srv := httptest.NewServer(e)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events", http.NoBody)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	name, _ := readEvent(t, r)
	require.Equal(t, "connected", name)
	assert.Equal(t, 1, c.SSE().GetClientCount())

	require.NoError(t, c.SSE().ProcessEvent(events.NewHeadphoneStateChanged(false)))

	name, data := readEvent(t, r)
	assert.Equal(t, "headphoneStateChanged", name)
	assert.Contains(t, data, `"connected":false`)

	cancel()
	assert.Eventually(t, func() bool { return c.SSE().GetClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return m.GetActiveSSEConnections() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestProcessEventDropsForFullClient(t *testing.T) {
	m, err := metrics.NewHTTPMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	mgr := NewSSEManager(m, nil)
	client := &SSEClient{ID: "slow", Channel: make(chan SSEEvent, 1), Done: make(chan struct{})}
	mgr.AddClient(client)
	defer mgr.RemoveClient(client.ID)

	start := time.Now()
	for range 5 {
		require.NoError(t, mgr.ProcessEvent(events.NewBluetoothHeadsetStateChanged(true)))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Len(t, client.Channel, 1)
}

func TestCloseAllDisconnectsClients(t *testing.T) {
	mgr := NewSSEManager(nil, nil)
	a := &SSEClient{ID: "a", Channel: make(chan SSEEvent, 1), Done: make(chan struct{})}
	b := &SSEClient{ID: "b", Channel: make(chan SSEEvent, 1), Done: make(chan struct{})}
	mgr.AddClient(a)
	mgr.AddClient(b)

	mgr.CloseAll()

	assert.Equal(t, 0, mgr.GetClientCount())
	_, open := <-a.Done
	assert.False(t, open)
	mgr.RemoveClient("a")
}
