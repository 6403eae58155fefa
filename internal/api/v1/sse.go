package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/leadme/daf/internal/events"
	"github.com/leadme/daf/internal/logger"
	"github.com/leadme/daf/internal/observability/metrics"
)

const (
	sseClientBuffer = 64
	sseWriteTimeout = 10 * time.Second
)

// SSEEvent is the data of one server-sent event
type SSEEvent struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// SSEClient represents a connected SSE client
type SSEClient struct {
	ID      string
	Channel chan SSEEvent
	Done    chan struct{}
}

// SSEManager fans bus events out to connected SSE clients. It implements
// events.EventConsumer and never blocks the bus: a client whose buffer is
// full misses the event.
type SSEManager struct {
	clients map[string]*SSEClient
	mutex   sync.RWMutex
	metrics *metrics.HTTPMetrics
	log     logger.Logger
}

// NewSSEManager creates a new SSE manager
func NewSSEManager(m *metrics.HTTPMetrics, log logger.Logger) *SSEManager {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &SSEManager{
		clients: make(map[string]*SSEClient),
		metrics: m,
		log:     log,
	}
}

// AddClient adds a new SSE client
func (m *SSEManager) AddClient(client *SSEClient) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.clients[client.ID] = client
	m.log.Debug("SSE client connected",
		logger.String("client_id", client.ID),
		logger.Int("total", len(m.clients)))
}

// RemoveClient removes an SSE client
func (m *SSEManager) RemoveClient(clientID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if client, exists := m.clients[clientID]; exists {
		close(client.Done)
		delete(m.clients, clientID)
		m.log.Debug("SSE client disconnected",
			logger.String("client_id", clientID),
			logger.Int("total", len(m.clients)))
	}
}

// CloseAll disconnects every client
func (m *SSEManager) CloseAll() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for id, client := range m.clients {
		close(client.Done)
		delete(m.clients, id)
	}
}

// GetClientCount returns the number of connected clients
func (m *SSEManager) GetClientCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients)
}

// Name implements events.EventConsumer
func (m *SSEManager) Name() string { return "sse-broadcaster" }

// ProcessEvent implements events.EventConsumer
func (m *SSEManager) ProcessEvent(ev events.Event) error {
	msg := SSEEvent{
		Type:      string(ev.GetType()),
		Timestamp: ev.GetTimestamp(),
		Payload:   ev.GetPayload(),
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for _, client := range m.clients {
		select {
		case client.Channel <- msg:
		default:
			if m.metrics != nil {
				m.metrics.RecordSSEDropped()
			}
			m.log.Debug("SSE client buffer full, event dropped",
				logger.String("client_id", client.ID),
				logger.String("event_type", msg.Type))
		}
	}
	return nil
}

func (c *Controller) initSSERoutes() {
	// 10 connection attempts per minute per IP
	rateLimiterConfig := middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      10,
				ExpiresIn: 1 * time.Minute,
			},
		),
		IdentifierExtractor: middleware.DefaultRateLimiterConfig.IdentifierExtractor,
		ErrorHandler: func(ctx echo.Context, err error) error {
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded for SSE connections",
			})
		},
		DenyHandler: func(ctx echo.Context, identifier string, err error) error {
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Too many SSE connection attempts, please wait before trying again",
			})
		},
	}

	c.Group.GET("/events", c.StreamEvents, middleware.RateLimiterWithConfig(rateLimiterConfig))
	c.Group.GET("/sse/status", c.GetSSEStatus)
}

// StreamEvents handles GET /api/v1/events. Session, diagnostic and headset
// events are streamed with the event type as the SSE event name.
func (c *Controller) StreamEvents(ctx echo.Context) error {
	header := ctx.Response().Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	ctx.Response().WriteHeader(http.StatusOK)

	client := &SSEClient{
		ID:      generateCorrelationID(),
		Channel: make(chan SSEEvent, sseClientBuffer),
		Done:    make(chan struct{}),
	}
	c.sse.AddClient(client)
	defer c.sse.RemoveClient(client.ID)

	started := time.Now()
	if c.metrics != nil {
		c.metrics.SSEConnectionStarted()
		defer func() { c.metrics.SSEConnectionClosed(time.Since(started).Seconds()) }()
	}

	if err := c.sendSSEMessage(ctx, "connected", map[string]string{
		"clientId": client.ID,
		"message":  "Connected to DAF event stream",
	}); err != nil {
		return err
	}

	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case msg := <-client.Channel:
			if err := c.sendSSEMessage(ctx, msg.Type, msg); err != nil {
				c.log.Debug("SSE send failed", logger.String("client_id", client.ID), logger.Error(err))
				return nil
			}

		case <-ticker.C:
			if err := c.sendSSEMessage(ctx, "heartbeat", map[string]any{
				"timestamp": time.Now().Unix(),
				"clients":   c.sse.GetClientCount(),
			}); err != nil {
				return nil
			}

		case <-ctx.Request().Context().Done():
			return nil

		case <-client.Done:
			return nil
		}
	}
}

// sendSSEMessage writes one event and flushes it
func (c *Controller) sendSSEMessage(ctx echo.Context, event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE data: %w", err)
	}

	rc := http.NewResponseController(ctx.Response().Writer)
	// not every ResponseWriter supports deadlines
	_ = rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout))

	if _, err := fmt.Fprintf(ctx.Response(), "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("failed to write SSE message: %w", err)
	}
	ctx.Response().Flush()

	if c.metrics != nil {
		c.metrics.RecordSSEMessageSent(event)
	}
	return nil
}

// GetSSEStatus returns information about SSE connections
func (c *Controller) GetSSEStatus(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"connected_clients": c.sse.GetClientCount(),
		"status":            "active",
	})
}
