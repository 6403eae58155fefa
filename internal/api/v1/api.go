// Package api implements the v1 JSON and SSE endpoints for controlling a
// DAF session and observing its events.
package api

import (
	"crypto/rand"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/leadme/daf/internal/daf"
	"github.com/leadme/daf/internal/headset"
	"github.com/leadme/daf/internal/logger"
	"github.com/leadme/daf/internal/observability/metrics"
)

// DAFService is the fire-and-forget control surface. Failures are delivered
// as diagnostic events, never as return values.
type DAFService interface {
	StartDAF()
	StopDAF()
}

// StatusProvider reports the controller state for operators
type StatusProvider interface {
	State() daf.State
	Session() (daf.SessionInfo, bool)
}

// HeadsetProvider reports current headphone connectivity
type HeadsetProvider interface {
	State() headset.State
}

// Controller owns the /api/v1 route group
type Controller struct {
	Echo  *echo.Echo
	Group *echo.Group

	host     DAFService
	status   StatusProvider
	headsets HeadsetProvider
	sse      *SSEManager
	metrics  *metrics.HTTPMetrics
	log      logger.Logger

	heartbeat time.Duration
}

// Option configures optional Controller dependencies
type Option func(*Controller)

// WithHeadsets enables GET /headphones
func WithHeadsets(p HeadsetProvider) Option {
	return func(c *Controller) { c.headsets = p }
}

// WithMetrics records SSE metrics
func WithMetrics(m *metrics.HTTPMetrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithLogger sets the controller logger
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithHeartbeat overrides the SSE heartbeat interval
func WithHeartbeat(d time.Duration) Option {
	return func(c *Controller) { c.heartbeat = d }
}

// New creates the controller and registers its routes on e under /api/v1.
func New(e *echo.Echo, host DAFService, status StatusProvider, opts ...Option) *Controller {
	c := &Controller{
		Echo:      e,
		host:      host,
		status:    status,
		heartbeat: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.NewNopLogger()
	}
	c.log = c.log.Module("api")
	c.sse = NewSSEManager(c.metrics, c.log)

	c.Group = e.Group("/api/v1")
	c.initDAFRoutes()
	c.initHeadsetRoutes()
	c.initSSERoutes()

	return c
}

// SSE returns the event broadcaster. Register it on the event bus to feed
// the /events stream.
func (c *Controller) SSE() *SSEManager {
	return c.sse
}

// Shutdown disconnects all SSE clients
func (c *Controller) Shutdown() {
	c.sse.CloseAll()
}

// ErrorResponse is the JSON body of every error reply
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID returns an 8 character identifier for tying a
// response to its log line
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError logs err and writes an ErrorResponse
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code)

	c.log.Error("API error",
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.String("error", resp.Error),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.String("ip", ctx.RealIP()))

	return ctx.JSON(code, resp)
}

func (c *Controller) notAvailable(ctx echo.Context, what string) error {
	return c.HandleError(ctx, nil, what+" not available", http.StatusServiceUnavailable)
}
