package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/leadme/daf/internal/daf"
	"github.com/leadme/daf/internal/logger"
)

// Control actions
const (
	ActionStart = "start"
	ActionStop  = "stop"
)

// ControlResult acknowledges a control request. Accepted does not mean the
// session started; start failures arrive as diagnostic events on /events.
type ControlResult struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Action    string    `json:"action"`
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusResponse is returned by GET /daf/status
type StatusResponse struct {
	State   string           `json:"state"`
	Session *daf.SessionInfo `json:"session,omitempty"`
	Uptime  string           `json:"uptime,omitempty"`
}

func (c *Controller) initDAFRoutes() {
	g := c.Group.Group("/daf")
	g.POST("/start", c.StartDAF)
	g.POST("/stop", c.StopDAF)
	g.GET("/status", c.GetStatus)
}

// StartDAF handles POST /api/v1/daf/start
func (c *Controller) StartDAF(ctx echo.Context) error {
	if c.host == nil {
		return c.notAvailable(ctx, "DAF host")
	}

	c.log.Info("start requested", logger.String("ip", ctx.RealIP()))
	c.host.StartDAF()

	return ctx.JSON(http.StatusAccepted, c.controlResult(ActionStart, "Start requested"))
}

// StopDAF handles POST /api/v1/daf/stop
func (c *Controller) StopDAF(ctx echo.Context) error {
	if c.host == nil {
		return c.notAvailable(ctx, "DAF host")
	}

	c.log.Info("stop requested", logger.String("ip", ctx.RealIP()))
	c.host.StopDAF()

	return ctx.JSON(http.StatusAccepted, c.controlResult(ActionStop, "Stop requested"))
}

// GetStatus handles GET /api/v1/daf/status
func (c *Controller) GetStatus(ctx echo.Context) error {
	if c.status == nil {
		return c.notAvailable(ctx, "DAF status")
	}

	resp := StatusResponse{State: c.status.State().String()}
	if info, ok := c.status.Session(); ok {
		resp.Session = &info
		resp.Uptime = time.Since(info.StartedAt).Round(time.Second).String()
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (c *Controller) controlResult(action, message string) ControlResult {
	state := daf.StateIdle.String()
	if c.status != nil {
		state = c.status.State().String()
	}
	return ControlResult{
		Success:   true,
		Message:   message,
		Action:    action,
		State:     state,
		Timestamp: time.Now(),
	}
}
