package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HeadphonesResponse is returned by GET /headphones
type HeadphonesResponse struct {
	Wired     bool `json:"wired"`
	Bluetooth bool `json:"bluetooth"`
	Any       bool `json:"any"`
}

func (c *Controller) initHeadsetRoutes() {
	c.Group.GET("/headphones", c.GetHeadphones)
}

// GetHeadphones handles GET /api/v1/headphones
func (c *Controller) GetHeadphones(ctx echo.Context) error {
	if c.headsets == nil {
		return c.notAvailable(ctx, "Headset detection")
	}

	s := c.headsets.State()
	return ctx.JSON(http.StatusOK, HeadphonesResponse{
		Wired:     s.Wired,
		Bluetooth: s.Bluetooth,
		Any:       s.Any(),
	})
}
