package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eleven-am/dicton/internal/hotkey"
	"github.com/eleven-am/dicton/internal/shared"
)

// Gesture routes let an external key listener, or a curl session while
// debugging, drive the state machine over the local HTTP surface.

func (h *Handler) registerGestureRoutes(e *echo.Echo) {
	e.GET("/api/gesture", h.GestureState)
	e.POST("/api/gesture/down", h.GestureDown)
	e.POST("/api/gesture/up", h.GestureUp)
	e.POST("/api/gesture/modifier", h.GestureModifier)
}

type gestureStateResponse struct {
	State     string `json:"state"`
	Mode      string `json:"mode"`
	Recording bool   `json:"recording"`
}

func (h *Handler) GestureState(c echo.Context) error {
	return c.JSON(http.StatusOK, gestureStateResponse{
		State:     h.machine.State().String(),
		Mode:      h.machine.CurrentMode().String(),
		Recording: h.machine.IsRecording(),
	})
}

func (h *Handler) GestureDown(c echo.Context) error {
	h.machine.HandleKeyDown()
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GestureUp(c echo.Context) error {
	h.machine.HandleKeyUp()
	return c.NoContent(http.StatusNoContent)
}

type modifierRequest struct {
	Modifier string `json:"modifier"`
	Pressed  bool   `json:"pressed"`
}

func (h *Handler) GestureModifier(c echo.Context) error {
	var req modifierRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_body", "invalid request body")
	}

	var mod hotkey.Modifier
	switch req.Modifier {
	case "shift":
		mod = hotkey.ModifierShift
	case "ctrl":
		mod = hotkey.ModifierCtrl
	case "alt":
		mod = hotkey.ModifierAlt
	case "space":
		mod = hotkey.ModifierSpace
	default:
		return shared.BadRequest("unknown_modifier", "modifier must be shift, ctrl, alt or space")
	}

	h.machine.SetModifier(mod, req.Pressed)
	return c.NoContent(http.StatusNoContent)
}
