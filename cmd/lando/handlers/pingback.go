package handlers

import (
	"crypto/hmac"
	"net/http"

	"github.com/autoland/lando/cmd/lando/container"
	"github.com/autoland/lando/cmd/lando/service"
	"github.com/autoland/lando/common/bootstrap"
	"github.com/labstack/echo/v4"
)

// PingbackHandler receives transplant job completion notifications
type PingbackHandler struct {
	components *bootstrap.Components
	landings   *service.LandingService
}

// NewPingbackHandler creates a new pingback handler
func NewPingbackHandler(c *container.Container) *PingbackHandler {
	return &PingbackHandler{
		components: c.Components,
		landings:   c.LandingService,
	}
}

// UpdateLanding applies a transplant pingback to the matching landing
// POST /landings/:landing_id/update
func (h *PingbackHandler) UpdateLanding(c echo.Context) error {
	ctx := c.Request().Context()
	cfg := h.components.Config.Transplant

	if !cfg.PingbackEnabled {
		h.components.Logger.Warn("rejected pingback, pingback disabled",
			"remote_addr", c.RealIP())
		return c.JSON(http.StatusForbidden, map[string]interface{}{
			"error": "pingback is not enabled",
		})
	}

	// The shared secret must match exactly. Compared in constant time so
	// the response latency leaks nothing about the configured key.
	key := c.Request().Header.Get("API-Key")
	if !hmac.Equal([]byte(key), []byte(cfg.APIKey)) {
		h.components.Logger.Warn("rejected pingback, incorrect API key",
			"remote_addr", c.RealIP())
		return c.JSON(http.StatusForbidden, map[string]interface{}{
			"error": "incorrect API key",
		})
	}

	var req struct {
		RequestID int64  `json:"request_id"`
		Landed    bool   `json:"landed"`
		ErrorMsg  string `json:"error_msg"`
		Result    string `json:"result"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}
	if req.RequestID == 0 {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "request_id is required",
		})
	}

	landing, err := h.landings.ApplyPingback(ctx, req.RequestID, req.Landed, req.ErrorMsg, req.Result)
	if err != nil {
		if service.IsKind(err, service.KindLandingNotFound) {
			return c.JSON(http.StatusNotFound, map[string]interface{}{
				"error": "no landing for the reported request id",
			})
		}
		h.components.Logger.Error("failed to apply pingback", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to apply pingback",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":     landing.ID,
		"status": landing.Status,
	})
}
