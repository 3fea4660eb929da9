package routes

import (
	"github.com/autoland/lando/cmd/lando/container"
	"github.com/autoland/lando/cmd/lando/handlers"
	"github.com/autoland/lando/cmd/lando/middleware"
	"github.com/labstack/echo/v4"
)

// RegisterLandingRoutes registers all landing-related routes
func RegisterLandingRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewLandingHandler(c)
	p := handlers.NewPingbackHandler(c)

	cfg := c.Components.Config.Service
	limited := middleware.RequesterRateLimit(c.RateLimiter,
		int64(cfg.RequesterRateLimit), cfg.RateLimitWindowSec)

	// Landing routes with requester extraction middleware
	landings := e.Group("/landings")
	landings.Use(middleware.ExtractRequester()) // Extract X-Requester into context
	{
		landings.POST("", h.CreateLanding, limited) // POST /landings
		landings.GET("", h.ListLandings)            // GET /landings?revision_id=D1&status=submitted
		landings.GET("/:landing_id", h.GetLanding)  // GET /landings/{landing_id}
		landings.POST("/dryrun", h.Dryrun)          // POST /landings/dryrun
	}

	// Pingback route, authenticated by pre-shared key rather than requester
	e.POST("/landings/:landing_id/update", p.UpdateLanding)
}
