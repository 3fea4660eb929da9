package main

import (
	"context"
	"fmt"
	"os"

	"github.com/autoland/lando/cmd/lando/container"
	"github.com/autoland/lando/cmd/lando/routes"
	"github.com/autoland/lando/common/bootstrap"
	"github.com/autoland/lando/common/server"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	ctx := context.Background()

	// Bootstrap common components (config, logger, DB)
	components, err := bootstrap.Setup(ctx, "lando")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap lando: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	// Initialize service container (singleton pattern - all services created once)
	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}
	defer serviceContainer.Close()

	// Verify the conduit API is reachable. Startup proceeds either way;
	// an unreachable review service fails individual requests instead.
	if err := serviceContainer.PhabClient.CheckConnection(ctx); err != nil {
		components.Logger.Warn("code review service unreachable at startup", "error", err)
	}

	// Initialize Echo server
	e := setupEcho()
	setupMiddleware(e)
	setupHealthCheck(e, serviceContainer)

	// Register all routes
	routes.RegisterLandingRoutes(e, serviceContainer)

	// Start with graceful shutdown
	srv := server.New("lando", components.Config.Service.Port, e, components.Logger)
	if err := srv.Start(); err != nil {
		components.Logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, c *container.Container) {
	e.GET("/health", func(ec echo.Context) error {
		ctx := ec.Request().Context()

		if err := c.Components.DB.Health(ctx); err != nil {
			return ec.JSON(503, map[string]string{
				"status": "unhealthy",
				"reason": "database unreachable",
			})
		}
		if err := c.BlobRedis.Health(ctx); err != nil {
			return ec.JSON(503, map[string]string{
				"status": "unhealthy",
				"reason": "blob store unreachable",
			})
		}

		return ec.JSON(200, map[string]string{
			"status":  "ok",
			"service": "lando",
		})
	})
}
