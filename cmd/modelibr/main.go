package main

import (
	"context"
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/modelibr/modelibr/cmd/modelibr/container"
	"github.com/modelibr/modelibr/cmd/modelibr/handlers"
	"github.com/modelibr/modelibr/cmd/modelibr/routes"
	"github.com/modelibr/modelibr/common/bootstrap"
	"github.com/modelibr/modelibr/common/db"
	commonmw "github.com/modelibr/modelibr/common/middleware"
)

func main() {
	ctx := context.Background()

	// Bootstrap common components (DB, logger, storage, cache, telemetry)
	components, err := bootstrap.Setup(ctx, "modelibr",
		bootstrap.WithDBInitHook(db.EnsureSchema),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap modelibr: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	// Initialize service container (singleton pattern - all services created once)
	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}

	// Initialize Echo server
	e := setupEcho()

	// Setup middleware
	setupMiddleware(e)

	// Setup health check
	setupHealthCheck(e)

	// Register all routes
	registerRoutes(e, serviceContainer)

	// Start server
	startServer(e, components)
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
func setupHealthCheck(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "ok",
			"service": "modelibr",
		})
	})
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, c *container.Container) {
	api := e.Group("/api/v1")

	uploadLimit := commonmw.UploadRateLimitMiddleware(c.RateLimiter, c.Components.Config.RateLimit)

	fileHandler := handlers.NewFileHandler(c.Components, c.ContentStore, c.FileRepo)
	modelHandler := handlers.NewModelHandler(c.Components, c.Catalog, c.ThumbnailRepo)
	thumbnailHandler := handlers.NewThumbnailHandler(c.Components, c.ThumbnailRepo)
	workerHandler := handlers.NewWorkerHandler(c.Components, c.ThumbnailQueue, c.JobRepo, c.JobEventRepo)

	routes.RegisterFileRoutes(api, fileHandler, uploadLimit)
	routes.RegisterModelRoutes(api, modelHandler, thumbnailHandler, uploadLimit)
	routes.RegisterWorkerRoutes(api, workerHandler)
}

// startServer starts the Echo server on the configured port
func startServer(e *echo.Echo, components *bootstrap.Components) {
	port := components.Config.Service.Port
	components.Logger.Info("Starting modelibr", "port", port)

	if err := e.Start(fmt.Sprintf(":%d", port)); err != nil {
		components.Logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
