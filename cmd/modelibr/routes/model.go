package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/modelibr/modelibr/cmd/modelibr/handlers"
)

// RegisterModelRoutes registers catalog routes
func RegisterModelRoutes(g *echo.Group, handler *handlers.ModelHandler, thumbnails *handlers.ThumbnailHandler, uploadLimit echo.MiddlewareFunc) {
	// POST /api/v1/models - create a model from an upload
	g.POST("/models", handler.CreateModel, uploadLimit)

	// POST /api/v1/models/:id/versions - add a version to a model
	g.POST("/models/:id/versions", handler.AddVersion, uploadLimit)

	// GET /api/v1/models - list models
	g.GET("/models", handler.ListModels)

	// GET /api/v1/models/:id - get a model
	g.GET("/models/:id", handler.GetModel)

	// GET /api/v1/models/:id/versions - list a model's versions
	g.GET("/models/:id/versions", handler.ListVersions)

	// PATCH /api/v1/models/:id - JSON merge patch on name/metadata
	g.PATCH("/models/:id", handler.PatchModel)

	// GET /api/v1/models/:id/thumbnail - serve the active version's thumbnail
	g.GET("/models/:id/thumbnail", handler.GetThumbnail)

	// GET /api/v1/targets/:kind/:id/thumbnail/status - status by target
	g.GET("/targets/:kind/:id/thumbnail/status", thumbnails.GetStatus)
}
