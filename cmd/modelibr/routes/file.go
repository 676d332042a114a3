package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/modelibr/modelibr/cmd/modelibr/handlers"
)

// RegisterFileRoutes registers content store routes. Upload routes carry the
// rate limit middleware.
func RegisterFileRoutes(g *echo.Group, handler *handlers.FileHandler, uploadLimit echo.MiddlewareFunc) {
	// POST /api/v1/files - upload a file into the content store
	g.POST("/files", handler.UploadFile, uploadLimit)

	// GET /api/v1/files - list records of a category
	g.GET("/files", handler.ListFiles)

	// GET /api/v1/files/:hash - download by content hash
	g.GET("/files/:hash", handler.DownloadFile)

	// DELETE /api/v1/files/:hash - permanently delete an unreferenced file
	g.DELETE("/files/:hash", handler.PurgeFile)
}
