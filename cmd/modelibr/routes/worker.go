package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/modelibr/modelibr/cmd/modelibr/handlers"
)

// RegisterWorkerRoutes registers the worker protocol routes
func RegisterWorkerRoutes(g *echo.Group, handler *handlers.WorkerHandler) {
	// POST /api/v1/worker/dequeue - claim the oldest eligible job
	g.POST("/worker/dequeue", handler.Dequeue)

	// POST /api/v1/worker/jobs/:id/finish - report a job result
	g.POST("/worker/jobs/:id/finish", handler.Finish)

	// GET /api/v1/worker/jobs/:id/events - job audit trail
	g.GET("/worker/jobs/:id/events", handler.JobEvents)

	// GET /api/v1/worker/stats - job counts per status
	g.GET("/worker/stats", handler.QueueStats)
}
