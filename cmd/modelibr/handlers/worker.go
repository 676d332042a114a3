package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/modelibr/modelibr/common/bootstrap"
	"github.com/modelibr/modelibr/common/models"
	"github.com/modelibr/modelibr/common/queue"
	"github.com/modelibr/modelibr/common/repository"
)

// WorkerHandler implements the worker protocol: workers dequeue jobs and
// report results over HTTP so they stay stateless and replaceable
type WorkerHandler struct {
	components *bootstrap.Components
	queue      *queue.ThumbnailQueue
	jobs       *repository.ThumbnailJobRepository
	jobEvents  *repository.JobEventRepository
}

// NewWorkerHandler creates a new worker handler
func NewWorkerHandler(components *bootstrap.Components, thumbnailQueue *queue.ThumbnailQueue, jobs *repository.ThumbnailJobRepository, jobEvents *repository.JobEventRepository) *WorkerHandler {
	return &WorkerHandler{
		components: components,
		queue:      thumbnailQueue,
		jobs:       jobs,
		jobEvents:  jobEvents,
	}
}

// DequeueRequest identifies the claiming worker
type DequeueRequest struct {
	WorkerID string `json:"worker_id"`
}

// FinishRequest is a worker's report on a claimed job
type FinishRequest struct {
	WorkerID string              `json:"worker_id"`
	Success  bool                `json:"success"`
	Artifact *models.ArtifactRef `json:"artifact,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// Dequeue claims the oldest eligible job for the calling worker
// POST /api/v1/worker/dequeue -> 200 job | 204 empty
func (h *WorkerHandler) Dequeue(c echo.Context) error {
	var req DequeueRequest
	if err := c.Bind(&req); err != nil || req.WorkerID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "worker_id is required")
	}

	job, err := h.queue.Dequeue(c.Request().Context(), req.WorkerID)
	if err != nil {
		h.components.Logger.Error("dequeue failed", "worker_id", req.WorkerID, "error", err)
		return respondError(c, err)
	}
	if job == nil {
		return c.NoContent(http.StatusNoContent)
	}

	return c.JSON(http.StatusOK, job)
}

// Finish applies a worker's success or failure report to its claimed job
// POST /api/v1/worker/jobs/:id/finish
func (h *WorkerHandler) Finish(c echo.Context) error {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid job id")
	}

	var req FinishRequest
	if err := c.Bind(&req); err != nil || req.WorkerID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "worker_id is required")
	}
	if !req.Success && req.Error == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "failure report requires an error message")
	}

	result := queue.FinishResult{
		Success:  req.Success,
		Artifact: req.Artifact,
		Error:    req.Error,
	}

	if err := h.queue.Finish(c.Request().Context(), jobID, req.WorkerID, result); err != nil {
		h.components.Logger.Warn("finish rejected",
			"job_id", jobID,
			"worker_id", req.WorkerID,
			"success", req.Success,
			"error", err,
		)
		return respondError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// JobEvents returns the append-only audit trail of a job
// GET /api/v1/worker/jobs/:id/events
func (h *WorkerHandler) JobEvents(c echo.Context) error {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid job id")
	}

	evts, err := h.jobEvents.ListByJob(c.Request().Context(), jobID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"events": evts})
}

// QueueStats reports how many jobs sit in each status
// GET /api/v1/worker/stats
func (h *WorkerHandler) QueueStats(c echo.Context) error {
	ctx := c.Request().Context()
	stats := make(map[string]int64, 4)

	for _, status := range []models.JobStatus{
		models.JobStatusPending,
		models.JobStatusProcessing,
		models.JobStatusCompleted,
		models.JobStatusDeadLettered,
	} {
		count, err := h.jobs.CountByStatus(ctx, status)
		if err != nil {
			return respondError(c, err)
		}
		stats[string(status)] = count
	}

	return c.JSON(http.StatusOK, stats)
}
