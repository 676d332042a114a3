package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/modelibr/modelibr/common/bootstrap"
	"github.com/modelibr/modelibr/common/models"
	"github.com/modelibr/modelibr/common/repository"
)

// ThumbnailHandler answers derived-artifact status queries by target
type ThumbnailHandler struct {
	components *bootstrap.Components
	thumbnails *repository.ThumbnailRepository
}

// NewThumbnailHandler creates a new thumbnail handler
func NewThumbnailHandler(components *bootstrap.Components, thumbnails *repository.ThumbnailRepository) *ThumbnailHandler {
	return &ThumbnailHandler{
		components: components,
		thumbnails: thumbnails,
	}
}

// GetStatus returns the thumbnail status for any target
// GET /api/v1/targets/:kind/:id/thumbnail/status
func (h *ThumbnailHandler) GetStatus(c echo.Context) error {
	kind, ok := models.ParseTargetKind(c.Param("kind"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid target kind")
	}

	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid target id")
	}

	thumb, err := h.thumbnails.GetByTarget(c.Request().Context(), kind, targetID)
	if err != nil {
		return respondError(c, err)
	}
	if thumb == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no thumbnail for target")
	}

	return c.JSON(http.StatusOK, thumb)
}
