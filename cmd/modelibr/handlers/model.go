package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/modelibr/modelibr/cmd/modelibr/service"
	"github.com/modelibr/modelibr/common/bootstrap"
	"github.com/modelibr/modelibr/common/models"
	"github.com/modelibr/modelibr/common/repository"
)

// ModelHandler handles catalog operations
type ModelHandler struct {
	components *bootstrap.Components
	catalog    *service.CatalogService
	thumbnails *repository.ThumbnailRepository
}

// NewModelHandler creates a new model handler
func NewModelHandler(components *bootstrap.Components, catalog *service.CatalogService, thumbnails *repository.ThumbnailRepository) *ModelHandler {
	return &ModelHandler{
		components: components,
		catalog:    catalog,
		thumbnails: thumbnails,
	}
}

// CreateModel creates a model from an uploaded file, with version 1 active
// POST /api/v1/models (multipart: file)
func (h *ModelHandler) CreateModel(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field 'file' is required")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read upload")
	}
	defer src.Close()

	model, version, err := h.catalog.CreateModel(c.Request().Context(), src, fileHeader.Filename, fileHeader.Size)
	if err != nil {
		h.components.Logger.Error("create model failed", "name", fileHeader.Filename, "error", err)
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"model":   model,
		"version": version,
	})
}

// AddVersion appends a new version to an existing model
// POST /api/v1/models/:id/versions?setAsActive=true
func (h *ModelHandler) AddVersion(c echo.Context) error {
	modelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid model id")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field 'file' is required")
	}

	setAsActive := true
	if raw := c.QueryParam("setAsActive"); raw != "" {
		setAsActive, err = strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid setAsActive value")
		}
	}

	src, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read upload")
	}
	defer src.Close()

	version, err := h.catalog.AddVersion(c.Request().Context(), modelID, src, fileHeader.Filename, fileHeader.Size, setAsActive)
	if err != nil {
		h.components.Logger.Error("add version failed", "model_id", modelID, "error", err)
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, version)
}

// ListModels lists catalog models, newest first
// GET /api/v1/models?search=&limit=
func (h *ModelHandler) ListModels(c echo.Context) error {
	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = parsed
	}

	result, err := h.catalog.ListModels(c.Request().Context(), c.QueryParam("search"), limit)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"models": result})
}

// GetModel retrieves a model by ID
// GET /api/v1/models/:id
func (h *ModelHandler) GetModel(c echo.Context) error {
	modelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid model id")
	}

	model, err := h.catalog.GetModel(c.Request().Context(), modelID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, model)
}

// ListVersions lists a model's versions, oldest first
// GET /api/v1/models/:id/versions
func (h *ModelHandler) ListVersions(c echo.Context) error {
	modelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid model id")
	}

	versions, err := h.catalog.ListVersions(c.Request().Context(), modelID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"versions": versions})
}

// PatchModel applies a JSON merge patch to a model's name and metadata
// PATCH /api/v1/models/:id
func (h *ModelHandler) PatchModel(c echo.Context) error {
	modelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid model id")
	}

	patch, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read patch body")
	}

	model, err := h.catalog.PatchModel(c.Request().Context(), modelID, patch)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, model)
}

// GetThumbnail serves the thumbnail of the model's active version. While the
// job is still in flight the status is returned with 202 so clients can poll.
// GET /api/v1/models/:id/thumbnail
func (h *ModelHandler) GetThumbnail(c echo.Context) error {
	modelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid model id")
	}

	ctx := c.Request().Context()

	if _, err := h.catalog.GetModel(ctx, modelID); err != nil {
		return respondError(c, err)
	}

	version, err := h.catalog.GetActiveVersion(ctx, modelID)
	if err != nil {
		return respondError(c, err)
	}
	if version == nil {
		return echo.NewHTTPError(http.StatusNotFound, "model has no active version")
	}

	thumb, err := h.thumbnails.GetByTarget(ctx, models.TargetModelVersion, version.ID)
	if err != nil {
		return respondError(c, err)
	}

	switch {
	case thumb == nil, thumb.Status == models.ThumbnailPending, thumb.Status == models.ThumbnailProcessing:
		status := models.ThumbnailPending
		if thumb != nil {
			status = thumb.Status
		}
		return c.JSON(http.StatusAccepted, map[string]interface{}{
			"status":     status,
			"version_id": version.ID,
		})
	case thumb.Status == models.ThumbnailFailed:
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"status":     thumb.Status,
			"version_id": version.ID,
		})
	}

	rc, err := h.components.Storage.Open(thumb.RelativePath)
	if err != nil {
		h.components.Logger.Error("thumbnail file missing",
			"version_id", version.ID,
			"relative_path", thumb.RelativePath,
			"error", err,
		)
		return respondError(c, err)
	}
	defer rc.Close()

	return c.Stream(http.StatusOK, "image/png", rc)
}
