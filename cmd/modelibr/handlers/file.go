package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/modelibr/modelibr/cmd/modelibr/service"
	"github.com/modelibr/modelibr/common/bootstrap"
	"github.com/modelibr/modelibr/common/models"
	"github.com/modelibr/modelibr/common/repository"
)

// FileHandler handles raw content store operations
type FileHandler struct {
	components   *bootstrap.Components
	contentStore *service.ContentStoreService
	files        *repository.FileRepository
}

// NewFileHandler creates a new file handler
func NewFileHandler(components *bootstrap.Components, contentStore *service.ContentStoreService, files *repository.FileRepository) *FileHandler {
	return &FileHandler{
		components:   components,
		contentStore: contentStore,
		files:        files,
	}
}

// UploadFile stores an uploaded file and returns its content record
// POST /api/v1/files (multipart: file, category)
func (h *FileHandler) UploadFile(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field 'file' is required")
	}

	category, ok := models.ParseFileCategory(c.FormValue("category"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid or missing category")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read upload")
	}
	defer src.Close()

	record, err := h.contentStore.Resolve(c.Request().Context(), src, fileHeader.Filename, category, fileHeader.Size)
	if err != nil {
		h.components.Logger.Error("upload failed", "name", fileHeader.Filename, "error", err)
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, record)
}

// ListFiles lists content records of one category, newest first
// GET /api/v1/files?category=&limit=
func (h *FileHandler) ListFiles(c echo.Context) error {
	category, ok := models.ParseFileCategory(c.QueryParam("category"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid or missing category")
	}

	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = parsed
	}

	files, err := h.files.ListByCategory(c.Request().Context(), category, limit)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"files": files})
}

// DownloadFile streams the file identified by its content hash
// GET /api/v1/files/:hash
func (h *FileHandler) DownloadFile(c echo.Context) error {
	hash := c.Param("hash")

	record, rc, err := h.contentStore.Open(c.Request().Context(), hash)
	if err != nil {
		return respondError(c, err)
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, record.OriginalName))
	return c.Stream(http.StatusOK, record.MimeType, rc)
}

// PurgeFile permanently deletes an unreferenced file
// DELETE /api/v1/files/:hash
func (h *FileHandler) PurgeFile(c echo.Context) error {
	hash := c.Param("hash")

	if err := h.contentStore.Purge(c.Request().Context(), hash); err != nil {
		h.components.Logger.Error("purge failed", "content_hash", hash, "error", err)
		return respondError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}
