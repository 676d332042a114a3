package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"
	"github.com/modelibr/modelibr/common/apperrors"
	"github.com/modelibr/modelibr/common/logger"
	"github.com/modelibr/modelibr/common/models"
	"github.com/modelibr/modelibr/common/queue"
)

// ModelStore is the catalog persistence. GetByID reports a not-found error
// for unknown models; GetActiveVersion returns (nil, nil) when no version is
// active.
type ModelStore interface {
	Create(ctx context.Context, model *models.Model) error
	GetByID(ctx context.Context, modelID uuid.UUID) (*models.Model, error)
	List(ctx context.Context, search string, limit int) ([]*models.Model, error)
	Update(ctx context.Context, model *models.Model) error
	CreateVersion(ctx context.Context, version *models.ModelVersion) error
	NextVersionNumber(ctx context.Context, modelID uuid.UUID) (int, error)
	ListVersions(ctx context.Context, modelID uuid.UUID) ([]*models.ModelVersion, error)
	GetActiveVersion(ctx context.Context, modelID uuid.UUID) (*models.ModelVersion, error)
}

// CatalogService manages the model catalog on top of the content store.
// Creating a model or version resolves the upload first, then enqueues a
// thumbnail job for the new version. Enqueue failures never fail the upload;
// the version exists either way and just has no thumbnail yet.
type CatalogService struct {
	modelRepo    ModelStore
	contentStore *ContentStoreService
	queue        *queue.ThumbnailQueue
	log          *logger.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(
	modelRepo ModelStore,
	contentStore *ContentStoreService,
	thumbnailQueue *queue.ThumbnailQueue,
	log *logger.Logger,
) *CatalogService {
	return &CatalogService{
		modelRepo:    modelRepo,
		contentStore: contentStore,
		queue:        thumbnailQueue,
		log:          log,
	}
}

// CreateModel resolves the upload and creates a model with version 1 active
func (s *CatalogService) CreateModel(ctx context.Context, r io.Reader, originalName string, declaredSize int64) (*models.Model, *models.ModelVersion, error) {
	file, err := s.contentStore.Resolve(ctx, r, originalName, models.CategoryModel, declaredSize)
	if err != nil {
		return nil, nil, err
	}

	model := models.NewModel(originalName)
	if err := s.modelRepo.Create(ctx, model); err != nil {
		return nil, nil, err
	}

	version := models.NewModelVersion(model.ID, 1, file.ContentHash, true)
	if err := s.modelRepo.CreateVersion(ctx, version); err != nil {
		return nil, nil, err
	}

	s.enqueueThumbnail(ctx, version)

	s.log.Info("model created",
		"model_id", model.ID,
		"version_id", version.ID,
		"content_hash", file.ContentHash,
	)

	return model, version, nil
}

// AddVersion resolves the upload and appends the next version to a model
func (s *CatalogService) AddVersion(ctx context.Context, modelID uuid.UUID, r io.Reader, originalName string, declaredSize int64, setAsActive bool) (*models.ModelVersion, error) {
	if _, err := s.modelRepo.GetByID(ctx, modelID); err != nil {
		return nil, err
	}

	file, err := s.contentStore.Resolve(ctx, r, originalName, models.CategoryModel, declaredSize)
	if err != nil {
		return nil, err
	}

	next, err := s.modelRepo.NextVersionNumber(ctx, modelID)
	if err != nil {
		return nil, err
	}

	version := models.NewModelVersion(modelID, next, file.ContentHash, setAsActive)
	if err := s.modelRepo.CreateVersion(ctx, version); err != nil {
		return nil, err
	}

	s.enqueueThumbnail(ctx, version)

	s.log.Info("model version created",
		"model_id", modelID,
		"version_id", version.ID,
		"version_number", next,
		"active", setAsActive,
	)

	return version, nil
}

// GetModel retrieves a model by ID
func (s *CatalogService) GetModel(ctx context.Context, modelID uuid.UUID) (*models.Model, error) {
	return s.modelRepo.GetByID(ctx, modelID)
}

// ListModels retrieves models, optionally filtered by name substring
func (s *CatalogService) ListModels(ctx context.Context, search string, limit int) ([]*models.Model, error) {
	return s.modelRepo.List(ctx, search, limit)
}

// ListVersions retrieves a model's versions
func (s *CatalogService) ListVersions(ctx context.Context, modelID uuid.UUID) ([]*models.ModelVersion, error) {
	if _, err := s.modelRepo.GetByID(ctx, modelID); err != nil {
		return nil, err
	}
	return s.modelRepo.ListVersions(ctx, modelID)
}

// GetActiveVersion retrieves a model's active version, (nil, nil) when none
func (s *CatalogService) GetActiveVersion(ctx context.Context, modelID uuid.UUID) (*models.ModelVersion, error) {
	return s.modelRepo.GetActiveVersion(ctx, modelID)
}

// PatchModel applies an RFC 7386 merge patch to a model's mutable fields
// (name and metadata) and returns the updated model
func (s *CatalogService) PatchModel(ctx context.Context, modelID uuid.UUID, patch []byte) (*models.Model, error) {
	model, err := s.modelRepo.GetByID(ctx, modelID)
	if err != nil {
		return nil, err
	}

	current, err := json.Marshal(patchableModel{Name: model.Name, Metadata: model.Metadata})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal model for patch: %w", err)
	}

	merged, err := jsonpatch.MergePatch(current, patch)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, "invalid merge patch", err)
	}

	var updated patchableModel
	if err := json.Unmarshal(merged, &updated); err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, "merge patch produced invalid model", err)
	}
	if updated.Name == "" {
		return nil, apperrors.New(apperrors.KindValidation, "model name cannot be empty")
	}

	model.Name = updated.Name
	model.Metadata = updated.Metadata
	if err := s.modelRepo.Update(ctx, model); err != nil {
		return nil, err
	}

	s.log.Info("model patched", "model_id", modelID)
	return s.modelRepo.GetByID(ctx, modelID)
}

// enqueueThumbnail is fire-and-forget: the upload already succeeded
func (s *CatalogService) enqueueThumbnail(ctx context.Context, version *models.ModelVersion) {
	if _, err := s.queue.Enqueue(ctx, models.TargetModelVersion, version.ID, version.ContentHash); err != nil {
		s.log.Error("failed to enqueue thumbnail job",
			"version_id", version.ID,
			"content_hash", version.ContentHash,
			"error", err,
		)
	}
}

// patchableModel is the merge-patch surface of a model; identifiers and
// timestamps are not patchable
type patchableModel struct {
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata"`
}
