package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/modelibr/modelibr/common/apperrors"
	"github.com/modelibr/modelibr/common/db"
	"github.com/modelibr/modelibr/common/models"
)

// ModelRepository handles database operations for the model catalog
type ModelRepository struct {
	db *db.DB
}

// NewModelRepository creates a new model repository
func NewModelRepository(database *db.DB) *ModelRepository {
	return &ModelRepository{db: database}
}

// Create inserts a new model
func (r *ModelRepository) Create(ctx context.Context, model *models.Model) error {
	query := `
		INSERT INTO model (id, name, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Exec(ctx, query, model.ID, model.Name, model.Metadata, model.CreatedAt, model.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create model: %w", err)
	}

	return nil
}

// GetByID retrieves a model by its ID
func (r *ModelRepository) GetByID(ctx context.Context, modelID uuid.UUID) (*models.Model, error) {
	query := `
		SELECT id, name, metadata, created_at, updated_at
		FROM model
		WHERE id = $1
	`

	model := &models.Model{}
	err := r.db.QueryRow(ctx, query, modelID).Scan(
		&model.ID,
		&model.Name,
		&model.Metadata,
		&model.CreatedAt,
		&model.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.KindNotFound, "model not found: %s", modelID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", err)
	}

	return model, nil
}

// List retrieves models, newest first, optionally filtered by a name substring
func (r *ModelRepository) List(ctx context.Context, search string, limit int) ([]*models.Model, error) {
	query := `
		SELECT id, name, metadata, created_at, updated_at
		FROM model
		WHERE $1 = '' OR name ILIKE '%' || $1 || '%'
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, search, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	var result []*models.Model
	for rows.Next() {
		model := &models.Model{}
		err := rows.Scan(
			&model.ID,
			&model.Name,
			&model.Metadata,
			&model.CreatedAt,
			&model.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		result = append(result, model)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating models: %w", err)
	}

	return result, nil
}

// Update persists a model's name and metadata
func (r *ModelRepository) Update(ctx context.Context, model *models.Model) error {
	query := `
		UPDATE model
		SET name = $2, metadata = $3, updated_at = now()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, model.ID, model.Name, model.Metadata)
	if err != nil {
		return fmt.Errorf("failed to update model: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.Newf(apperrors.KindNotFound, "model not found: %s", model.ID)
	}

	return nil
}

// CreateVersion inserts a model version. When the version is active, any
// previously active version of the model is deactivated in the same
// transaction.
func (r *ModelRepository) CreateVersion(ctx context.Context, version *models.ModelVersion) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if version.IsActive {
		deactivate := `UPDATE model_version SET is_active = false WHERE model_id = $1 AND is_active`
		if _, err := tx.Exec(ctx, deactivate, version.ModelID); err != nil {
			return fmt.Errorf("failed to deactivate versions: %w", err)
		}
	}

	insert := `
		INSERT INTO model_version (id, model_id, version_number, content_hash, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = tx.Exec(
		ctx,
		insert,
		version.ID,
		version.ModelID,
		version.VersionNumber,
		version.ContentHash,
		version.IsActive,
		version.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create model version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit model version: %w", err)
	}

	return nil
}

// NextVersionNumber returns the next sequential version number for a model
func (r *ModelRepository) NextVersionNumber(ctx context.Context, modelID uuid.UUID) (int, error) {
	query := `SELECT coalesce(max(version_number), 0) + 1 FROM model_version WHERE model_id = $1`

	var next int
	if err := r.db.QueryRow(ctx, query, modelID).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to get next version number: %w", err)
	}

	return next, nil
}

// ListVersions retrieves all versions of a model, oldest first
func (r *ModelRepository) ListVersions(ctx context.Context, modelID uuid.UUID) ([]*models.ModelVersion, error) {
	query := `
		SELECT id, model_id, version_number, content_hash, is_active, created_at
		FROM model_version
		WHERE model_id = $1
		ORDER BY version_number
	`

	rows, err := r.db.Query(ctx, query, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list model versions: %w", err)
	}
	defer rows.Close()

	var versions []*models.ModelVersion
	for rows.Next() {
		version := &models.ModelVersion{}
		err := rows.Scan(
			&version.ID,
			&version.ModelID,
			&version.VersionNumber,
			&version.ContentHash,
			&version.IsActive,
			&version.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model version: %w", err)
		}
		versions = append(versions, version)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating model versions: %w", err)
	}

	return versions, nil
}

// GetActiveVersion retrieves the model's active version. Returns (nil, nil)
// when the model has no active version.
func (r *ModelRepository) GetActiveVersion(ctx context.Context, modelID uuid.UUID) (*models.ModelVersion, error) {
	query := `
		SELECT id, model_id, version_number, content_hash, is_active, created_at
		FROM model_version
		WHERE model_id = $1 AND is_active
	`

	version := &models.ModelVersion{}
	err := r.db.QueryRow(ctx, query, modelID).Scan(
		&version.ID,
		&version.ModelID,
		&version.VersionNumber,
		&version.ContentHash,
		&version.IsActive,
		&version.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active version: %w", err)
	}

	return version, nil
}

// VersionExists reports whether a model version row exists
func (r *ModelRepository) VersionExists(ctx context.Context, versionID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM model_version WHERE id = $1)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, versionID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check model version existence: %w", err)
	}

	return exists, nil
}
