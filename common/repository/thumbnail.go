package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/modelibr/modelibr/common/db"
	"github.com/modelibr/modelibr/common/models"
)

// ThumbnailRepository handles database operations for derived artifacts.
// Each target owns at most one thumbnail row; the unique constraint on
// (target_kind, target_id) makes every write an upsert.
type ThumbnailRepository struct {
	db *db.DB
}

// NewThumbnailRepository creates a new thumbnail repository
func NewThumbnailRepository(database *db.DB) *ThumbnailRepository {
	return &ThumbnailRepository{db: database}
}

// SetStatus upserts the target's thumbnail row with a bare status change
func (r *ThumbnailRepository) SetStatus(ctx context.Context, kind models.TargetKind, targetID uuid.UUID, status models.ThumbnailStatus) error {
	query := `
		INSERT INTO thumbnail (id, target_kind, target_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (target_kind, target_id) DO UPDATE
		SET status = EXCLUDED.status, updated_at = now()
	`

	_, err := r.db.Exec(ctx, query, uuid.New(), kind, targetID, status)
	if err != nil {
		return fmt.Errorf("failed to set thumbnail status: %w", err)
	}

	return nil
}

// SetReady upserts the target's thumbnail with the finished artifact,
// replacing any previous artifact wholesale
func (r *ThumbnailRepository) SetReady(ctx context.Context, kind models.TargetKind, targetID uuid.UUID, artifact *models.ArtifactRef) error {
	query := `
		INSERT INTO thumbnail (id, target_kind, target_id, status, relative_path, size_bytes, width, height, created_at, updated_at)
		VALUES ($1, $2, $3, 'Ready', $4, $5, $6, $7, now(), now())
		ON CONFLICT (target_kind, target_id) DO UPDATE
		SET status = 'Ready',
		    relative_path = EXCLUDED.relative_path,
		    size_bytes = EXCLUDED.size_bytes,
		    width = EXCLUDED.width,
		    height = EXCLUDED.height,
		    updated_at = now()
	`

	_, err := r.db.Exec(
		ctx,
		query,
		uuid.New(),
		kind,
		targetID,
		artifact.RelativePath,
		artifact.SizeBytes,
		artifact.Width,
		artifact.Height,
	)
	if err != nil {
		return fmt.Errorf("failed to set thumbnail ready: %w", err)
	}

	return nil
}

// GetByTarget retrieves the target's thumbnail. Returns (nil, nil) when the
// target has no thumbnail row yet.
func (r *ThumbnailRepository) GetByTarget(ctx context.Context, kind models.TargetKind, targetID uuid.UUID) (*models.Thumbnail, error) {
	query := `
		SELECT id, target_kind, target_id, status, coalesce(relative_path, ''), coalesce(size_bytes, 0), coalesce(width, 0), coalesce(height, 0), created_at, updated_at
		FROM thumbnail
		WHERE target_kind = $1 AND target_id = $2
	`

	thumb := &models.Thumbnail{}
	err := r.db.QueryRow(ctx, query, kind, targetID).Scan(
		&thumb.ID,
		&thumb.TargetKind,
		&thumb.TargetID,
		&thumb.Status,
		&thumb.RelativePath,
		&thumb.SizeBytes,
		&thumb.Width,
		&thumb.Height,
		&thumb.CreatedAt,
		&thumb.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get thumbnail: %w", err)
	}

	return thumb, nil
}
