package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/modelibr/modelibr/common/apperrors"
	"github.com/modelibr/modelibr/common/db"
	"github.com/modelibr/modelibr/common/models"
)

// FileRepository handles database operations for content records
type FileRepository struct {
	db *db.DB
}

// NewFileRepository creates a new file repository
func NewFileRepository(database *db.DB) *FileRepository {
	return &FileRepository{db: database}
}

// Create inserts a new content record. A concurrent insert of the same hash
// loses to the primary key constraint and is reported as a conflict error so
// the caller can re-resolve to the winner's record.
func (r *FileRepository) Create(ctx context.Context, file *models.File) error {
	query := `
		INSERT INTO file (content_hash, stored_name, relative_path, size_bytes, mime_type, original_name, category, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(
		ctx,
		query,
		file.ContentHash,
		file.StoredName,
		file.RelativePath,
		file.SizeBytes,
		file.MimeType,
		file.OriginalName,
		file.Category,
		file.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Wrap(apperrors.KindConflict, "content hash already exists", err)
		}
		return fmt.Errorf("failed to create file record: %w", err)
	}

	return nil
}

// GetByHash retrieves a content record by its hash. Returns (nil, nil) when
// no record exists; a lookup miss is the normal path for novel content.
func (r *FileRepository) GetByHash(ctx context.Context, contentHash string) (*models.File, error) {
	query := `
		SELECT content_hash, stored_name, relative_path, size_bytes, mime_type, original_name, category, created_at
		FROM file
		WHERE content_hash = $1
	`

	file := &models.File{}
	err := r.db.QueryRow(ctx, query, contentHash).Scan(
		&file.ContentHash,
		&file.StoredName,
		&file.RelativePath,
		&file.SizeBytes,
		&file.MimeType,
		&file.OriginalName,
		&file.Category,
		&file.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file record: %w", err)
	}

	return file, nil
}

// Delete hard-deletes a content record. Used to purge orphaned records and
// for recycle-bin permanent deletes.
func (r *FileRepository) Delete(ctx context.Context, contentHash string) error {
	query := `DELETE FROM file WHERE content_hash = $1`

	tag, err := r.db.Exec(ctx, query, contentHash)
	if err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.Newf(apperrors.KindNotFound, "file record not found: %s", contentHash)
	}

	return nil
}

// HasReferences reports whether any model version still references the hash
func (r *FileRepository) HasReferences(ctx context.Context, contentHash string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM model_version WHERE content_hash = $1)`

	var referenced bool
	if err := r.db.QueryRow(ctx, query, contentHash).Scan(&referenced); err != nil {
		return false, fmt.Errorf("failed to check file references: %w", err)
	}

	return referenced, nil
}

// ListByCategory lists content records of a category, newest first
func (r *FileRepository) ListByCategory(ctx context.Context, category models.FileCategory, limit int) ([]*models.File, error) {
	query := `
		SELECT content_hash, stored_name, relative_path, size_bytes, mime_type, original_name, category, created_at
		FROM file
		WHERE category = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, category, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list file records: %w", err)
	}
	defer rows.Close()

	var files []*models.File
	for rows.Next() {
		file := &models.File{}
		err := rows.Scan(
			&file.ContentHash,
			&file.StoredName,
			&file.RelativePath,
			&file.SizeBytes,
			&file.MimeType,
			&file.OriginalName,
			&file.Category,
			&file.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file record: %w", err)
		}
		files = append(files, file)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating file records: %w", err)
	}

	return files, nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint error
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
