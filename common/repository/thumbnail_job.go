package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/modelibr/modelibr/common/db"
	"github.com/modelibr/modelibr/common/models"
)

// ThumbnailJobRepository handles database operations for thumbnail jobs.
// Claiming and finishing are single conditional updates: the WHERE clause is
// the mutual exclusion mechanism across API and worker processes, never a
// read-then-write across two round trips.
type ThumbnailJobRepository struct {
	db *db.DB
}

// NewThumbnailJobRepository creates a new thumbnail job repository
func NewThumbnailJobRepository(database *db.DB) *ThumbnailJobRepository {
	return &ThumbnailJobRepository{db: database}
}

const jobColumns = `id, target_kind, target_id, content_hash, status, attempt_count, last_error, lease_owner, lease_expires_at, created_at, updated_at`

// Create inserts a new job
func (r *ThumbnailJobRepository) Create(ctx context.Context, job *models.ThumbnailJob) error {
	query := `
		INSERT INTO thumbnail_job (id, target_kind, target_id, content_hash, status, attempt_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(
		ctx,
		query,
		job.ID,
		job.TargetKind,
		job.TargetID,
		job.ContentHash,
		job.Status,
		job.AttemptCount,
		job.CreatedAt,
		job.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create thumbnail job: %w", err)
	}

	return nil
}

// GetByID retrieves a job by its ID. Returns (nil, nil) when absent.
func (r *ThumbnailJobRepository) GetByID(ctx context.Context, jobID uuid.UUID) (*models.ThumbnailJob, error) {
	query := `SELECT ` + jobColumns + ` FROM thumbnail_job WHERE id = $1`

	job, err := scanJob(r.db.QueryRow(ctx, query, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get thumbnail job: %w", err)
	}

	return job, nil
}

// Claim atomically selects the oldest eligible job, stamps the worker's lease
// and moves it to Processing. Eligible means Pending, or Processing with an
// expired lease (abandoned by a crashed worker). Returns (nil, nil) when no
// job is eligible. Safe under concurrent callers: SKIP LOCKED guarantees two
// workers racing for the same row cannot both succeed.
func (r *ThumbnailJobRepository) Claim(ctx context.Context, workerID string, leaseDuration time.Duration) (*models.ThumbnailJob, error) {
	query := `
		UPDATE thumbnail_job
		SET status = 'Processing',
		    lease_owner = $1,
		    lease_expires_at = now() + make_interval(secs => $2),
		    updated_at = now()
		WHERE id = (
			SELECT id FROM thumbnail_job
			WHERE status = 'Pending'
			   OR (status = 'Processing' AND lease_expires_at <= now())
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns

	job, err := scanJob(r.db.QueryRow(ctx, query, workerID, leaseDuration.Seconds()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim thumbnail job: %w", err)
	}

	return job, nil
}

// Complete moves a job to Completed, but only while workerID still holds an
// unexpired lease on it. Returns (nil, nil) when the claim no longer holds,
// so a stale worker cannot override a newer claimant's state.
func (r *ThumbnailJobRepository) Complete(ctx context.Context, jobID uuid.UUID, workerID string) (*models.ThumbnailJob, error) {
	query := `
		UPDATE thumbnail_job
		SET status = 'Completed',
		    lease_owner = NULL,
		    lease_expires_at = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'Processing'
		  AND lease_owner = $2
		  AND lease_expires_at > now()
		RETURNING ` + jobColumns

	job, err := scanJob(r.db.QueryRow(ctx, query, jobID, workerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to complete thumbnail job: %w", err)
	}

	return job, nil
}

// Fail records a failed attempt under the same claim conditions as Complete.
// Below the retry ceiling the job returns to Pending; at the ceiling, or when
// permanent is set, it dead-letters. Returns (nil, nil) for a stale claim.
func (r *ThumbnailJobRepository) Fail(ctx context.Context, jobID uuid.UUID, workerID, errMsg string, maxAttempts int, permanent bool) (*models.ThumbnailJob, error) {
	query := `
		UPDATE thumbnail_job
		SET attempt_count = attempt_count + 1,
		    last_error = $3,
		    status = CASE
		        WHEN $4::bool OR attempt_count + 1 >= $5 THEN 'DeadLettered'
		        ELSE 'Pending'
		    END,
		    lease_owner = NULL,
		    lease_expires_at = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'Processing'
		  AND lease_owner = $2
		  AND lease_expires_at > now()
		RETURNING ` + jobColumns

	job, err := scanJob(r.db.QueryRow(ctx, query, jobID, workerID, errMsg, permanent, maxAttempts))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fail thumbnail job: %w", err)
	}

	return job, nil
}

// CountByStatus returns the number of jobs in a given status
func (r *ThumbnailJobRepository) CountByStatus(ctx context.Context, status models.JobStatus) (int64, error) {
	query := `SELECT count(*) FROM thumbnail_job WHERE status = $1`

	var count int64
	if err := r.db.QueryRow(ctx, query, status).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count thumbnail jobs: %w", err)
	}

	return count, nil
}

func scanJob(row pgx.Row) (*models.ThumbnailJob, error) {
	job := &models.ThumbnailJob{}
	err := row.Scan(
		&job.ID,
		&job.TargetKind,
		&job.TargetID,
		&job.ContentHash,
		&job.Status,
		&job.AttemptCount,
		&job.LastError,
		&job.LeaseOwner,
		&job.LeaseExpiresAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return job, nil
}
