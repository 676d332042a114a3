package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/modelibr/modelibr/common/db"
	"github.com/modelibr/modelibr/common/models"
)

// JobEventRepository handles the append-only audit trail of job transitions
type JobEventRepository struct {
	db *db.DB
}

// NewJobEventRepository creates a new job event repository
func NewJobEventRepository(database *db.DB) *JobEventRepository {
	return &JobEventRepository{db: database}
}

// Create appends an event. Events are never updated or deleted.
func (r *JobEventRepository) Create(ctx context.Context, event *models.ThumbnailJobEvent) error {
	query := `
		INSERT INTO thumbnail_job_event (id, job_id, event_type, message, error, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(
		ctx,
		query,
		event.ID,
		event.JobID,
		event.EventType,
		event.Message,
		event.Error,
		event.Metadata,
		event.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create job event: %w", err)
	}

	return nil
}

// ListByJob retrieves the audit trail of a job, oldest first
func (r *JobEventRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*models.ThumbnailJobEvent, error) {
	query := `
		SELECT id, job_id, event_type, message, error, metadata, created_at
		FROM thumbnail_job_event
		WHERE job_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list job events: %w", err)
	}
	defer rows.Close()

	var events []*models.ThumbnailJobEvent
	for rows.Next() {
		event := &models.ThumbnailJobEvent{}
		err := rows.Scan(
			&event.ID,
			&event.JobID,
			&event.EventType,
			&event.Message,
			&event.Error,
			&event.Metadata,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job events: %w", err)
	}

	return events, nil
}
