package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/modelibr/modelibr/common/apperrors"
	"github.com/modelibr/modelibr/common/events"
	"github.com/modelibr/modelibr/common/logger"
	"github.com/modelibr/modelibr/common/models"
)

// JobStore is the persistence the queue needs for jobs. Claim, Complete and
// Fail must be atomic conditional updates; (nil, nil) from Complete or Fail
// means the caller's claim no longer holds.
type JobStore interface {
	Create(ctx context.Context, job *models.ThumbnailJob) error
	GetByID(ctx context.Context, jobID uuid.UUID) (*models.ThumbnailJob, error)
	Claim(ctx context.Context, workerID string, leaseDuration time.Duration) (*models.ThumbnailJob, error)
	Complete(ctx context.Context, jobID uuid.UUID, workerID string) (*models.ThumbnailJob, error)
	Fail(ctx context.Context, jobID uuid.UUID, workerID, errMsg string, maxAttempts int, permanent bool) (*models.ThumbnailJob, error)
}

// EventStore appends job audit events
type EventStore interface {
	Create(ctx context.Context, event *models.ThumbnailJobEvent) error
}

// ThumbnailStore maintains the externally visible artifact status per target
type ThumbnailStore interface {
	SetStatus(ctx context.Context, kind models.TargetKind, targetID uuid.UUID, status models.ThumbnailStatus) error
	SetReady(ctx context.Context, kind models.TargetKind, targetID uuid.UUID, artifact *models.ArtifactRef) error
}

// TargetResolver checks that a job's target entity still exists. A missing
// target is a permanent failure: the job dead-letters instead of retrying.
type TargetResolver interface {
	TargetExists(ctx context.Context, kind models.TargetKind, targetID uuid.UUID) (bool, error)
}

// FinishResult is a worker's report on a claimed job
type FinishResult struct {
	Success  bool
	Artifact *models.ArtifactRef
	Error    string
}

// ThumbnailQueue serializes "which job is next" across worker processes and
// encodes the bounded-retry failure policy. All mutual exclusion lives in the
// job store's conditional updates; the queue holds no in-process locks.
type ThumbnailQueue struct {
	jobs       JobStore
	jobEvents  EventStore
	thumbnails ThumbnailStore
	targets    TargetResolver
	dispatcher *events.Dispatcher
	log        *logger.Logger

	maxAttempts   int
	leaseDuration time.Duration
}

// New creates a thumbnail queue
func New(
	jobs JobStore,
	jobEvents EventStore,
	thumbnails ThumbnailStore,
	targets TargetResolver,
	dispatcher *events.Dispatcher,
	log *logger.Logger,
	maxAttempts int,
	leaseDuration time.Duration,
) *ThumbnailQueue {
	return &ThumbnailQueue{
		jobs:          jobs,
		jobEvents:     jobEvents,
		thumbnails:    thumbnails,
		targets:       targets,
		dispatcher:    dispatcher,
		log:           log,
		maxAttempts:   maxAttempts,
		leaseDuration: leaseDuration,
	}
}

// Enqueue creates a Pending job for the target and marks its thumbnail
// status Pending
func (q *ThumbnailQueue) Enqueue(ctx context.Context, kind models.TargetKind, targetID uuid.UUID, contentHash string) (*models.ThumbnailJob, error) {
	job := models.NewThumbnailJob(kind, targetID, contentHash)

	if err := q.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue thumbnail job: %w", err)
	}

	if err := q.thumbnails.SetStatus(ctx, kind, targetID, models.ThumbnailPending); err != nil {
		q.log.Warn("failed to mark thumbnail pending", "job_id", job.ID, "error", err)
	}

	q.logEvent(ctx, models.NewJobEvent(job.ID, models.JobEventCreated, "job enqueued"))

	q.log.Info("thumbnail job enqueued",
		"job_id", job.ID,
		"target_kind", kind,
		"target_id", targetID,
		"content_hash", contentHash,
	)

	return job, nil
}

// Dequeue claims the oldest eligible job for workerID. Returns (nil, nil)
// when no job is eligible; the caller owns the polling interval.
func (q *ThumbnailQueue) Dequeue(ctx context.Context, workerID string) (*models.ThumbnailJob, error) {
	job, err := q.jobs.Claim(ctx, workerID, q.leaseDuration)
	if err != nil {
		return nil, fmt.Errorf("dequeue thumbnail job: %w", err)
	}
	if job == nil {
		return nil, nil
	}

	if err := q.thumbnails.SetStatus(ctx, job.TargetKind, job.TargetID, models.ThumbnailProcessing); err != nil {
		q.log.Warn("failed to mark thumbnail processing", "job_id", job.ID, "error", err)
	}

	q.logEvent(ctx, models.NewJobEvent(job.ID, models.JobEventClaimed, "claimed by "+workerID).
		WithMetadata(map[string]any{"worker_id": workerID, "attempt": job.AttemptCount + 1}))

	q.log.Info("thumbnail job claimed",
		"job_id", job.ID,
		"worker_id", workerID,
		"lease_expires_at", job.LeaseExpiresAt,
	)

	return job, nil
}

// Finish applies a worker's report. The job must still be Processing under an
// unexpired lease held by workerID; otherwise the report is stale and is
// rejected with an invalid-state error so it cannot corrupt a newer
// claimant's attempt.
func (q *ThumbnailQueue) Finish(ctx context.Context, jobID uuid.UUID, workerID string, result FinishResult) error {
	if result.Success {
		return q.finishSuccess(ctx, jobID, workerID, result.Artifact)
	}
	return q.finishFailure(ctx, jobID, workerID, result.Error)
}

func (q *ThumbnailQueue) finishSuccess(ctx context.Context, jobID uuid.UUID, workerID string, artifact *models.ArtifactRef) error {
	if artifact == nil {
		return apperrors.New(apperrors.KindValidation, "success report requires an artifact reference")
	}

	job, err := q.jobs.Complete(ctx, jobID, workerID)
	if err != nil {
		return fmt.Errorf("complete thumbnail job: %w", err)
	}
	if job == nil {
		return q.staleClaimError(ctx, jobID, workerID)
	}

	if err := q.thumbnails.SetReady(ctx, job.TargetKind, job.TargetID, artifact); err != nil {
		// The job is already Completed; surface the error so the worker can
		// retry the report, but do not attempt to roll the job back.
		return fmt.Errorf("record thumbnail artifact: %w", err)
	}

	q.logEvent(ctx, models.NewJobEvent(job.ID, models.JobEventCompleted, "thumbnail generated").
		WithMetadata(map[string]any{
			"relative_path": artifact.RelativePath,
			"size_bytes":    artifact.SizeBytes,
			"width":         artifact.Width,
			"height":        artifact.Height,
		}))

	q.dispatcher.Dispatch(ctx, []events.Event{events.NewEvent(job, models.ThumbnailReady)})

	q.log.Info("thumbnail job completed",
		"job_id", job.ID,
		"worker_id", workerID,
		"artifact", artifact.RelativePath,
	)

	return nil
}

func (q *ThumbnailQueue) finishFailure(ctx context.Context, jobID uuid.UUID, workerID, errMsg string) error {
	permanent, err := q.targetGone(ctx, jobID)
	if err != nil {
		return err
	}

	job, err := q.jobs.Fail(ctx, jobID, workerID, errMsg, q.maxAttempts, permanent)
	if err != nil {
		return fmt.Errorf("fail thumbnail job: %w", err)
	}
	if job == nil {
		return q.staleClaimError(ctx, jobID, workerID)
	}

	q.logEvent(ctx, models.NewJobEvent(job.ID, models.JobEventFailed, "attempt failed").WithError(errMsg).
		WithMetadata(map[string]any{"attempt": job.AttemptCount, "worker_id": workerID}))

	if job.Status == models.JobStatusDeadLettered {
		if err := q.thumbnails.SetStatus(ctx, job.TargetKind, job.TargetID, models.ThumbnailFailed); err != nil {
			q.log.Warn("failed to mark thumbnail failed", "job_id", job.ID, "error", err)
		}

		q.logEvent(ctx, models.NewJobEvent(job.ID, models.JobEventDeadLettered,
			fmt.Sprintf("dead-lettered after %d attempts", job.AttemptCount)).WithError(errMsg))

		q.dispatcher.Dispatch(ctx, []events.Event{events.NewEvent(job, models.ThumbnailFailed)})

		q.log.Warn("thumbnail job dead-lettered",
			"job_id", job.ID,
			"attempts", job.AttemptCount,
			"permanent", permanent,
			"error", errMsg,
		)
		return nil
	}

	q.logEvent(ctx, models.NewJobEvent(job.ID, models.JobEventRetried,
		fmt.Sprintf("requeued, attempt %d of %d", job.AttemptCount, q.maxAttempts)))

	q.log.Info("thumbnail job requeued",
		"job_id", job.ID,
		"attempts", job.AttemptCount,
		"error", errMsg,
	)

	return nil
}

// targetGone reports whether the job's target entity no longer exists
func (q *ThumbnailQueue) targetGone(ctx context.Context, jobID uuid.UUID) (bool, error) {
	job, err := q.jobs.GetByID(ctx, jobID)
	if err != nil {
		return false, fmt.Errorf("load thumbnail job: %w", err)
	}
	if job == nil {
		return false, apperrors.Newf(apperrors.KindNotFound, "thumbnail job not found: %s", jobID)
	}

	exists, err := q.targets.TargetExists(ctx, job.TargetKind, job.TargetID)
	if err != nil {
		// Resolution trouble is not proof the target is gone; treat the
		// failure as transient and let the retry policy decide.
		q.log.Warn("target resolution failed", "job_id", jobID, "error", err)
		return false, nil
	}
	return !exists, nil
}

// staleClaimError distinguishes a missing job from a reclaimed or finished one
func (q *ThumbnailQueue) staleClaimError(ctx context.Context, jobID uuid.UUID, workerID string) error {
	job, err := q.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load thumbnail job: %w", err)
	}
	if job == nil {
		return apperrors.Newf(apperrors.KindNotFound, "thumbnail job not found: %s", jobID)
	}

	q.log.Warn("stale finish report discarded",
		"job_id", jobID,
		"worker_id", workerID,
		"status", job.Status,
		"lease_owner", job.LeaseOwner,
	)

	return apperrors.Newf(apperrors.KindInvalidState,
		"job %s is not processing under worker %s (status %s)", jobID, workerID, job.Status)
}

// logEvent appends an audit record for a job. It never fails the transition
// that produced it: write errors are logged and swallowed.
func (q *ThumbnailQueue) logEvent(ctx context.Context, event *models.ThumbnailJobEvent) {
	if err := q.jobEvents.Create(ctx, event); err != nil {
		q.log.Warn("failed to append job event",
			"job_id", event.JobID,
			"event_type", event.EventType,
			"error", err,
		)
	}
}
