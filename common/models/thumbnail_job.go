package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a thumbnail job
type JobStatus string

const (
	JobStatusPending      JobStatus = "Pending"
	JobStatusProcessing   JobStatus = "Processing"
	JobStatusCompleted    JobStatus = "Completed"
	JobStatusDeadLettered JobStatus = "DeadLettered"
)

// TargetKind identifies which entity a job's derived artifact belongs to
type TargetKind string

const (
	TargetModelVersion TargetKind = "model-version"
	TargetTextureSet   TargetKind = "texture-set"
	TargetSound        TargetKind = "sound"
)

// ParseTargetKind validates a target kind string from the wire
func ParseTargetKind(s string) (TargetKind, bool) {
	switch TargetKind(s) {
	case TargetModelVersion:
		return TargetModelVersion, true
	case TargetTextureSet:
		return TargetTextureSet, true
	case TargetSound:
		return TargetSound, true
	}
	return "", false
}

// ThumbnailJob is one unit of asynchronous derived-artifact work.
//
// State machine:
//
//	Pending --claim--> Processing
//	Processing --complete--> Completed                       (terminal)
//	Processing --fail, attempts < max--> Pending             (attempt_count++)
//	Processing --fail, attempts >= max--> DeadLettered       (terminal)
//	Processing --lease expired--> reclaimable by any worker
//
// The repository expresses claim and finish as single conditional updates;
// the methods below are the reference transition logic used by in-memory
// implementations and tests.
type ThumbnailJob struct {
	ID             uuid.UUID  `json:"id"`
	TargetKind     TargetKind `json:"target_kind"`
	TargetID       uuid.UUID  `json:"target_id"`
	ContentHash    string     `json:"content_hash"`
	Status         JobStatus  `json:"status"`
	AttemptCount   int        `json:"attempt_count"`
	LastError      *string    `json:"last_error,omitempty"`
	LeaseOwner     *string    `json:"lease_owner,omitempty"`
	LeaseExpiresAt *time.Time `json:"lease_expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewThumbnailJob creates a Pending job for the given target
func NewThumbnailJob(kind TargetKind, targetID uuid.UUID, contentHash string) *ThumbnailJob {
	now := time.Now().UTC()
	return &ThumbnailJob{
		ID:          uuid.New(),
		TargetKind:  kind,
		TargetID:    targetID,
		ContentHash: contentHash,
		Status:      JobStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Claimable reports whether the job may be handed to a worker: either Pending,
// or Processing with an expired lease (abandoned by a crashed worker)
func (j *ThumbnailJob) Claimable(now time.Time) bool {
	if j.Status == JobStatusPending {
		return true
	}
	return j.Status == JobStatusProcessing && j.LeaseExpired(now)
}

// LeaseExpired reports whether the current lease, if any, has lapsed
func (j *ThumbnailJob) LeaseExpired(now time.Time) bool {
	return j.LeaseExpiresAt == nil || !j.LeaseExpiresAt.After(now)
}

// HeldBy reports whether workerID holds an unexpired lease on the job
func (j *ThumbnailJob) HeldBy(workerID string, now time.Time) bool {
	return j.Status == JobStatusProcessing &&
		j.LeaseOwner != nil && *j.LeaseOwner == workerID &&
		!j.LeaseExpired(now)
}

// Claim stamps the worker's lease and moves the job to Processing
func (j *ThumbnailJob) Claim(workerID string, leaseDuration time.Duration, now time.Time) {
	expires := now.Add(leaseDuration)
	j.Status = JobStatusProcessing
	j.LeaseOwner = &workerID
	j.LeaseExpiresAt = &expires
	j.UpdatedAt = now
}

// Complete moves the job to its successful terminal state
func (j *ThumbnailJob) Complete(now time.Time) {
	j.Status = JobStatusCompleted
	j.LeaseOwner = nil
	j.LeaseExpiresAt = nil
	j.UpdatedAt = now
}

// Fail records a failed attempt. Below the retry ceiling the job returns to
// Pending with its lease cleared; at the ceiling, or when the failure is
// permanent (target entity gone), it dead-letters. Returns true when the job
// reached DeadLettered.
func (j *ThumbnailJob) Fail(errMsg string, maxAttempts int, permanent bool, now time.Time) bool {
	j.AttemptCount++
	j.LastError = &errMsg
	j.LeaseOwner = nil
	j.LeaseExpiresAt = nil
	j.UpdatedAt = now

	if permanent || j.AttemptCount >= maxAttempts {
		j.Status = JobStatusDeadLettered
		return true
	}
	j.Status = JobStatusPending
	return false
}

// Terminal reports whether the job can transition no further
func (j *ThumbnailJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusDeadLettered
}
