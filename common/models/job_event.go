package models

import (
	"time"

	"github.com/google/uuid"
)

// JobEventType classifies an audit record of a job state transition
type JobEventType string

const (
	JobEventCreated      JobEventType = "created"
	JobEventClaimed      JobEventType = "claimed"
	JobEventCompleted    JobEventType = "completed"
	JobEventFailed       JobEventType = "failed"
	JobEventRetried      JobEventType = "retried"
	JobEventDeadLettered JobEventType = "dead_lettered"
)

// ThumbnailJobEvent is an immutable audit record of a job state transition.
// Events are append-only, never mutated or deleted, and carry no control flow.
type ThumbnailJobEvent struct {
	ID        uuid.UUID      `json:"id"`
	JobID     uuid.UUID      `json:"job_id"`
	EventType JobEventType   `json:"event_type"`
	Message   string         `json:"message"`
	Error     *string        `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewJobEvent creates an audit record for a job transition
func NewJobEvent(jobID uuid.UUID, eventType JobEventType, message string) *ThumbnailJobEvent {
	return &ThumbnailJobEvent{
		ID:        uuid.New(),
		JobID:     jobID,
		EventType: eventType,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}

// WithError attaches an error message to the event
func (e *ThumbnailJobEvent) WithError(errMsg string) *ThumbnailJobEvent {
	e.Error = &errMsg
	return e
}

// WithMetadata attaches metadata to the event
func (e *ThumbnailJobEvent) WithMetadata(md map[string]any) *ThumbnailJobEvent {
	e.Metadata = md
	return e
}
