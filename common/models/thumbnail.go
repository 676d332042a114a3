package models

import (
	"time"

	"github.com/google/uuid"
)

// ThumbnailStatus is the externally visible state of a derived artifact
type ThumbnailStatus string

const (
	ThumbnailPending    ThumbnailStatus = "Pending"
	ThumbnailProcessing ThumbnailStatus = "Processing"
	ThumbnailReady      ThumbnailStatus = "Ready"
	ThumbnailFailed     ThumbnailStatus = "Failed"
)

// Thumbnail is the derived artifact of a completed job. Each target owns at
// most one; it is replaced wholesale on successful regeneration.
type Thumbnail struct {
	ID           uuid.UUID       `json:"id"`
	TargetKind   TargetKind      `json:"target_kind"`
	TargetID     uuid.UUID       `json:"target_id"`
	Status       ThumbnailStatus `json:"status"`
	RelativePath string          `json:"relative_path,omitempty"`
	SizeBytes    int64           `json:"size_bytes,omitempty"`
	Width        int             `json:"width,omitempty"`
	Height       int             `json:"height,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ArtifactRef describes a finished artifact as reported by a worker
type ArtifactRef struct {
	RelativePath string `json:"relative_path"`
	SizeBytes    int64  `json:"size_bytes"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}
