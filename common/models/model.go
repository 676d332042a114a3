package models

import (
	"time"

	"github.com/google/uuid"
)

// Model is a catalog entry for a 3D asset. Binary content lives in the
// content store; a model only references hashes through its versions.
type Model struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewModel creates a catalog entry named after the uploaded file
func NewModel(name string) *Model {
	now := time.Now().UTC()
	return &Model{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ModelVersion binds a model to one content record. Version numbers are
// assigned sequentially per model; at most one version is active.
type ModelVersion struct {
	ID            uuid.UUID `json:"id"`
	ModelID       uuid.UUID `json:"model_id"`
	VersionNumber int       `json:"version_number"`
	ContentHash   string    `json:"content_hash"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewModelVersion creates a version record for a resolved content hash
func NewModelVersion(modelID uuid.UUID, versionNumber int, contentHash string, active bool) *ModelVersion {
	return &ModelVersion{
		ID:            uuid.New(),
		ModelID:       modelID,
		VersionNumber: versionNumber,
		ContentHash:   contentHash,
		IsActive:      active,
		CreatedAt:     time.Now().UTC(),
	}
}
