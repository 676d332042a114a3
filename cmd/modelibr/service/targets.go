package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/modelibr/modelibr/common/models"
	"github.com/modelibr/modelibr/common/repository"
)

// TargetResolver answers whether a job's target entity still exists. Only
// model versions are created by the catalog; other target kinds are accepted
// on the wire but never resolve, so their jobs dead-letter on first failure.
type TargetResolver struct {
	modelRepo *repository.ModelRepository
}

// NewTargetResolver creates a resolver over the catalog
func NewTargetResolver(modelRepo *repository.ModelRepository) *TargetResolver {
	return &TargetResolver{modelRepo: modelRepo}
}

// TargetExists reports whether the target entity is present
func (r *TargetResolver) TargetExists(ctx context.Context, kind models.TargetKind, targetID uuid.UUID) (bool, error) {
	switch kind {
	case models.TargetModelVersion:
		return r.modelRepo.VersionExists(ctx, targetID)
	default:
		return false, nil
	}
}
