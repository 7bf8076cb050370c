package repository

import (
	"context"

	"tkgm-sync-service/internal/domain/entity"
)

// NeighbourhoodRepository defines the interface for neighbourhood persistence
type NeighbourhoodRepository interface {
	UpsertBatch(ctx context.Context, neighbourhoods []*entity.Neighbourhood) (int, error)
}
