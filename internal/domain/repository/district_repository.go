package repository

import (
	"context"

	"tkgm-sync-service/internal/domain/entity"
)

// DistrictRepository defines the interface for district persistence
type DistrictRepository interface {
	UpsertBatch(ctx context.Context, districts []*entity.District) (int, error)
}
