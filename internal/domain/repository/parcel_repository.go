package repository

import (
	"context"

	"tkgm-sync-service/internal/domain/entity"
)

// ParcelRepository defines the interface for parcel persistence
type ParcelRepository interface {
	// UpsertBatch persists a batch of parcels in a single transaction using
	// natural-key conflict resolution and returns the number of rows that
	// reached a persisted state. Per-record failures are dead-lettered and do
	// not abort the batch.
	UpsertBatch(ctx context.Context, parcels []*entity.Parcel) (int, error)
}
