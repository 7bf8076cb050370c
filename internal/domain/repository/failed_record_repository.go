package repository

import (
	"context"

	"tkgm-sync-service/internal/domain/entity"
)

// FailedRecordRepository defines the interface for the dead-letter store.
// Every fetched entity that fails decoding, transformation or persistence
// must end up here rather than being silently discarded.
type FailedRecordRepository interface {
	// Record stores a failed entity. Recording the same (entityType,
	// entityID) again while it is still failed updates the retry metadata of
	// the existing row instead of inserting a duplicate.
	Record(ctx context.Context, entityType, entityID string, rawData []byte, cause error) error

	// List returns failed records for a later retry pass. entityType may be
	// empty to list across all types.
	List(ctx context.Context, entityType, status string, limit int) ([]*entity.FailedRecord, error)

	// MarkResolved flags a dead-letter row as successfully retried.
	MarkResolved(ctx context.Context, id uint) error
}
