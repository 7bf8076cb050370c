package repository

import (
	"context"

	"tkgm-sync-service/internal/domain/entity"
)

// ArchiveRepository defines the interface for the raw response archive. The
// archive is best-effort observability storage; failures must never abort a
// sync.
type ArchiveRepository interface {
	StoreResponse(ctx context.Context, typeName string, body []byte, meta entity.FetchMeta) error
}
