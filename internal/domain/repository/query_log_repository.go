package repository

import (
	"context"

	"tkgm-sync-service/internal/domain/entity"
)

// QueryLogRepository defines the interface for the append-only fetch audit log
type QueryLogRepository interface {
	Insert(ctx context.Context, log *entity.QueryLog) error
}
