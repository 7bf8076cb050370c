package repository

import (
	"context"

	"tkgm-sync-service/internal/domain/entity"
)

// StatsRepository defines the interface for database statistics snapshots
type StatsRepository interface {
	Collect(ctx context.Context) (*entity.DBStats, error)
}
