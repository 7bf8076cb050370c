package repository

import (
	"context"
	"time"

	"tkgm-sync-service/internal/domain/entity"
	"tkgm-sync-service/internal/domain/repository"

	"gorm.io/gorm"
)

// GormStatsRepository implements the StatsRepository interface
type GormStatsRepository struct {
	db *gorm.DB
}

// NewGormStatsRepository creates a new GORM stats repository
func NewGormStatsRepository(db *gorm.DB) repository.StatsRepository {
	return &GormStatsRepository{db: db}
}

// Collect counts rows across the cadastre tables.
func (r *GormStatsRepository) Collect(ctx context.Context) (*entity.DBStats, error) {
	stats := &entity.DBStats{CollectedAt: time.Now()}

	counts := []struct {
		dst   *int64
		query *gorm.DB
	}{
		{&stats.Parcels, r.db.WithContext(ctx).Model(&Parcels{})},
		{&stats.Districts, r.db.WithContext(ctx).Model(&Districts{})},
		{&stats.Neighbourhoods, r.db.WithContext(ctx).Model(&Neighbourhoods{})},
		{&stats.FailedOpen, r.db.WithContext(ctx).Model(&FailedRecords{}).Where("status = ?", entity.FailedStatusFailed)},
		{&stats.FailedResolved, r.db.WithContext(ctx).Model(&FailedRecords{}).Where("status = ?", entity.FailedStatusResolved)},
		{&stats.QueryLogs, r.db.WithContext(ctx).Model(&QueryLogs{})},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dst).Error; err != nil {
			return nil, err
		}
	}

	return stats, nil
}
