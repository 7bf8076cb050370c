package repository

import (
	"context"
	"errors"
	"time"

	"tkgm-sync-service/internal/domain/entity"
	"tkgm-sync-service/internal/domain/repository"
	"tkgm-sync-service/pkg/logger"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCursorRepository implements the CursorRepository interface
type GormCursorRepository struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewGormCursorRepository creates a new GORM cursor repository
func NewGormCursorRepository(db *gorm.DB, logger logger.Logger) repository.CursorRepository {
	return &GormCursorRepository{
		db:     db,
		logger: logger,
	}
}

// SyncSettings GORM model for database mapping. One row per sync mode; the
// daily quota flag is a row under ModeDailyLimitReached.
type SyncSettings struct {
	ID         uint      `gorm:"primaryKey"`
	ScrapeType string    `gorm:"column:scrape_type;size:50;uniqueIndex"`
	QueryDate  time.Time `gorm:"column:query_date;index"`
	StartIndex int       `gorm:"column:start_index;default:0"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName overrides the default table name
func (SyncSettings) TableName() string {
	return "tk_settings"
}

// Load returns the cursor for a sync mode, or a fresh cursor at defaultDate
// when the mode has never run.
func (r *GormCursorRepository) Load(ctx context.Context, mode string, defaultDate time.Time) (*entity.SyncCursor, error) {
	var row SyncSettings
	result := r.db.WithContext(ctx).Where("scrape_type = ?", mode).First(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			r.logger.Info("No cursor row for mode, starting from default", "mode", mode, "date", defaultDate.Format("2006-01-02"))
			return &entity.SyncCursor{QueryDate: defaultDate, StartIndex: 0}, nil
		}
		return nil, result.Error
	}

	return &entity.SyncCursor{
		QueryDate:  row.QueryDate,
		StartIndex: row.StartIndex,
		UpdatedAt:  row.UpdatedAt,
	}, nil
}

// Save upserts the cursor row for a mode. Date and index go in one statement
// so the cursor can never be half-written.
func (r *GormCursorRepository) Save(ctx context.Context, mode string, cursor *entity.SyncCursor) error {
	row := SyncSettings{
		ScrapeType: mode,
		QueryDate:  cursor.QueryDate,
		StartIndex: cursor.StartIndex,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scrape_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"query_date", "start_index", "updated_at"}),
	}).Create(&row).Error
}

// IsDailyLimitReached reports whether the quota flag row carries today's date.
// A flag from a previous day is stale and ignored.
func (r *GormCursorRepository) IsDailyLimitReached(ctx context.Context) (bool, error) {
	var row SyncSettings
	result := r.db.WithContext(ctx).Where("scrape_type = ?", entity.ModeDailyLimitReached).First(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, result.Error
	}

	y1, m1, d1 := row.QueryDate.Date()
	y2, m2, d2 := time.Now().Date()
	reached := y1 == y2 && m1 == m2 && d1 == d2
	if reached {
		r.logger.Warn("Daily service limit flag is active", "date", row.QueryDate.Format("2006-01-02"))
	}
	return reached, nil
}

// SetDailyLimitReached stamps the quota flag with today's date.
func (r *GormCursorRepository) SetDailyLimitReached(ctx context.Context) error {
	return r.Save(ctx, entity.ModeDailyLimitReached, &entity.SyncCursor{
		QueryDate:  time.Now(),
		StartIndex: 0,
	})
}

// ClearDailyLimit removes the quota flag row (manual intervention).
func (r *GormCursorRepository) ClearDailyLimit(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Where("scrape_type = ?", entity.ModeDailyLimitReached).
		Delete(&SyncSettings{}).Error
}
