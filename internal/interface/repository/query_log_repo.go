package repository

import (
	"context"
	"time"

	"tkgm-sync-service/internal/domain/entity"
	"tkgm-sync-service/internal/domain/repository"
	"tkgm-sync-service/pkg/logger"

	"gorm.io/gorm"
)

// GormQueryLogRepository implements the QueryLogRepository interface
type GormQueryLogRepository struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewGormQueryLogRepository creates a new GORM query log repository
func NewGormQueryLogRepository(db *gorm.DB, logger logger.Logger) repository.QueryLogRepository {
	return &GormQueryLogRepository{
		db:     db,
		logger: logger,
	}
}

// QueryLogs GORM model for database mapping. Append-only; no update or delete
// path exists.
type QueryLogs struct {
	ID                  uint      `gorm:"primaryKey"`
	TypeName            string    `gorm:"column:type_name;size:100;index"`
	URL                 string    `gorm:"column:url;type:text"`
	FeatureCount        int       `gorm:"column:feature_count"`
	IsEmpty             bool      `gorm:"column:is_empty"`
	IsSuccessful        bool      `gorm:"column:is_successful;index"`
	ErrorMessage        string    `gorm:"column:error_message;type:text"`
	HTTPStatusCode      int       `gorm:"column:http_status_code"`
	ResponseSize        int       `gorm:"column:response_size"`
	ExecutionDurationMs int64     `gorm:"column:execution_duration_ms"`
	Notes               string    `gorm:"column:notes;type:text"`
	QueryTime           time.Time `gorm:"column:query_time;index"`
	CreatedAt           time.Time
}

// TableName overrides the default table name
func (QueryLogs) TableName() string {
	return "tk_logs"
}

// Insert appends one audit row for a fetch attempt.
func (r *GormQueryLogRepository) Insert(ctx context.Context, log *entity.QueryLog) error {
	queryTime := log.QueryTime
	if queryTime.IsZero() {
		queryTime = time.Now()
	}
	row := QueryLogs{
		TypeName:            log.TypeName,
		URL:                 log.URL,
		FeatureCount:        log.FeatureCount,
		IsEmpty:             log.IsEmpty,
		IsSuccessful:        log.IsSuccessful,
		ErrorMessage:        log.ErrorMessage,
		HTTPStatusCode:      log.HTTPStatusCode,
		ResponseSize:        log.ResponseSize,
		ExecutionDurationMs: log.ExecutionDuration.Milliseconds(),
		Notes:               log.Notes,
		QueryTime:           queryTime,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}
