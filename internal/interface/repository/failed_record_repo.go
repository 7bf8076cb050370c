package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"tkgm-sync-service/internal/domain/entity"
	"tkgm-sync-service/internal/domain/repository"
	"tkgm-sync-service/pkg/gml"
	"tkgm-sync-service/pkg/logger"
	"tkgm-sync-service/pkg/projection"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormFailedRecordRepository implements the FailedRecordRepository interface
type GormFailedRecordRepository struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewGormFailedRecordRepository creates a new GORM failed record repository
func NewGormFailedRecordRepository(db *gorm.DB, logger logger.Logger) repository.FailedRecordRepository {
	return &GormFailedRecordRepository{
		db:     db,
		logger: logger,
	}
}

// FailedRecords GORM model for database mapping. The unique index over
// (entity_type, entity_id, status) makes re-recording the same failure an
// update rather than a duplicate row.
type FailedRecords struct {
	ID           uint       `gorm:"primaryKey"`
	EntityType   string     `gorm:"column:entity_type;size:30;uniqueIndex:idx_failed_identity"`
	EntityID     string     `gorm:"column:entity_id;size:50;uniqueIndex:idx_failed_identity"`
	Status       string     `gorm:"column:status;size:20;uniqueIndex:idx_failed_identity"`
	ErrorType    string     `gorm:"column:error_type;size:50"`
	ErrorMessage string     `gorm:"column:error_message;type:text"`
	RawData      []byte     `gorm:"column:raw_data;type:jsonb"`
	RetryCount   int        `gorm:"column:retry_count;default:0"`
	LastRetryAt  *time.Time `gorm:"column:last_retry_at"`
	ResolvedAt   *time.Time `gorm:"column:resolved_at"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName overrides the default table name
func (FailedRecords) TableName() string {
	return "tk_failed_records"
}

// Record upserts a failure keyed by (entity_type, entity_id, status). A repeat
// failure refreshes the cause and bumps retry_count instead of inserting again.
func (r *GormFailedRecordRepository) Record(ctx context.Context, entityType, entityID string, rawData []byte, cause error) error {
	row := FailedRecords{
		EntityType:   entityType,
		EntityID:     entityID,
		Status:       entity.FailedStatusFailed,
		ErrorType:    classifyError(cause),
		ErrorMessage: cause.Error(),
		RawData:      rawData,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "entity_type"}, {Name: "entity_id"}, {Name: "status"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"error_type":    row.ErrorType,
			"error_message": row.ErrorMessage,
			"raw_data":      row.RawData,
			"retry_count":   gorm.Expr("tk_failed_records.retry_count + 1"),
			"last_retry_at": time.Now(),
			"updated_at":    time.Now(),
		}),
	}).Create(&row).Error
}

// List returns failures filtered by entity type and status, newest first.
func (r *GormFailedRecordRepository) List(ctx context.Context, entityType, status string, limit int) ([]*entity.FailedRecord, error) {
	query := r.db.WithContext(ctx).Model(&FailedRecords{}).Order("updated_at DESC")
	if entityType != "" {
		query = query.Where("entity_type = ?", entityType)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []FailedRecords
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]*entity.FailedRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, &entity.FailedRecord{
			ID:           row.ID,
			EntityType:   row.EntityType,
			EntityID:     row.EntityID,
			Status:       row.Status,
			ErrorType:    row.ErrorType,
			ErrorMessage: row.ErrorMessage,
			RawData:      row.RawData,
			RetryCount:   row.RetryCount,
			LastRetryAt:  row.LastRetryAt,
			ResolvedAt:   row.ResolvedAt,
			CreatedAt:    row.CreatedAt,
			UpdatedAt:    row.UpdatedAt,
		})
	}
	return records, nil
}

// MarkResolved flips a failure to resolved after a successful replay.
func (r *GormFailedRecordRepository) MarkResolved(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Model(&FailedRecords{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      entity.FailedStatusResolved,
			"resolved_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// classifyError buckets a failure cause for triage queries.
func classifyError(cause error) string {
	var transformErr *projection.TransformError
	var geometryErr *gml.GeometryError
	var numErr *strconv.NumError
	switch {
	case errors.As(cause, &transformErr):
		return "TransformError"
	case errors.As(cause, &geometryErr):
		return "GeometryError"
	case errors.As(cause, &numErr):
		return "DecodeError"
	default:
		return "PersistError"
	}
}
