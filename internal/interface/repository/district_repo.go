package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"tkgm-sync-service/internal/domain/entity"
	"tkgm-sync-service/internal/domain/repository"
	"tkgm-sync-service/pkg/logger"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDistrictRepository implements the DistrictRepository interface
type GormDistrictRepository struct {
	db         *gorm.DB
	failedRepo repository.FailedRecordRepository
	srid       int
	logger     logger.Logger
}

// NewGormDistrictRepository creates a new GORM district repository
func NewGormDistrictRepository(db *gorm.DB, failedRepo repository.FailedRecordRepository, srid int, logger logger.Logger) repository.DistrictRepository {
	return &GormDistrictRepository{
		db:         db,
		failedRepo: failedRepo,
		srid:       srid,
		logger:     logger,
	}
}

// Districts GORM model for database mapping
type Districts struct {
	ID           uint     `gorm:"primaryKey"`
	FID          int64    `gorm:"column:fid"`
	TapuKimlikNo *int64   `gorm:"column:tapukimlikno;uniqueIndex"`
	IlRef        *int64   `gorm:"column:ilref"`
	Ad           *string  `gorm:"column:ad;size:50"`
	Durum        *int64   `gorm:"column:durum"`
	Geom         Geometry `gorm:"column:geom;type:geometry(MultiPolygon,2320)"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName overrides the default table name
func (Districts) TableName() string {
	return "tk_ilce"
}

// UpsertBatch persists all districts in one transaction with a savepoint per
// record, dead-lettering individual failures.
func (r *GormDistrictRepository) UpsertBatch(ctx context.Context, districts []*entity.District) (int, error) {
	if len(districts) == 0 {
		return 0, nil
	}

	saved := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, district := range districts {
			model := &Districts{
				FID:          district.FID,
				TapuKimlikNo: district.TapuKimlikNo,
				IlRef:        district.IlRef,
				Ad:           district.Ad,
				Durum:        district.Durum,
				Geom:         Geometry{WKT: district.GeometryWKT, SRID: r.srid},
			}
			name := fmt.Sprintf("sp_district_%d", i)
			tx.SavePoint(name)

			result := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "tapukimlikno"}},
				DoUpdates: clause.AssignmentColumns([]string{"fid", "ilref", "ad", "durum", "geom", "updated_at"}),
			}).Create(model)

			if result.Error != nil {
				tx.RollbackTo(name)
				r.logger.Error("Failed to persist district", "fid", district.FID, "error", result.Error)
				raw, _ := json.Marshal(district)
				if err := r.failedRepo.Record(ctx, entity.EntityTypeDistrict, strconv.FormatInt(district.FID, 10), raw, result.Error); err != nil {
					r.logger.Error("CRITICAL: LOST DATA, could not write failed district to dead-letter store",
						"fid", district.FID, "cause", result.Error, "error", err)
				}
				continue
			}
			saved++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return saved, nil
}
