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

// GormNeighbourhoodRepository implements the NeighbourhoodRepository interface
type GormNeighbourhoodRepository struct {
	db         *gorm.DB
	failedRepo repository.FailedRecordRepository
	srid       int
	logger     logger.Logger
}

// NewGormNeighbourhoodRepository creates a new GORM neighbourhood repository
func NewGormNeighbourhoodRepository(db *gorm.DB, failedRepo repository.FailedRecordRepository, srid int, logger logger.Logger) repository.NeighbourhoodRepository {
	return &GormNeighbourhoodRepository{
		db:         db,
		failedRepo: failedRepo,
		srid:       srid,
		logger:     logger,
	}
}

// Neighbourhoods GORM model for database mapping
type Neighbourhoods struct {
	ID                uint       `gorm:"primaryKey"`
	FID               int64      `gorm:"column:fid"`
	TapuKimlikNo      *int64     `gorm:"column:tapukimlikno;uniqueIndex"`
	IlceRef           *int64     `gorm:"column:ilceref"`
	Durum             *int64     `gorm:"column:durum"`
	Tip               *int64     `gorm:"column:tip"`
	TapuMahalleAd     *string    `gorm:"column:tapumahallead;size:50"`
	KadastroMahalleAd *string    `gorm:"column:kadastromahallead;size:50"`
	SistemKayitTarihi *time.Time `gorm:"column:sistemkayittarihi"`
	Geom              Geometry   `gorm:"column:geom;type:geometry(MultiPolygon,2320)"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName overrides the default table name
func (Neighbourhoods) TableName() string {
	return "tk_mahalle"
}

// UpsertBatch persists all neighbourhoods in one transaction with a savepoint
// per record, dead-lettering individual failures.
func (r *GormNeighbourhoodRepository) UpsertBatch(ctx context.Context, neighbourhoods []*entity.Neighbourhood) (int, error) {
	if len(neighbourhoods) == 0 {
		return 0, nil
	}

	saved := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, neighbourhood := range neighbourhoods {
			model := &Neighbourhoods{
				FID:               neighbourhood.FID,
				TapuKimlikNo:      neighbourhood.TapuKimlikNo,
				IlceRef:           neighbourhood.IlceRef,
				Durum:             neighbourhood.Durum,
				Tip:               neighbourhood.Tip,
				TapuMahalleAd:     neighbourhood.TapuMahalleAd,
				KadastroMahalleAd: neighbourhood.KadastroMahalleAd,
				SistemKayitTarihi: neighbourhood.SistemKayitTarihi,
				Geom:              Geometry{WKT: neighbourhood.GeometryWKT, SRID: r.srid},
			}
			name := fmt.Sprintf("sp_neighbourhood_%d", i)
			tx.SavePoint(name)

			result := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "tapukimlikno"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"fid", "ilceref", "durum", "tip", "tapumahallead",
					"kadastromahallead", "sistemkayittarihi", "geom", "updated_at",
				}),
			}).Create(model)

			if result.Error != nil {
				tx.RollbackTo(name)
				r.logger.Error("Failed to persist neighbourhood", "fid", neighbourhood.FID, "error", result.Error)
				raw, _ := json.Marshal(neighbourhood)
				if err := r.failedRepo.Record(ctx, entity.EntityTypeNeighbourhood, strconv.FormatInt(neighbourhood.FID, 10), raw, result.Error); err != nil {
					r.logger.Error("CRITICAL: LOST DATA, could not write failed neighbourhood to dead-letter store",
						"fid", neighbourhood.FID, "cause", result.Error, "error", err)
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
