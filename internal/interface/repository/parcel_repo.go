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

// GormParcelRepository implements the ParcelRepository interface
type GormParcelRepository struct {
	db         *gorm.DB
	failedRepo repository.FailedRecordRepository
	srid       int
	logger     logger.Logger
}

// NewGormParcelRepository creates a new GORM parcel repository
func NewGormParcelRepository(db *gorm.DB, failedRepo repository.FailedRecordRepository, srid int, logger logger.Logger) repository.ParcelRepository {
	return &GormParcelRepository{
		db:         db,
		failedRepo: failedRepo,
		srid:       srid,
		logger:     logger,
	}
}

// Parcels GORM model for database mapping
type Parcels struct {
	ID                     uint       `gorm:"primaryKey"`
	FID                    int64      `gorm:"column:fid;index"`
	ParselNo               *int64     `gorm:"column:parselno;index"`
	AdaNo                  *int64     `gorm:"column:adano;index"`
	TapuKimlikNo           *int64     `gorm:"column:tapukimlikno;uniqueIndex:idx_tk_parsel_natural_key"`
	TapuCinsAciklama       *string    `gorm:"column:tapucinsaciklama;type:text"`
	TapuZeminRef           *int64     `gorm:"column:tapuzeminref;uniqueIndex:idx_tk_parsel_natural_key"`
	TapuMahalleRef         *int64     `gorm:"column:tapumahalleref"`
	TapuAlan               *float64   `gorm:"column:tapualan"`
	KadastroAlan           *float64   `gorm:"column:kadastroalan"`
	Tip                    *string    `gorm:"column:tip;size:100"`
	BelirtmeTip            *string    `gorm:"column:belirtmetip;size:100"`
	Durum                  *string    `gorm:"column:durum;size:100"`
	SistemKayitTarihi      *time.Time `gorm:"column:sistemkayittarihi;index"`
	SistemGuncellemeTarihi *time.Time `gorm:"column:sistemguncellemetarihi"`
	OnayDurum              *int64     `gorm:"column:onaydurum"`
	TapuCinsID             *int64     `gorm:"column:tapucinsid"`
	KmDurum                *string    `gorm:"column:kmdurum;size:100"`
	HazineParselDurum      *string    `gorm:"column:hazineparseldurum;size:100"`
	TerkSebep              *string    `gorm:"column:terksebep;size:200"`
	ParselTescilDurum      *string    `gorm:"column:parseltescildurum;size:100"`
	Geom                   Geometry   `gorm:"column:geom;type:geometry(MultiPolygon,2320)"`
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// TableName overrides the default table name
func (Parcels) TableName() string {
	return "tk_parsel"
}

var parcelUpdateColumns = []string{
	"fid", "parselno", "adano", "tapucinsaciklama", "tapumahalleref",
	"tapualan", "kadastroalan", "tip", "belirtmetip", "durum",
	"sistemkayittarihi", "sistemguncellemetarihi", "onaydurum", "tapucinsid",
	"kmdurum", "hazineparseldurum", "terksebep", "parseltescildurum",
	"geom", "updated_at",
}

// UpsertBatch persists all parcels in one transaction. Each record gets its
// own savepoint so a single bad row is rolled back and dead-lettered without
// aborting the rest of the batch.
func (r *GormParcelRepository) UpsertBatch(ctx context.Context, parcels []*entity.Parcel) (int, error) {
	if len(parcels) == 0 {
		return 0, nil
	}

	saved := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, parcel := range parcels {
			model := newParcelModel(parcel, r.srid)
			name := fmt.Sprintf("sp_parcel_%d", i)
			tx.SavePoint(name)

			result := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "tapukimlikno"}, {Name: "tapuzeminref"}},
				DoUpdates: clause.AssignmentColumns(parcelUpdateColumns),
			}).Create(model)

			if result.Error != nil {
				tx.RollbackTo(name)
				r.logger.Error("Failed to persist parcel", "fid", parcel.FID, "error", result.Error)
				r.deadLetter(ctx, parcel, result.Error)
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

func (r *GormParcelRepository) deadLetter(ctx context.Context, parcel *entity.Parcel, cause error) {
	raw, _ := json.Marshal(parcel)
	entityID := strconv.FormatInt(parcel.FID, 10)
	if err := r.failedRepo.Record(ctx, entity.EntityTypeParcel, entityID, raw, cause); err != nil {
		// Last-resort signal: the record is gone if this line is missed.
		r.logger.Error("CRITICAL: LOST DATA, could not write failed parcel to dead-letter store",
			"fid", parcel.FID, "cause", cause, "error", err)
	}
}

func newParcelModel(p *entity.Parcel, srid int) *Parcels {
	return &Parcels{
		FID:                    p.FID,
		ParselNo:               p.ParselNo,
		AdaNo:                  p.AdaNo,
		TapuKimlikNo:           p.TapuKimlikNo,
		TapuCinsAciklama:       p.TapuCinsAciklama,
		TapuZeminRef:           p.TapuZeminRef,
		TapuMahalleRef:         p.TapuMahalleRef,
		TapuAlan:               p.TapuAlan,
		KadastroAlan:           p.KadastroAlan,
		Tip:                    p.Tip,
		BelirtmeTip:            p.BelirtmeTip,
		Durum:                  p.Durum,
		SistemKayitTarihi:      p.SistemKayitTarihi,
		SistemGuncellemeTarihi: p.SistemGuncellemeTarihi,
		OnayDurum:              p.OnayDurum,
		TapuCinsID:             p.TapuCinsID,
		KmDurum:                p.KmDurum,
		HazineParselDurum:      p.HazineParselDurum,
		TerkSebep:              p.TerkSebep,
		ParselTescilDurum:      p.ParselTescilDurum,
		Geom:                   Geometry{WKT: p.GeometryWKT, SRID: srid},
	}
}
