package usecase

import (
	"context"
	"time"

	"tkgm-sync-service/internal/domain/entity"
	"tkgm-sync-service/internal/domain/repository"
	"tkgm-sync-service/pkg/logger"
)

// Dispatcher decides which scheduled sync to run. The active daily sync gets
// priority; once its cursor has caught up to today it has nothing to do until
// tomorrow, so the slot goes to the inactive sync instead.
type Dispatcher struct {
	syncService *SyncService
	cursorRepo  repository.CursorRepository
	logger      logger.Logger
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(syncService *SyncService, cursorRepo repository.CursorRepository, logger logger.Logger) *Dispatcher {
	return &Dispatcher{
		syncService: syncService,
		cursorRepo:  cursorRepo,
		logger:      logger,
	}
}

// Run executes one scheduled sync slot.
func (d *Dispatcher) Run(ctx context.Context) {
	mode, sync := d.pick(ctx)
	d.logger.Info("Dispatching scheduled sync", "mode", mode)

	summary, err := sync(ctx)
	if err != nil {
		d.logger.Error("Scheduled sync failed", "mode", mode, "error", err)
		return
	}
	d.logger.Info("Scheduled sync finished", "mode", mode, "status", summary.Status)
}

func (d *Dispatcher) pick(ctx context.Context) (string, func(context.Context) (*Summary, error)) {
	cursor, err := d.cursorRepo.Load(ctx, entity.ModeDailySync, yesterday())
	if err != nil {
		d.logger.Error("Failed to load daily cursor, defaulting to active sync", "error", err)
		return entity.ModeDailySync, d.syncService.SyncDailyParcels
	}

	today := time.Now()
	y1, m1, d1 := cursor.QueryDate.Date()
	y2, m2, d2 := today.Date()
	caughtUp := !cursor.QueryDate.Before(today) || (y1 == y2 && m1 == m2 && d1 == d2)
	if caughtUp {
		return entity.ModeDailyInactiveSync, d.syncService.SyncDailyInactiveParcels
	}
	return entity.ModeDailySync, d.syncService.SyncDailyParcels
}

func yesterday() time.Time {
	y, m, d := time.Now().AddDate(0, 0, -1).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}
