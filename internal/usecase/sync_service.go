package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tkgm-sync-service/internal/domain/entity"
	"tkgm-sync-service/internal/domain/repository"
	"tkgm-sync-service/internal/interface/wfs"
	"tkgm-sync-service/pkg/gml"
	"tkgm-sync-service/pkg/logger"
	"tkgm-sync-service/pkg/metrics"
)

// Sync outcome statuses.
const (
	StatusDone        = "DONE"
	StatusQuotaHalted = "QUOTA_HALTED"
	StatusUserHalted  = "USER_HALTED"
	StatusFailed      = "FAILED"
)

const dateLayout = "2006-01-02"

// Summary aggregates the outcome of one sync run.
type Summary struct {
	Mode       string
	Status     string
	Pages      int
	EmptyPages int
	Found      int
	Saved      int
	Skipped    int
	Failed     int
	Started    time.Time
	Finished   time.Time
}

func (s *Summary) String() string {
	// Logs and notifications render the summary while the run is still
	// returning, before Finished is stamped.
	finished := s.Finished
	if finished.IsZero() {
		finished = time.Now()
	}
	return fmt.Sprintf("%s %s: pages=%d empty=%d found=%d saved=%d skipped=%d failed=%d duration=%s",
		s.Mode, s.Status, s.Pages, s.EmptyPages, s.Found, s.Saved, s.Skipped, s.Failed,
		finished.Sub(s.Started).Round(time.Second))
}

// SyncOptions carries the tunables and collaborators of the sync service.
type SyncOptions struct {
	ParcelTypeName        string
	DistrictTypeName      string
	NeighbourhoodTypeName string
	MaxFeatures           int
	DailySyncEpoch        string
	DailyInactiveEpoch    string
	CutoffDate            string
}

// PageFetcher fetches one GetFeature page. Satisfied by wfs.Client.
type PageFetcher interface {
	FetchPage(ctx context.Context, q wfs.Query) (*entity.FetchResult, error)
}

// SyncService drives the fetch, decode and persist pipeline for every sync
// mode. One instance serves all modes; runs are expected to be sequential.
type SyncService struct {
	client            PageFetcher
	processor         *gml.Processor
	parcelRepo        repository.ParcelRepository
	districtRepo      repository.DistrictRepository
	neighbourhoodRepo repository.NeighbourhoodRepository
	cursorRepo        repository.CursorRepository
	failedRepo        repository.FailedRecordRepository
	notifier          repository.NotifierRepository
	metrics           *metrics.Metrics
	logger            logger.Logger
	opts              SyncOptions
}

// NewSyncService creates a new sync service
func NewSyncService(
	client PageFetcher,
	processor *gml.Processor,
	parcelRepo repository.ParcelRepository,
	districtRepo repository.DistrictRepository,
	neighbourhoodRepo repository.NeighbourhoodRepository,
	cursorRepo repository.CursorRepository,
	failedRepo repository.FailedRecordRepository,
	notifier repository.NotifierRepository,
	m *metrics.Metrics,
	logger logger.Logger,
	opts SyncOptions,
) *SyncService {
	return &SyncService{
		client:            client,
		processor:         processor,
		parcelRepo:        parcelRepo,
		districtRepo:      districtRepo,
		neighbourhoodRepo: neighbourhoodRepo,
		cursorRepo:        cursorRepo,
		failedRepo:        failedRepo,
		notifier:          notifier,
		metrics:           m,
		logger:            logger,
		opts:              opts,
	}
}

// SyncDailyParcels walks active approved parcels day by day, filtered on
// system update date. Resumes from the persisted daily cursor.
func (s *SyncService) SyncDailyParcels(ctx context.Context) (*Summary, error) {
	return s.syncParcels(ctx, entity.ModeDailySync, s.dailyEpoch(), s.activeDailyFilter)
}

// SyncDailyInactiveParcels walks parcels whose status left the active set,
// so deregistrations and merges are reflected. Uses its own cursor.
func (s *SyncService) SyncDailyInactiveParcels(ctx context.Context) (*Summary, error) {
	epoch, _ := time.Parse(dateLayout, s.opts.DailyInactiveEpoch)
	return s.syncParcels(ctx, entity.ModeDailyInactiveSync, epoch, s.inactiveDailyFilter)
}

// SyncFullParcels walks the whole dataset by system registration date from the
// configured cutoff. Used for initial loads and rebuilds.
func (s *SyncService) SyncFullParcels(ctx context.Context) (*Summary, error) {
	epoch, _ := time.Parse(dateLayout, s.opts.CutoffDate)
	return s.syncParcels(ctx, entity.ModeFullySync, epoch, s.fullFilter)
}

// activeDailyFilter selects approved active parcels updated on the cursor day.
// The registration-date bound keeps rows created on the same day out; they are
// picked up when the cursor reaches that day's registrations.
func (s *SyncService) activeDailyFilter(day, next string) string {
	return fmt.Sprintf("(onaydurum=1 and durum=3 and sistemguncellemetarihi>='%s' and sistemguncellemetarihi<'%s' and sistemkayittarihi<'%s')", day, next, next)
}

// inactiveDailyFilter selects parcels updated on the cursor day whose status
// is no longer active.
func (s *SyncService) inactiveDailyFilter(day, next string) string {
	return fmt.Sprintf("(durum<>3 and sistemguncellemetarihi>='%s' and sistemguncellemetarihi<'%s')", day, next)
}

// fullFilter selects approved active parcels registered on the cursor day.
func (s *SyncService) fullFilter(day, next string) string {
	return fmt.Sprintf("(onaydurum=1 and durum=3 and sistemkayittarihi>='%s' and sistemkayittarihi<'%s')", day, next)
}

// dailyEpoch is yesterday unless an explicit epoch is configured.
func (s *SyncService) dailyEpoch() time.Time {
	if s.opts.DailySyncEpoch != "" {
		if t, err := time.Parse(dateLayout, s.opts.DailySyncEpoch); err == nil {
			return t
		}
		s.logger.Warn("Invalid DAILY_SYNC_EPOCH, falling back to yesterday", "value", s.opts.DailySyncEpoch)
	}
	return truncateDay(time.Now().AddDate(0, 0, -1))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// syncParcels runs the resumable day-by-day pagination loop for one parcel
// mode. The cursor is saved after every page so any interruption resumes at
// the last completed page.
func (s *SyncService) syncParcels(ctx context.Context, mode string, epoch time.Time, filter func(day, next string) string) (*Summary, error) {
	summary := &Summary{Mode: mode, Status: StatusDone, Started: time.Now()}
	defer func() { summary.Finished = time.Now() }()

	if halted, err := s.quotaHalted(ctx, summary); halted || err != nil {
		return summary, err
	}

	cursor, err := s.cursorRepo.Load(ctx, mode, epoch)
	if err != nil {
		summary.Status = StatusFailed
		return summary, fmt.Errorf("failed to load cursor: %w", err)
	}
	s.logger.Info("Starting parcel sync",
		"mode", mode, "queryDate", cursor.QueryDate.Format(dateLayout), "startIndex", cursor.StartIndex)

	today := truncateDay(time.Now())
	for cursor.QueryDate.Before(today) {
		day := cursor.QueryDate.Format(dateLayout)
		next := cursor.QueryDate.AddDate(0, 0, 1).Format(dateLayout)

		result, err := s.client.FetchPage(ctx, wfs.Query{
			TypeName:    s.opts.ParcelTypeName,
			MaxFeatures: s.opts.MaxFeatures,
			StartIndex:  cursor.StartIndex,
			CQLFilter:   filter(day, next),
		})
		if err != nil {
			return summary, s.handleFetchError(ctx, mode, cursor, summary, err)
		}

		batch, err := s.processor.DecodeParcels(result.Body)
		if err != nil {
			summary.Status = StatusFailed
			return summary, fmt.Errorf("failed to decode page %s/%d: %w", day, cursor.StartIndex, err)
		}

		saved, err := s.parcelRepo.UpsertBatch(ctx, batch.Parcels)
		if err != nil {
			summary.Status = StatusFailed
			return summary, fmt.Errorf("failed to persist page %s/%d: %w", day, cursor.StartIndex, err)
		}
		s.recordFailures(ctx, batch.Failures)

		failed := len(batch.Failures) + (len(batch.Parcels) - saved)
		s.accumulate(summary, entity.EntityTypeParcel, mode, batch.Found, saved, batch.Skipped, failed)
		s.reportPage(ctx, mode, day, cursor.StartIndex, batch.Found, saved, batch.Skipped, failed)

		// End-of-day is inferred from the persisted count, not the raw
		// member count, so skipped members do not keep the cursor on a
		// day the upstream has already exhausted.
		if batch.Found == 0 {
			summary.EmptyPages++
			cursor.NextDay()
		} else if saved < s.opts.MaxFeatures {
			cursor.NextDay()
		} else {
			cursor.Advance(s.opts.MaxFeatures)
		}

		if err := s.cursorRepo.Save(ctx, mode, cursor); err != nil {
			summary.Status = StatusFailed
			return summary, fmt.Errorf("failed to save cursor: %w", err)
		}
	}

	s.logger.Info("Parcel sync finished", "summary", summary.String())
	s.notify(ctx, summary.String())
	return summary, nil
}

// SyncDistricts refreshes the district reference layer. Districts are few and
// rarely change, so the layer is paged through in one run without a cursor.
func (s *SyncService) SyncDistricts(ctx context.Context) (*Summary, error) {
	summary := &Summary{Mode: "districts", Status: StatusDone, Started: time.Now()}
	defer func() { summary.Finished = time.Now() }()

	if halted, err := s.quotaHalted(ctx, summary); halted || err != nil {
		return summary, err
	}

	startIndex := 0
	for {
		result, err := s.client.FetchPage(ctx, wfs.Query{
			TypeName:    s.opts.DistrictTypeName,
			MaxFeatures: s.opts.MaxFeatures,
			StartIndex:  startIndex,
		})
		if err != nil {
			return summary, s.handleFetchError(ctx, "districts", nil, summary, err)
		}

		batch, err := s.processor.DecodeDistricts(result.Body)
		if err != nil {
			summary.Status = StatusFailed
			return summary, fmt.Errorf("failed to decode districts page %d: %w", startIndex, err)
		}

		saved, err := s.districtRepo.UpsertBatch(ctx, batch.Districts)
		if err != nil {
			summary.Status = StatusFailed
			return summary, fmt.Errorf("failed to persist districts page %d: %w", startIndex, err)
		}
		s.recordFailures(ctx, batch.Failures)

		failed := len(batch.Failures) + (len(batch.Districts) - saved)
		s.accumulate(summary, entity.EntityTypeDistrict, "districts", batch.Found, saved, batch.Skipped, failed)

		if batch.Found < s.opts.MaxFeatures {
			break
		}
		startIndex += s.opts.MaxFeatures
	}

	s.logger.Info("District sync finished", "summary", summary.String())
	s.notify(ctx, summary.String())
	return summary, nil
}

// SyncNeighbourhoods refreshes the neighbourhood reference layer.
func (s *SyncService) SyncNeighbourhoods(ctx context.Context) (*Summary, error) {
	summary := &Summary{Mode: "neighbourhoods", Status: StatusDone, Started: time.Now()}
	defer func() { summary.Finished = time.Now() }()

	if halted, err := s.quotaHalted(ctx, summary); halted || err != nil {
		return summary, err
	}

	startIndex := 0
	for {
		result, err := s.client.FetchPage(ctx, wfs.Query{
			TypeName:    s.opts.NeighbourhoodTypeName,
			MaxFeatures: s.opts.MaxFeatures,
			StartIndex:  startIndex,
		})
		if err != nil {
			return summary, s.handleFetchError(ctx, "neighbourhoods", nil, summary, err)
		}

		batch, err := s.processor.DecodeNeighbourhoods(result.Body)
		if err != nil {
			summary.Status = StatusFailed
			return summary, fmt.Errorf("failed to decode neighbourhoods page %d: %w", startIndex, err)
		}

		saved, err := s.neighbourhoodRepo.UpsertBatch(ctx, batch.Neighbourhoods)
		if err != nil {
			summary.Status = StatusFailed
			return summary, fmt.Errorf("failed to persist neighbourhoods page %d: %w", startIndex, err)
		}
		s.recordFailures(ctx, batch.Failures)

		failed := len(batch.Failures) + (len(batch.Neighbourhoods) - saved)
		s.accumulate(summary, entity.EntityTypeNeighbourhood, "neighbourhoods", batch.Found, saved, batch.Skipped, failed)

		if batch.Found < s.opts.MaxFeatures {
			break
		}
		startIndex += s.opts.MaxFeatures
	}

	s.logger.Info("Neighbourhood sync finished", "summary", summary.String())
	s.notify(ctx, summary.String())
	return summary, nil
}

// quotaHalted aborts a run before the first request when the daily limit flag
// is already set for today.
func (s *SyncService) quotaHalted(ctx context.Context, summary *Summary) (bool, error) {
	reached, err := s.cursorRepo.IsDailyLimitReached(ctx)
	if err != nil {
		summary.Status = StatusFailed
		return false, fmt.Errorf("failed to check daily limit flag: %w", err)
	}
	if reached {
		summary.Status = StatusQuotaHalted
		s.logger.Warn("Sync skipped, daily service limit already reached", "mode", summary.Mode)
		return true, nil
	}
	return false, nil
}

// handleFetchError maps a fetch failure onto the run outcome. Quota and
// shutdown end the run cleanly; everything else is a hard failure. The cursor,
// when present, already points at the unfinished page and is saved as-is.
func (s *SyncService) handleFetchError(ctx context.Context, mode string, cursor *entity.SyncCursor, summary *Summary, cause error) error {
	saveCursor := func() {
		if cursor == nil {
			return
		}
		if err := s.cursorRepo.Save(context.WithoutCancel(ctx), mode, cursor); err != nil {
			s.logger.Error("Failed to save cursor on halt", "mode", mode, "error", err)
		}
	}

	switch {
	case errors.Is(cause, entity.ErrQuotaExceeded):
		summary.Status = StatusQuotaHalted
		s.metrics.QuotaHalts.Inc()
		if err := s.cursorRepo.SetDailyLimitReached(context.WithoutCancel(ctx)); err != nil {
			s.logger.Error("Failed to persist daily limit flag", "error", err)
		}
		saveCursor()
		s.logger.Warn("Sync halted by daily service quota", "mode", mode)
		s.notify(ctx, fmt.Sprintf("%s halted: daily TKGM quota exhausted. %s", mode, summary.String()))
		return nil
	case errors.Is(cause, entity.ErrStopped):
		summary.Status = StatusUserHalted
		saveCursor()
		s.logger.Info("Sync halted by shutdown request", "mode", mode)
		return nil
	default:
		summary.Status = StatusFailed
		saveCursor()
		s.metrics.ErrorsCount.WithLabelValues("sync").Inc()
		return fmt.Errorf("fetch failed: %w", cause)
	}
}

// recordFailures writes decode and transform failures to the dead-letter
// store. Losing a dead letter is the one unacceptable outcome, hence the
// CRITICAL log when the write itself fails.
func (s *SyncService) recordFailures(ctx context.Context, failures []gml.Failure) {
	for _, f := range failures {
		raw, _ := json.Marshal(f.Raw)
		if err := s.failedRepo.Record(ctx, f.EntityType, f.EntityID, raw, f.Err); err != nil {
			s.logger.Error("CRITICAL: LOST DATA, could not write failed feature to dead-letter store",
				"entityType", f.EntityType, "entityId", f.EntityID, "cause", f.Err, "error", err)
		} else {
			s.logger.Warn("Feature routed to dead-letter store",
				"entityType", f.EntityType, "entityId", f.EntityID, "error", f.Err)
		}
	}
}

func (s *SyncService) accumulate(summary *Summary, entityType, mode string, found, saved, skipped, failed int) {
	summary.Pages++
	summary.Found += found
	summary.Saved += saved
	summary.Skipped += skipped
	summary.Failed += failed

	s.metrics.PagesProcessed.WithLabelValues(mode).Inc()
	s.metrics.FeaturesFound.WithLabelValues(entityType).Add(float64(found))
	s.metrics.FeaturesSaved.WithLabelValues(entityType).Add(float64(saved))
	s.metrics.FeaturesSkipped.WithLabelValues(entityType).Add(float64(skipped))
	s.metrics.FeaturesFailed.WithLabelValues(entityType).Add(float64(failed))
}

// reportPage pushes a per-page pull report. Only non-trivial pages are worth a
// message; empty pages would flood the chat during catch-up runs.
func (s *SyncService) reportPage(ctx context.Context, mode, day string, startIndex, found, saved, skipped, failed int) {
	if found == 0 {
		return
	}
	s.notify(ctx, fmt.Sprintf("%s %s idx=%d: found=%d saved=%d skipped=%d failed=%d",
		mode, day, startIndex, found, saved, skipped, failed))
}

func (s *SyncService) notify(ctx context.Context, text string) {
	if !s.notifier.IsConfigured() {
		return
	}
	if err := s.notifier.SendMessage(context.WithoutCancel(ctx), text); err != nil {
		s.logger.Warn("Failed to send notification", "error", err)
	}
}
