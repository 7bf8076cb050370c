package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tkgm-sync-service/internal/domain/entity"
	domainRepo "tkgm-sync-service/internal/domain/repository"
	"tkgm-sync-service/internal/infrastructure/config"
	"tkgm-sync-service/internal/infrastructure/persistence"
	"tkgm-sync-service/internal/interface/repository"
	"tkgm-sync-service/internal/interface/wfs"
	"tkgm-sync-service/internal/usecase"
	"tkgm-sync-service/pkg/gml"
	"tkgm-sync-service/pkg/logger"
	"tkgm-sync-service/pkg/metrics"
	"tkgm-sync-service/pkg/projection"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
)

func main() {
	daily := flag.Bool("daily", false, "run one daily active parcel sync and exit")
	dailyInactive := flag.Bool("daily-inactive", false, "run one daily inactive parcel sync and exit")
	fully := flag.Bool("fully", false, "run one full parcel sync from the cutoff date and exit")
	districts := flag.Bool("districts", false, "refresh the district reference layer and exit")
	neighbourhoods := flag.Bool("neighbourhoods", false, "refresh the neighbourhood reference layer and exit")
	stats := flag.Bool("stats", false, "report database row counts and exit")
	clearLimit := flag.Bool("clear-limit", false, "clear the persisted daily quota flag and exit")
	serve := flag.Bool("serve", false, "run scheduled syncs with a metrics endpoint")
	schedule := flag.String("schedule", "@every 10m", "cron schedule for -serve mode")
	flag.Parse()

	// Create logger
	log := logger.NewLogger()
	log.Info("Starting TKGM sync service")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}

	// Set up context cancelled by SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	// Set up PostgreSQL
	gormDB, err := persistence.NewPostgresDB(cfg.PostgresURI)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", "error", err)
	}
	if err := gormDB.AutoMigrate(
		&repository.Parcels{},
		&repository.Districts{},
		&repository.Neighbourhoods{},
		&repository.SyncSettings{},
		&repository.FailedRecords{},
		&repository.QueryLogs{},
	); err != nil {
		log.Fatal("Failed to migrate database schema", "error", err)
	}

	// Set up the raw response archive; MongoDB is optional
	var archiveRepo domainRepo.ArchiveRepository = repository.NewNoopArchiveRepository()
	if cfg.MongoURI != "" {
		mongoClient, err := persistence.NewMongoClient(ctx, cfg.MongoURI, cfg.MongoUser, cfg.MongoPassword)
		if err != nil {
			log.Fatal("Failed to connect to MongoDB", "error", err)
		}
		defer func() {
			if err := mongoClient.Disconnect(context.Background()); err != nil {
				log.Error("MongoDB disconnect error", "error", err)
			}
		}()
		archiveRepo = repository.NewMongoArchiveRepository(mongoClient, cfg.MongoDB, log)
	}

	// Set up repositories
	m := metrics.NewMetrics("tkgm_sync")
	failedRepo := repository.NewGormFailedRecordRepository(gormDB, log)
	cursorRepo := repository.NewGormCursorRepository(gormDB, log)
	queryLogRepo := repository.NewGormQueryLogRepository(gormDB, log)
	parcelRepo := repository.NewGormParcelRepository(gormDB, failedRepo, cfg.TargetEPSG, log)
	districtRepo := repository.NewGormDistrictRepository(gormDB, failedRepo, cfg.TargetEPSG, log)
	neighbourhoodRepo := repository.NewGormNeighbourhoodRepository(gormDB, failedRepo, cfg.TargetEPSG, log)
	notifier := repository.NewTelegramRepository(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.TelegramParseMode, log)

	// Set up the pipeline
	transformer, err := projection.NewTransformer(cfg.SourceEPSG, cfg.TargetEPSG)
	if err != nil {
		log.Fatal("Failed to set up coordinate transformer", "error", err)
	}
	processor := gml.NewProcessor(transformer, log)

	client := wfs.NewClient(wfs.Options{
		BaseURL:      cfg.TKGMBaseURL,
		Username:     cfg.TKGMUsername,
		Password:     cfg.TKGMPassword,
		SourceEPSG:   cfg.SourceEPSG,
		MaxRetries:   cfg.MaxRetries,
		RetryDelay:   cfg.RetryDelay,
		Timeout:      cfg.RequestTimeout,
		QueryLogRepo: queryLogRepo,
		ArchiveRepo:  archiveRepo,
		Metrics:      m,
		Logger:       log,
	})

	syncService := usecase.NewSyncService(
		client, processor,
		parcelRepo, districtRepo, neighbourhoodRepo,
		cursorRepo, failedRepo, notifier,
		m, log,
		usecase.SyncOptions{
			ParcelTypeName:        cfg.ParcelTypeName,
			DistrictTypeName:      cfg.DistrictTypeName,
			NeighbourhoodTypeName: cfg.NeighbourhoodTypeName,
			MaxFeatures:           cfg.MaxFeatures,
			DailySyncEpoch:        cfg.DailySyncEpoch,
			DailyInactiveEpoch:    cfg.DailyInactiveEpoch,
			CutoffDate:            cfg.CutoffDate,
		},
	)

	switch {
	case *clearLimit:
		if err := cursorRepo.ClearDailyLimit(ctx); err != nil {
			log.Fatal("Failed to clear daily limit flag", "error", err)
		}
		log.Info("Daily limit flag cleared")
	case *daily:
		runOnce(ctx, log, entity.ModeDailySync, syncService.SyncDailyParcels)
	case *dailyInactive:
		runOnce(ctx, log, entity.ModeDailyInactiveSync, syncService.SyncDailyInactiveParcels)
	case *fully:
		runOnce(ctx, log, entity.ModeFullySync, syncService.SyncFullParcels)
	case *districts:
		runOnce(ctx, log, "districts", syncService.SyncDistricts)
	case *neighbourhoods:
		runOnce(ctx, log, "neighbourhoods", syncService.SyncNeighbourhoods)
	case *stats:
		reportStats(ctx, log, repository.NewGormStatsRepository(gormDB), notifier)
	case *serve:
		dispatcher := usecase.NewDispatcher(syncService, cursorRepo, log)
		runServer(ctx, cancel, cfg, log, dispatcher, *schedule)
	default:
		fmt.Fprintln(os.Stderr, "no mode selected")
		flag.Usage()
		os.Exit(2)
	}

	log.Info("TKGM sync service stopped")
}

// runOnce executes a single sync mode to completion and exits non-zero on a
// hard failure. Quota and shutdown halts are clean exits; the cursor already
// points at the resumption page.
func runOnce(ctx context.Context, log logger.Logger, mode string, sync func(context.Context) (*usecase.Summary, error)) {
	summary, err := sync(ctx)
	if err != nil {
		log.Fatal("Sync failed", "mode", mode, "error", err)
	}
	log.Info("Sync completed", "mode", mode, "status", summary.Status, "summary", summary.String())
}

// reportStats logs a row count snapshot and pushes it to the notifier.
func reportStats(ctx context.Context, log logger.Logger, statsRepo domainRepo.StatsRepository, notifier domainRepo.NotifierRepository) {
	stats, err := statsRepo.Collect(ctx)
	if err != nil {
		log.Fatal("Failed to collect database stats", "error", err)
	}
	log.Info("Database stats",
		"parcels", stats.Parcels,
		"districts", stats.Districts,
		"neighbourhoods", stats.Neighbourhoods,
		"failedOpen", stats.FailedOpen,
		"failedResolved", stats.FailedResolved,
		"queryLogs", stats.QueryLogs)
	if notifier.IsConfigured() {
		text := fmt.Sprintf("DB stats: parcels=%d districts=%d neighbourhoods=%d failed=%d resolved=%d logs=%d",
			stats.Parcels, stats.Districts, stats.Neighbourhoods, stats.FailedOpen, stats.FailedResolved, stats.QueryLogs)
		if err := notifier.SendMessage(ctx, text); err != nil {
			log.Warn("Failed to send stats notification", "error", err)
		}
	}
}

// runServer schedules the dispatcher with cron and serves metrics until a
// shutdown signal arrives.
func runServer(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, log logger.Logger, dispatcher *usecase.Dispatcher, schedule string) {
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(schedule, func() {
		dispatcher.Run(ctx)
	}); err != nil {
		log.Fatal("Invalid cron schedule", "schedule", schedule, "error", err)
	}
	scheduler.Start()
	log.Info("Scheduler started", "schedule", schedule)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Healthy"))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	// Graceful shutdown: stop scheduling, let a running sync save its cursor.
	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		log.Warn("Timed out waiting for running sync to stop")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}
}
