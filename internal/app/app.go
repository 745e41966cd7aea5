package app

import (
	"context"
	"time"

	"github.com/andresuchdata/bakecast/internal/cache"
	"github.com/andresuchdata/bakecast/internal/config"
	"github.com/andresuchdata/bakecast/internal/forecast"
	"github.com/andresuchdata/bakecast/internal/notify"
	"github.com/andresuchdata/bakecast/internal/pipeline"
	"github.com/andresuchdata/bakecast/internal/repository/postgres"
	"github.com/andresuchdata/bakecast/internal/service"
	"github.com/andresuchdata/bakecast/internal/storage"
	"github.com/andresuchdata/bakecast/pkg/logger"
)

const notifyDrainTimeout = 10 * time.Second

// App holds the services shared by the HTTP server and the CLI.
type App struct {
	DB       *postgres.DB
	Store    *postgres.Store
	Forecast *service.ForecastService
	Learning *service.LearningService
	Accuracy *service.AccuracyService
	Waste    *service.WasteService
	Catalog  *service.CatalogService
	Audit    *service.AuditService
	Notifier notify.Notifier
	cfg      *config.Config
}

// New wires services on top of an open database. Redis and object storage are
// optional; when they are unreachable the app runs without them.
func New(cfg *config.Config, db *postgres.DB) *App {
	log := logger.Component("app")
	store := postgres.NewStore(db)

	policy := forecast.Policy{
		SampleLimit:      cfg.Forecast.SampleLimit,
		SafetyBuffer:     cfg.Forecast.SafetyBuffer,
		MaxAdjustmentPct: cfg.Forecast.MaxAdjustmentPct,
	}
	calc := forecast.NewCalculator(policy)

	forecastCache, err := cache.NewForecastCache(cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("forecast cache unavailable, continuing without redis")
		forecastCache = cache.NewNoopForecastCache()
	}

	var archiver *storage.PlanArchiver
	if cfg.Storage.Enabled {
		client, err := storage.NewMinioClient(storage.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			log.Warn().Err(err).Msg("plan archive disabled")
		} else {
			archiver = storage.NewPlanArchiver(client)
		}
	}

	notifier := notify.New(cfg.Notify)
	accuracy := service.NewAccuracyService(store)

	return &App{
		DB:    db,
		Store: store,
		Forecast: service.NewForecastService(store, calc,
			service.WithForecastCache(forecastCache),
			service.WithNotifier(notifier),
			service.WithPlanArchiver(archiver),
			service.WithModelVersion(cfg.Forecast.ModelVersion),
		),
		Learning: service.NewLearningService(store, policy, cfg.Forecast.LookbackDays),
		Accuracy: accuracy,
		Waste:    service.NewWasteService(store, accuracy, notifier),
		Catalog:  service.NewCatalogService(store),
		Audit:    service.NewAuditService(store),
		Notifier: notifier,
		cfg:      cfg,
	}
}

// Nightly builds the nightly runner over the app's services.
func (a *App) Nightly() *pipeline.Orchestrator {
	return pipeline.NewOrchestrator(
		a.Catalog,
		a.Accuracy,
		a.Learning,
		a.Forecast,
		pipeline.NewRepository(a.DB.DB),
		a.Notifier,
		pipeline.ConfigFrom(a.cfg),
	)
}

// Close flushes queued notifications, then closes the database.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), notifyDrainTimeout)
	defer cancel()
	if err := notify.Close(ctx, a.Notifier); err != nil {
		logger.Log.Warn().Err(err).Msg("pending notifications were not delivered")
	}
	return a.DB.Close()
}
