package main

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/fieldops/dispatch-api/internal/allocation"
	"github.com/fieldops/dispatch-api/internal/allocation/perf"
	"github.com/fieldops/dispatch-api/internal/cache"
	"github.com/fieldops/dispatch-api/internal/config"
	"github.com/fieldops/dispatch-api/internal/platform/postgres"
	"github.com/fieldops/dispatch-api/internal/platform/redis"
	"github.com/fieldops/dispatch-api/internal/service"
)

// application bundles the wired dependencies of the running server.
type application struct {
	config *config.Config
	logger *slog.Logger

	db        *sql.DB
	cacheConn *redis.Client

	taskStore   *postgres.TaskStore
	workerStore *postgres.WorkerStore
	syncLayer   *cache.SyncLayer

	engine        *allocation.Engine
	statusService *service.StatusService
}

// newApplication wires stores, the cache layer, the engine, and services
// from already-established connections.
func newApplication(
	cfg *config.Config,
	log *slog.Logger,
	db *sql.DB,
	cacheConn *redis.Client,
) *application {
	taskStore := postgres.NewTaskStore(db)
	workerStore := postgres.NewWorkerStore(db)

	syncLayer := cache.NewSyncLayer(cacheConn, cache.SyncConfig{
		OpTimeout:       time.Duration(cfg.Cache.OpTimeoutMs) * time.Millisecond,
		DefaultTTL:      time.Duration(cfg.Cache.DefaultTTLSeconds) * time.Second,
		BreakerFailures: cfg.Cache.BreakerFailures,
		BreakerRecovery: time.Duration(cfg.Cache.BreakerRecoverySeconds) * time.Second,
	}, log)

	engine := allocation.NewEngine(
		taskStore,
		workerStore,
		syncLayer,
		perf.NewMonitor(perf.DefaultCapacity),
		allocation.Config{
			MaxTasksPerWorker: cfg.Allocation.MaxTasksPerWorker,
			MaxRadiusKm:       cfg.Allocation.MaxRadiusKm,
			CellSizeDegrees:   cfg.Allocation.CellSizeDegrees,
		},
		log,
	)

	return &application{
		config:        cfg,
		logger:        log,
		db:            db,
		cacheConn:     cacheConn,
		taskStore:     taskStore,
		workerStore:   workerStore,
		syncLayer:     syncLayer,
		engine:        engine,
		statusService: service.NewStatusService(taskStore, syncLayer, log),
	}
}

// cleanup closes the application's external connections.
func (app *application) cleanup() {
	if err := app.cacheConn.Close(); err != nil {
		app.logger.Error("failed to close cache connection", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("failed to close database connection", "error", err)
	}
}
