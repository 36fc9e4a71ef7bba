// Package main implements the entry point for the dispatch API server,
// which allocates pending delivery tasks to nearby field workers and
// exposes task status transitions over HTTP.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/fieldops/dispatch-api/internal/config"
	"github.com/fieldops/dispatch-api/internal/platform/logger"
	"github.com/fieldops/dispatch-api/internal/platform/redis"
)

func main() {
	app, err := initializeApp()
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := app.startHTTPServer(context.Background(), app.setupRouter()); err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
}

// initializeApp loads configuration, sets up logging, connects to the
// database and cache, applies migrations, and wires the application.
func initializeApp() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"default_batch_size", cfg.Allocation.DefaultBatchSize,
		"max_tasks_per_worker", cfg.Allocation.MaxTasksPerWorker)

	db, err := setupDatabase(cfg, appLogger)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db, appLogger); err != nil {
		return nil, err
	}

	cacheConn, err := redis.New(cfg.Cache.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache client: %w", err)
	}

	return newApplication(cfg, appLogger, db, cacheConn), nil
}
