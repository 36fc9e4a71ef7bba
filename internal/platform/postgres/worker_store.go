package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fieldops/dispatch-api/internal/domain"
	"github.com/fieldops/dispatch-api/internal/platform/logger"
	"github.com/fieldops/dispatch-api/internal/store"
)

// WorkerStore implements store.WorkerStore using PostgreSQL.
type WorkerStore struct {
	db *sql.DB
}

// NewWorkerStore creates a new WorkerStore over the given connection pool.
func NewWorkerStore(db *sql.DB) *WorkerStore {
	return &WorkerStore{db: db}
}

// FindEligible returns every active worker with known coordinates.
func (s *WorkerStore) FindEligible(ctx context.Context) ([]domain.Worker, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, lat, lon, active
		FROM workers
		WHERE active = TRUE AND lat IS NOT NULL AND lon IS NOT NULL
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		log.Error("failed to query eligible workers", "error", err)
		return nil, fmt.Errorf("failed to query eligible workers: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var workers []domain.Worker
	for rows.Next() {
		var w domain.Worker
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&w.ID, &lat, &lon, &w.Active); err != nil {
			return nil, fmt.Errorf("failed to scan worker row: %w", MapError(err))
		}
		if lat.Valid {
			w.Lat = &lat.Float64
		}
		if lon.Valid {
			w.Lon = &lon.Float64
		}
		if err := w.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}
		workers = append(workers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating worker rows: %w", MapError(err))
	}

	return workers, nil
}
