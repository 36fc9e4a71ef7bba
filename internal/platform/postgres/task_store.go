package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/dispatch-api/internal/domain"
	"github.com/fieldops/dispatch-api/internal/platform/logger"
	"github.com/fieldops/dispatch-api/internal/store"
)

// TaskStore implements store.TaskStore using PostgreSQL.
type TaskStore struct {
	db *sql.DB
}

// NewTaskStore creates a new TaskStore over the given connection pool.
func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

const taskColumns = "id, lat, lon, status, assigned_worker_id, assigned_at, created_at"

// FindPendingGeocoded returns up to limit unassigned tasks with coordinates,
// oldest first.
func (s *TaskStore) FindPendingGeocoded(ctx context.Context, limit int) ([]domain.Task, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE status = $1 AND lat IS NOT NULL AND lon IS NOT NULL
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, domain.TaskStatusUnassigned, limit)
	if err != nil {
		log.Error("failed to query pending tasks", "error", err)
		return nil, fmt.Errorf("failed to query pending tasks: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var tasks []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row", "error", err)
			return nil, fmt.Errorf("failed to scan task row: %w", MapError(err))
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", MapError(err))
	}

	return tasks, nil
}

// ConditionalBulkAssign applies every proposed pair as a guarded update
// inside one transaction. A pair is committed only when its update matched
// exactly one still-unassigned row; everything else is silently dropped.
// Re-applying a pair to an already-assigned task matches zero rows, so a
// retried batch cannot double-assign.
func (s *TaskStore) ConditionalBulkAssign(ctx context.Context, pairs []store.AssignmentPair) ([]uuid.UUID, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	log := logger.FromContext(ctx)

	query := `
		UPDATE tasks
		SET status = $1, assigned_worker_id = $2, assigned_at = $3
		WHERE id = $4 AND status = $5
	`

	var committed []uuid.UUID
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		now := time.Now().UTC()
		for _, p := range pairs {
			res, err := tx.ExecContext(ctx, query,
				domain.TaskStatusAssigned,
				p.WorkerID,
				now,
				p.TaskID,
				domain.TaskStatusUnassigned,
			)
			if err != nil {
				return fmt.Errorf("guarded assign of task %s: %w", p.TaskID, MapError(err))
			}

			affected, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected for task %s: %w", p.TaskID, MapError(err))
			}
			if affected == 1 {
				committed = append(committed, p.TaskID)
			}
		}
		return nil
	})
	if err != nil {
		log.Error("bulk assignment transaction failed",
			"proposed", len(pairs),
			"error", err)
		return nil, err
	}

	log.Debug("bulk assignment committed",
		"proposed", len(pairs),
		"committed", len(committed))
	return committed, nil
}

// CountActiveByWorker returns the derived active-task count (assigned or
// accepted) for each given worker. Workers with no active tasks appear with
// a zero count.
func (s *TaskStore) CountActiveByWorker(ctx context.Context, workerIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(workerIDs))
	for _, id := range workerIDs {
		counts[id] = 0
	}
	if len(workerIDs) == 0 {
		return counts, nil
	}

	placeholders := make([]string, 0, len(workerIDs))
	args := make([]any, 0, len(workerIDs)+2)
	args = append(args, domain.TaskStatusAssigned, domain.TaskStatusAccepted)
	for i, id := range workerIDs {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+3))
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT assigned_worker_id, COUNT(*)
		FROM tasks
		WHERE status IN ($1, $2) AND assigned_worker_id IN (%s)
		GROUP BY assigned_worker_id
	`, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count active tasks: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var workerID uuid.UUID
		var count int
		if err := rows.Scan(&workerID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan load row: %w", MapError(err))
		}
		counts[workerID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating load rows: %w", MapError(err))
	}

	return counts, nil
}

// UpdateStatus transitions one task, guarded on its expected current
// status. A guard miss returns store.ErrUpdateFailed so stale callers lose
// cleanly.
func (s *TaskStore) UpdateStatus(ctx context.Context, taskID uuid.UUID, from, to domain.TaskStatus, workerID *uuid.UUID) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE tasks
		SET status = $1,
		    assigned_worker_id = COALESCE($2, assigned_worker_id),
		    assigned_at = CASE WHEN $1 = 'assigned' THEN $3 ELSE assigned_at END
		WHERE id = $4 AND status = $5
	`

	res, err := s.db.ExecContext(ctx, query, to, workerID, time.Now().UTC(), taskID, from)
	if err != nil {
		log.Error("failed to update task status",
			"task_id", taskID,
			"from", from,
			"to", to,
			"error", err)
		return fmt.Errorf("failed to update task status: %w", MapError(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for task %s: %w", taskID, MapError(err))
	}
	if affected == 0 {
		return fmt.Errorf("%w: task %s is no longer %q", store.ErrUpdateFailed, taskID, from)
	}

	return nil
}

// GetByID returns one task by id.
func (s *TaskStore) GetByID(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	row := s.db.QueryRowContext(ctx, query, taskID)
	t, err := scanTask(row)
	if err != nil {
		if mapped := MapError(err); store.IsNotFoundError(mapped) {
			return nil, store.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task %s: %w", taskID, MapError(err))
	}
	return t, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask scans one task row and validates it at the boundary so the rest
// of the engine can trust the entity.
func scanTask(row rowScanner) (*domain.Task, error) {
	var t domain.Task
	var lat, lon sql.NullFloat64
	var workerID sql.Null[uuid.UUID]
	var assignedAt sql.NullTime

	if err := row.Scan(&t.ID, &lat, &lon, &t.Status, &workerID, &assignedAt, &t.CreatedAt); err != nil {
		return nil, err
	}

	if lat.Valid {
		t.Lat = &lat.Float64
	}
	if lon.Valid {
		t.Lon = &lon.Float64
	}
	if workerID.Valid {
		t.AssignedWorkerID = &workerID.V
	}
	if assignedAt.Valid {
		utc := assignedAt.Time.UTC()
		t.AssignedAt = &utc
	}

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	return &t, nil
}
