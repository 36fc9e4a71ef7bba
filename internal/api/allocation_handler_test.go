package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/dispatch-api/internal/allocation"
	"github.com/fieldops/dispatch-api/internal/api"
	"github.com/fieldops/dispatch-api/internal/cache"
	"github.com/fieldops/dispatch-api/internal/domain"
	"github.com/fieldops/dispatch-api/internal/store"
)

// stubTaskStore serves a fixed set of pending tasks and commits every
// proposal; failing makes every call fail.
type stubTaskStore struct {
	mu      sync.Mutex
	pending []domain.Task
	failing bool
}

func (s *stubTaskStore) FindPendingGeocoded(_ context.Context, limit int) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, store.ErrStoreUnavailable
	}
	if len(s.pending) > limit {
		return s.pending[:limit], nil
	}
	return s.pending, nil
}

func (s *stubTaskStore) ConditionalBulkAssign(_ context.Context, pairs []store.AssignmentPair) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, store.ErrStoreUnavailable
	}
	var out []uuid.UUID
	for _, p := range pairs {
		out = append(out, p.TaskID)
	}
	s.pending = nil
	return out, nil
}

func (s *stubTaskStore) CountActiveByWorker(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(ids))
	for _, id := range ids {
		out[id] = 0
	}
	return out, nil
}

func (s *stubTaskStore) UpdateStatus(context.Context, uuid.UUID, domain.TaskStatus, domain.TaskStatus, *uuid.UUID) error {
	return nil
}

func (s *stubTaskStore) GetByID(context.Context, uuid.UUID) (*domain.Task, error) {
	return nil, store.ErrTaskNotFound
}

type stubWorkerStore struct {
	workers []domain.Worker
}

func (s *stubWorkerStore) FindEligible(context.Context) ([]domain.Worker, error) {
	return s.workers, nil
}

type nullCacheClient struct{}

func (nullCacheClient) Get(context.Context, string) (string, error) {
	return "", cache.ErrCacheMiss
}
func (nullCacheClient) Set(context.Context, string, string, time.Duration) error { return nil }
func (nullCacheClient) Del(context.Context, ...string) error                     { return nil }
func (nullCacheClient) ScanKeys(_ context.Context, pattern string) ([]string, error) {
	_, err := path.Match(pattern, "")
	return nil, err
}
func (nullCacheClient) Ping(context.Context) error { return nil }

func ptr(f float64) *float64 { return &f }

func newHandler(tasks *stubTaskStore, workers *stubWorkerStore) *api.AllocationHandler {
	layer := cache.NewSyncLayer(nullCacheClient{}, cache.DefaultSyncConfig(), nil)
	engine := allocation.NewEngine(tasks, workers, layer, nil, allocation.DefaultConfig(), nil)
	return api.NewAllocationHandler(engine, 100, nil)
}

func TestRunAllocationReturnsResult(t *testing.T) {
	t.Parallel()

	tasks := &stubTaskStore{pending: []domain.Task{{
		ID:        uuid.New(),
		Lat:       ptr(23.8103),
		Lon:       ptr(90.4125),
		Status:    domain.TaskStatusUnassigned,
		CreatedAt: time.Now().UTC(),
	}}}
	workers := &stubWorkerStore{workers: []domain.Worker{{
		ID: uuid.New(), Lat: ptr(23.81), Lon: ptr(90.412), Active: true,
	}}}

	h := newHandler(tasks, workers)

	req := httptest.NewRequest(http.MethodPost, "/api/allocations/run",
		strings.NewReader(`{"batch_size": 10}`))
	rec := httptest.NewRecorder()

	h.RunAllocation(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"allocated":1`)
	assert.Contains(t, body, `"failed":0`)
}

func TestRunAllocationEmptyBodyUsesDefaultBatchSize(t *testing.T) {
	t.Parallel()

	h := newHandler(&stubTaskStore{}, &stubWorkerStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/allocations/run", strings.NewReader(""))
	rec := httptest.NewRecorder()

	h.RunAllocation(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_tasks":0`)
}

func TestRunAllocationStoreDownReturns503(t *testing.T) {
	t.Parallel()

	h := newHandler(&stubTaskStore{failing: true}, &stubWorkerStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/allocations/run", strings.NewReader("{}"))
	rec := httptest.NewRecorder()

	h.RunAllocation(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "retry")
}

func TestObservabilityEndpoints(t *testing.T) {
	t.Parallel()

	h := newHandler(&stubTaskStore{}, &stubWorkerStore{})

	rec := httptest.NewRecorder()
	h.GetPerformanceStats(rec, httptest.NewRequest(http.MethodGet, "/api/allocations/stats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.GetAllocationTrends(rec, httptest.NewRequest(http.MethodGet, "/api/allocations/trends", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "trend")

	rec = httptest.NewRecorder()
	h.GetCacheStats(rec, httptest.NewRequest(http.MethodGet, "/api/cache/stats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "breaker_state")
}
