package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/dispatch-api/internal/api"
	"github.com/fieldops/dispatch-api/internal/cache"
	"github.com/fieldops/dispatch-api/internal/domain"
	"github.com/fieldops/dispatch-api/internal/store"
)

// memClient is an in-memory cache.Client so the read-through hit path can
// be observed.
type memClient struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemClient() *memClient {
	return &memClient{values: make(map[string]string)}
}

func (c *memClient) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return v, nil
}

func (c *memClient) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *memClient) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.values, k)
	}
	return nil
}

func (c *memClient) ScanKeys(_ context.Context, pattern string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var keys []string
	for k := range c.values {
		ok, err := path.Match(pattern, k)
		if err != nil {
			return nil, err
		}
		if ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (c *memClient) Ping(context.Context) error { return nil }

// countingTaskStore counts FindPendingGeocoded calls.
type countingTaskStore struct {
	stubTaskStore
	findCalls int
}

func (s *countingTaskStore) FindPendingGeocoded(ctx context.Context, limit int) ([]domain.Task, error) {
	s.mu.Lock()
	s.findCalls++
	s.mu.Unlock()
	return s.stubTaskStore.FindPendingGeocoded(ctx, limit)
}

func TestListUnassignedTasksWarmsCache(t *testing.T) {
	t.Parallel()

	tasks := &countingTaskStore{stubTaskStore: stubTaskStore{pending: []domain.Task{{
		ID:        uuid.New(),
		Lat:       ptr(23.8103),
		Lon:       ptr(90.4125),
		Status:    domain.TaskStatusUnassigned,
		CreatedAt: time.Now().UTC(),
	}}}}
	layer := cache.NewSyncLayer(newMemClient(), cache.DefaultSyncConfig(), nil)
	h := api.NewQueryHandler(tasks, &stubWorkerStore{}, layer, 100, nil)

	rec := httptest.NewRecorder()
	h.ListUnassignedTasks(rec, httptest.NewRequest(http.MethodGet, "/api/tasks/unassigned", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ListUnassignedTasks(rec, httptest.NewRequest(http.MethodGet, "/api/tasks/unassigned", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// The second request is served from the warmed cache.
	tasks.mu.Lock()
	defer tasks.mu.Unlock()
	assert.Equal(t, 1, tasks.findCalls)
}

func TestListUnassignedTasksInvalidLimit(t *testing.T) {
	t.Parallel()

	layer := cache.NewSyncLayer(newMemClient(), cache.DefaultSyncConfig(), nil)
	h := api.NewQueryHandler(&stubTaskStore{}, &stubWorkerStore{}, layer, 100, nil)

	rec := httptest.NewRecorder()
	h.ListUnassignedTasks(rec, httptest.NewRequest(http.MethodGet, "/api/tasks/unassigned?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListUnassignedTasksStoreDown(t *testing.T) {
	t.Parallel()

	layer := cache.NewSyncLayer(newMemClient(), cache.DefaultSyncConfig(), nil)
	h := api.NewQueryHandler(&stubTaskStore{failing: true}, &stubWorkerStore{}, layer, 100, nil)

	rec := httptest.NewRecorder()
	h.ListUnassignedTasks(rec, httptest.NewRequest(http.MethodGet, "/api/tasks/unassigned", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListWorkersFallsBackToStore(t *testing.T) {
	t.Parallel()

	workerID := uuid.New()
	workers := &stubWorkerStore{workers: []domain.Worker{{
		ID: workerID, Lat: ptr(23.81), Lon: ptr(90.41), Active: true,
	}}}
	layer := cache.NewSyncLayer(newMemClient(), cache.DefaultSyncConfig(), nil)
	h := api.NewQueryHandler(&stubTaskStore{}, workers, layer, 100, nil)

	rec := httptest.NewRecorder()
	h.ListWorkers(rec, httptest.NewRequest(http.MethodGet, "/api/workers", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), workerID.String())

	cached, ok := layer.GetWorkers(context.Background())
	require.True(t, ok)
	require.Len(t, cached, 1)
	assert.Equal(t, workerID, cached[0].ID)
}

var _ store.TaskStore = (*countingTaskStore)(nil)
