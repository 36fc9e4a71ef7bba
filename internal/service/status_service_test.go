package service_test

import (
	"context"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/dispatch-api/internal/cache"
	"github.com/fieldops/dispatch-api/internal/domain"
	"github.com/fieldops/dispatch-api/internal/service"
	"github.com/fieldops/dispatch-api/internal/store"
)

// fakeTaskStore implements the slice of store.TaskStore the status service
// uses, with guarded status updates.
type fakeTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
}

func (s *fakeTaskStore) add(t domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := t
	s.tasks[t.ID] = &cp
}

func (s *fakeTaskStore) get(id uuid.UUID) domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.tasks[id]
}

func (s *fakeTaskStore) FindPendingGeocoded(context.Context, int) ([]domain.Task, error) {
	return nil, nil
}

func (s *fakeTaskStore) ConditionalBulkAssign(context.Context, []store.AssignmentPair) ([]uuid.UUID, error) {
	return nil, nil
}

func (s *fakeTaskStore) CountActiveByWorker(context.Context, []uuid.UUID) (map[uuid.UUID]int, error) {
	return map[uuid.UUID]int{}, nil
}

func (s *fakeTaskStore) UpdateStatus(_ context.Context, taskID uuid.UUID, from, to domain.TaskStatus, workerID *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return store.ErrTaskNotFound
	}
	if t.Status != from {
		return store.ErrUpdateFailed
	}
	t.Status = to
	if workerID != nil {
		t.AssignedWorkerID = workerID
	}
	return nil
}

func (s *fakeTaskStore) GetByID(_ context.Context, taskID uuid.UUID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

// memCacheClient is the same in-memory fake used by the engine tests.
type memCacheClient struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemCacheClient() *memCacheClient {
	return &memCacheClient{values: make(map[string]string)}
}

func (c *memCacheClient) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return v, nil
}

func (c *memCacheClient) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *memCacheClient) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.values, k)
	}
	return nil
}

func (c *memCacheClient) ScanKeys(_ context.Context, pattern string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for k := range c.values {
		if ok, _ := path.Match(pattern, k); ok {
			out = append(out, k)
		}
	}
	return out, nil
}

func (c *memCacheClient) Ping(context.Context) error { return nil }

func ptrUUID(id uuid.UUID) *uuid.UUID { return &id }

func assignedTask(workerID uuid.UUID, status domain.TaskStatus) domain.Task {
	lat, lon := 23.81, 90.41
	now := time.Now().UTC()
	return domain.Task{
		ID:               uuid.New(),
		Lat:              &lat,
		Lon:              &lon,
		Status:           status,
		AssignedWorkerID: ptrUUID(workerID),
		AssignedAt:       &now,
		CreatedAt:        now,
	}
}

func newTestService(t *testing.T) (*service.StatusService, *fakeTaskStore) {
	t.Helper()
	tasks := newFakeTaskStore()
	cfg := cache.DefaultSyncConfig()
	cfg.OpTimeout = 100 * time.Millisecond
	layer := cache.NewSyncLayer(newMemCacheClient(), cfg, nil)
	return service.NewStatusService(tasks, layer, nil), tasks
}

func TestAcceptAssignedTask(t *testing.T) {
	t.Parallel()

	svc, tasks := newTestService(t)
	worker := uuid.New()
	task := assignedTask(worker, domain.TaskStatusAssigned)
	tasks.add(task)

	err := svc.Accept(context.Background(), task.ID, worker)

	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusAccepted, tasks.get(task.ID).Status)
}

func TestAcceptPreviouslyRejectedTask(t *testing.T) {
	t.Parallel()

	svc, tasks := newTestService(t)
	worker := uuid.New()
	task := assignedTask(worker, domain.TaskStatusRejected)
	tasks.add(task)

	err := svc.Accept(context.Background(), task.ID, worker)

	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusAccepted, tasks.get(task.ID).Status)
}

func TestAcceptByWrongWorker(t *testing.T) {
	t.Parallel()

	svc, tasks := newTestService(t)
	task := assignedTask(uuid.New(), domain.TaskStatusAssigned)
	tasks.add(task)

	err := svc.Accept(context.Background(), task.ID, uuid.New())

	assert.ErrorIs(t, err, service.ErrNotAssignedToWorker)
	assert.Equal(t, domain.TaskStatusAssigned, tasks.get(task.ID).Status)
}

func TestRejectAssignedTask(t *testing.T) {
	t.Parallel()

	svc, tasks := newTestService(t)
	worker := uuid.New()
	task := assignedTask(worker, domain.TaskStatusAssigned)
	tasks.add(task)

	err := svc.Reject(context.Background(), task.ID, worker)

	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusRejected, tasks.get(task.ID).Status)
}

func TestCompleteRequiresAcceptedStatus(t *testing.T) {
	t.Parallel()

	svc, tasks := newTestService(t)
	worker := uuid.New()
	task := assignedTask(worker, domain.TaskStatusAssigned)
	tasks.add(task)

	err := svc.Complete(context.Background(), task.ID, worker)

	var invalid *domain.ErrInvalidTransition
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, domain.TaskStatusAssigned, invalid.From)
	assert.Equal(t, domain.TaskStatusCompleted, invalid.To)
}

func TestCompleteAcceptedTask(t *testing.T) {
	t.Parallel()

	svc, tasks := newTestService(t)
	worker := uuid.New()
	task := assignedTask(worker, domain.TaskStatusAccepted)
	tasks.add(task)

	err := svc.Complete(context.Background(), task.ID, worker)

	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, tasks.get(task.ID).Status)
}

func TestReassignRejectedTask(t *testing.T) {
	t.Parallel()

	svc, tasks := newTestService(t)
	oldWorker := uuid.New()
	newWorker := uuid.New()
	task := assignedTask(oldWorker, domain.TaskStatusRejected)
	tasks.add(task)

	err := svc.Reassign(context.Background(), task.ID, newWorker)

	require.NoError(t, err)
	got := tasks.get(task.ID)
	assert.Equal(t, domain.TaskStatusAssigned, got.Status)
	assert.Equal(t, newWorker, *got.AssignedWorkerID)
}

func TestReassignRefusesAcceptedAndCompleted(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status domain.TaskStatus
	}{
		{name: "accepted task", status: domain.TaskStatusAccepted},
		{name: "completed task", status: domain.TaskStatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, tasks := newTestService(t)
			task := assignedTask(uuid.New(), tt.status)
			tasks.add(task)

			err := svc.Reassign(context.Background(), task.ID, uuid.New())

			assert.ErrorIs(t, err, service.ErrNotReallocatable)
			assert.Equal(t, tt.status, tasks.get(task.ID).Status)
		})
	}
}

func TestStaleTransitionLosesCleanly(t *testing.T) {
	t.Parallel()

	svc, tasks := newTestService(t)
	worker := uuid.New()
	task := assignedTask(worker, domain.TaskStatusAssigned)
	tasks.add(task)

	// Another writer completes the accept before our reject lands.
	require.NoError(t, svc.Accept(context.Background(), task.ID, worker))

	err := svc.Reject(context.Background(), task.ID, worker)

	require.Error(t, err)
	assert.Equal(t, domain.TaskStatusAccepted, tasks.get(task.ID).Status)
}
