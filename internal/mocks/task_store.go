package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/phrazzld/fare-enricher/internal/domain"
	"github.com/phrazzld/fare-enricher/internal/store"
)

// MockTaskStore is an in-memory store.TaskStore.
type MockTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]domain.EnrichmentTask

	CreateFn        func(ctx context.Context, task *domain.EnrichmentTask) error
	GetByIDFn       func(ctx context.Context, taskID string) (*domain.EnrichmentTask, error)
	UpdateFn        func(ctx context.Context, task *domain.EnrichmentTask) error
	ListByStatusFn  func(ctx context.Context, status domain.TaskStatus, limit int) ([]*domain.EnrichmentTask, error)
	ListCompletedFn func(ctx context.Context, limit int) ([]*domain.EnrichmentTask, error)
}

var _ store.TaskStore = (*MockTaskStore)(nil)

// NewMockTaskStore creates a MockTaskStore with working defaults.
func NewMockTaskStore() *MockTaskStore {
	s := &MockTaskStore{tasks: make(map[string]domain.EnrichmentTask)}

	s.CreateFn = func(ctx context.Context, task *domain.EnrichmentTask) error {
		if err := task.Validate(); err != nil {
			return err
		}
		s.mu.Lock()
		defer s.mu.Unlock()

		if _, ok := s.tasks[task.TaskID]; ok {
			return store.ErrTaskExists
		}
		s.tasks[task.TaskID] = copyTask(*task)
		return nil
	}

	s.GetByIDFn = func(ctx context.Context, taskID string) (*domain.EnrichmentTask, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()

		t, ok := s.tasks[taskID]
		if !ok {
			return nil, store.ErrTaskNotFound
		}
		c := copyTask(t)
		return &c, nil
	}

	s.UpdateFn = func(ctx context.Context, task *domain.EnrichmentTask) error {
		if err := task.Validate(); err != nil {
			return err
		}
		s.mu.Lock()
		defer s.mu.Unlock()

		prev, ok := s.tasks[task.TaskID]
		if !ok {
			return store.ErrTaskNotFound
		}
		if prev.Status.IsTerminal() {
			return store.ErrTaskCompleted
		}
		prev.Status = task.Status
		prev.Result = task.Result
		prev.CompletedAt = task.CompletedAt
		s.tasks[task.TaskID] = copyTask(prev)
		return nil
	}

	s.ListByStatusFn = func(ctx context.Context, status domain.TaskStatus, limit int) ([]*domain.EnrichmentTask, error) {
		out := s.filter(func(t domain.EnrichmentTask) bool { return t.Status == status })
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
		return truncate(out, limit), nil
	}

	s.ListCompletedFn = func(ctx context.Context, limit int) ([]*domain.EnrichmentTask, error) {
		out := s.filter(func(t domain.EnrichmentTask) bool { return t.Status.IsTerminal() })
		sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.After(*out[j].CompletedAt) })
		return truncate(out, limit), nil
	}

	return s
}

// Create implements store.TaskStore.
func (s *MockTaskStore) Create(ctx context.Context, task *domain.EnrichmentTask) error {
	return s.CreateFn(ctx, task)
}

// GetByID implements store.TaskStore.
func (s *MockTaskStore) GetByID(ctx context.Context, taskID string) (*domain.EnrichmentTask, error) {
	return s.GetByIDFn(ctx, taskID)
}

// Update implements store.TaskStore.
func (s *MockTaskStore) Update(ctx context.Context, task *domain.EnrichmentTask) error {
	return s.UpdateFn(ctx, task)
}

// ListByStatus implements store.TaskStore.
func (s *MockTaskStore) ListByStatus(ctx context.Context, status domain.TaskStatus, limit int) ([]*domain.EnrichmentTask, error) {
	return s.ListByStatusFn(ctx, status, limit)
}

// ListCompleted implements store.TaskStore.
func (s *MockTaskStore) ListCompleted(ctx context.Context, limit int) ([]*domain.EnrichmentTask, error) {
	return s.ListCompletedFn(ctx, limit)
}

// WithTx returns the same store; the mock has no transactions of its own.
func (s *MockTaskStore) WithTx(*sql.Tx) store.TaskStore {
	return s
}

// ForFlight returns every task recorded for flightID.
func (s *MockTaskStore) ForFlight(flightID string) []*domain.EnrichmentTask {
	return s.filter(func(t domain.EnrichmentTask) bool { return t.FlightID == flightID })
}

// Count returns the number of stored tasks.
func (s *MockTaskStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

func (s *MockTaskStore) filter(keep func(domain.EnrichmentTask) bool) []*domain.EnrichmentTask {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.EnrichmentTask, 0)
	for _, t := range s.tasks {
		if keep(t) {
			c := copyTask(t)
			out = append(out, &c)
		}
	}
	return out
}

func (s *MockTaskStore) snapshot() map[string]domain.EnrichmentTask {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.EnrichmentTask, len(s.tasks))
	for k, v := range s.tasks {
		out[k] = copyTask(v)
	}
	return out
}

func (s *MockTaskStore) restore(snap map[string]domain.EnrichmentTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = snap
}

func truncate(tasks []*domain.EnrichmentTask, limit int) []*domain.EnrichmentTask {
	if limit > 0 && len(tasks) > limit {
		return tasks[:limit]
	}
	return tasks
}

func copyTask(t domain.EnrichmentTask) domain.EnrichmentTask {
	if t.Result != nil {
		r := *t.Result
		if r.RetailPrice != nil {
			p := *r.RetailPrice
			r.RetailPrice = &p
		}
		t.Result = &r
	}
	if t.CompletedAt != nil {
		c := *t.CompletedAt
		t.CompletedAt = &c
	}
	return t
}
