package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/fare-enricher/internal/store"
)

// MockTransactor runs fn against the in-memory stores and restores their
// previous contents if fn fails. Transactions are serialized.
type MockTransactor struct {
	mu      sync.Mutex
	Flights *MockFlightStore
	Tasks   *MockTaskStore

	WithinTxFn func(ctx context.Context, fn func(ctx context.Context, flights store.FlightStore, tasks store.TaskStore) error) error
}

var _ store.Transactor = (*MockTransactor)(nil)

// NewMockTransactor creates a transactor over the given stores.
func NewMockTransactor(flights *MockFlightStore, tasks *MockTaskStore) *MockTransactor {
	t := &MockTransactor{Flights: flights, Tasks: tasks}
	t.WithinTxFn = func(ctx context.Context, fn func(ctx context.Context, flights store.FlightStore, tasks store.TaskStore) error) error {
		t.mu.Lock()
		defer t.mu.Unlock()

		flightSnap := t.Flights.snapshot()
		taskSnap := t.Tasks.snapshot()

		if err := fn(ctx, t.Flights, t.Tasks); err != nil {
			t.Flights.restore(flightSnap)
			t.Tasks.restore(taskSnap)
			return err
		}
		return nil
	}
	return t
}

// WithinTx implements store.Transactor.
func (t *MockTransactor) WithinTx(
	ctx context.Context,
	fn func(ctx context.Context, flights store.FlightStore, tasks store.TaskStore) error,
) error {
	return t.WithinTxFn(ctx, fn)
}
