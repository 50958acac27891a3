// Package mocks holds test doubles for the store, queue and pricing interfaces.
//
// The store mocks are in-memory and behave like the PostgreSQL stores by
// default, including the refusal to update a completed task, so end-to-end
// flows can run without a database. Each method delegates to a function field
// that a test can replace to inject failures:
//
//	flights := mocks.NewMockFlightStore()
//	flights.GetByIDFn = func(ctx context.Context, id string) (*domain.Flight, error) {
//	    return nil, errors.New("connection reset")
//	}
//
// TestifyMockQueue is a testify/mock double for scripting queue failures.
// MockPriceSearcher counts its calls so tests can assert on retry attempts.
package mocks
