package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/phrazzld/fare-enricher/internal/domain"
	"github.com/phrazzld/fare-enricher/internal/store"
)

// MockFlightStore is an in-memory store.FlightStore.
type MockFlightStore struct {
	mu      sync.RWMutex
	flights map[string]domain.Flight

	UpsertFn         func(ctx context.Context, flight *domain.Flight) error
	GetByIDFn        func(ctx context.Context, flightID string) (*domain.Flight, error)
	SaveEnrichmentFn func(ctx context.Context, flightID string, price *float64) error
	ListFn           func(ctx context.Context, limit, offset int) ([]*domain.Flight, error)
}

var _ store.FlightStore = (*MockFlightStore)(nil)

// NewMockFlightStore creates a MockFlightStore with working defaults.
func NewMockFlightStore() *MockFlightStore {
	s := &MockFlightStore{flights: make(map[string]domain.Flight)}

	s.UpsertFn = func(ctx context.Context, flight *domain.Flight) error {
		if err := flight.Validate(); err != nil {
			return err
		}
		s.mu.Lock()
		defer s.mu.Unlock()

		now := time.Now().UTC()
		flight.ResetEnrichment()
		flight.UpdatedAt = now
		if prev, ok := s.flights[flight.FlightID]; ok {
			flight.CreatedAt = prev.CreatedAt
		} else {
			flight.CreatedAt = now
		}
		s.flights[flight.FlightID] = copyFlight(*flight)
		return nil
	}

	s.GetByIDFn = func(ctx context.Context, flightID string) (*domain.Flight, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()

		f, ok := s.flights[flightID]
		if !ok {
			return nil, store.ErrFlightNotFound
		}
		c := copyFlight(f)
		return &c, nil
	}

	s.SaveEnrichmentFn = func(ctx context.Context, flightID string, price *float64) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		f, ok := s.flights[flightID]
		if !ok {
			return store.ErrFlightNotFound
		}
		f.ApplyEnrichment(price)
		f.UpdatedAt = time.Now().UTC()
		s.flights[flightID] = f
		return nil
	}

	s.ListFn = func(ctx context.Context, limit, offset int) ([]*domain.Flight, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()

		all := make([]*domain.Flight, 0, len(s.flights))
		for _, f := range s.flights {
			c := copyFlight(f)
			all = append(all, &c)
		}
		sort.Slice(all, func(i, j int) bool {
			if all[i].LastSeen.Equal(all[j].LastSeen) {
				return all[i].FlightID < all[j].FlightID
			}
			return all[i].LastSeen.After(all[j].LastSeen)
		})

		if offset >= len(all) {
			return []*domain.Flight{}, nil
		}
		end := offset + limit
		if end > len(all) {
			end = len(all)
		}
		return all[offset:end], nil
	}

	return s
}

// Upsert implements store.FlightStore.
func (s *MockFlightStore) Upsert(ctx context.Context, flight *domain.Flight) error {
	return s.UpsertFn(ctx, flight)
}

// GetByID implements store.FlightStore.
func (s *MockFlightStore) GetByID(ctx context.Context, flightID string) (*domain.Flight, error) {
	return s.GetByIDFn(ctx, flightID)
}

// SaveEnrichment implements store.FlightStore.
func (s *MockFlightStore) SaveEnrichment(ctx context.Context, flightID string, price *float64) error {
	return s.SaveEnrichmentFn(ctx, flightID, price)
}

// List implements store.FlightStore.
func (s *MockFlightStore) List(ctx context.Context, limit, offset int) ([]*domain.Flight, error) {
	return s.ListFn(ctx, limit, offset)
}

// WithTx returns the same store; the mock has no transactions of its own.
func (s *MockFlightStore) WithTx(*sql.Tx) store.FlightStore {
	return s
}

// Put stores flight as is, bypassing upsert semantics.
func (s *MockFlightStore) Put(flight domain.Flight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flights[flight.FlightID] = copyFlight(flight)
}

// Delete removes a flight, as an operator would.
func (s *MockFlightStore) Delete(flightID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flights, flightID)
}

// Count returns the number of stored flights.
func (s *MockFlightStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.flights)
}

func (s *MockFlightStore) snapshot() map[string]domain.Flight {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Flight, len(s.flights))
	for k, v := range s.flights {
		out[k] = copyFlight(v)
	}
	return out
}

func (s *MockFlightStore) restore(snap map[string]domain.Flight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flights = snap
}

func copyFlight(f domain.Flight) domain.Flight {
	if f.RetailPrice != nil {
		p := *f.RetailPrice
		f.RetailPrice = &p
	}
	f.FlightNumbers = append([]string(nil), f.FlightNumbers...)
	f.Legs = append([]domain.FlightLeg(nil), f.Legs...)
	return f
}
