package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/fare-enricher/internal/domain"
)

// FlightStore defines the interface for flight persistence.
// Version: 1.0
type FlightStore interface {
	// Upsert inserts the flight or overwrites every attribute of the existing
	// record with the same FlightID, including enrichment state.
	Upsert(ctx context.Context, flight *domain.Flight) error

	// GetByID retrieves a flight by its FlightID.
	// Returns ErrFlightNotFound if the flight does not exist.
	GetByID(ctx context.Context, flightID string) (*domain.Flight, error)

	// SaveEnrichment marks the flight enriched and stores price when it is non-nil.
	// A nil price leaves any stored price untouched.
	// Returns ErrFlightNotFound if the flight does not exist.
	SaveEnrichment(ctx context.Context, flightID string, price *float64) error

	// List returns flights ordered by last_seen, newest first.
	List(ctx context.Context, limit, offset int) ([]*domain.Flight, error)

	// WithTx returns a new FlightStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) FlightStore
}
