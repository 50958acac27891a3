package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/fare-enricher/internal/domain"
	"github.com/phrazzld/fare-enricher/internal/platform/logger"
	"github.com/phrazzld/fare-enricher/internal/store"
)

// PostgresFlightStore implements store.FlightStore on PostgreSQL.
type PostgresFlightStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresFlightStore creates a flight store over a connection or transaction
// managed by the caller. If logger is nil, a default logger will be used.
func NewPostgresFlightStore(db store.DBTX, logger *slog.Logger) *PostgresFlightStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresFlightStore{
		db:     db,
		logger: logger.With(slog.String("component", "flight_store")),
	}
}

var _ store.FlightStore = (*PostgresFlightStore)(nil)

const flightColumns = `flight_id, travel_class, origin, destination, departure_time, arrival_time,
	flight_numbers, legs, last_seen, retail_price, enriched, created_at, updated_at`

// Upsert implements store.FlightStore.Upsert.
// Every attribute is overwritten and enrichment state is reset.
func (s *PostgresFlightStore) Upsert(ctx context.Context, flight *domain.Flight) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := flight.Validate(); err != nil {
		log.Warn("flight validation failed during upsert",
			slog.String("error", err.Error()),
			slog.String("flight_id", flight.FlightID))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	numbers, err := json.Marshal(nonNilStrings(flight.FlightNumbers))
	if err != nil {
		return fmt.Errorf("failed to encode flight numbers: %w", err)
	}
	legs, err := json.Marshal(nonNilLegs(flight.Legs))
	if err != nil {
		return fmt.Errorf("failed to encode legs: %w", err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO flights (` + flightColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL, FALSE, $10, $10)
		ON CONFLICT (flight_id) DO UPDATE SET
			travel_class   = EXCLUDED.travel_class,
			origin         = EXCLUDED.origin,
			destination    = EXCLUDED.destination,
			departure_time = EXCLUDED.departure_time,
			arrival_time   = EXCLUDED.arrival_time,
			flight_numbers = EXCLUDED.flight_numbers,
			legs           = EXCLUDED.legs,
			last_seen      = EXCLUDED.last_seen,
			retail_price   = NULL,
			enriched       = FALSE,
			updated_at     = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		flight.FlightID,
		flight.TravelClass,
		flight.Origin,
		flight.Destination,
		flight.DepartureTime.UTC(),
		flight.ArrivalTime.UTC(),
		string(numbers),
		string(legs),
		flight.LastSeen.UTC(),
		now,
	)
	if err != nil {
		log.Error("failed to upsert flight",
			slog.String("error", err.Error()),
			slog.String("flight_id", flight.FlightID))
		return MapError(err)
	}

	flight.ResetEnrichment()
	flight.UpdatedAt = now

	log.Debug("flight upserted", slog.String("flight_id", flight.FlightID))
	return nil
}

// GetByID implements store.FlightStore.GetByID.
func (s *PostgresFlightStore) GetByID(ctx context.Context, flightID string) (*domain.Flight, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + flightColumns + ` FROM flights WHERE flight_id = $1`

	flight, err := scanFlight(s.db.QueryRowContext(ctx, query, flightID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("flight not found", slog.String("flight_id", flightID))
			return nil, store.ErrFlightNotFound
		}
		log.Error("failed to get flight",
			slog.String("error", err.Error()),
			slog.String("flight_id", flightID))
		return nil, MapError(err)
	}

	return flight, nil
}

// SaveEnrichment implements store.FlightStore.SaveEnrichment.
func (s *PostgresFlightStore) SaveEnrichment(ctx context.Context, flightID string, price *float64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE flights
		SET retail_price = COALESCE($2, retail_price), enriched = TRUE, updated_at = $3
		WHERE flight_id = $1
	`

	var priceArg sql.NullFloat64
	if price != nil {
		priceArg = sql.NullFloat64{Float64: *price, Valid: true}
	}

	result, err := s.db.ExecContext(ctx, query, flightID, priceArg, time.Now().UTC())
	if err != nil {
		log.Error("failed to save enrichment",
			slog.String("error", err.Error()),
			slog.String("flight_id", flightID))
		return MapError(err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrFlightNotFound
	}

	return nil
}

// List implements store.FlightStore.List.
func (s *PostgresFlightStore) List(ctx context.Context, limit, offset int) ([]*domain.Flight, error) {
	query := `SELECT ` + flightColumns + ` FROM flights ORDER BY last_seen DESC, flight_id LIMIT $1 OFFSET $2`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list flights",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	flights := make([]*domain.Flight, 0)
	for rows.Next() {
		flight, err := scanFlight(rows)
		if err != nil {
			return nil, MapError(err)
		}
		flights = append(flights, flight)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return flights, nil
}

// WithTx implements store.FlightStore.WithTx.
func (s *PostgresFlightStore) WithTx(tx *sql.Tx) store.FlightStore {
	return &PostgresFlightStore{
		db:     tx,
		logger: s.logger,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlight(row rowScanner) (*domain.Flight, error) {
	var (
		flight  domain.Flight
		numbers []byte
		legs    []byte
		price   sql.NullFloat64
	)

	err := row.Scan(
		&flight.FlightID,
		&flight.TravelClass,
		&flight.Origin,
		&flight.Destination,
		&flight.DepartureTime,
		&flight.ArrivalTime,
		&numbers,
		&legs,
		&flight.LastSeen,
		&price,
		&flight.Enriched,
		&flight.CreatedAt,
		&flight.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(numbers, &flight.FlightNumbers); err != nil {
		return nil, fmt.Errorf("failed to decode flight numbers: %w", err)
	}
	if err := json.Unmarshal(legs, &flight.Legs); err != nil {
		return nil, fmt.Errorf("failed to decode legs: %w", err)
	}
	if price.Valid {
		p := price.Float64
		flight.RetailPrice = &p
	}

	flight.NormalizeTimes()
	flight.CreatedAt = flight.CreatedAt.UTC()
	flight.UpdatedAt = flight.UpdatedAt.UTC()
	return &flight, nil
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nonNilLegs(v []domain.FlightLeg) []domain.FlightLeg {
	if v == nil {
		return []domain.FlightLeg{}
	}
	return v
}
