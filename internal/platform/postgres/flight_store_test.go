package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/phrazzld/fare-enricher/internal/domain"
	"github.com/phrazzld/fare-enricher/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func sampleFlight() *domain.Flight {
	dep := time.Date(2025, 6, 1, 22, 30, 0, 0, time.UTC)
	price := 100.0
	return &domain.Flight{
		FlightID:      "F1",
		TravelClass:   "economy",
		Origin:        "JFK",
		Destination:   "ATH",
		DepartureTime: dep,
		ArrivalTime:   dep.Add(10 * time.Hour),
		FlightNumbers: []string{"A3 611", "A3 600"},
		Legs: []domain.FlightLeg{
			{Origin: "JFK", Destination: "MUC", FlightNumber: "A3 611"},
			{Origin: "MUC", Destination: "ATH", FlightNumber: "A3 600"},
		},
		LastSeen:    dep.Add(-24 * time.Hour),
		RetailPrice: &price,
		Enriched:    true,
	}
}

func TestPostgresFlightStore_Upsert(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresFlightStore(db, nil)

	flight := sampleFlight()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO flights")).
		WithArgs(
			"F1", "economy", "JFK", "ATH",
			flight.DepartureTime, flight.ArrivalTime,
			`["A3 611","A3 600"]`, sqlmock.AnyArg(),
			flight.LastSeen, sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Upsert(context.Background(), flight))
	assert.Nil(t, flight.RetailPrice)
	assert.False(t, flight.Enriched)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFlightStore_UpsertInvalid(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresFlightStore(db, nil)

	flight := sampleFlight()
	flight.FlightID = ""

	err := s.Upsert(context.Background(), flight)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFlightStore_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresFlightStore(db, nil)

	dep := time.Date(2025, 6, 1, 22, 30, 0, 0, time.UTC)
	columns := []string{
		"flight_id", "travel_class", "origin", "destination", "departure_time", "arrival_time",
		"flight_numbers", "legs", "last_seen", "retail_price", "enriched", "created_at", "updated_at",
	}

	t.Run("found", func(t *testing.T) {
		rows := sqlmock.NewRows(columns).AddRow(
			"F1", "economy", "JFK", "ATH", dep, dep.Add(10*time.Hour),
			[]byte(`["A3 611"]`), []byte(`[{"origin":"JFK","destination":"ATH"}]`),
			dep, "650.00", true, dep, dep,
		)
		mock.ExpectQuery(regexp.QuoteMeta("FROM flights WHERE flight_id = $1")).
			WithArgs("F1").
			WillReturnRows(rows)

		flight, err := s.GetByID(context.Background(), "F1")
		require.NoError(t, err)
		require.NotNil(t, flight.RetailPrice)
		assert.Equal(t, 650.0, *flight.RetailPrice)
		assert.True(t, flight.Enriched)
		assert.Equal(t, []string{"A3 611"}, flight.FlightNumbers)
		require.Len(t, flight.Legs, 1)
		assert.Equal(t, "ATH", flight.Legs[0].Destination)
	})

	t.Run("null price", func(t *testing.T) {
		rows := sqlmock.NewRows(columns).AddRow(
			"F2", "", "JFK", "ATH", dep, dep,
			[]byte(`[]`), []byte(`[]`), dep, nil, false, dep, dep,
		)
		mock.ExpectQuery(regexp.QuoteMeta("FROM flights WHERE flight_id = $1")).
			WithArgs("F2").
			WillReturnRows(rows)

		flight, err := s.GetByID(context.Background(), "F2")
		require.NoError(t, err)
		assert.Nil(t, flight.RetailPrice)
		assert.False(t, flight.Enriched)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("FROM flights WHERE flight_id = $1")).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := s.GetByID(context.Background(), "missing")
		assert.ErrorIs(t, err, store.ErrFlightNotFound)
		assert.True(t, store.IsNotFoundError(err))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFlightStore_SaveEnrichment(t *testing.T) {
	price := 650.0

	tests := []struct {
		name      string
		price     *float64
		priceArg  any
		affected  int64
		execErr   error
		wantErr   error
		wantOther bool
	}{
		{name: "price", price: &price, priceArg: 650.0, affected: 1},
		{name: "null price keeps stored value", priceArg: nil, affected: 1},
		{name: "flight missing", price: &price, priceArg: 650.0, wantErr: store.ErrFlightNotFound},
		{name: "driver error", price: &price, priceArg: 650.0, execErr: errors.New("conn reset"), wantOther: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			s := NewPostgresFlightStore(db, nil)

			exp := mock.ExpectExec(regexp.QuoteMeta("SET retail_price = COALESCE($2, retail_price), enriched = TRUE")).
				WithArgs("F1", tt.priceArg, sqlmock.AnyArg())
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, tt.affected))
			}

			err := s.SaveEnrichment(context.Background(), "F1", tt.price)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantOther:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresFlightStore_List(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresFlightStore(db, nil)

	dep := time.Date(2025, 6, 1, 22, 30, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"flight_id", "travel_class", "origin", "destination", "departure_time", "arrival_time",
		"flight_numbers", "legs", "last_seen", "retail_price", "enriched", "created_at", "updated_at",
	}).
		AddRow("F2", "", "LHR", "CDG", dep, dep, []byte(`[]`), []byte(`[]`), dep, nil, false, dep, dep).
		AddRow("F1", "", "JFK", "ATH", dep, dep, []byte(`[]`), []byte(`[]`), dep, "10.50", true, dep, dep)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY last_seen DESC")).
		WithArgs(10, 0).
		WillReturnRows(rows)

	flights, err := s.List(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, flights, 2)
	assert.Equal(t, "F2", flights[0].FlightID)
	require.NotNil(t, flights[1].RetailPrice)
	assert.Equal(t, 10.5, *flights[1].RetailPrice)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPostgresFlightStore_NilDB(t *testing.T) {
	assert.Panics(t, func() { NewPostgresFlightStore(nil, nil) })
}
