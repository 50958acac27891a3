package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/phrazzld/fare-enricher/internal/store"
)

// Transactor implements store.Transactor by running both stores on one *sql.Tx.
type Transactor struct {
	db      *sql.DB
	flights store.FlightStore
	tasks   store.TaskStore
}

// NewTransactor creates a Transactor whose stores are bound to each transaction it opens.
func NewTransactor(db *sql.DB, flights store.FlightStore, tasks store.TaskStore) *Transactor {
	return &Transactor{db: db, flights: flights, tasks: tasks}
}

// NewStores builds the flight store, task store and transactor for db.
func NewStores(db *sql.DB, log *slog.Logger) (*PostgresFlightStore, *PostgresTaskStore, *Transactor) {
	flights := NewPostgresFlightStore(db, log)
	tasks := NewPostgresTaskStore(db, log)
	return flights, tasks, NewTransactor(db, flights, tasks)
}

var _ store.Transactor = (*Transactor)(nil)

// WithinTx implements store.Transactor.
func (t *Transactor) WithinTx(
	ctx context.Context,
	fn func(ctx context.Context, flights store.FlightStore, tasks store.TaskStore) error,
) error {
	return store.RunInTransaction(ctx, t.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, t.flights.WithTx(tx), t.tasks.WithTx(tx))
	})
}
