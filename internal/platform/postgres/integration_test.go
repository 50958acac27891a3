//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/fare-enricher/internal/config"
	"github.com/phrazzld/fare-enricher/internal/domain"
	"github.com/phrazzld/fare-enricher/internal/store"
	"github.com/phrazzld/fare-enricher/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openIntegrationDB(t *testing.T) *sql.DB {
	t.Helper()

	url := testdb.DatabaseURL(t)
	ctx := context.Background()
	db, err := Open(ctx, config.DatabaseConfig{URL: url, MaxOpenConns: 4, MaxIdleConns: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(ctx, db, nil))
	return db
}

func TestIntegration_FlightAndTaskLifecycle(t *testing.T) {
	db := openIntegrationDB(t)
	ctx := context.Background()
	flights, tasks, tx := NewStores(db, nil)

	flight := sampleFlight()
	flight.FlightID = "it-" + uuid.NewString()
	taskID := uuid.NewString()

	err := tx.WithinTx(ctx, func(ctx context.Context, fs store.FlightStore, ts store.TaskStore) error {
		if err := fs.Upsert(ctx, flight); err != nil {
			return err
		}
		task, err := domain.NewEnrichmentTask(taskID, flight.FlightID)
		if err != nil {
			return err
		}
		return ts.Create(ctx, task)
	})
	require.NoError(t, err)

	price := 650.0
	require.NoError(t, flights.SaveEnrichment(ctx, flight.FlightID, &price))
	require.NoError(t, flights.SaveEnrichment(ctx, flight.FlightID, nil))

	stored, err := flights.GetByID(ctx, flight.FlightID)
	require.NoError(t, err)
	require.NotNil(t, stored.RetailPrice)
	assert.Equal(t, 650.0, *stored.RetailPrice)
	assert.True(t, stored.Enriched)
	assert.Len(t, stored.Legs, 2)

	task, err := tasks.GetByID(ctx, taskID)
	require.NoError(t, err)
	require.NoError(t, task.Start())
	require.NoError(t, tasks.Update(ctx, task))
	require.NoError(t, task.Succeed(&price, time.Now()))
	require.NoError(t, tasks.Update(ctx, task))

	late, err := tasks.GetByID(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusSuccess, late.Status)

	// A second writer holding a stale copy cannot move the task again.
	stale := *task
	stale.Status = domain.TaskStatusFailure
	stale.Result = &domain.TaskResult{Error: "late"}
	assert.ErrorIs(t, tasks.Update(ctx, &stale), store.ErrTaskCompleted)

	// Re-ingestion resets enrichment state.
	require.NoError(t, flights.Upsert(ctx, sampleFlightWithID(flight.FlightID)))
	reset, err := flights.GetByID(ctx, flight.FlightID)
	require.NoError(t, err)
	assert.Nil(t, reset.RetailPrice)
	assert.False(t, reset.Enriched)
}

func sampleFlightWithID(id string) *domain.Flight {
	f := sampleFlight()
	f.FlightID = id
	return f
}

func TestIntegration_StoresInsideTransaction(t *testing.T) {
	db := openIntegrationDB(t)
	ctx := context.Background()
	flights, tasks, _ := NewStores(db, nil)
	flightID := "it-tx-" + uuid.NewString()

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		txFlights := flights.WithTx(tx)
		txTasks := tasks.WithTx(tx)

		require.NoError(t, txFlights.Upsert(ctx, sampleFlightWithID(flightID)))
		task, err := domain.NewEnrichmentTask(uuid.NewString(), flightID)
		require.NoError(t, err)
		require.NoError(t, txTasks.Create(ctx, task))

		_, err = txFlights.GetByID(ctx, flightID)
		require.NoError(t, err)
	})

	_, err := flights.GetByID(ctx, flightID)
	assert.ErrorIs(t, err, store.ErrFlightNotFound)
}
