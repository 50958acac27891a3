package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/phrazzld/fare-enricher/internal/domain"
	"github.com/phrazzld/fare-enricher/internal/mocks"
	"github.com/phrazzld/fare-enricher/internal/platform/logger"
	"github.com/phrazzld/fare-enricher/internal/queue"
	"github.com/phrazzld/fare-enricher/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	flights *mocks.MockFlightStore
	tasks   *mocks.MockTaskStore
	queue   *queue.ChannelQueue
	svc     EnrichmentService
}

func newServiceFixture(t *testing.T, q queue.Queue) *serviceFixture {
	t.Helper()
	log, _ := logger.NewTestLogger()

	f := &serviceFixture{
		flights: mocks.NewMockFlightStore(),
		tasks:   mocks.NewMockTaskStore(),
	}
	if q == nil {
		f.queue = queue.NewChannelQueue(10, log)
		q = f.queue
	}

	svc, err := NewEnrichmentService(f.flights, f.tasks, mocks.NewMockTransactor(f.flights, f.tasks), q, log)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func sampleFlight(id string) *domain.Flight {
	dep := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	return &domain.Flight{
		FlightID:      id,
		TravelClass:   "economy",
		Origin:        "JFK",
		Destination:   "LAX",
		DepartureTime: dep,
		ArrivalTime:   dep.Add(6 * time.Hour),
		FlightNumbers: []string{"AA100"},
		LastSeen:      dep.Add(-24 * time.Hour),
	}
}

func TestNewEnrichmentService(t *testing.T) {
	flights := mocks.NewMockFlightStore()
	tasks := mocks.NewMockTaskStore()
	tx := mocks.NewMockTransactor(flights, tasks)
	q := queue.NewChannelQueue(1, nil)

	_, err := NewEnrichmentService(nil, tasks, tx, q, nil)
	assert.Error(t, err)
	_, err = NewEnrichmentService(flights, nil, tx, q, nil)
	assert.Error(t, err)
	_, err = NewEnrichmentService(flights, tasks, nil, q, nil)
	assert.Error(t, err)
	_, err = NewEnrichmentService(flights, tasks, tx, nil, nil)
	assert.Error(t, err)

	svc, err := NewEnrichmentService(flights, tasks, tx, q, nil)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestIngestFlight(t *testing.T) {
	t.Run("stores flight and queues a pending task", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		ctx := context.Background()

		task, err := f.svc.IngestFlight(ctx, sampleFlight("F1"))
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusPending, task.Status)
		assert.Equal(t, "F1", task.FlightID)
		assert.NotEmpty(t, task.TaskID)

		stored, err := f.flights.GetByID(ctx, "F1")
		require.NoError(t, err)
		assert.False(t, stored.Enriched)
		assert.Nil(t, stored.RetailPrice)

		msg, err := f.queue.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, task.TaskID, msg.TaskID)
		assert.Equal(t, "F1", msg.FlightID)
	})

	t.Run("re-ingesting keeps one flight and creates distinct tasks", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		ctx := context.Background()

		first, err := f.svc.IngestFlight(ctx, sampleFlight("F1"))
		require.NoError(t, err)
		require.NoError(t, f.flights.SaveEnrichment(ctx, "F1", ptr(420.0)))

		second, err := f.svc.IngestFlight(ctx, sampleFlight("F1"))
		require.NoError(t, err)

		assert.NotEqual(t, first.TaskID, second.TaskID)
		assert.Equal(t, 1, f.flights.Count())
		assert.Len(t, f.tasks.ForFlight("F1"), 2)

		stored, err := f.flights.GetByID(ctx, "F1")
		require.NoError(t, err)
		assert.False(t, stored.Enriched)
		assert.Nil(t, stored.RetailPrice)
	})

	t.Run("offset timestamps are normalized to UTC", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		flight := sampleFlight("F2")
		zone := time.FixedZone("EST", -5*3600)
		flight.DepartureTime = time.Date(2025, 6, 1, 3, 30, 0, 0, zone)

		_, err := f.svc.IngestFlight(context.Background(), flight)
		require.NoError(t, err)

		stored, err := f.flights.GetByID(context.Background(), "F2")
		require.NoError(t, err)
		assert.Equal(t, time.UTC, stored.DepartureTime.Location())
		assert.Equal(t, 8, stored.DepartureTime.Hour())
	})

	t.Run("invalid flight is rejected before storage", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		flight := sampleFlight("")

		_, err := f.svc.IngestFlight(context.Background(), flight)
		require.Error(t, err)
		var vErr *domain.ValidationError
		assert.ErrorAs(t, err, &vErr)
		assert.Equal(t, 0, f.flights.Count())
		assert.Equal(t, 0, f.tasks.Count())
	})

	t.Run("task creation failure rolls back the flight", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		f.tasks.CreateFn = func(context.Context, *domain.EnrichmentTask) error {
			return errors.New("disk full")
		}

		_, err := f.svc.IngestFlight(context.Background(), sampleFlight("F3"))
		require.Error(t, err)
		var svcErr *ServiceError
		assert.ErrorAs(t, err, &svcErr)
		assert.Equal(t, 0, f.flights.Count())

		n, err := f.queue.Len(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("enqueue failure marks the task failed", func(t *testing.T) {
		q := new(mocks.TestifyMockQueue)
		q.On("Enqueue", mock.Anything, mock.AnythingOfType("queue.Message")).Return(queue.ErrQueueFull)
		f := newServiceFixture(t, q)

		task, err := f.svc.IngestFlight(context.Background(), sampleFlight("F4"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEnqueueFailed)
		require.NotNil(t, task)

		stored, err := f.tasks.GetByID(context.Background(), task.TaskID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusFailure, stored.Status)
		require.NotNil(t, stored.Result)
		assert.Equal(t, "failed to enqueue enrichment", stored.Result.Error)
		assert.NotNil(t, stored.CompletedAt)

		q.AssertExpectations(t)
	})

	t.Run("uses injected id generator", func(t *testing.T) {
		log, _ := logger.NewTestLogger()
		flights := mocks.NewMockFlightStore()
		tasks := mocks.NewMockTaskStore()
		n := 0
		svc, err := NewEnrichmentService(flights, tasks, mocks.NewMockTransactor(flights, tasks),
			queue.NewChannelQueue(5, log), log,
			WithIDGenerator(func() string { n++; return fmt.Sprintf("task-%d", n) }))
		require.NoError(t, err)

		task, err := svc.IngestFlight(context.Background(), sampleFlight("F5"))
		require.NoError(t, err)
		assert.Equal(t, "task-1", task.TaskID)
	})
}

func TestGetTaskStatus(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	created, err := f.svc.IngestFlight(ctx, sampleFlight("F1"))
	require.NoError(t, err)

	t.Run("pending task has no result", func(t *testing.T) {
		task, err := f.svc.GetTaskStatus(ctx, created.TaskID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusPending, task.Status)
		assert.Nil(t, task.Result)
		assert.Nil(t, task.CompletedAt)
	})

	t.Run("unknown task", func(t *testing.T) {
		_, err := f.svc.GetTaskStatus(ctx, "does-not-exist")
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})

	t.Run("store failure", func(t *testing.T) {
		f.tasks.GetByIDFn = func(context.Context, string) (*domain.EnrichmentTask, error) {
			return nil, store.ErrTransactionFailed
		}
		_, err := f.svc.GetTaskStatus(ctx, created.TaskID)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrTaskNotFound)
	})
}

func TestListRecentTasks(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		task, err := domain.NewEnrichmentTask(fmt.Sprintf("t%d", i), "F1")
		require.NoError(t, err)
		require.NoError(t, f.tasks.Create(ctx, task))
		require.NoError(t, task.Start())
		require.NoError(t, task.Succeed(ptr(float64(100+i)), base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, f.tasks.Update(ctx, task))
	}

	t.Run("defaults to three most recent", func(t *testing.T) {
		tasks, err := f.svc.ListRecentTasks(ctx, 0)
		require.NoError(t, err)
		require.Len(t, tasks, DefaultTaskListLimit)
		assert.Equal(t, "t4", tasks[0].TaskID)
		assert.Equal(t, "t2", tasks[2].TaskID)
	})

	t.Run("explicit limit", func(t *testing.T) {
		tasks, err := f.svc.ListRecentTasks(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, tasks, 5)
	})

	t.Run("out of range limit", func(t *testing.T) {
		_, err := f.svc.ListRecentTasks(ctx, MaxListLimit+1)
		assert.ErrorIs(t, err, ErrInvalidPaging)
		_, err = f.svc.ListRecentTasks(ctx, -1)
		assert.ErrorIs(t, err, ErrInvalidPaging)
	})
}

func TestListFlights(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	for _, id := range []string{"A", "B", "C"} {
		_, err := f.svc.IngestFlight(ctx, sampleFlight(id))
		require.NoError(t, err)
	}

	flights, err := f.svc.ListFlights(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, flights, 3)

	flights, err = f.svc.ListFlights(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, flights, 2)

	_, err = f.svc.ListFlights(ctx, 10, -1)
	assert.ErrorIs(t, err, ErrInvalidPaging)
}

func ptr(v float64) *float64 { return &v }
