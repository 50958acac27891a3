package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/fare-enricher/internal/domain"
	"github.com/phrazzld/fare-enricher/internal/platform/logger"
	"github.com/phrazzld/fare-enricher/internal/queue"
	"github.com/phrazzld/fare-enricher/internal/redact"
	"github.com/phrazzld/fare-enricher/internal/store"
)

// Listing limits.
const (
	DefaultTaskListLimit   = 3
	DefaultFlightListLimit = 20
	MaxListLimit           = 100
)

// EnrichmentService accepts flights for enrichment and reports on tasks.
type EnrichmentService interface {
	// IngestFlight upserts the flight, resetting its enrichment state, creates
	// a PENDING task for it and queues the job. It never waits for the worker.
	//
	// If queueing fails after the flight and task were stored, the task is
	// marked FAILURE and returned together with an error wrapping
	// ErrEnqueueFailed.
	IngestFlight(ctx context.Context, flight *domain.Flight) (*domain.EnrichmentTask, error)

	// GetTaskStatus returns the task with the given id, or ErrTaskNotFound.
	GetTaskStatus(ctx context.Context, taskID string) (*domain.EnrichmentTask, error)

	// ListRecentTasks returns the most recently completed tasks. A limit of
	// zero selects DefaultTaskListLimit.
	ListRecentTasks(ctx context.Context, limit int) ([]*domain.EnrichmentTask, error)

	// ListFlights returns flights, most recently seen first. A limit of zero
	// selects DefaultFlightListLimit.
	ListFlights(ctx context.Context, limit, offset int) ([]*domain.Flight, error)
}

type enrichmentServiceImpl struct {
	flights    store.FlightStore
	tasks      store.TaskStore
	transactor store.Transactor
	queue      queue.Queue
	logger     *slog.Logger
	recorder   IngestRecorder
	newID      func() string
	now        func() time.Time
}

// IngestRecorder is notified of every accepted flight.
type IngestRecorder interface {
	FlightIngested()
}

// Option customizes the service.
type Option func(*enrichmentServiceImpl)

// WithIDGenerator overrides how task ids are generated.
func WithIDGenerator(gen func() string) Option {
	return func(s *enrichmentServiceImpl) {
		s.newID = gen
	}
}

// WithIngestRecorder reports accepted flights to r.
func WithIngestRecorder(r IngestRecorder) Option {
	return func(s *enrichmentServiceImpl) {
		s.recorder = r
	}
}

// NewEnrichmentService creates an EnrichmentService.
// It returns an error if any of the required dependencies are nil.
func NewEnrichmentService(
	flights store.FlightStore,
	tasks store.TaskStore,
	transactor store.Transactor,
	q queue.Queue,
	log *slog.Logger,
	opts ...Option,
) (EnrichmentService, error) {
	if flights == nil {
		return nil, errors.New("flights cannot be nil")
	}
	if tasks == nil {
		return nil, errors.New("tasks cannot be nil")
	}
	if transactor == nil {
		return nil, errors.New("transactor cannot be nil")
	}
	if q == nil {
		return nil, errors.New("queue cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	s := &enrichmentServiceImpl{
		flights:    flights,
		tasks:      tasks,
		transactor: transactor,
		queue:      q,
		logger:     log.With(slog.String("component", "enrichment_service")),
		newID:      uuid.NewString,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IngestFlight implements EnrichmentService.
func (s *enrichmentServiceImpl) IngestFlight(ctx context.Context, flight *domain.Flight) (*domain.EnrichmentTask, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(slog.String("flight_id", flight.FlightID))

	flight.NormalizeTimes()
	flight.ResetEnrichment()
	if err := flight.Validate(); err != nil {
		return nil, err
	}

	task, err := domain.NewEnrichmentTask(s.newID(), flight.FlightID)
	if err != nil {
		return nil, NewServiceError("ingest_flight", "failed to create task", err)
	}

	err = s.transactor.WithinTx(ctx, func(ctx context.Context, flights store.FlightStore, tasks store.TaskStore) error {
		if err := flights.Upsert(ctx, flight); err != nil {
			return fmt.Errorf("upsert flight: %w", err)
		}
		if err := tasks.Create(ctx, task); err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Error("failed to store flight and task", slog.String("error", redact.Error(err)))
		return nil, NewServiceError("ingest_flight", "failed to store flight", err)
	}

	log = log.With(slog.String("task_id", task.TaskID))

	msg := queue.Message{TaskID: task.TaskID, FlightID: flight.FlightID}
	if err := s.queue.Enqueue(ctx, msg); err != nil {
		log.Error("failed to enqueue enrichment", slog.String("error", redact.Error(err)))
		s.markEnqueueFailed(ctx, task, log)
		return task, fmt.Errorf("%w: %v", ErrEnqueueFailed, redact.Error(err))
	}

	if s.recorder != nil {
		s.recorder.FlightIngested()
	}
	log.Info("flight ingested")
	return task, nil
}

// markEnqueueFailed records the enqueue failure on the task so that the
// partial failure is visible through the status endpoint.
func (s *enrichmentServiceImpl) markEnqueueFailed(ctx context.Context, task *domain.EnrichmentTask, log *slog.Logger) {
	if err := task.Fail("failed to enqueue enrichment", s.now()); err != nil {
		log.Error("failed to mark task failed", slog.String("error", err.Error()))
		return
	}
	if err := s.tasks.Update(context.WithoutCancel(ctx), task); err != nil {
		log.Error("failed to record enqueue failure", slog.String("error", redact.Error(err)))
	}
}

// GetTaskStatus implements EnrichmentService.
func (s *enrichmentServiceImpl) GetTaskStatus(ctx context.Context, taskID string) (*domain.EnrichmentTask, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if !errors.Is(err, store.ErrTaskNotFound) {
			logger.FromContextOrDefault(ctx, s.logger).Error("failed to get task",
				slog.String("task_id", taskID),
				slog.String("error", redact.Error(err)))
		}
		return nil, NewServiceError("get_task_status", "failed to get task", err)
	}
	return task, nil
}

// ListRecentTasks implements EnrichmentService.
func (s *enrichmentServiceImpl) ListRecentTasks(ctx context.Context, limit int) ([]*domain.EnrichmentTask, error) {
	limit, err := normalizeLimit(limit, DefaultTaskListLimit)
	if err != nil {
		return nil, err
	}

	tasks, err := s.tasks.ListCompleted(ctx, limit)
	if err != nil {
		return nil, NewServiceError("list_recent_tasks", "failed to list tasks", err)
	}
	return tasks, nil
}

// ListFlights implements EnrichmentService.
func (s *enrichmentServiceImpl) ListFlights(ctx context.Context, limit, offset int) ([]*domain.Flight, error) {
	limit, err := normalizeLimit(limit, DefaultFlightListLimit)
	if err != nil {
		return nil, err
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", ErrInvalidPaging)
	}

	flights, err := s.flights.List(ctx, limit, offset)
	if err != nil {
		return nil, NewServiceError("list_flights", "failed to list flights", err)
	}
	return flights, nil
}

func normalizeLimit(limit, def int) (int, error) {
	switch {
	case limit == 0:
		return def, nil
	case limit < 0 || limit > MaxListLimit:
		return 0, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidPaging, MaxListLimit)
	default:
		return limit, nil
	}
}
