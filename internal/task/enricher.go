package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/fare-enricher/internal/domain"
	"github.com/phrazzld/fare-enricher/internal/platform/logger"
	"github.com/phrazzld/fare-enricher/internal/pricing"
	"github.com/phrazzld/fare-enricher/internal/queue"
	"github.com/phrazzld/fare-enricher/internal/redact"
	"github.com/phrazzld/fare-enricher/internal/store"
	"github.com/sethvargo/go-retry"
)

// PriceSearcher queries the pricing API. Implemented by *pricing.Client.
type PriceSearcher interface {
	Search(ctx context.Context, req pricing.SearchRequest) (map[string]any, error)
}

// Recorder receives enrichment outcomes, typically for metrics.
type Recorder interface {
	AttemptFailed(retryable bool)
	TaskFinished(status domain.TaskStatus, attempts int, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) AttemptFailed(bool) {}
func (nopRecorder) TaskFinished(domain.TaskStatus, int, time.Duration) {}

// Outcome summarizes one Process call.
type Outcome struct {
	TaskID   string
	Status   domain.TaskStatus
	Attempts int
	Price    *float64
	// Skipped is set when the task had already completed and nothing ran.
	Skipped bool
}

// Enricher fetches and stores the retail price for the flight named by a
// queue message.
type Enricher struct {
	flights  store.FlightStore
	tasks    store.TaskStore
	searcher PriceSearcher
	policy   RetryPolicy
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

// EnricherOption customizes an Enricher.
type EnricherOption func(*Enricher)

// WithRecorder reports outcomes to r.
func WithRecorder(r Recorder) EnricherOption {
	return func(e *Enricher) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithClock overrides the time source used for completion timestamps.
func WithClock(now func() time.Time) EnricherOption {
	return func(e *Enricher) {
		e.now = now
	}
}

// NewEnricher creates an Enricher.
func NewEnricher(
	flights store.FlightStore,
	tasks store.TaskStore,
	searcher PriceSearcher,
	policy RetryPolicy,
	log *slog.Logger,
	opts ...EnricherOption,
) *Enricher {
	if log == nil {
		log = slog.Default()
	}
	e := &Enricher{
		flights:  flights,
		tasks:    tasks,
		searcher: searcher,
		policy:   policy,
		logger:   log.With(slog.String("component", "enricher")),
		recorder: nopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process runs the enrichment lineage for msg, retries included.
//
// A task that already completed is skipped. When retries are exhausted or a
// permanent error occurs the task is marked FAILURE and the error returned.
// Cancellation of ctx is returned without recording anything, leaving the
// task for redelivery.
func (e *Enricher) Process(ctx context.Context, msg queue.Message) (Outcome, error) {
	log := logger.FromContextOrDefault(ctx, e.logger).With(
		slog.String("task_id", msg.TaskID),
		slog.String("flight_id", msg.FlightID))
	ctx = logger.WithLogger(ctx, log)

	out := Outcome{TaskID: msg.TaskID}
	start := time.Now()

	current, err := e.tasks.GetByID(ctx, msg.TaskID)
	if err != nil {
		return out, e.lookupFailed(ctx, msg, err)
	}
	if current.Status.IsTerminal() {
		log.Info("task already completed, skipping", slog.String("status", string(current.Status)))
		out.Status = current.Status
		out.Skipped = true
		return out, nil
	}

	err = retry.Do(ctx, e.policy.Backoff(), func(ctx context.Context) error {
		out.Attempts++
		price, err := e.attempt(ctx, msg)
		if err == nil {
			out.Price = price
			return nil
		}

		retryable := IsRetryable(err) && ctx.Err() == nil
		e.recorder.AttemptFailed(retryable)
		if !retryable {
			return err
		}

		log.Warn("enrichment attempt failed",
			slog.Int("attempt", out.Attempts),
			slog.Int("max_attempts", e.policy.MaxAttempts()),
			slog.String("error", redact.Error(err)))
		return retry.RetryableError(err)
	})

	switch {
	case err == nil:
		out.Status = domain.TaskStatusSuccess
		log.Info("enrichment succeeded", slog.Int("attempts", out.Attempts))
	case ctx.Err() != nil:
		log.Warn("enrichment interrupted", slog.Int("attempts", out.Attempts))
		return out, ctx.Err()
	case errors.Is(err, ErrInconsistency):
		log.Error("enrichment aborted", slog.String("error", err.Error()))
		return out, err
	case errors.Is(err, store.ErrTaskCompleted):
		log.Warn("task completed concurrently", slog.Int("attempts", out.Attempts))
		out.Skipped = true
		return out, nil
	default:
		// Status stays empty until the failure is stored, so the message is
		// not acknowledged and can be delivered again.
		if failErr := e.fail(ctx, msg, err); failErr != nil {
			err = errors.Join(err, failErr)
			log.Error("could not record enrichment failure",
				slog.Int("attempts", out.Attempts),
				slog.String("error", redact.Error(err)))
			return out, fmt.Errorf("enrich task %s: %w", msg.TaskID, err)
		}
		out.Status = domain.TaskStatusFailure
		log.Error("enrichment failed",
			slog.Int("attempts", out.Attempts),
			slog.String("error", redact.Error(err)))
	}

	e.recorder.TaskFinished(out.Status, out.Attempts, time.Since(start))
	if err != nil {
		return out, fmt.Errorf("enrich task %s: %w", msg.TaskID, err)
	}
	return out, nil
}

// attempt is one full pass: flight lookup, task start, price query,
// extraction and both writes.
func (e *Enricher) attempt(ctx context.Context, msg queue.Message) (*float64, error) {
	flight, err := e.flights.GetByID(ctx, msg.FlightID)
	if err != nil {
		return nil, err
	}

	task, err := e.tasks.GetByID(ctx, msg.TaskID)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrInconsistency, msg.TaskID)
		}
		return nil, err
	}
	if err := task.Start(); err != nil {
		return nil, err
	}
	if err := e.tasks.Update(ctx, task); err != nil {
		return nil, err
	}

	doc, err := e.searcher.Search(ctx, pricing.SearchRequest{
		Origin:       flight.Origin,
		Destination:  flight.Destination,
		OutboundDate: flight.DepartureTime,
		ReturnDate:   flight.ArrivalTime,
	})
	if err != nil {
		return nil, err
	}

	price, err := pricing.ExtractRetailPrice(doc)
	if err != nil {
		return nil, err
	}

	if err := e.flights.SaveEnrichment(ctx, flight.FlightID, price); err != nil {
		return nil, err
	}

	if err := task.Succeed(price, e.now()); err != nil {
		return nil, err
	}
	if err := e.tasks.Update(ctx, task); err != nil {
		return nil, err
	}
	return price, nil
}

// fail records cause on the task as a FAILURE result.
func (e *Enricher) fail(ctx context.Context, msg queue.Message, cause error) error {
	task, err := e.tasks.GetByID(ctx, msg.TaskID)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return fmt.Errorf("%w: %s", ErrInconsistency, msg.TaskID)
		}
		return fmt.Errorf("load task to record failure: %w", err)
	}

	if err := task.Fail(redact.String(failureMessage(cause)), e.now()); err != nil {
		return err
	}
	if err := e.tasks.Update(ctx, task); err != nil {
		if errors.Is(err, store.ErrTaskCompleted) {
			return nil
		}
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

// lookupFailed handles a failure to load the task before any attempt ran.
func (e *Enricher) lookupFailed(ctx context.Context, msg queue.Message, err error) error {
	log := logger.FromContextOrDefault(ctx, e.logger)
	if errors.Is(err, store.ErrTaskNotFound) {
		err = fmt.Errorf("%w: %s", ErrInconsistency, msg.TaskID)
		log.Error("queue message references unknown task", slog.String("error", err.Error()))
		return err
	}
	log.Error("failed to load task", slog.String("error", redact.Error(err)))
	return fmt.Errorf("load task %s: %w", msg.TaskID, err)
}
