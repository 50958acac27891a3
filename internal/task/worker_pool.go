package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/fare-enricher/internal/domain"
	"github.com/phrazzld/fare-enricher/internal/platform/logger"
	"github.com/phrazzld/fare-enricher/internal/queue"
	"github.com/phrazzld/fare-enricher/internal/store"
)

// Processor handles one queue message. Implemented by *Enricher.
type Processor interface {
	Process(ctx context.Context, msg queue.Message) (Outcome, error)
}

// WorkerPool manages a pool of worker goroutines that consume enrichment
// messages from a queue. It handles graceful shutdown and worker lifecycle.
type WorkerPool struct {
	queue       queue.Queue
	processor   Processor
	workerCount int

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	// errorHandler is called when processing a message fails.
	// If nil, errors are only logged.
	errorHandler func(msg queue.Message, err error)

	// dequeueBackoff is the pause after an unexpected Dequeue error.
	dequeueBackoff time.Duration
}

// WorkerPoolConfig holds configuration options for the worker pool.
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start.
	// If zero or negative, defaults to 1.
	WorkerCount int
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults.
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: 2,
	}
}

// NewWorkerPool creates a new worker pool with the specified configuration.
func NewWorkerPool(q queue.Queue, processor Processor, config WorkerPoolConfig, log *slog.Logger) *WorkerPool {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "worker_pool"))

	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		log.Warn("invalid worker count specified, using default",
			slog.Int("specified_count", config.WorkerCount),
			slog.Int("default_count", 1))
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		queue:          q,
		processor:      processor,
		workerCount:    workerCount,
		ctx:            ctx,
		cancel:         cancel,
		logger:         log,
		dequeueBackoff: time.Second,
	}
}

// SetErrorHandler sets a callback for processing failures.
func (p *WorkerPool) SetErrorHandler(handler func(msg queue.Message, err error)) {
	p.errorHandler = handler
}

// Start launches the worker goroutines.
func (p *WorkerPool) Start() {
	p.logger.Info("starting worker pool", slog.Int("worker_count", p.workerCount))
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop cancels in-flight work and waits for every worker to return.
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// Recover re-enqueues tasks still PENDING in the store, for queues that lose
// their contents on restart. It returns how many were enqueued and stops at
// the first enqueue error.
func (p *WorkerPool) Recover(ctx context.Context, tasks store.TaskStore, limit int) (int, error) {
	pending, err := tasks.ListByStatus(ctx, domain.TaskStatusPending, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending tasks: %w", err)
	}

	p.logger.Info("recovering pending tasks", slog.Int("pending_count", len(pending)))

	for i, t := range pending {
		msg := queue.Message{TaskID: t.TaskID, FlightID: t.FlightID}
		if err := p.queue.Enqueue(ctx, msg); err != nil {
			p.logger.Error("failed to requeue pending task",
				slog.String("task_id", t.TaskID),
				slog.String("error", err.Error()))
			return i, fmt.Errorf("requeue task %s: %w", t.TaskID, err)
		}
	}
	return len(pending), nil
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	log := p.logger.With(slog.Int("worker_id", id))
	log.Debug("starting worker")

	for {
		msg, err := p.queue.Dequeue(p.ctx)
		if err != nil {
			if errors.Is(err, queue.ErrQueueClosed) || p.ctx.Err() != nil {
				log.Debug("stopping worker")
				return
			}
			log.Error("failed to dequeue message", slog.String("error", err.Error()))
			select {
			case <-p.ctx.Done():
				return
			case <-time.After(p.dequeueBackoff):
			}
			continue
		}

		p.process(msg, log)
	}
}

func (p *WorkerPool) process(msg queue.Message, log *slog.Logger) {
	ctx := logger.WithLogger(p.ctx, log)

	outcome, err := p.processor.Process(ctx, msg)
	if err != nil {
		if p.errorHandler != nil {
			p.errorHandler(msg, err)
		}
	}

	// Unacknowledged messages are delivered again. Only give a message back
	// when nothing was recorded and a later delivery could still succeed.
	if err != nil && outcome.Status == "" && !errors.Is(err, ErrInconsistency) {
		log.Warn("leaving message unacknowledged",
			slog.String("task_id", msg.TaskID),
			slog.String("error", err.Error()))
		return
	}

	if ackErr := p.queue.Ack(context.WithoutCancel(ctx), msg); ackErr != nil {
		log.Error("failed to acknowledge message",
			slog.String("task_id", msg.TaskID),
			slog.String("error", ackErr.Error()))
	}
}
