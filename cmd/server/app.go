package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/fare-enricher/internal/config"
	"github.com/phrazzld/fare-enricher/internal/metrics"
	"github.com/phrazzld/fare-enricher/internal/platform/postgres"
	"github.com/phrazzld/fare-enricher/internal/pricing"
	"github.com/phrazzld/fare-enricher/internal/queue"
	"github.com/phrazzld/fare-enricher/internal/redact"
	"github.com/phrazzld/fare-enricher/internal/service"
	"github.com/phrazzld/fare-enricher/internal/store"
	"github.com/phrazzld/fare-enricher/internal/task"
)

// recoverLimit bounds how many PENDING tasks are re-enqueued at startup.
const recoverLimit = 10000

// dependencies are the external collaborators the application is built from.
type dependencies struct {
	flights    store.FlightStore
	tasks      store.TaskStore
	transactor store.Transactor
	queue      queue.Queue
	searcher   task.PriceSearcher
}

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	deps    dependencies
	metrics *metrics.Registry

	enrichmentService service.EnrichmentService
	workerPool        *task.WorkerPool
}

// newApplication creates the production application: PostgreSQL stores, the
// configured queue driver and the pricing API client.
func newApplication(ctx context.Context, cfg *config.Config, log *slog.Logger, db *sql.DB) (*application, error) {
	flights, tasks, transactor := postgres.NewStores(db, log)

	q, err := newQueue(ctx, cfg.Queue, log)
	if err != nil {
		return nil, err
	}

	app, err := assemble(cfg, log, dependencies{
		flights:    flights,
		tasks:      tasks,
		transactor: transactor,
		queue:      q,
		searcher:   pricing.NewClient(cfg.Pricing, log),
	})
	if err != nil {
		_ = q.Close()
		return nil, err
	}
	app.db = db
	return app, nil
}

// newQueue builds the queue selected by cfg.Driver.
func newQueue(ctx context.Context, cfg config.QueueConfig, log *slog.Logger) (queue.Queue, error) {
	switch cfg.Driver {
	case config.QueueDriverRedis:
		client, err := queue.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %s", redact.Error(err))
		}
		q, err := queue.NewRedisQueue(ctx, client, queue.RedisOptions{
			Stream:    cfg.Key,
			Group:     cfg.Group,
			ClaimIdle: cfg.ClaimIdle,
		}, log)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		log.Info("using redis queue", slog.String("stream", cfg.Key), slog.String("group", cfg.Group))
		return q, nil
	case config.QueueDriverMemory:
		log.Info("using in-memory queue", slog.Int("size", cfg.Size))
		return queue.NewChannelQueue(cfg.Size, log), nil
	default:
		return nil, fmt.Errorf("unknown queue driver %q", cfg.Driver)
	}
}

// assemble wires services and workers on top of deps.
func assemble(cfg *config.Config, log *slog.Logger, deps dependencies) (*application, error) {
	app := &application{
		config:  cfg,
		logger:  log,
		deps:    deps,
		metrics: metrics.NewRegistry(),
	}
	app.metrics.RegisterQueueDepth(deps.queue.Len)

	var err error
	app.enrichmentService, err = service.NewEnrichmentService(
		deps.flights,
		deps.tasks,
		deps.transactor,
		deps.queue,
		log,
		service.WithIngestRecorder(app.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create enrichment service: %w", err)
	}

	if cfg.Server.RunsWorkers() {
		enricher := task.NewEnricher(
			deps.flights,
			deps.tasks,
			deps.searcher,
			task.RetryPolicyFromConfig(cfg.Task),
			log,
			task.WithRecorder(app.metrics),
		)
		app.workerPool = task.NewWorkerPool(deps.queue, enricher, task.WorkerPoolConfig{
			WorkerCount: cfg.Task.WorkerCount,
		}, log)
	}

	log.Info("application initialized",
		slog.Bool("api", cfg.Server.RunsAPI()),
		slog.Bool("workers", cfg.Server.RunsWorkers()))
	return app, nil
}

// startWorkers starts the worker pool and, when the queue does not survive
// restarts, re-enqueues tasks left PENDING. A failed recovery is logged and
// the remaining tasks stay PENDING until the next start.
func (app *application) startWorkers(ctx context.Context) {
	if app.workerPool == nil {
		return
	}

	app.workerPool.Start()

	if app.config.Queue.Driver != config.QueueDriverMemory || !app.config.Task.RecoverPending {
		return
	}
	n, err := app.workerPool.Recover(ctx, app.deps.tasks, recoverLimit)
	if err != nil {
		app.logger.Warn("pending task recovery incomplete",
			slog.Int("requeued", n),
			slog.String("error", redact.Error(err)))
		return
	}
	if n > 0 {
		app.logger.Info("re-enqueued pending tasks", slog.Int("count", n))
	}
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.workerPool != nil {
		app.workerPool.Stop()
	}

	if err := app.deps.queue.Close(); err != nil {
		app.logger.Error("error closing queue", slog.String("error", redact.Error(err)))
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", slog.String("error", redact.Error(err)))
		}
	}

	app.logger.Info("application shutdown completed")
}
