package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/fare-enricher/internal/domain"
	"github.com/phrazzld/fare-enricher/internal/platform/logger"
	"github.com/phrazzld/fare-enricher/internal/store"
)

// PostgresTaskStore implements store.TaskStore on PostgreSQL.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a task store over a connection or transaction
// managed by the caller. If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

var _ store.TaskStore = (*PostgresTaskStore)(nil)

const taskColumns = `task_id, flight_id, status, result, created_at, completed_at`

// Create implements store.TaskStore.Create.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.EnrichmentTask) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.TaskID))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	result, err := encodeResult(task.Result)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO enrichment_tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.db.ExecContext(ctx, query,
		task.TaskID,
		task.FlightID,
		string(task.Status),
		result,
		task.CreatedAt.UTC(),
		task.CompletedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("task id already taken", slog.String("task_id", task.TaskID))
			return fmt.Errorf("%w: %s", store.ErrTaskExists, task.TaskID)
		}
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.TaskID),
			slog.String("flight_id", task.FlightID))
		return MapError(err)
	}

	log.Debug("task created",
		slog.String("task_id", task.TaskID),
		slog.String("flight_id", task.FlightID))
	return nil
}

// GetByID implements store.TaskStore.GetByID.
func (s *PostgresTaskStore) GetByID(ctx context.Context, taskID string) (*domain.EnrichmentTask, error) {
	query := `SELECT ` + taskColumns + ` FROM enrichment_tasks WHERE task_id = $1`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, taskID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get task",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID))
		return nil, MapError(err)
	}
	return task, nil
}

// Update implements store.TaskStore.Update.
// Terminal rows are never rewritten, so a late or duplicate writer cannot
// move a task backwards.
func (s *PostgresTaskStore) Update(ctx context.Context, task *domain.EnrichmentTask) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	result, err := encodeResult(task.Result)
	if err != nil {
		return err
	}

	query := `
		UPDATE enrichment_tasks
		SET status = $2, result = $3, completed_at = $4
		WHERE task_id = $1 AND status NOT IN ('SUCCESS', 'FAILURE')
	`
	res, err := s.db.ExecContext(ctx, query,
		task.TaskID,
		string(task.Status),
		result,
		task.CompletedAt,
	)
	if err != nil {
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.TaskID),
			slog.String("status", string(task.Status)))
		return MapError(err)
	}

	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM enrichment_tasks WHERE task_id = $1)`,
		task.TaskID,
	).Scan(&exists)
	if err != nil {
		return MapError(err)
	}
	if !exists {
		return store.ErrTaskNotFound
	}

	log.Warn("refused to update completed task",
		slog.String("task_id", task.TaskID),
		slog.String("status", string(task.Status)))
	return store.ErrTaskCompleted
}

// ListByStatus implements store.TaskStore.ListByStatus.
func (s *PostgresTaskStore) ListByStatus(
	ctx context.Context,
	status domain.TaskStatus,
	limit int,
) ([]*domain.EnrichmentTask, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM enrichment_tasks
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	return s.queryTasks(ctx, query, string(status), limit)
}

// ListCompleted implements store.TaskStore.ListCompleted.
func (s *PostgresTaskStore) ListCompleted(ctx context.Context, limit int) ([]*domain.EnrichmentTask, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM enrichment_tasks
		WHERE status IN ('SUCCESS', 'FAILURE')
		ORDER BY completed_at DESC
		LIMIT $1
	`
	return s.queryTasks(ctx, query, limit)
}

// WithTx implements store.TaskStore.WithTx.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{
		db:     tx,
		logger: s.logger,
	}
}

func (s *PostgresTaskStore) queryTasks(ctx context.Context, query string, args ...any) ([]*domain.EnrichmentTask, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list tasks",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]*domain.EnrichmentTask, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, MapError(err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return tasks, nil
}

func scanTask(row rowScanner) (*domain.EnrichmentTask, error) {
	var (
		task        domain.EnrichmentTask
		status      string
		result      []byte
		completedAt sql.NullTime
	)

	if err := row.Scan(
		&task.TaskID,
		&task.FlightID,
		&status,
		&result,
		&task.CreatedAt,
		&completedAt,
	); err != nil {
		return nil, err
	}

	task.Status = domain.TaskStatus(status)
	task.CreatedAt = task.CreatedAt.UTC()
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		task.CompletedAt = &t
	}
	if len(result) > 0 {
		var r domain.TaskResult
		if err := json.Unmarshal(result, &r); err != nil {
			return nil, fmt.Errorf("failed to decode task result: %w", err)
		}
		task.Result = &r
	}

	return &task, nil
}

func encodeResult(result *domain.TaskResult) (any, error) {
	if result == nil {
		return nil, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task result: %w", err)
	}
	return string(data), nil
}
