package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/fare-enricher/internal/domain"
)

// TaskStore defines the interface for enrichment task persistence.
// Version: 1.0
type TaskStore interface {
	// Create inserts a new task.
	// Returns ErrTaskExists if the task id is already taken.
	Create(ctx context.Context, task *domain.EnrichmentTask) error

	// GetByID retrieves a task by its id.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, taskID string) (*domain.EnrichmentTask, error)

	// Update overwrites the task's status, result and completion time.
	// Returns ErrTaskNotFound if the task does not exist and ErrTaskCompleted
	// if the stored task is already terminal.
	Update(ctx context.Context, task *domain.EnrichmentTask) error

	// ListByStatus returns tasks in the given status, oldest first.
	ListByStatus(ctx context.Context, status domain.TaskStatus, limit int) ([]*domain.EnrichmentTask, error)

	// ListCompleted returns SUCCESS and FAILURE tasks, most recently completed first.
	ListCompleted(ctx context.Context, limit int) ([]*domain.EnrichmentTask, error)

	// WithTx returns a new TaskStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) TaskStore
}

// Transactor runs fn with flight and task stores that share one unit of work.
// If fn returns an error nothing it wrote is kept.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, flights FlightStore, tasks TaskStore) error) error
}
