package store

import (
	"context"
	"database/sql"

	"github.com/taskpulse/taskpulse/internal/domain"
)

// TaskStore defines the interface for task persistence.
type TaskStore interface {
	// Create saves a new task to the store and fills in the generated ID.
	// The task must be valid according to domain validation rules.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Task, error)

	// Update saves changes to an existing task.
	// Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, task *domain.Task) error

	// Delete removes a task from the store by its ID.
	// Returns ErrTaskNotFound if the task does not exist.
	//
	// Deletion relies on database-level CASCADE DELETE to remove the task's
	// assignments and comments; this is configured in the schema through
	// ON DELETE CASCADE foreign key constraints.
	Delete(ctx context.Context, id int64) error

	// List retrieves all tasks ordered by creation time.
	List(ctx context.Context) ([]*domain.Task, error)

	// ListByAssignee retrieves all tasks that have an assignment for the
	// given user, ordered by creation time.
	ListByAssignee(ctx context.Context, userID int64) ([]*domain.Task, error)

	// ListIncomplete retrieves every task whose completion condition is
	// currently false: tasks with no assignments and tasks with at least one
	// assignment not in the completed status. The scheduler uses this at
	// startup to rebuild its reminder jobs.
	ListIncomplete(ctx context.Context) ([]*domain.Task, error)

	// WithTx returns a new TaskStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller,
	// typically through RunInTransaction.
	WithTx(tx *sql.Tx) TaskStore
}
