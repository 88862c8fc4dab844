package store

import (
	"context"
	"database/sql"

	"github.com/taskpulse/taskpulse/internal/domain"
)

// AssignmentStore defines the interface for assignment persistence.
// Assignments are keyed by the (task, user) pair; at most one row exists per
// pair.
type AssignmentStore interface {
	// Create saves a new assignment.
	// Returns ErrAssignmentExists if the (task, user) pair is already
	// assigned; callers treat that as an idempotent no-op.
	Create(ctx context.Context, assignment *domain.Assignment) error

	// Get retrieves the assignment for the given (task, user) pair.
	// Returns ErrAssignmentNotFound if no such assignment exists.
	Get(ctx context.Context, taskID, userID int64) (*domain.Assignment, error)

	// ListByTask retrieves all assignments for the given task.
	ListByTask(ctx context.Context, taskID int64) ([]*domain.Assignment, error)

	// ListOutstanding retrieves the task's assignments whose status is not
	// completed. The scheduler reminds exactly these assignees on each tick.
	ListOutstanding(ctx context.Context, taskID int64) ([]*domain.Assignment, error)

	// UpdateStatus sets the status for the given (task, user) pair.
	// Returns ErrAssignmentNotFound if no such assignment exists.
	UpdateStatus(ctx context.Context, taskID, userID int64, status domain.AssignmentStatus) error

	// ReplaceForTask removes the task's current assignments and creates
	// pending assignments for the given users instead. Run it within a
	// transaction so no window with a partially replaced assignee set is
	// visible to readers.
	ReplaceForTask(ctx context.Context, taskID int64, userIDs []int64) error

	// CountByTask returns the total number of assignments for the task and
	// how many of them are completed. The completion evaluator is built on
	// these two numbers.
	CountByTask(ctx context.Context, taskID int64) (total, completed int, err error)

	// WithTx returns a new AssignmentStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) AssignmentStore
}
