package store

import (
	"context"
	"database/sql"

	"github.com/taskpulse/taskpulse/internal/domain"
)

// CommentStore defines the interface for comment persistence. Comments are
// append-only; there is no update or single delete. Rows disappear only
// through the task's cascade delete.
type CommentStore interface {
	// Create saves a new comment and fills in the generated ID.
	Create(ctx context.Context, comment *domain.Comment) error

	// ListByTask retrieves the task's comments ordered by creation time.
	ListByTask(ctx context.Context, taskID int64) ([]*domain.Comment, error)

	// WithTx returns a new CommentStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) CommentStore
}
