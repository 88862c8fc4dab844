package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/taskpulse/taskpulse/internal/domain"
	"github.com/taskpulse/taskpulse/internal/store"
)

// PostgresAssignmentStore implements the store.AssignmentStore interface
// using a PostgreSQL database as the storage backend.
type PostgresAssignmentStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAssignmentStore creates a new PostgreSQL implementation of the
// AssignmentStore interface.
func NewPostgresAssignmentStore(db store.DBTX, logger *slog.Logger) *PostgresAssignmentStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresAssignmentStore{
		db:     db,
		logger: logger.With(slog.String("component", "assignment_store")),
	}
}

// Ensure PostgresAssignmentStore implements store.AssignmentStore interface
var _ store.AssignmentStore = (*PostgresAssignmentStore)(nil)

// Create implements store.AssignmentStore.Create
func (s *PostgresAssignmentStore) Create(ctx context.Context, assignment *domain.Assignment) error {
	query := `
		INSERT INTO task_assignments (task_id, user_id, status)
		VALUES ($1, $2, $3)
	`

	_, err := s.db.ExecContext(ctx, query,
		assignment.TaskID,
		assignment.UserID,
		assignment.Status,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: %v", store.ErrAssignmentExists, err)
		}
		s.logger.Error("failed to create assignment",
			"task_id", assignment.TaskID,
			"user_id", assignment.UserID,
			"error", err)
		return fmt.Errorf("failed to create assignment: %w", MapError(err))
	}

	return nil
}

// Get implements store.AssignmentStore.Get
func (s *PostgresAssignmentStore) Get(ctx context.Context, taskID, userID int64) (*domain.Assignment, error) {
	query := `
		SELECT task_id, user_id, status
		FROM task_assignments
		WHERE task_id = $1 AND user_id = $2
	`

	var assignment domain.Assignment
	err := s.db.QueryRowContext(ctx, query, taskID, userID).Scan(
		&assignment.TaskID,
		&assignment.UserID,
		&assignment.Status,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrAssignmentNotFound
		}
		s.logger.Error("failed to get assignment",
			"task_id", taskID,
			"user_id", userID,
			"error", err)
		return nil, fmt.Errorf("failed to get assignment: %w", MapError(err))
	}

	return &assignment, nil
}

// ListByTask implements store.AssignmentStore.ListByTask
func (s *PostgresAssignmentStore) ListByTask(ctx context.Context, taskID int64) ([]*domain.Assignment, error) {
	query := `
		SELECT task_id, user_id, status
		FROM task_assignments
		WHERE task_id = $1
		ORDER BY user_id
	`
	return s.queryAssignments(ctx, query, taskID)
}

// ListOutstanding implements store.AssignmentStore.ListOutstanding
func (s *PostgresAssignmentStore) ListOutstanding(ctx context.Context, taskID int64) ([]*domain.Assignment, error) {
	query := `
		SELECT task_id, user_id, status
		FROM task_assignments
		WHERE task_id = $1 AND status <> 'completed'
		ORDER BY user_id
	`
	return s.queryAssignments(ctx, query, taskID)
}

// UpdateStatus implements store.AssignmentStore.UpdateStatus
func (s *PostgresAssignmentStore) UpdateStatus(ctx context.Context, taskID, userID int64, status domain.AssignmentStatus) error {
	query := `
		UPDATE task_assignments
		SET status = $1
		WHERE task_id = $2 AND user_id = $3
	`

	result, err := s.db.ExecContext(ctx, query, status, taskID, userID)
	if err != nil {
		s.logger.Error("failed to update assignment status",
			"task_id", taskID,
			"user_id", userID,
			"status", status,
			"error", err)
		return fmt.Errorf("failed to update assignment status: %w", MapError(err))
	}

	return CheckRowsAffected(result, store.ErrAssignmentNotFound)
}

// ReplaceForTask implements store.AssignmentStore.ReplaceForTask. The whole
// assignment set is swapped for fresh pending rows; callers run this inside a
// transaction via WithTx so a reader never observes the empty intermediate
// state.
func (s *PostgresAssignmentStore) ReplaceForTask(ctx context.Context, taskID int64, userIDs []int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM task_assignments WHERE task_id = $1`, taskID)
	if err != nil {
		s.logger.Error("failed to clear assignments",
			"task_id", taskID,
			"error", err)
		return fmt.Errorf("failed to clear assignments: %w", MapError(err))
	}

	for _, userID := range userIDs {
		if err := s.Create(ctx, domain.NewAssignment(taskID, userID)); err != nil {
			return err
		}
	}
	return nil
}

// CountByTask implements store.AssignmentStore.CountByTask
func (s *PostgresAssignmentStore) CountByTask(ctx context.Context, taskID int64) (int, int, error) {
	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'completed')
		FROM task_assignments
		WHERE task_id = $1
	`

	var total, completed int
	err := s.db.QueryRowContext(ctx, query, taskID).Scan(&total, &completed)
	if err != nil {
		s.logger.Error("failed to count assignments",
			"task_id", taskID,
			"error", err)
		return 0, 0, fmt.Errorf("failed to count assignments: %w", MapError(err))
	}

	return total, completed, nil
}

// WithTx implements store.AssignmentStore.WithTx
func (s *PostgresAssignmentStore) WithTx(tx *sql.Tx) store.AssignmentStore {
	return &PostgresAssignmentStore{
		db:     tx,
		logger: s.logger,
	}
}

func (s *PostgresAssignmentStore) queryAssignments(ctx context.Context, query string, args ...interface{}) ([]*domain.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("failed to query assignments", "error", err)
		return nil, fmt.Errorf("failed to query assignments: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var assignments []*domain.Assignment
	for rows.Next() {
		var a domain.Assignment
		if err := rows.Scan(&a.TaskID, &a.UserID, &a.Status); err != nil {
			s.logger.Error("failed to scan assignment row", "error", err)
			return nil, fmt.Errorf("failed to scan assignment row: %w", err)
		}
		assignments = append(assignments, &a)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("error iterating assignment rows", "error", err)
		return nil, fmt.Errorf("error iterating assignment rows: %w", err)
	}

	return assignments, nil
}
