package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/taskpulse/taskpulse/internal/domain"
	"github.com/taskpulse/taskpulse/internal/store"
)

// AssignmentService drives the per-assignee status machine. Actors may only
// move their own assignment.
type AssignmentService interface {
	// Accept moves the actor's assignment from pending to accepted. Returns
	// whether the status actually changed; accepting twice is a no-op,
	// accepting a completed assignment is domain.ErrInvalidTransition.
	Accept(ctx context.Context, actorID, taskID int64) (bool, error)

	// Complete moves the actor's assignment to completed from either pending
	// or accepted, then re-evaluates the task's completion condition. When
	// this was the last outstanding assignment the reminder job is disarmed
	// and the one-time completion event fires.
	Complete(ctx context.Context, actorID, taskID int64) (bool, error)
}

// AssignmentServiceImpl implements the AssignmentService interface.
type AssignmentServiceImpl struct {
	assignmentStore store.AssignmentStore
	scheduler       ReminderScheduler
	tx              store.TxRunner
	logger          *slog.Logger
}

// NewAssignmentService creates a new AssignmentService.
func NewAssignmentService(
	assignmentStore store.AssignmentStore,
	scheduler ReminderScheduler,
	tx store.TxRunner,
	logger *slog.Logger,
) *AssignmentServiceImpl {
	return &AssignmentServiceImpl{
		assignmentStore: assignmentStore,
		scheduler:       scheduler,
		tx:              tx,
		logger:          logger.With("component", "assignment_service"),
	}
}

// Accept marks the actor's assignment accepted.
func (s *AssignmentServiceImpl) Accept(ctx context.Context, actorID, taskID int64) (bool, error) {
	changed, err := s.transition(ctx, actorID, taskID, func(a *domain.Assignment) (bool, error) {
		return a.Accept()
	})
	if err != nil {
		return false, err
	}

	if changed {
		s.logger.Info("assignment accepted",
			"task_id", taskID,
			"user_id", actorID)
	}
	return changed, nil
}

// Complete marks the actor's assignment completed and runs the completion
// evaluator. The status write and the evaluation are separate steps: the
// scheduler's emitted-record bookkeeping decides which observer emits the
// completion event when several finish at once.
func (s *AssignmentServiceImpl) Complete(ctx context.Context, actorID, taskID int64) (bool, error) {
	changed, err := s.transition(ctx, actorID, taskID, func(a *domain.Assignment) (bool, error) {
		return a.Complete()
	})
	if err != nil {
		return false, err
	}

	if _, err := s.scheduler.CompleteIfDone(ctx, taskID); err != nil {
		s.logger.Error("completion evaluation failed after status change",
			"error", err,
			"task_id", taskID)
		return changed, err
	}

	if changed {
		s.logger.Info("assignment completed",
			"task_id", taskID,
			"user_id", actorID)
	}
	return changed, nil
}

// transition loads the actor's assignment, applies the state-machine move and
// persists the new status when it changed.
func (s *AssignmentServiceImpl) transition(
	ctx context.Context,
	actorID, taskID int64,
	move func(*domain.Assignment) (bool, error),
) (bool, error) {
	var changed bool

	err := s.tx.RunTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		txStore := s.assignmentStore.WithTx(tx)

		assignment, err := txStore.Get(ctx, taskID, actorID)
		if err != nil {
			if errors.Is(err, store.ErrAssignmentNotFound) {
				return ErrNotAssigned
			}
			return fmt.Errorf("failed to load assignment: %w", err)
		}

		changed, err = move(assignment)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		return txStore.UpdateStatus(ctx, taskID, actorID, assignment.Status)
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}
