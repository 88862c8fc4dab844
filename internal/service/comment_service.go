package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/taskpulse/taskpulse/internal/domain"
	"github.com/taskpulse/taskpulse/internal/events"
	"github.com/taskpulse/taskpulse/internal/store"
)

// CommentService appends progress comments to tasks. Only assignees comment;
// approvers hear about new comments through the comment.added event.
type CommentService interface {
	AddComment(ctx context.Context, actor *domain.User, taskID int64, body string) (*domain.Comment, error)
}

// CommentServiceImpl implements the CommentService interface.
type CommentServiceImpl struct {
	commentStore    store.CommentStore
	taskStore       store.TaskStore
	assignmentStore store.AssignmentStore
	emitter         events.Emitter
	tx              store.TxRunner
	logger          *slog.Logger
}

// NewCommentService creates a new CommentService.
func NewCommentService(
	commentStore store.CommentStore,
	taskStore store.TaskStore,
	assignmentStore store.AssignmentStore,
	emitter events.Emitter,
	tx store.TxRunner,
	logger *slog.Logger,
) *CommentServiceImpl {
	return &CommentServiceImpl{
		commentStore:    commentStore,
		taskStore:       taskStore,
		assignmentStore: assignmentStore,
		emitter:         emitter,
		tx:              tx,
		logger:          logger.With("component", "comment_service"),
	}
}

// AddComment stores the comment and emits comment.added. Event-handler
// failures are logged, never surfaced: the comment is already durable and
// notification delivery must not fail the write.
func (s *CommentServiceImpl) AddComment(ctx context.Context, actor *domain.User, taskID int64, body string) (*domain.Comment, error) {
	comment, err := domain.NewComment(taskID, actor.ID, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build comment: %w", err)
	}

	var task *domain.Task
	err = s.tx.RunTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		task, err = s.taskStore.WithTx(tx).GetByID(ctx, taskID)
		if err != nil {
			return err
		}

		_, err = s.assignmentStore.WithTx(tx).Get(ctx, taskID, actor.ID)
		if err != nil {
			if errors.Is(err, store.ErrAssignmentNotFound) {
				return ErrNotAssigned
			}
			return fmt.Errorf("failed to load assignment: %w", err)
		}

		return s.commentStore.WithTx(tx).Create(ctx, comment)
	})
	if err != nil {
		if !store.IsNotFoundError(err) && !errors.Is(err, ErrNotAssigned) {
			s.logger.Error("failed to add comment",
				"error", err,
				"task_id", taskID,
				"user_id", actor.ID)
		}
		return nil, err
	}

	s.emitCommentAdded(ctx, task, actor, body)

	s.logger.Info("comment added",
		"task_id", taskID,
		"user_id", actor.ID,
		"comment_id", comment.ID)
	return comment, nil
}

func (s *CommentServiceImpl) emitCommentAdded(ctx context.Context, task *domain.Task, actor *domain.User, body string) {
	ev, err := events.NewEvent(events.TypeCommentAdded, events.CommentAddedPayload{
		TaskID:   task.ID,
		Title:    task.Title,
		AuthorID: actor.ID,
		Author:   actor.DisplayName(),
		Body:     body,
	})
	if err != nil {
		s.logger.Error("failed to build comment event",
			"error", err,
			"task_id", task.ID)
		return
	}

	if err := s.emitter.Emit(ctx, ev); err != nil {
		s.logger.Error("comment event handler failed",
			"error", err,
			"task_id", task.ID)
	}
}
