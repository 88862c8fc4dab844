package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/taskpulse/taskpulse/internal/domain"
	"github.com/taskpulse/taskpulse/internal/store"
)

// Editable task fields accepted by EditTask.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldDeadline    = "deadline"
	FieldRemindEvery = "remind_every"
	FieldAssignees   = "assignees"
)

// CreateTaskParams carries everything needed to create a task with its
// initial assignments.
type CreateTaskParams struct {
	Title       string
	Description string
	Deadline    time.Time
	RemindEvery time.Duration

	// AssigneeIDs lists explicit assignees. AllAssignees assigns every
	// registered user with the assignee role instead. Both empty creates an
	// unassigned task, which is legal but can never complete.
	AssigneeIDs  []int64
	AllAssignees bool
}

// AssigneeStatus pairs an assignee with their per-task status.
type AssigneeStatus struct {
	User   *domain.User
	Status domain.AssignmentStatus
}

// TaskDetail is the full view of one task.
type TaskDetail struct {
	Task      *domain.Task
	Assignees []AssigneeStatus
	Comments  []*domain.Comment
}

// TaskService provides task lifecycle operations. All writes require the
// approver role and keep the reminder scheduler in step with the stored
// state.
type TaskService interface {
	// CreateTask stores the task and its assignments atomically and arms its
	// reminder job.
	CreateTask(ctx context.Context, actor *domain.User, params CreateTaskParams) (*domain.Task, error)

	// EditTask changes one field. For FieldAssignees the new value is
	// assigneeIDs and every existing assignment is replaced with fresh
	// pending ones; for everything else it is value. The reminder job is
	// re-armed (or left disarmed for a task that is complete).
	EditTask(ctx context.Context, actor *domain.User, taskID int64, field, value string, assigneeIDs []int64) (*domain.Task, error)

	// DeleteTask removes the task, its assignments and comments, and disarms
	// its reminder job.
	DeleteTask(ctx context.Context, actor *domain.User, taskID int64) error

	// RemindTask sends an immediate reminder to every outstanding assignee
	// without touching the recurring job.
	RemindTask(ctx context.Context, actor *domain.User, taskID int64) error

	// GetTask returns the full task view. Approvers see any task; assignees
	// only tasks they hold an assignment for.
	GetTask(ctx context.Context, actor *domain.User, taskID int64) (*TaskDetail, error)

	// ListTasks returns the actor's task list: all tasks for approvers, own
	// tasks for assignees.
	ListTasks(ctx context.Context, actor *domain.User) ([]*domain.Task, error)
}

// TaskServiceImpl implements the TaskService interface.
type TaskServiceImpl struct {
	taskStore       store.TaskStore
	assignmentStore store.AssignmentStore
	userStore       store.UserStore
	commentStore    store.CommentStore
	scheduler       ReminderScheduler
	tx              store.TxRunner
	logger          *slog.Logger
}

// NewTaskService creates a new TaskService.
func NewTaskService(
	taskStore store.TaskStore,
	assignmentStore store.AssignmentStore,
	userStore store.UserStore,
	commentStore store.CommentStore,
	scheduler ReminderScheduler,
	tx store.TxRunner,
	logger *slog.Logger,
) *TaskServiceImpl {
	return &TaskServiceImpl{
		taskStore:       taskStore,
		assignmentStore: assignmentStore,
		userStore:       userStore,
		commentStore:    commentStore,
		scheduler:       scheduler,
		tx:              tx,
		logger:          logger.With("component", "task_service"),
	}
}

func requireApprover(actor *domain.User) error {
	if actor.Role != domain.RoleApprover {
		return ErrPermissionDenied
	}
	return nil
}

// CreateTask stores the task and its assignments atomically, then arms the
// reminder job. The job is armed only after the commit so a failed
// transaction leaves no timer behind.
func (s *TaskServiceImpl) CreateTask(ctx context.Context, actor *domain.User, params CreateTaskParams) (*domain.Task, error) {
	if err := requireApprover(actor); err != nil {
		return nil, err
	}

	task, err := domain.NewTask(params.Title, params.Description, params.Deadline, params.RemindEvery)
	if err != nil {
		return nil, fmt.Errorf("failed to build task: %w", err)
	}

	err = s.tx.RunTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		txTasks := s.taskStore.WithTx(tx)
		txAssignments := s.assignmentStore.WithTx(tx)
		txUsers := s.userStore.WithTx(tx)

		if err := txTasks.Create(ctx, task); err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}

		assigneeIDs := params.AssigneeIDs
		if params.AllAssignees {
			assignees, err := txUsers.ListByRole(ctx, domain.RoleAssignee)
			if err != nil {
				return fmt.Errorf("failed to list assignees: %w", err)
			}
			assigneeIDs = make([]int64, 0, len(assignees))
			for _, u := range assignees {
				assigneeIDs = append(assigneeIDs, u.ID)
			}
		}

		for _, userID := range assigneeIDs {
			if _, err := txUsers.GetByID(ctx, userID); err != nil {
				return fmt.Errorf("failed to resolve assignee %d: %w", userID, err)
			}
			err := txAssignments.Create(ctx, domain.NewAssignment(task.ID, userID))
			if err != nil && !errors.Is(err, store.ErrAssignmentExists) {
				// A repeated ID in the request is idempotent, anything else
				// aborts the whole creation.
				return fmt.Errorf("failed to assign user %d: %w", userID, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to create task",
			"error", err,
			"title", params.Title)
		return nil, err
	}

	if err := s.scheduler.ArmTask(task); err != nil {
		s.logger.Error("task created but arming its reminder job failed",
			"error", err,
			"task_id", task.ID)
		return nil, fmt.Errorf("failed to arm reminder job: %w", err)
	}

	s.logger.Info("task created",
		"task_id", task.ID,
		"title", task.Title,
		"deadline", task.Deadline)
	return task, nil
}

// EditTask changes one field of the task inside a transaction, then restores
// the reminder invariant: the job is re-armed with the task's current
// interval unless the task is complete.
func (s *TaskServiceImpl) EditTask(ctx context.Context, actor *domain.User, taskID int64, field, value string, assigneeIDs []int64) (*domain.Task, error) {
	if err := requireApprover(actor); err != nil {
		return nil, err
	}

	var task *domain.Task
	err := s.tx.RunTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		txTasks := s.taskStore.WithTx(tx)

		var err error
		task, err = txTasks.GetByID(ctx, taskID)
		if err != nil {
			return err
		}

		switch field {
		case FieldTitle:
			if value == "" {
				return domain.ErrEmptyFieldValue
			}
			task.Title = value

		case FieldDescription:
			if value == "" {
				return domain.ErrEmptyFieldValue
			}
			task.Description = value

		case FieldDeadline:
			deadline, err := domain.ParseDeadline(value)
			if err != nil {
				return err
			}
			task.Deadline = deadline

		case FieldRemindEvery:
			minutes, err := strconv.ParseInt(value, 10, 64)
			if err != nil || minutes <= 0 {
				return domain.ErrInvalidInterval
			}
			task.RemindEvery = time.Duration(minutes) * time.Minute

		case FieldAssignees:
			txUsers := s.userStore.WithTx(tx)
			for _, userID := range assigneeIDs {
				if _, err := txUsers.GetByID(ctx, userID); err != nil {
					return fmt.Errorf("failed to resolve assignee %d: %w", userID, err)
				}
			}
			// Replacement resets every assignment to pending: the new set
			// owes the task fresh work regardless of prior progress.
			err := s.assignmentStore.WithTx(tx).ReplaceForTask(ctx, taskID, assigneeIDs)
			if err != nil {
				return fmt.Errorf("failed to replace assignees: %w", err)
			}

		default:
			return domain.ErrNoSuchEditField
		}

		return txTasks.Update(ctx, task)
	})
	if err != nil {
		if !store.IsNotFoundError(err) {
			s.logger.Error("failed to edit task",
				"error", err,
				"task_id", taskID,
				"field", field)
		}
		return nil, err
	}

	if field == FieldAssignees {
		// The fresh pending set makes the task incomplete again; a later
		// completion is a new edge and gets its own event.
		s.scheduler.ResetCompletion(taskID)
	}
	s.restoreReminderJob(ctx, task)

	s.logger.Info("task edited",
		"task_id", taskID,
		"field", field)
	return task, nil
}

// DeleteTask removes the task and disarms its job. Assignments and comments
// go with it through the schema's cascade rules.
func (s *TaskServiceImpl) DeleteTask(ctx context.Context, actor *domain.User, taskID int64) error {
	if err := requireApprover(actor); err != nil {
		return err
	}

	err := s.tx.RunTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.taskStore.WithTx(tx).Delete(ctx, taskID)
	})
	if err != nil {
		if !store.IsNotFoundError(err) {
			s.logger.Error("failed to delete task",
				"error", err,
				"task_id", taskID)
		}
		return err
	}

	s.scheduler.Disarm(taskID)
	s.scheduler.ResetCompletion(taskID)

	s.logger.Info("task deleted", "task_id", taskID)
	return nil
}

// RemindTask triggers an immediate reminder cycle.
func (s *TaskServiceImpl) RemindTask(ctx context.Context, actor *domain.User, taskID int64) error {
	if err := requireApprover(actor); err != nil {
		return err
	}
	return s.scheduler.RemindNow(ctx, taskID)
}

// GetTask returns the task with its per-assignee statuses and comments.
func (s *TaskServiceImpl) GetTask(ctx context.Context, actor *domain.User, taskID int64) (*TaskDetail, error) {
	task, err := s.taskStore.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	assignments, err := s.assignmentStore.ListByTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}

	if actor.Role != domain.RoleApprover {
		held := false
		for _, a := range assignments {
			if a.UserID == actor.ID {
				held = true
				break
			}
		}
		if !held {
			return nil, ErrNotAssigned
		}
	}

	detail := &TaskDetail{Task: task}
	for _, a := range assignments {
		user, err := s.userStore.GetByID(ctx, a.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve assignee %d: %w", a.UserID, err)
		}
		detail.Assignees = append(detail.Assignees, AssigneeStatus{User: user, Status: a.Status})
	}

	detail.Comments, err = s.commentStore.ListByTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	return detail, nil
}

// ListTasks returns all tasks for approvers, the actor's own for assignees.
func (s *TaskServiceImpl) ListTasks(ctx context.Context, actor *domain.User) ([]*domain.Task, error) {
	if actor.Role == domain.RoleApprover {
		return s.taskStore.List(ctx)
	}
	return s.taskStore.ListByAssignee(ctx, actor.ID)
}

// restoreReminderJob re-establishes the invariant after an edit: a complete
// task keeps no job (and CompleteIfDone emits the completion event if this
// edit produced the edge), an incomplete one is re-armed with its current
// interval. The edit is already committed when this runs, so scheduler
// failures are logged rather than surfaced — the stored state is the truth the
// caller gets back, and an over-armed job heals on its next tick.
func (s *TaskServiceImpl) restoreReminderJob(ctx context.Context, task *domain.Task) {
	done, err := s.scheduler.CompleteIfDone(ctx, task.ID)
	if err != nil {
		// Transient evaluator failure: arm with the edited interval anyway and
		// let the next tick re-evaluate, instead of leaving the pre-edit job.
		s.logger.Error("failed to evaluate completion after edit",
			"error", err,
			"task_id", task.ID)
	}
	if done {
		return
	}
	if err := s.scheduler.ArmTask(task); err != nil {
		s.logger.Error("failed to re-arm reminder job after edit",
			"error", err,
			"task_id", task.ID)
		return
	}
	// The completion check and the arm are not atomic: the last assignee may
	// finish in between, leaving the fresh job on a completed task. Re-check
	// so that job is taken down again; the emitted record guarantees the
	// racing completion's event is not duplicated.
	if _, err := s.scheduler.CompleteIfDone(ctx, task.ID); err != nil {
		s.logger.Error("failed to re-check completion after re-arm",
			"error", err,
			"task_id", task.ID)
	}
}
