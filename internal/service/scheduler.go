package service

import (
	"context"

	"github.com/taskpulse/taskpulse/internal/domain"
)

// ReminderScheduler is the slice of the scheduler the services drive. Every
// task mutation goes through one of these calls so the reminder-job invariant
// holds: a job exists exactly when its task exists and is not complete.
type ReminderScheduler interface {
	// ArmTask registers (or replaces) the reminder job for the task.
	ArmTask(task *domain.Task) error

	// Disarm cancels the task's job, reporting whether one was removed.
	Disarm(taskID int64) bool

	// CompleteIfDone re-evaluates the completion condition and, on the
	// not-complete to complete edge, disarms the job and emits the one-time
	// completion event.
	CompleteIfDone(ctx context.Context, taskID int64) (bool, error)

	// ResetCompletion marks the task eligible to emit a completion event
	// again. Called when the assignee set is replaced or the task is deleted.
	ResetCompletion(taskID int64)

	// RemindNow sends an immediate reminder to every outstanding assignee.
	RemindNow(ctx context.Context, taskID int64) error
}
