package notify

import (
	"fmt"

	"github.com/taskpulse/taskpulse/internal/domain"
	"github.com/taskpulse/taskpulse/internal/events"
)

// ReminderText renders the recurring reminder sent to each outstanding
// assignee.
func ReminderText(task *domain.Task) string {
	return fmt.Sprintf("Reminder: the task %q is due %s. Please accept or complete it.",
		task.Title, task.Deadline.Format(domain.DeadlineLayout))
}

// CompletionText renders the one-time message sent to approvers when every
// assignee has completed the task.
func CompletionText(p events.TaskCompletedPayload) string {
	return fmt.Sprintf("The task %q has been completed by all assignees.", p.Title)
}

// CommentText renders the message sent to approvers when an assignee
// comments on a task.
func CommentText(p events.CommentAddedPayload) string {
	return fmt.Sprintf("New comment on task %q by %s:\n\n%s", p.Title, p.Author, p.Body)
}
