package domain

import (
	"errors"
	"time"
)

// Common validation errors for tasks
var (
	ErrEmptyTitle       = errors.New("task title cannot be empty")
	ErrEmptyDeadline    = errors.New("task deadline must be set")
	ErrInvalidInterval  = errors.New("reminder interval must be positive")
	ErrNoSuchEditField  = errors.New("unknown task field")
	ErrEmptyFieldValue  = errors.New("field value cannot be empty")
	ErrMalformedDeadline = errors.New("deadline must be formatted as 2006-01-02 15:04")
)

// DeadlineLayout is the wire format for task deadlines, kept compatible with
// the chat transport's free-text input.
const DeadlineLayout = "2006-01-02 15:04"

// DefaultRemindEvery is applied when a task is created without an explicit
// reminder interval.
const DefaultRemindEvery = 30 * time.Minute

// Task represents a unit of work with a deadline and a recurring reminder
// interval. A task owns its assignments and comments; both are removed with
// the task.
type Task struct {
	ID          int64         `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Deadline    time.Time     `json:"deadline"`
	RemindEvery time.Duration `json:"remind_every"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// NewTask creates a new Task with the given attributes. The ID is assigned by
// the store on creation. A zero remindEvery falls back to DefaultRemindEvery.
// Returns an error if validation fails.
func NewTask(title, description string, deadline time.Time, remindEvery time.Duration) (*Task, error) {
	if remindEvery == 0 {
		remindEvery = DefaultRemindEvery
	}

	now := time.Now().UTC()
	task := &Task{
		Title:       title,
		Description: description,
		Deadline:    deadline,
		RemindEvery: remindEvery,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.Title == "" {
		return ErrEmptyTitle
	}
	if t.Deadline.IsZero() {
		return ErrEmptyDeadline
	}
	if t.RemindEvery <= 0 {
		return ErrInvalidInterval
	}
	return nil
}

// ParseDeadline parses a deadline in the transport's wire format.
// Returns ErrMalformedDeadline if the value does not match DeadlineLayout.
func ParseDeadline(value string) (time.Time, error) {
	ts, err := time.Parse(DeadlineLayout, value)
	if err != nil {
		return time.Time{}, ErrMalformedDeadline
	}
	return ts, nil
}
