package domain

import "errors"

// AssignmentStatus represents one assignee's progress on a task.
type AssignmentStatus string

// Possible assignment status values. Accepted is informational and may be
// skipped; Completed is terminal.
const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentAccepted  AssignmentStatus = "accepted"
	AssignmentCompleted AssignmentStatus = "completed"
)

// State machine errors
var (
	// ErrInvalidTransition indicates an illegal status move, such as
	// accepting an assignment that is already completed.
	ErrInvalidTransition = errors.New("invalid assignment transition")

	// ErrInvalidStatus indicates a status value outside the known set.
	ErrInvalidStatus = errors.New("invalid assignment status")
)

// Valid reports whether s is one of the known status values.
func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentPending, AssignmentAccepted, AssignmentCompleted:
		return true
	}
	return false
}

// Assignment is the relationship between one user and one task, identified by
// the (TaskID, UserID) pair. Exactly one assignment exists per pair.
type Assignment struct {
	TaskID int64            `json:"task_id"`
	UserID int64            `json:"user_id"`
	Status AssignmentStatus `json:"status"`
}

// NewAssignment creates a pending assignment for the given task and user.
func NewAssignment(taskID, userID int64) *Assignment {
	return &Assignment{
		TaskID: taskID,
		UserID: userID,
		Status: AssignmentPending,
	}
}

// Accept moves the assignment from Pending to Accepted.
// Returns (false, nil) when the assignment is already accepted, which callers
// report as an "already accepted" no-op rather than an error.
// Returns ErrInvalidTransition when the assignment is completed.
func (a *Assignment) Accept() (bool, error) {
	switch a.Status {
	case AssignmentPending:
		a.Status = AssignmentAccepted
		return true, nil
	case AssignmentAccepted:
		return false, nil
	case AssignmentCompleted:
		return false, ErrInvalidTransition
	default:
		return false, ErrInvalidStatus
	}
}

// Complete moves the assignment to Completed from either Pending or Accepted.
// Returns (false, nil) when the assignment is already completed, which callers
// report as an "already completed" no-op. There is no transition out of
// Completed.
func (a *Assignment) Complete() (bool, error) {
	switch a.Status {
	case AssignmentPending, AssignmentAccepted:
		a.Status = AssignmentCompleted
		return true, nil
	case AssignmentCompleted:
		return false, nil
	default:
		return false, ErrInvalidStatus
	}
}
