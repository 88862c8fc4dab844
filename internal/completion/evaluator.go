// Package completion decides whether a task is fully done. A task is complete
// iff it has at least one assignment and every assignment is in the completed
// status; a task with no assignments is never complete, so a just-created,
// not-yet-assigned task cannot satisfy the condition vacuously.
package completion

import "context"

// AssignmentCounter is the slice of the assignment store the evaluator needs.
type AssignmentCounter interface {
	// CountByTask returns the total number of assignments for the task and
	// how many of them are completed.
	CountByTask(ctx context.Context, taskID int64) (total, completed int, err error)
}

// Evaluator answers the completion question from the current store state.
type Evaluator struct {
	assignments AssignmentCounter
}

// NewEvaluator creates an Evaluator reading from the given assignment source.
func NewEvaluator(assignments AssignmentCounter) *Evaluator {
	return &Evaluator{assignments: assignments}
}

// IsComplete reports whether the task's completion condition currently holds.
func (e *Evaluator) IsComplete(ctx context.Context, taskID int64) (bool, error) {
	total, completed, err := e.assignments.CountByTask(ctx, taskID)
	if err != nil {
		return false, err
	}
	return total > 0 && completed == total, nil
}
