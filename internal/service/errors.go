// Package service provides the application-level services for users, tasks,
// assignments and comments. Services own the transactional write paths and
// keep the reminder scheduler in step with every task mutation.
package service

import "errors"

// Common service errors - sentinel errors used across service implementations.
// Callers check them with errors.Is(); the API layer maps them to HTTP status
// codes.
var (
	// ErrPermissionDenied indicates the actor's role does not allow the
	// operation. API layer should map this to HTTP 403 Forbidden.
	ErrPermissionDenied = errors.New("operation not allowed for this role")

	// ErrNotAssigned indicates the actor holds no assignment for the task
	// they tried to act on. API layer should map this to HTTP 403 Forbidden.
	ErrNotAssigned = errors.New("user is not assigned to this task")
)
