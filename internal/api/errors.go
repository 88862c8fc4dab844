package api

import (
	"errors"
	"net/http"

	"github.com/taskpulse/taskpulse/internal/command"
	"github.com/taskpulse/taskpulse/internal/domain"
	"github.com/taskpulse/taskpulse/internal/service"
	"github.com/taskpulse/taskpulse/internal/service/auth"
	"github.com/taskpulse/taskpulse/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, service.ErrPermissionDenied),
		errors.Is(err, service.ErrNotAssigned):
		return http.StatusForbidden

	// Not found errors
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, store.ErrDuplicate),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, command.ErrUnknownKind),
		errors.Is(err, command.ErrInvalidPayload),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrEmptyTitle),
		errors.Is(err, domain.ErrEmptyDeadline),
		errors.Is(err, domain.ErrMalformedDeadline),
		errors.Is(err, domain.ErrInvalidInterval),
		errors.Is(err, domain.ErrNoSuchEditField),
		errors.Is(err, domain.ErrEmptyFieldValue),
		errors.Is(err, domain.ErrEmptyCommentBody),
		errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, domain.ErrInvalidStatus):
		return http.StatusBadRequest

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message based
// on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid):
		return "Invalid token"
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrMissingToken):
		return "Authentication required"

	// Authorization errors
	case errors.Is(err, service.ErrPermissionDenied):
		return "Operation not allowed for your role"
	case errors.Is(err, service.ErrNotAssigned):
		return "You are not assigned to this task"

	// Not found errors
	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"
	case errors.Is(err, store.ErrAssignmentNotFound):
		return "Assignment not found"
	case errors.Is(err, store.ErrCommentNotFound):
		return "Comment not found"
	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	// Conflict errors
	case errors.Is(err, store.ErrPhoneNumberExists):
		return "Phone number is already registered to a different user"
	case errors.Is(err, store.ErrAssignmentExists):
		return "User is already assigned to this task"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "Assignment status does not allow this change"
	case errors.Is(err, store.ErrDuplicate):
		return "Resource already exists"

	// Bad request errors
	case errors.Is(err, command.ErrUnknownKind):
		return "Unknown intent kind"
	case errors.Is(err, command.ErrInvalidPayload):
		return "Invalid intent payload"
	case errors.Is(err, domain.ErrMalformedDeadline):
		return "Deadline must use the format YYYY-MM-DD HH:MM"
	case errors.Is(err, domain.ErrInvalidInterval):
		return "Reminder interval must be a positive number of minutes"
	case errors.Is(err, domain.ErrNoSuchEditField):
		return "Unknown task field"
	case errors.Is(err, domain.ErrEmptyFieldValue):
		return "Field value must not be empty"
	case errors.Is(err, domain.ErrEmptyTitle):
		return "Title must not be empty"
	case errors.Is(err, domain.ErrEmptyCommentBody):
		return "Comment must not be empty"
	case errors.Is(err, domain.ErrInvalidRole):
		return "Role must be approver or assignee"

	default:
		return "An unexpected error occurred"
	}
}
