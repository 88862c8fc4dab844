// Package notify delivers reminder, completion and comment messages to
// users. The actual transport (the chat gateway) sits behind the Sender
// interface; everything here treats delivery failures as per-recipient,
// logged, non-fatal events, so a broken transport can never disturb the
// scheduler or the services that triggered the notification.
package notify

import (
	"context"
	"log/slog"

	"github.com/taskpulse/taskpulse/internal/domain"
)

// Sender is the external chat-transport collaborator. Implementations own
// their own timeouts and retries; callers only see success or failure per
// recipient.
type Sender interface {
	// Send delivers one message to one user.
	Send(ctx context.Context, userID int64, text string) error
}

// DeliveryResult reports the outcome of one recipient's delivery attempt.
type DeliveryResult struct {
	UserID int64
	Err    error
}

// RoleLister is the slice of the user store needed to resolve group
// recipients.
type RoleLister interface {
	ListByRole(ctx context.Context, role domain.Role) ([]*domain.User, error)
}

// Service fans messages out to individual users or to every holder of a
// role.
type Service struct {
	sender Sender
	users  RoleLister
	logger *slog.Logger
}

// NewService creates a notification service on top of the given transport.
func NewService(sender Sender, users RoleLister, logger *slog.Logger) *Service {
	return &Service{
		sender: sender,
		users:  users,
		logger: logger.With("component", "notify_service"),
	}
}

// NotifyUser delivers one message to one user. The error is returned for the
// caller's bookkeeping; it has already been logged here.
func (s *Service) NotifyUser(ctx context.Context, userID int64, text string) error {
	if err := s.sender.Send(ctx, userID, text); err != nil {
		s.logger.Error("failed to deliver message",
			"user_id", userID,
			"error", err)
		return err
	}
	s.logger.Debug("delivered message", "user_id", userID)
	return nil
}

// NotifyRole delivers one message to every user holding the given role.
// Failures do not abort delivery to the remaining recipients; the returned
// slice holds one result per recipient.
func (s *Service) NotifyRole(ctx context.Context, role domain.Role, text string) ([]DeliveryResult, error) {
	recipients, err := s.users.ListByRole(ctx, role)
	if err != nil {
		return nil, err
	}

	results := make([]DeliveryResult, 0, len(recipients))
	for _, u := range recipients {
		results = append(results, DeliveryResult{
			UserID: u.ID,
			Err:    s.NotifyUser(ctx, u.ID, text),
		})
	}
	return results, nil
}
