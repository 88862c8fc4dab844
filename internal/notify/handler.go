package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taskpulse/taskpulse/internal/domain"
	"github.com/taskpulse/taskpulse/internal/events"
)

// ApproverEventHandler consumes core events and turns them into messages for
// every approver: a one-time note when a task completes and a heads-up when
// an assignee comments.
type ApproverEventHandler struct {
	service *Service
	logger  *slog.Logger
}

// NewApproverEventHandler creates the handler on top of the notification
// service.
func NewApproverEventHandler(service *Service, logger *slog.Logger) *ApproverEventHandler {
	return &ApproverEventHandler{
		service: service,
		logger:  logger.With("component", "approver_event_handler"),
	}
}

// HandleEvent dispatches on the event type. Unknown types are ignored so new
// events can be added without touching this handler.
func (h *ApproverEventHandler) HandleEvent(ctx context.Context, event *events.Event) error {
	switch event.Type {
	case events.TypeTaskCompleted:
		var payload events.TaskCompletedPayload
		if err := event.UnmarshalPayload(&payload); err != nil {
			return fmt.Errorf("failed to unmarshal completion payload: %w", err)
		}
		return h.fanOut(ctx, event, CompletionText(payload))

	case events.TypeCommentAdded:
		var payload events.CommentAddedPayload
		if err := event.UnmarshalPayload(&payload); err != nil {
			return fmt.Errorf("failed to unmarshal comment payload: %w", err)
		}
		return h.fanOut(ctx, event, CommentText(payload))

	default:
		h.logger.Debug("ignoring event with unsupported type",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}
}

func (h *ApproverEventHandler) fanOut(ctx context.Context, event *events.Event, text string) error {
	results, err := h.service.NotifyRole(ctx, domain.RoleApprover, text)
	if err != nil {
		return fmt.Errorf("failed to resolve approvers: %w", err)
	}

	for _, r := range results {
		if r.Err != nil {
			h.logger.Warn("approver notification failed",
				"user_id", r.UserID,
				"event_id", event.ID,
				"event_type", event.Type,
				"error", r.Err)
		}
	}
	return nil
}

// Ensure ApproverEventHandler implements events.Handler
var _ events.Handler = (*ApproverEventHandler)(nil)
