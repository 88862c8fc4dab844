package notify

import (
	"context"
	"log/slog"
)

// LogSender is a Sender that only logs deliveries. It stands in for the chat
// gateway in local runs and keeps the wiring identical whether or not a real
// transport is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger.With("component", "log_sender")}
}

// Send implements Sender by writing the message to the log.
func (s *LogSender) Send(ctx context.Context, userID int64, text string) error {
	s.logger.Info("outbound message", "user_id", userID, "text", text)
	return nil
}

var _ Sender = (*LogSender)(nil)
