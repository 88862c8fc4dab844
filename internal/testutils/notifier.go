package testutils

import (
	"context"
	"sync"
)

// RecordingNotifier captures every delivered message and can be told to fail
// for specific recipients.
type RecordingNotifier struct {
	mu       sync.Mutex
	sent     map[int64][]string
	failWith map[int64]error
}

// NewRecordingNotifier creates an empty RecordingNotifier.
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{
		sent:     make(map[int64][]string),
		failWith: make(map[int64]error),
	}
}

// FailFor makes deliveries to the given user return err.
func (n *RecordingNotifier) FailFor(userID int64, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failWith[userID] = err
}

// NotifyUser implements the scheduler's Notifier interface.
func (n *RecordingNotifier) NotifyUser(ctx context.Context, userID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err, ok := n.failWith[userID]; ok {
		return err
	}
	n.sent[userID] = append(n.sent[userID], text)
	return nil
}

// Send implements the notify.Sender interface, so the same fake serves both
// the scheduler and the notification service.
func (n *RecordingNotifier) Send(ctx context.Context, userID int64, text string) error {
	return n.NotifyUser(ctx, userID, text)
}

// Sent returns a copy of the messages delivered to the given user.
func (n *RecordingNotifier) Sent(userID int64) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.sent[userID]))
	copy(out, n.sent[userID])
	return out
}

// SentCount returns how many messages the given user received.
func (n *RecordingNotifier) SentCount(userID int64) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent[userID])
}

// TotalCount returns how many messages were delivered in total.
func (n *RecordingNotifier) TotalCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, msgs := range n.sent {
		total += len(msgs)
	}
	return total
}

// Reset clears everything recorded so far.
func (n *RecordingNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = make(map[int64][]string)
}
