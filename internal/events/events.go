// Package events provides a small in-process publish/subscribe mechanism.
// Services and the reminder scheduler emit events; notification handlers
// consume them without the emitting side knowing who listens.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the core.
const (
	// TypeTaskCompleted is emitted exactly once per task when its completion
	// condition flips to true.
	TypeTaskCompleted = "task.completed"

	// TypeCommentAdded is emitted when an assignee comments on a task.
	TypeCommentAdded = "comment.added"
)

// Event is a notification that something happened in the core.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type indicates what happened, one of the Type* constants
	Type string `json:"type"`

	// Payload contains the event-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// TaskCompletedPayload is the payload for TypeTaskCompleted events.
type TaskCompletedPayload struct {
	TaskID int64  `json:"task_id"`
	Title  string `json:"title"`
}

// CommentAddedPayload is the payload for TypeCommentAdded events.
type CommentAddedPayload struct {
	TaskID   int64  `json:"task_id"`
	Title    string `json:"title"`
	AuthorID int64  `json:"author_id"`
	Author   string `json:"author"`
	Body     string `json:"body"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *Event) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewEvent creates a new Event with the specified type and payload.
func NewEvent(eventType string, payload interface{}) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now(),
	}, nil
}

// Handler defines an interface for components that can handle events.
type Handler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *Event) error
}

// Emitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type Emitter interface {
	// Emit publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	Emit(ctx context.Context, event *Event) error
}
