// Package command defines the structured intents the API accepts. Free-form
// input is parsed and validated exactly once, at the transport boundary; the
// services below only ever see one of the typed values in this package.
package command

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Intent kinds accepted by the intent endpoint.
const (
	KindUserRegister = "user.register"
	KindTaskCreate   = "task.create"
	KindTaskEdit     = "task.edit"
	KindTaskDelete   = "task.delete"
	KindTaskAccept   = "task.accept"
	KindTaskComplete = "task.complete"
	KindTaskComment  = "task.comment"
	KindTaskRemind   = "task.remind"
)

// Command errors
var (
	// ErrUnknownKind is returned for an intent kind this version does not know.
	ErrUnknownKind = errors.New("unknown intent kind")

	// ErrInvalidPayload is returned when the payload cannot be decoded or
	// fails validation.
	ErrInvalidPayload = errors.New("invalid intent payload")
)

// Envelope is the wire form of an intent: a kind tag and a kind-specific
// payload.
type Envelope struct {
	Kind    string          `json:"kind" validate:"required"`
	Payload json.RawMessage `json:"payload"`
}

// Command is one decoded, validated intent. The concrete type identifies the
// operation.
type Command interface {
	CommandKind() string
}

// RegisterUser registers (or refreshes) the calling identity.
type RegisterUser struct {
	UserID      int64  `json:"user_id" validate:"required,gt=0"`
	Username    string `json:"username"`
	Name        string `json:"name" validate:"required"`
	Surname     string `json:"surname" validate:"required"`
	PhoneNumber string `json:"phone_number" validate:"required"`
	Role        string `json:"role" validate:"required,oneof=approver assignee"`
}

// CreateTask creates a task and its initial assignments. Either an explicit
// assignee list or AllAssignees may be given; both empty creates an
// unassigned task.
type CreateTask struct {
	Title              string  `json:"title" validate:"required"`
	Description        string  `json:"description"`
	Deadline           string  `json:"deadline" validate:"required"`
	RemindEveryMinutes int64   `json:"remind_every_minutes" validate:"gte=0"`
	AssigneeIDs        []int64 `json:"assignee_ids" validate:"dive,gt=0"`
	AllAssignees       bool    `json:"all_assignees"`
}

// EditTask changes one field of a task. For Field "assignees" the new value is
// AssigneeIDs; for everything else it is Value.
type EditTask struct {
	TaskID      int64   `json:"task_id" validate:"required,gt=0"`
	Field       string  `json:"field" validate:"required,oneof=title description deadline remind_every assignees"`
	Value       string  `json:"value"`
	AssigneeIDs []int64 `json:"assignee_ids" validate:"dive,gt=0"`
}

// DeleteTask removes a task, its assignments and comments.
type DeleteTask struct {
	TaskID int64 `json:"task_id" validate:"required,gt=0"`
}

// AcceptTask marks the actor's assignment accepted. The actor comes from the
// request identity, never from the payload.
type AcceptTask struct {
	TaskID int64 `json:"task_id" validate:"required,gt=0"`
}

// CompleteTask marks the actor's assignment completed.
type CompleteTask struct {
	TaskID int64 `json:"task_id" validate:"required,gt=0"`
}

// CommentTask appends a comment by the actor to the task.
type CommentTask struct {
	TaskID int64  `json:"task_id" validate:"required,gt=0"`
	Body   string `json:"body" validate:"required"`
}

// RemindTask triggers an immediate reminder to every outstanding assignee.
type RemindTask struct {
	TaskID int64 `json:"task_id" validate:"required,gt=0"`
}

func (RegisterUser) CommandKind() string { return KindUserRegister }
func (CreateTask) CommandKind() string   { return KindTaskCreate }
func (EditTask) CommandKind() string     { return KindTaskEdit }
func (DeleteTask) CommandKind() string   { return KindTaskDelete }
func (AcceptTask) CommandKind() string   { return KindTaskAccept }
func (CompleteTask) CommandKind() string { return KindTaskComplete }
func (CommentTask) CommandKind() string  { return KindTaskComment }
func (RemindTask) CommandKind() string   { return KindTaskRemind }

var validate = validator.New()

// Decode turns an envelope into its typed, validated command.
func Decode(envelope Envelope) (Command, error) {
	switch envelope.Kind {
	case KindUserRegister:
		return decodePayload[RegisterUser](envelope.Payload)
	case KindTaskCreate:
		return decodePayload[CreateTask](envelope.Payload)
	case KindTaskEdit:
		return decodePayload[EditTask](envelope.Payload)
	case KindTaskDelete:
		return decodePayload[DeleteTask](envelope.Payload)
	case KindTaskAccept:
		return decodePayload[AcceptTask](envelope.Payload)
	case KindTaskComplete:
		return decodePayload[CompleteTask](envelope.Payload)
	case KindTaskComment:
		return decodePayload[CommentTask](envelope.Payload)
	case KindTaskRemind:
		return decodePayload[RemindTask](envelope.Payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, envelope.Kind)
	}
}

func decodePayload[T Command](raw json.RawMessage) (Command, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: missing payload", ErrInvalidPayload)
	}

	var cmd T
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := validate.Struct(cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return cmd, nil
}
