package domain

import (
	"errors"
	"time"
)

// ErrEmptyCommentBody indicates a comment with no text.
var ErrEmptyCommentBody = errors.New("comment body cannot be empty")

// Comment is an append-only remark attached to a task by one of its
// assignees. Comments are immutable after creation and are removed only when
// the owning task is deleted.
type Comment struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	UserID    int64     `json:"user_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// NewComment creates a comment on the given task authored by the given user.
// The creation timestamp is set here and never updated.
func NewComment(taskID, userID int64, body string) (*Comment, error) {
	if body == "" {
		return nil, ErrEmptyCommentBody
	}
	return &Comment{
		TaskID:    taskID,
		UserID:    userID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}, nil
}
