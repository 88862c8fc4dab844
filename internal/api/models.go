package api

import (
	"time"

	"github.com/taskpulse/taskpulse/internal/domain"
	"github.com/taskpulse/taskpulse/internal/service"
)

// UserResponse is the client view of a user. Phone numbers are deliberately
// absent from every response body.
type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Role     string `json:"role"`
}

// TaskResponse is the client view of a task.
type TaskResponse struct {
	ID                 int64     `json:"id"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	Deadline           time.Time `json:"deadline"`
	RemindEveryMinutes int64     `json:"remind_every_minutes"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// AssigneeResponse pairs an assignee with their status on one task.
type AssigneeResponse struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Status   string `json:"status"`
}

// CommentResponse is the client view of a comment.
type CommentResponse struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	UserID    int64     `json:"user_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskDetailResponse is the full view of one task.
type TaskDetailResponse struct {
	TaskResponse
	Assignees []AssigneeResponse `json:"assignees"`
	Comments  []CommentResponse  `json:"comments"`
}

// StatusResponse acknowledges an intent that produces no entity.
type StatusResponse struct {
	Status string `json:"status"`
}

// ChangedResponse reports whether a status-machine intent changed anything.
type ChangedResponse struct {
	Changed bool `json:"changed"`
}

func newUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:       user.ID,
		Username: user.Username,
		Name:     user.Name,
		Surname:  user.Surname,
		Role:     string(user.Role),
	}
}

func newTaskResponse(task *domain.Task) TaskResponse {
	return TaskResponse{
		ID:                 task.ID,
		Title:              task.Title,
		Description:        task.Description,
		Deadline:           task.Deadline,
		RemindEveryMinutes: int64(task.RemindEvery / time.Minute),
		CreatedAt:          task.CreatedAt,
		UpdatedAt:          task.UpdatedAt,
	}
}

func newCommentResponse(comment *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:        comment.ID,
		TaskID:    comment.TaskID,
		UserID:    comment.UserID,
		Body:      comment.Body,
		CreatedAt: comment.CreatedAt,
	}
}

func newTaskDetailResponse(detail *service.TaskDetail) TaskDetailResponse {
	resp := TaskDetailResponse{
		TaskResponse: newTaskResponse(detail.Task),
		Assignees:    make([]AssigneeResponse, 0, len(detail.Assignees)),
		Comments:     make([]CommentResponse, 0, len(detail.Comments)),
	}
	for _, a := range detail.Assignees {
		resp.Assignees = append(resp.Assignees, AssigneeResponse{
			UserID:   a.User.ID,
			Username: a.User.Username,
			Name:     a.User.Name,
			Surname:  a.User.Surname,
			Status:   string(a.Status),
		})
	}
	for _, c := range detail.Comments {
		resp.Comments = append(resp.Comments, newCommentResponse(c))
	}
	return resp
}
