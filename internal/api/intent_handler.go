package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/taskpulse/taskpulse/internal/api/middleware"
	"github.com/taskpulse/taskpulse/internal/api/shared"
	"github.com/taskpulse/taskpulse/internal/command"
	"github.com/taskpulse/taskpulse/internal/domain"
	"github.com/taskpulse/taskpulse/internal/service"
)

// IntentHandler accepts the structured intents from the chat gateway. Input
// is parsed and validated exactly once here; the services only ever see typed
// commands and resolved actors.
type IntentHandler struct {
	users       service.UserService
	tasks       service.TaskService
	assignments service.AssignmentService
	comments    service.CommentService
	logger      *slog.Logger
}

// NewIntentHandler creates a new IntentHandler.
func NewIntentHandler(
	users service.UserService,
	tasks service.TaskService,
	assignments service.AssignmentService,
	comments service.CommentService,
	logger *slog.Logger,
) *IntentHandler {
	return &IntentHandler{
		users:       users,
		tasks:       tasks,
		assignments: assignments,
		comments:    comments,
		logger:      logger.With("component", "intent_handler"),
	}
}

// HandleIntent handles POST /api/intents.
func (h *IntentHandler) HandleIntent(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var envelope command.Envelope
	if err := shared.DecodeJSON(r, &envelope); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cmd, err := command.Decode(envelope)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	h.dispatch(w, r, actorID, cmd)
}

func (h *IntentHandler) dispatch(w http.ResponseWriter, r *http.Request, actorID int64, cmd command.Command) {
	ctx := r.Context()

	// Registration is the one intent that works without a stored user; every
	// other intent resolves the actor first.
	if register, ok := cmd.(command.RegisterUser); ok {
		h.handleRegister(w, r, actorID, register)
		return
	}

	actor, err := h.users.GetUser(ctx, actorID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	switch c := cmd.(type) {
	case command.CreateTask:
		h.handleCreateTask(w, r, actor, c)

	case command.EditTask:
		task, err := h.tasks.EditTask(ctx, actor, c.TaskID, c.Field, c.Value, c.AssigneeIDs)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		shared.RespondWithJSON(w, r, http.StatusOK, newTaskResponse(task))

	case command.DeleteTask:
		if err := h.tasks.DeleteTask(ctx, actor, c.TaskID); err != nil {
			h.respondError(w, r, err)
			return
		}
		shared.RespondWithJSON(w, r, http.StatusOK, StatusResponse{Status: "deleted"})

	case command.AcceptTask:
		changed, err := h.assignments.Accept(ctx, actor.ID, c.TaskID)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		shared.RespondWithJSON(w, r, http.StatusOK, ChangedResponse{Changed: changed})

	case command.CompleteTask:
		changed, err := h.assignments.Complete(ctx, actor.ID, c.TaskID)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		shared.RespondWithJSON(w, r, http.StatusOK, ChangedResponse{Changed: changed})

	case command.CommentTask:
		comment, err := h.comments.AddComment(ctx, actor, c.TaskID, c.Body)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		shared.RespondWithJSON(w, r, http.StatusCreated, newCommentResponse(comment))

	case command.RemindTask:
		if err := h.tasks.RemindTask(ctx, actor, c.TaskID); err != nil {
			h.respondError(w, r, err)
			return
		}
		shared.RespondWithJSON(w, r, http.StatusOK, StatusResponse{Status: "reminded"})

	default:
		h.logger.Error("decoded command with no dispatch arm",
			"kind", cmd.CommandKind())
		shared.RespondWithError(w, r, http.StatusInternalServerError, "An unexpected error occurred")
	}
}

func (h *IntentHandler) handleRegister(w http.ResponseWriter, r *http.Request, actorID int64, c command.RegisterUser) {
	// The identity token is bound to the transport user ID; registering on
	// someone else's behalf is not a thing.
	if c.UserID != actorID {
		shared.RespondWithError(w, r, http.StatusForbidden, "Cannot register a different user")
		return
	}

	role, err := domain.ParseRole(c.Role)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	user, created, err := h.users.Register(r.Context(), service.RegisterUserParams{
		UserID:      c.UserID,
		Username:    c.Username,
		Name:        c.Name,
		Surname:     c.Surname,
		PhoneNumber: c.PhoneNumber,
		Role:        role,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	shared.RespondWithJSON(w, r, status, newUserResponse(user))
}

func (h *IntentHandler) handleCreateTask(w http.ResponseWriter, r *http.Request, actor *domain.User, c command.CreateTask) {
	deadline, err := domain.ParseDeadline(c.Deadline)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	task, err := h.tasks.CreateTask(r.Context(), actor, service.CreateTaskParams{
		Title:        c.Title,
		Description:  c.Description,
		Deadline:     deadline,
		RemindEvery:  time.Duration(c.RemindEveryMinutes) * time.Minute,
		AssigneeIDs:  c.AssigneeIDs,
		AllAssignees: c.AllAssignees,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, newTaskResponse(task))
}

func (h *IntentHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError {
		err = fmt.Errorf("intent handling failed: %w", err)
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}
