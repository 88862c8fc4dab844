package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskpulse/taskpulse/internal/api"
	"github.com/taskpulse/taskpulse/internal/api/shared"
	"github.com/taskpulse/taskpulse/internal/completion"
	"github.com/taskpulse/taskpulse/internal/domain"
	"github.com/taskpulse/taskpulse/internal/events"
	"github.com/taskpulse/taskpulse/internal/scheduler"
	"github.com/taskpulse/taskpulse/internal/service"
	"github.com/taskpulse/taskpulse/internal/testutils"
)

// testServer wires the handlers to real services over in-memory stores.
type testServer struct {
	router    chi.Router
	store     *testutils.MemStore
	scheduler *scheduler.Scheduler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	mem := testutils.NewMemStore()
	notifier := testutils.NewRecordingNotifier()
	emitter := events.NewInMemoryEmitter(logger)

	sched := scheduler.New(
		mem.Tasks(),
		mem.Assignments(),
		completion.NewEvaluator(mem.Assignments()),
		notifier,
		emitter,
		scheduler.Config{Mode: scheduler.ModeRecurring, StartDelay: time.Hour, Lead: 24 * time.Hour},
		logger,
	)
	t.Cleanup(sched.Stop)

	users := service.NewUserService(mem.Users(), mem, logger)
	tasks := service.NewTaskService(
		mem.Tasks(), mem.Assignments(), mem.Users(), mem.Comments(), sched, mem, logger)
	assignments := service.NewAssignmentService(mem.Assignments(), sched, mem, logger)
	comments := service.NewCommentService(
		mem.Comments(), mem.Tasks(), mem.Assignments(), emitter, mem, logger)

	intentHandler := api.NewIntentHandler(users, tasks, assignments, comments, logger)
	taskHandler := api.NewTaskHandler(tasks, users, logger)

	r := chi.NewRouter()
	r.Post("/api/intents", intentHandler.HandleIntent)
	r.Get("/api/tasks", taskHandler.ListTasks)
	r.Get("/api/tasks/{id}", taskHandler.GetTask)

	return &testServer{router: r, store: mem, scheduler: sched}
}

// do performs a request authenticated as the given user, the way the auth
// middleware would leave the context.
func (s *testServer) do(t *testing.T, actorID int64, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req = req.WithContext(context.WithValue(req.Context(), shared.UserIDContextKey, actorID))

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) intent(t *testing.T, actorID int64, kind string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return s.do(t, actorID, http.MethodPost, "/api/intents", map[string]any{
		"kind":    kind,
		"payload": json.RawMessage(raw),
	})
}

func (s *testServer) register(t *testing.T, id int64, role string) {
	t.Helper()
	rec := s.intent(t, id, "user.register", map[string]any{
		"user_id":      id,
		"name":         "Ivan",
		"surname":      "Ivanov",
		"phone_number": fmt.Sprintf("+7999000%04d", id),
		"role":         role,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (s *testServer) createTask(t *testing.T, approverID int64, assigneeIDs ...int64) int64 {
	t.Helper()
	rec := s.intent(t, approverID, "task.create", map[string]any{
		"title":                "Audit Q3",
		"description":          "quarterly figures",
		"deadline":             "2026-09-30 18:00",
		"remind_every_minutes": 30,
		"assignee_ids":         assigneeIDs,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.ID
}

func TestRegisterIntent(t *testing.T) {
	s := newTestServer(t)

	rec := s.intent(t, 7, "user.register", map[string]any{
		"user_id":      7,
		"name":         "Ivan",
		"surname":      "Ivanov",
		"phone_number": "+79990001122",
		"role":         "assignee",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "user_7", resp["username"])
	assert.NotContains(t, rec.Body.String(), "+79990001122", "phone numbers never appear in responses")

	// Registering again is idempotent and reports 200.
	rec = s.intent(t, 7, "user.register", map[string]any{
		"user_id":      7,
		"name":         "Ivan",
		"surname":      "Ivanov",
		"phone_number": "+79990001122",
		"role":         "assignee",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterForDifferentUserForbidden(t *testing.T) {
	s := newTestServer(t)

	rec := s.intent(t, 7, "user.register", map[string]any{
		"user_id":      8,
		"name":         "Petr",
		"surname":      "Petrov",
		"phone_number": "+70000000008",
		"role":         "assignee",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateTaskIntentLifecycle(t *testing.T) {
	s := newTestServer(t)
	s.register(t, 100, "approver")
	s.register(t, 1, "assignee")
	s.register(t, 2, "assignee")

	taskID := s.createTask(t, 100, 1, 2)
	assert.True(t, s.scheduler.Armed(taskID))

	// Assignee 1 accepts then completes.
	rec := s.intent(t, 1, "task.accept", map[string]any{"task_id": taskID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"changed": true}`, rec.Body.String())

	rec = s.intent(t, 1, "task.complete", map[string]any{"task_id": taskID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, s.scheduler.Armed(taskID), "second assignee still outstanding")

	rec = s.intent(t, 2, "task.complete", map[string]any{"task_id": taskID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, s.scheduler.Armed(taskID), "last completion disarms the reminder job")
}

func TestCreateTaskRequiresApproverRole(t *testing.T) {
	s := newTestServer(t)
	s.register(t, 1, "assignee")

	rec := s.intent(t, 1, "task.create", map[string]any{
		"title":                "x",
		"deadline":             "2026-09-30 18:00",
		"remind_every_minutes": 30,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestIntentFromUnregisteredUser(t *testing.T) {
	s := newTestServer(t)

	rec := s.intent(t, 9, "task.accept", map[string]any{"task_id": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAcceptCompletedAssignmentConflicts(t *testing.T) {
	s := newTestServer(t)
	s.register(t, 100, "approver")
	s.register(t, 1, "assignee")
	taskID := s.createTask(t, 100, 1)

	rec := s.intent(t, 1, "task.complete", map[string]any{"task_id": taskID})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.intent(t, 1, "task.accept", map[string]any{"task_id": taskID})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCommentIntent(t *testing.T) {
	s := newTestServer(t)
	s.register(t, 100, "approver")
	s.register(t, 1, "assignee")
	taskID := s.createTask(t, 100, 1)

	rec := s.intent(t, 1, "task.comment", map[string]any{"task_id": taskID, "body": "halfway"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.intent(t, 100, "task.comment", map[string]any{"task_id": taskID, "body": "noted"})
	assert.Equal(t, http.StatusForbidden, rec.Code, "approvers are not assignees")
}

func TestEditAndDeleteIntents(t *testing.T) {
	s := newTestServer(t)
	s.register(t, 100, "approver")
	s.register(t, 1, "assignee")
	taskID := s.createTask(t, 100, 1)

	rec := s.intent(t, 100, "task.edit", map[string]any{
		"task_id": taskID, "field": "title", "value": "Audit Q4",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Audit Q4")

	rec = s.intent(t, 100, "task.edit", map[string]any{
		"task_id": taskID, "field": "deadline", "value": "yesterday-ish",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.intent(t, 100, "task.delete", map[string]any{"task_id": taskID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, s.scheduler.Armed(taskID))

	rec = s.intent(t, 100, "task.delete", map[string]any{"task_id": taskID})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownIntentKind(t *testing.T) {
	s := newTestServer(t)
	s.register(t, 100, "approver")

	rec := s.intent(t, 100, "task.archive", map[string]any{"task_id": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMalformedBody(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/intents", bytes.NewBufferString("{not json"))
	req = req.WithContext(context.WithValue(req.Context(), shared.UserIDContextKey, int64(1)))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnauthenticatedRequest(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/intents", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListAndGetTasks(t *testing.T) {
	s := newTestServer(t)
	s.register(t, 100, "approver")
	s.register(t, 1, "assignee")
	s.register(t, 2, "assignee")
	taskID := s.createTask(t, 100, 1)
	s.createTask(t, 100, 2)

	// Approver sees both, assignee 1 only their own.
	rec := s.do(t, 100, http.MethodGet, "/api/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 2)

	rec = s.do(t, 1, http.MethodGet, "/api/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var own []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &own))
	assert.Len(t, own, 1)

	// Detail view carries assignees and statuses.
	rec = s.do(t, 100, http.MethodGet, fmt.Sprintf("/api/tasks/%d", taskID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		Assignees []struct {
			UserID int64  `json:"user_id"`
			Status string `json:"status"`
		} `json:"assignees"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	require.Len(t, detail.Assignees, 1)
	assert.Equal(t, int64(1), detail.Assignees[0].UserID)
	assert.Equal(t, string(domain.AssignmentPending), detail.Assignees[0].Status)

	// An uninvolved assignee cannot read the detail.
	rec = s.do(t, 2, http.MethodGet, fmt.Sprintf("/api/tasks/%d", taskID), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, 100, http.MethodGet, "/api/tasks/notanumber", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
