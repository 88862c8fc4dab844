package service_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskpulse/taskpulse/internal/completion"
	"github.com/taskpulse/taskpulse/internal/domain"
	"github.com/taskpulse/taskpulse/internal/events"
	"github.com/taskpulse/taskpulse/internal/notify"
	"github.com/taskpulse/taskpulse/internal/scheduler"
	"github.com/taskpulse/taskpulse/internal/service"
	"github.com/taskpulse/taskpulse/internal/store"
	"github.com/taskpulse/taskpulse/internal/testutils"
)

// env wires the real scheduler, emitter and approver notification handler to
// in-memory stores, the shape the server assembles in production.
type env struct {
	store       *testutils.MemStore
	notifier    *testutils.RecordingNotifier
	scheduler   *scheduler.Scheduler
	users       *service.UserServiceImpl
	tasks       *service.TaskServiceImpl
	assignments *service.AssignmentServiceImpl
	comments    *service.CommentServiceImpl
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newEnv builds an environment whose first reminder tick is an hour away, so
// only explicit service calls touch the notifier. Tests that need live ticks
// use newTickingEnv.
func newEnv(t *testing.T) *env {
	return newEnvWithDelay(t, time.Hour)
}

func newTickingEnv(t *testing.T) *env {
	return newEnvWithDelay(t, 5*time.Millisecond)
}

func newEnvWithDelay(t *testing.T, startDelay time.Duration) *env {
	t.Helper()
	logger := testLogger()

	mem := testutils.NewMemStore()
	notifier := testutils.NewRecordingNotifier()

	emitter := events.NewInMemoryEmitter(logger)
	notifySvc := notify.NewService(notifier, mem.Users(), logger)
	emitter.RegisterHandler(notify.NewApproverEventHandler(notifySvc, logger))

	sched := scheduler.New(
		mem.Tasks(),
		mem.Assignments(),
		completion.NewEvaluator(mem.Assignments()),
		notifier,
		emitter,
		scheduler.Config{Mode: scheduler.ModeRecurring, StartDelay: startDelay, Lead: 24 * time.Hour},
		logger,
	)
	t.Cleanup(sched.Stop)

	return &env{
		store:     mem,
		notifier:  notifier,
		scheduler: sched,
		users:     service.NewUserService(mem.Users(), mem, logger),
		tasks: service.NewTaskService(
			mem.Tasks(), mem.Assignments(), mem.Users(), mem.Comments(), sched, mem, logger),
		assignments: service.NewAssignmentService(mem.Assignments(), sched, mem, logger),
		comments: service.NewCommentService(
			mem.Comments(), mem.Tasks(), mem.Assignments(), emitter, mem, logger),
	}
}

func (e *env) registerApprover(t *testing.T, id int64) *domain.User {
	t.Helper()
	user, _, err := e.users.Register(context.Background(), service.RegisterUserParams{
		UserID:      id,
		Name:        "Rimma",
		Surname:     "Petrova",
		PhoneNumber: "+7000" + string(rune('0'+id%10)),
		Role:        domain.RoleApprover,
	})
	require.NoError(t, err)
	return user
}

func (e *env) registerAssignee(t *testing.T, id int64) *domain.User {
	t.Helper()
	user, _, err := e.users.Register(context.Background(), service.RegisterUserParams{
		UserID:      id,
		Username:    "ivan",
		Name:        "Ivan",
		Surname:     "Ivanov",
		PhoneNumber: "+79990000" + string(rune('0'+id%10)) + string(rune('0'+(id/10)%10)),
		Role:        domain.RoleAssignee,
	})
	require.NoError(t, err)
	return user
}

func (e *env) createTask(t *testing.T, actor *domain.User, interval time.Duration, assigneeIDs ...int64) *domain.Task {
	t.Helper()
	task, err := e.tasks.CreateTask(context.Background(), actor, service.CreateTaskParams{
		Title:       "Audit Q3",
		Description: "quarterly figures",
		Deadline:    time.Now().Add(48 * time.Hour),
		RemindEvery: interval,
		AssigneeIDs: assigneeIDs,
	})
	require.NoError(t, err)
	return task
}

func TestRegisterAssignsDefaultUsername(t *testing.T) {
	e := newEnv(t)

	user, created, err := e.users.Register(context.Background(), service.RegisterUserParams{
		UserID:      7,
		Name:        "Ivan",
		Surname:     "Ivanov",
		PhoneNumber: "+71112223344",
		Role:        domain.RoleAssignee,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "user_7", user.Username)
}

func TestRegisterIsIdempotentAndRefreshesUsername(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	first := e.registerAssignee(t, 7)

	again, created, err := e.users.Register(ctx, service.RegisterUserParams{
		UserID:      7,
		Username:    "ivan_renamed",
		Name:        "Ivan",
		Surname:     "Ivanov",
		PhoneNumber: first.PhoneNumber,
		Role:        domain.RoleAssignee,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "ivan_renamed", again.Username)

	stored, err := e.users.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "ivan_renamed", stored.Username)
}

func TestRegisterRejectsForeignPhoneNumber(t *testing.T) {
	e := newEnv(t)
	first := e.registerAssignee(t, 7)

	_, _, err := e.users.Register(context.Background(), service.RegisterUserParams{
		UserID:      8,
		Name:        "Petr",
		Surname:     "Petrov",
		PhoneNumber: first.PhoneNumber,
		Role:        domain.RoleAssignee,
	})
	assert.ErrorIs(t, err, store.ErrPhoneNumberExists)
	assert.ErrorContains(t, err, "belongs to user 7", "the rejection names the owning identity")
}

func TestCreateTaskRequiresApprover(t *testing.T) {
	e := newEnv(t)
	assignee := e.registerAssignee(t, 1)

	_, err := e.tasks.CreateTask(context.Background(), assignee, service.CreateTaskParams{
		Title:       "x",
		Deadline:    time.Now().Add(time.Hour),
		RemindEvery: time.Hour,
	})
	assert.ErrorIs(t, err, service.ErrPermissionDenied)
}

func TestCreateTaskArmsJobAndStoresAssignments(t *testing.T) {
	e := newEnv(t)
	approver := e.registerApprover(t, 100)
	e.registerAssignee(t, 1)
	e.registerAssignee(t, 2)

	task := e.createTask(t, approver, time.Hour, 1, 2, 2) // repeated ID is idempotent

	assert.True(t, e.scheduler.Armed(task.ID))
	list, err := e.store.Assignments().ListByTask(context.Background(), task.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, a := range list {
		assert.Equal(t, domain.AssignmentPending, a.Status)
	}
}

func TestCreateTaskAllAssignees(t *testing.T) {
	e := newEnv(t)
	approver := e.registerApprover(t, 100)
	e.registerAssignee(t, 1)
	e.registerAssignee(t, 2)
	e.registerAssignee(t, 3)

	task, err := e.tasks.CreateTask(context.Background(), approver, service.CreateTaskParams{
		Title:        "all hands",
		Deadline:     time.Now().Add(time.Hour),
		RemindEvery:  time.Hour,
		AllAssignees: true,
	})
	require.NoError(t, err)

	list, err := e.store.Assignments().ListByTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Len(t, list, 3, "every registered assignee, never the approver")
}

func TestCreateTaskUnknownAssignee(t *testing.T) {
	e := newEnv(t)
	approver := e.registerApprover(t, 100)

	_, err := e.tasks.CreateTask(context.Background(), approver, service.CreateTaskParams{
		Title:       "x",
		Deadline:    time.Now().Add(time.Hour),
		RemindEvery: time.Hour,
		AssigneeIDs: []int64{404},
	})
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestEditTaskFields(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	approver := e.registerApprover(t, 100)
	e.registerAssignee(t, 1)
	task := e.createTask(t, approver, time.Hour, 1)

	edited, err := e.tasks.EditTask(ctx, approver, task.ID, service.FieldTitle, "Audit Q4", nil)
	require.NoError(t, err)
	assert.Equal(t, "Audit Q4", edited.Title)

	edited, err = e.tasks.EditTask(ctx, approver, task.ID, service.FieldDeadline, "2026-12-31 18:00", nil)
	require.NoError(t, err)
	assert.Equal(t, 2026, edited.Deadline.Year())

	edited, err = e.tasks.EditTask(ctx, approver, task.ID, service.FieldRemindEvery, "45", nil)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Minute, edited.RemindEvery)
	assert.True(t, e.scheduler.Armed(task.ID))
}

func TestEditTaskValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	approver := e.registerApprover(t, 100)
	task := e.createTask(t, approver, time.Hour)

	_, err := e.tasks.EditTask(ctx, approver, task.ID, service.FieldTitle, "", nil)
	assert.ErrorIs(t, err, domain.ErrEmptyFieldValue)

	_, err = e.tasks.EditTask(ctx, approver, task.ID, service.FieldDeadline, "next tuesday", nil)
	assert.ErrorIs(t, err, domain.ErrMalformedDeadline)

	_, err = e.tasks.EditTask(ctx, approver, task.ID, service.FieldRemindEvery, "-5", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInterval)

	_, err = e.tasks.EditTask(ctx, approver, task.ID, "status", "done", nil)
	assert.ErrorIs(t, err, domain.ErrNoSuchEditField)

	_, err = e.tasks.EditTask(ctx, approver, 404, service.FieldTitle, "x", nil)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestEditAssigneesResetsProgressAndRearms(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	approver := e.registerApprover(t, 100)
	e.registerAssignee(t, 1)
	e.registerAssignee(t, 2)
	task := e.createTask(t, approver, time.Hour, 1)

	// Assignee 1 finishes the task entirely: job disarmed.
	_, err := e.assignments.Complete(ctx, 1, task.ID)
	require.NoError(t, err)
	require.False(t, e.scheduler.Armed(task.ID))

	// Handing it to assignee 2 makes it incomplete again and re-arms.
	_, err = e.tasks.EditTask(ctx, approver, task.ID, service.FieldAssignees, "", []int64{2})
	require.NoError(t, err)

	assert.True(t, e.scheduler.Armed(task.ID))
	list, err := e.store.Assignments().ListByTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(2), list[0].UserID)
	assert.Equal(t, domain.AssignmentPending, list[0].Status)
}

// TestRecompletionAfterAssigneeReplacementNotifiesAgain: handing a completed
// task to a new assignee makes it incomplete again, and the new assignee's
// completion is a fresh edge the approver hears about.
func TestRecompletionAfterAssigneeReplacementNotifiesAgain(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	approver := e.registerApprover(t, 100)
	e.registerAssignee(t, 1)
	e.registerAssignee(t, 2)
	task := e.createTask(t, approver, time.Hour, 1)

	_, err := e.assignments.Complete(ctx, 1, task.ID)
	require.NoError(t, err)
	require.Equal(t, 1, e.notifier.SentCount(100))

	_, err = e.tasks.EditTask(ctx, approver, task.ID, service.FieldAssignees, "", []int64{2})
	require.NoError(t, err)
	require.True(t, e.scheduler.Armed(task.ID))
	assert.Equal(t, 1, e.notifier.SentCount(100), "replacing assignees alone notifies nobody")

	_, err = e.assignments.Complete(ctx, 2, task.ID)
	require.NoError(t, err)
	assert.False(t, e.scheduler.Armed(task.ID))
	assert.Equal(t, 2, e.notifier.SentCount(100), "the second completion is its own event")
}

func TestEditCompletedTaskStaysDisarmed(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	approver := e.registerApprover(t, 100)
	e.registerAssignee(t, 1)
	task := e.createTask(t, approver, time.Hour, 1)

	_, err := e.assignments.Complete(ctx, 1, task.ID)
	require.NoError(t, err)

	_, err = e.tasks.EditTask(ctx, approver, task.ID, service.FieldTitle, "renamed", nil)
	require.NoError(t, err)
	assert.False(t, e.scheduler.Armed(task.ID), "editing a complete task must not resurrect its job")
}

// flakyScheduler accepts arms but fails completion evaluation, the shape of a
// transient store hiccup during the post-edit invariant restore.
type flakyScheduler struct {
	lastArmed *domain.Task
}

func (s *flakyScheduler) ArmTask(task *domain.Task) error { s.lastArmed = task; return nil }
func (s *flakyScheduler) Disarm(taskID int64) bool        { return false }
func (s *flakyScheduler) CompleteIfDone(ctx context.Context, taskID int64) (bool, error) {
	return false, errors.New("evaluator unavailable")
}
func (s *flakyScheduler) ResetCompletion(taskID int64)                       {}
func (s *flakyScheduler) RemindNow(ctx context.Context, taskID int64) error { return nil }

// TestEditSucceedsWhenSchedulerEvaluationFails: once the edit transaction has
// committed, a scheduler hiccup must not fail the call, and the job must still
// be re-armed with the edited interval.
func TestEditSucceedsWhenSchedulerEvaluationFails(t *testing.T) {
	logger := testLogger()
	mem := testutils.NewMemStore()
	flaky := &flakyScheduler{}
	tasks := service.NewTaskService(
		mem.Tasks(), mem.Assignments(), mem.Users(), mem.Comments(), flaky, mem, logger)

	ctx := context.Background()
	approver, err := domain.NewUser(100, "", "Rimma", "Petrova", "+70001", domain.RoleApprover)
	require.NoError(t, err)
	require.NoError(t, mem.Users().Create(ctx, approver))

	task, err := tasks.CreateTask(ctx, approver, service.CreateTaskParams{
		Title:       "Audit Q3",
		Deadline:    time.Now().Add(48 * time.Hour),
		RemindEvery: time.Hour,
	})
	require.NoError(t, err)

	edited, err := tasks.EditTask(ctx, approver, task.ID, service.FieldRemindEvery, "45", nil)
	require.NoError(t, err, "a committed edit reports success despite the scheduler hiccup")
	assert.Equal(t, 45*time.Minute, edited.RemindEvery)

	stored, err := mem.Tasks().GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Minute, stored.RemindEvery)

	require.NotNil(t, flaky.lastArmed)
	assert.Equal(t, 45*time.Minute, flaky.lastArmed.RemindEvery,
		"the job carries the edited interval, not the pre-edit one")
}

func TestDeleteTaskDisarms(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	approver := e.registerApprover(t, 100)
	e.registerAssignee(t, 1)
	task := e.createTask(t, approver, time.Hour, 1)

	require.NoError(t, e.tasks.DeleteTask(ctx, approver, task.ID))
	assert.False(t, e.scheduler.Armed(task.ID))

	err := e.tasks.DeleteTask(ctx, approver, task.ID)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestAcceptTransitions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	approver := e.registerApprover(t, 100)
	e.registerAssignee(t, 1)
	task := e.createTask(t, approver, time.Hour, 1)

	changed, err := e.assignments.Accept(ctx, 1, task.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	// Accepting twice is a harmless no-op.
	changed, err = e.assignments.Accept(ctx, 1, task.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	// A completed assignment can no longer be accepted.
	_, err = e.assignments.Complete(ctx, 1, task.ID)
	require.NoError(t, err)
	_, err = e.assignments.Accept(ctx, 1, task.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestAcceptRequiresAssignment(t *testing.T) {
	e := newEnv(t)
	approver := e.registerApprover(t, 100)
	e.registerAssignee(t, 1)
	e.registerAssignee(t, 2)
	task := e.createTask(t, approver, time.Hour, 1)

	_, err := e.assignments.Accept(context.Background(), 2, task.ID)
	assert.ErrorIs(t, err, service.ErrNotAssigned)
}

func TestCompleteLastAssignmentNotifiesApprovers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	approver := e.registerApprover(t, 100)
	e.registerAssignee(t, 1)
	e.registerAssignee(t, 2)
	task := e.createTask(t, approver, time.Hour, 1, 2)

	_, err := e.assignments.Complete(ctx, 1, task.ID)
	require.NoError(t, err)
	assert.True(t, e.scheduler.Armed(task.ID), "one of two done, task still incomplete")
	assert.Equal(t, 0, e.notifier.SentCount(100))

	_, err = e.assignments.Complete(ctx, 2, task.ID)
	require.NoError(t, err)
	assert.False(t, e.scheduler.Armed(task.ID))

	require.Equal(t, 1, e.notifier.SentCount(100), "approver hears about completion exactly once")
	assert.Contains(t, e.notifier.Sent(100)[0], "Audit Q3")

	// Completing again changes nothing and emits nothing.
	changed, err := e.assignments.Complete(ctx, 2, task.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, e.notifier.SentCount(100))
}

func TestRemindTaskReachesOutstandingOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	approver := e.registerApprover(t, 100)
	e.registerAssignee(t, 1)
	e.registerAssignee(t, 2)
	task := e.createTask(t, approver, time.Hour, 1, 2)

	_, err := e.assignments.Complete(ctx, 1, task.ID)
	require.NoError(t, err)

	require.NoError(t, e.tasks.RemindTask(ctx, approver, task.ID))
	assert.Equal(t, 0, e.notifier.SentCount(1))
	assert.Equal(t, 1, e.notifier.SentCount(2))

	assignee, err := e.users.GetUser(ctx, 2)
	require.NoError(t, err)
	err = e.tasks.RemindTask(ctx, assignee, task.ID)
	assert.ErrorIs(t, err, service.ErrPermissionDenied)
}

func TestGetTaskDetail(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	approver := e.registerApprover(t, 100)
	assignee := e.registerAssignee(t, 1)
	outsider := e.registerAssignee(t, 2)
	task := e.createTask(t, approver, time.Hour, 1)

	_, err := e.comments.AddComment(ctx, assignee, task.ID, "halfway there")
	require.NoError(t, err)

	detail, err := e.tasks.GetTask(ctx, approver, task.ID)
	require.NoError(t, err)
	require.Len(t, detail.Assignees, 1)
	assert.Equal(t, int64(1), detail.Assignees[0].User.ID)
	assert.Equal(t, domain.AssignmentPending, detail.Assignees[0].Status)
	require.Len(t, detail.Comments, 1)
	assert.Equal(t, "halfway there", detail.Comments[0].Body)

	_, err = e.tasks.GetTask(ctx, outsider, task.ID)
	assert.ErrorIs(t, err, service.ErrNotAssigned)
}

func TestListTasksByRole(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	approver := e.registerApprover(t, 100)
	first := e.registerAssignee(t, 1)
	e.registerAssignee(t, 2)
	e.createTask(t, approver, time.Hour, 1)
	e.createTask(t, approver, time.Hour, 2)

	all, err := e.tasks.ListTasks(ctx, approver)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	own, err := e.tasks.ListTasks(ctx, first)
	require.NoError(t, err)
	assert.Len(t, own, 1)
}

func TestAddCommentNotifiesApprovers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	approver := e.registerApprover(t, 100)
	assignee := e.registerAssignee(t, 1)
	outsider := e.registerAssignee(t, 2)
	task := e.createTask(t, approver, time.Hour, 1)

	comment, err := e.comments.AddComment(ctx, assignee, task.ID, "halfway there")
	require.NoError(t, err)
	assert.NotZero(t, comment.ID)

	require.Equal(t, 1, e.notifier.SentCount(100))
	assert.Contains(t, e.notifier.Sent(100)[0], "halfway there")
	assert.Contains(t, e.notifier.Sent(100)[0], assignee.DisplayName())

	_, err = e.comments.AddComment(ctx, outsider, task.ID, "me too")
	assert.ErrorIs(t, err, service.ErrNotAssigned)

	_, err = e.comments.AddComment(ctx, assignee, 404, "ghost")
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

// TestAuditScenario runs the full lifecycle: recurring reminders reach both
// assignees, accepting does not silence them, each completion shrinks the
// recipient set, and the last completion stops the reminders and notifies the
// approver exactly once.
func TestAuditScenario(t *testing.T) {
	e := newTickingEnv(t)
	ctx := context.Background()
	approver := e.registerApprover(t, 100)
	e.registerAssignee(t, 1)
	e.registerAssignee(t, 2)

	task := e.createTask(t, approver, 15*time.Millisecond, 1, 2)

	require.Eventually(t, func() bool {
		return e.notifier.SentCount(1) >= 1 && e.notifier.SentCount(2) >= 1
	}, time.Second, 5*time.Millisecond, "both pending assignees get reminders")

	// Accepting changes the status but not the reminder set.
	_, err := e.assignments.Accept(ctx, 1, task.ID)
	require.NoError(t, err)
	before := e.notifier.SentCount(1)
	require.Eventually(t, func() bool {
		return e.notifier.SentCount(1) > before
	}, time.Second, 5*time.Millisecond, "accepted but unfinished assignees are still reminded")

	// Assignee 1 finishes; only assignee 2 keeps hearing about it.
	_, err = e.assignments.Complete(ctx, 1, task.ID)
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond) // let any in-flight tick drain
	done1 := e.notifier.SentCount(1)
	before2 := e.notifier.SentCount(2)
	require.Eventually(t, func() bool {
		return e.notifier.SentCount(2) > before2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, done1, e.notifier.SentCount(1), "a finished assignee receives no further reminders")

	// Assignee 2 finishes: reminders stop, approver notified once.
	_, err = e.assignments.Complete(ctx, 2, task.ID)
	require.NoError(t, err)
	require.False(t, e.scheduler.Armed(task.ID))

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, e.notifier.SentCount(100), "exactly one completion notification")
	finalTotal := e.notifier.TotalCount()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, finalTotal, e.notifier.TotalCount(), "all reminders have ceased")
}
