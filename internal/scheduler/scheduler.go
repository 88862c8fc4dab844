// Package scheduler owns the set of live reminder jobs, one recurring timer
// per incomplete task. It is the only component allowed to create, replace or
// cancel those timers; task mutations elsewhere in the system go through Arm
// and Disarm so the invariant "a job exists iff the task exists and is not
// complete" survives every create, edit, status change and delete.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/taskpulse/taskpulse/internal/domain"
	"github.com/taskpulse/taskpulse/internal/events"
	"github.com/taskpulse/taskpulse/internal/notify"
	"github.com/taskpulse/taskpulse/internal/store"
)

// Mode selects the reminder policy.
type Mode string

const (
	// ModeRecurring repeats the reminder every task interval until the task
	// completes, then the job cancels itself. This is the system of record.
	ModeRecurring Mode = "recurring"

	// ModeOneShot fires a single reminder at deadline minus Lead, the policy
	// an earlier revision of the original bot used. Kept as a configuration
	// variant.
	ModeOneShot Mode = "one-shot"
)

// Scheduler errors
var (
	// ErrStopped is returned when arming after Stop.
	ErrStopped = errors.New("scheduler is stopped")
)

// Config holds the scheduler settings.
type Config struct {
	// Mode is the reminder policy, recurring by default.
	Mode Mode

	// StartDelay is the fixed delay between arming and the first tick. It is
	// short but never zero, so immediate re-arms from rapid successive edits
	// cannot race an in-flight tick.
	StartDelay time.Duration

	// Lead is how long before the deadline the single one-shot reminder
	// fires. Ignored in recurring mode.
	Lead time.Duration
}

// DefaultConfig returns a Config with the recurring policy, a five second
// first-fire delay and the original 24h one-shot lead.
func DefaultConfig() Config {
	return Config{
		Mode:       ModeRecurring,
		StartDelay: 5 * time.Second,
		Lead:       24 * time.Hour,
	}
}

// TaskSource provides the task reads the scheduler needs.
type TaskSource interface {
	// GetByID returns the task or store.ErrTaskNotFound.
	GetByID(ctx context.Context, id int64) (*domain.Task, error)

	// ListIncomplete returns every task whose completion condition is false.
	ListIncomplete(ctx context.Context) ([]*domain.Task, error)
}

// AssignmentSource provides the assignment reads the scheduler needs.
type AssignmentSource interface {
	// ListOutstanding returns the task's assignments not yet completed.
	ListOutstanding(ctx context.Context, taskID int64) ([]*domain.Assignment, error)
}

// CompletionEvaluator answers whether a task is fully done.
type CompletionEvaluator interface {
	IsComplete(ctx context.Context, taskID int64) (bool, error)
}

// Notifier delivers one message to one user. Failures are per-recipient and
// never affect the job that triggered them.
type Notifier interface {
	NotifyUser(ctx context.Context, userID int64, text string) error
}

// Scheduler manages the reminder jobs. All job-set mutations happen under a
// single lock; the timers themselves run in one goroutine per job.
type Scheduler struct {
	tasks       TaskSource
	assignments AssignmentSource
	evaluator   CompletionEvaluator
	notifier    Notifier
	emitter     events.Emitter
	config      Config
	logger      *slog.Logger

	mu      sync.Mutex
	jobs    map[int64]*job
	emitted map[int64]struct{}
	stopped bool
	wg      sync.WaitGroup
}

// job is one live timer registration. Replacing or cancelling a job closes
// its stop channel; the jobs map only ever holds the current registration per
// task, so a stale goroutine can detect it has been superseded.
type job struct {
	taskID   int64
	interval time.Duration
	stop     chan struct{}
}

// New creates a Scheduler. Call Rebuild to restore jobs from the store and
// Stop to cancel everything on shutdown.
func New(
	tasks TaskSource,
	assignments AssignmentSource,
	evaluator CompletionEvaluator,
	notifier Notifier,
	emitter events.Emitter,
	config Config,
	logger *slog.Logger,
) *Scheduler {
	if config.Mode == "" {
		config.Mode = ModeRecurring
	}
	if config.StartDelay <= 0 {
		config.StartDelay = DefaultConfig().StartDelay
	}
	if config.Lead <= 0 {
		config.Lead = DefaultConfig().Lead
	}

	return &Scheduler{
		tasks:       tasks,
		assignments: assignments,
		evaluator:   evaluator,
		notifier:    notifier,
		emitter:     emitter,
		config:      config,
		logger:      logger.With("component", "reminder_scheduler"),
		jobs:        make(map[int64]*job),
		emitted:     make(map[int64]struct{}),
	}
}

// Arm registers a recurring timer for the task. An existing timer for the
// same task is atomically replaced, old one cancelled first, which makes Arm
// idempotent and safe to call from both the "task created" and "task edited"
// paths. The first tick fires after startDelay; subsequent ticks are spaced
// by interval from that point, with no carry-over from a replaced timer.
func (s *Scheduler) Arm(taskID int64, interval, startDelay time.Duration) error {
	if interval <= 0 {
		return domain.ErrInvalidInterval
	}
	if startDelay <= 0 {
		startDelay = s.config.StartDelay
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}

	if old, ok := s.jobs[taskID]; ok {
		close(old.stop)
	}

	j := &job{
		taskID:   taskID,
		interval: interval,
		stop:     make(chan struct{}),
	}
	s.jobs[taskID] = j

	s.wg.Add(1)
	go s.run(j, startDelay)

	s.logger.Debug("armed reminder job",
		"task_id", taskID,
		"interval", interval,
		"start_delay", startDelay)
	return nil
}

// ArmTask applies the configured reminder policy to the task: in recurring
// mode the task's own interval, in one-shot mode a single fire at deadline
// minus Lead. A one-shot whose fire time has already passed is skipped.
func (s *Scheduler) ArmTask(task *domain.Task) error {
	switch s.config.Mode {
	case ModeOneShot:
		delay := time.Until(task.Deadline.Add(-s.config.Lead))
		if delay <= 0 {
			s.logger.Info("one-shot reminder time already passed, not arming",
				"task_id", task.ID,
				"deadline", task.Deadline)
			return nil
		}
		return s.Arm(task.ID, task.RemindEvery, delay)
	default:
		return s.Arm(task.ID, task.RemindEvery, s.config.StartDelay)
	}
}

// Disarm cancels the task's timer if present and reports whether a job was
// actually removed. Disarming an absent timer is a no-op, not an error: tasks
// may be deleted or completed before their first tick, or disarmed twice by
// racing edit and delete operations.
func (s *Scheduler) Disarm(taskID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[taskID]
	if !ok {
		return false
	}
	delete(s.jobs, taskID)
	close(j.stop)

	s.logger.Debug("disarmed reminder job", "task_id", taskID)
	return true
}

// Armed reports whether a live job exists for the task.
func (s *Scheduler) Armed(taskID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[taskID]
	return ok
}

// CompleteIfDone re-runs the completion evaluator for the task and, when the
// completion condition holds, disarms the job and emits the one-time
// task.completed event. Emission is anchored on the per-task emitted record,
// not on the disarm: a state-machine edge trigger, a racing tick and even a
// stale re-arm that briefly resurrects the job can all observe "now complete"
// without a duplicate notification.
func (s *Scheduler) CompleteIfDone(ctx context.Context, taskID int64) (bool, error) {
	done, err := s.evaluator.IsComplete(ctx, taskID)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate completion: %w", err)
	}
	if !done {
		return false, nil
	}

	s.Disarm(taskID)
	if s.markEmitted(taskID) {
		s.emitCompleted(ctx, taskID)
	}
	return true, nil
}

// ResetCompletion forgets that the task's completion event went out. Callers
// invoke it when the completion condition can become false again — the
// assignee set was replaced — or when the task is deleted, so a later
// completion counts as a fresh edge and gets its own event.
func (s *Scheduler) ResetCompletion(taskID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.emitted, taskID)
}

// RemindNow sends the reminder message to every outstanding assignee without
// touching the task's job. Approvers use this for a manual nudge. Delivery
// failures are logged per recipient and do not abort the loop.
func (s *Scheduler) RemindNow(ctx context.Context, taskID int64) error {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	s.remind(ctx, task)
	return nil
}

// Rebuild re-arms one job per incomplete task found in the store. The job set
// is process-local, so this must run at every startup or recurring reminders
// silently stop after a restart.
func (s *Scheduler) Rebuild(ctx context.Context) error {
	tasks, err := s.tasks.ListIncomplete(ctx)
	if err != nil {
		return fmt.Errorf("failed to list incomplete tasks: %w", err)
	}

	armed := 0
	for _, task := range tasks {
		if err := s.ArmTask(task); err != nil {
			s.logger.Error("failed to re-arm task at startup",
				"task_id", task.ID,
				"error", err)
			continue
		}
		armed++
	}

	s.logger.Info("rebuilt reminder jobs",
		"incomplete_tasks", len(tasks),
		"armed", armed)
	return nil
}

// Stop cancels every job and waits for in-flight ticks to finish. The
// scheduler cannot be re-armed afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id, j := range s.jobs {
		close(j.stop)
		delete(s.jobs, id)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Debug("scheduler stopped")
}

// run is the timer loop for one job.
func (s *Scheduler) run(j *job, startDelay time.Duration) {
	defer s.wg.Done()

	timer := time.NewTimer(startDelay)
	defer timer.Stop()

	for {
		select {
		case <-j.stop:
			return
		case <-timer.C:
			s.tick(j)
			if s.config.Mode == ModeOneShot {
				// A one-shot job is spent after its single fire.
				s.removeIfCurrent(j)
				return
			}
			timer.Reset(j.interval)
		}
	}
}

// tick runs one reminder cycle for the job. Nothing in here may kill the
// recurring job except the task disappearing or completing; store hiccups and
// delivery failures are logged and retried implicitly on the next interval.
func (s *Scheduler) tick(j *job) {
	ctx := context.Background()

	if !s.isCurrent(j) {
		// Superseded by a re-arm while this tick was waiting to run.
		return
	}

	task, err := s.tasks.GetByID(ctx, j.taskID)
	if err != nil {
		if store.IsNotFoundError(err) {
			// The task was deleted after the timer was scheduled but before
			// cancellation propagated. Expected benign race.
			s.logger.Debug("task gone, disarming its reminder job", "task_id", j.taskID)
			s.removeIfCurrent(j)
			return
		}
		s.logger.Error("failed to load task on tick, keeping job armed",
			"task_id", j.taskID,
			"error", err)
		return
	}

	done, err := s.evaluator.IsComplete(ctx, j.taskID)
	if err != nil {
		s.logger.Error("failed to evaluate completion on tick, keeping job armed",
			"task_id", j.taskID,
			"error", err)
		return
	}
	if done {
		s.removeIfCurrent(j)
		if s.markEmitted(j.taskID) {
			s.emitCompleted(ctx, j.taskID)
		}
		return
	}

	s.remind(ctx, task)
}

// remind delivers the reminder to each outstanding assignee. A task with no
// assignments simply has no recipients.
func (s *Scheduler) remind(ctx context.Context, task *domain.Task) {
	outstanding, err := s.assignments.ListOutstanding(ctx, task.ID)
	if err != nil {
		s.logger.Error("failed to list outstanding assignments",
			"task_id", task.ID,
			"error", err)
		return
	}

	text := notify.ReminderText(task)
	for _, a := range outstanding {
		if err := s.notifier.NotifyUser(ctx, a.UserID, text); err != nil {
			s.logger.Warn("reminder delivery failed",
				"task_id", task.ID,
				"user_id", a.UserID,
				"error", err)
		}
	}

	s.logger.Debug("reminder cycle finished",
		"task_id", task.ID,
		"outstanding", len(outstanding))
}

// emitCompleted publishes the one-time completion event. The payload carries
// the title when the task is still readable; a concurrent delete only costs
// us the title, not the event.
func (s *Scheduler) emitCompleted(ctx context.Context, taskID int64) {
	payload := events.TaskCompletedPayload{TaskID: taskID}
	if task, err := s.tasks.GetByID(ctx, taskID); err == nil {
		payload.Title = task.Title
	}

	ev, err := events.NewEvent(events.TypeTaskCompleted, payload)
	if err != nil {
		s.logger.Error("failed to build completion event",
			"task_id", taskID,
			"error", err)
		return
	}

	if err := s.emitter.Emit(ctx, ev); err != nil {
		s.logger.Error("completion event handler failed",
			"task_id", taskID,
			"error", err)
	}
}

// markEmitted records that the task's completion event has gone out. Exactly
// one caller per completion gets true, however many observe the completed
// state concurrently.
func (s *Scheduler) markEmitted(taskID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.emitted[taskID]; ok {
		return false
	}
	s.emitted[taskID] = struct{}{}
	return true
}

// isCurrent reports whether j is still the live registration for its task.
func (s *Scheduler) isCurrent(j *job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[j.taskID] == j
}

// removeIfCurrent deletes j from the job set only if it has not been replaced
// by a newer registration. Returns true when this call removed it.
func (s *Scheduler) removeIfCurrent(j *job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jobs[j.taskID] != j {
		return false
	}
	delete(s.jobs, j.taskID)
	close(j.stop)
	return true
}
