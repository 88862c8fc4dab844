// Package testutils provides in-memory store implementations and fake
// collaborators shared by the scheduler and service tests. They honor the
// same sentinel-error contract as the postgres stores.
package testutils

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/taskpulse/taskpulse/internal/domain"
	"github.com/taskpulse/taskpulse/internal/store"
)

// MemStore holds every entity in memory behind one lock, mimicking the
// atomic single-caller visibility of the real store.
type MemStore struct {
	mu            sync.Mutex
	nextTaskID    int64
	nextCommentID int64
	tasks         map[int64]*domain.Task
	assignments   map[int64]map[int64]*domain.Assignment
	users         map[int64]*domain.User
	comments      map[int64][]*domain.Comment
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		tasks:       make(map[int64]*domain.Task),
		assignments: make(map[int64]map[int64]*domain.Assignment),
		users:       make(map[int64]*domain.User),
		comments:    make(map[int64][]*domain.Comment),
	}
}

// Tasks returns the task-store view.
func (m *MemStore) Tasks() store.TaskStore { return &memTasks{m} }

// Assignments returns the assignment-store view.
func (m *MemStore) Assignments() store.AssignmentStore { return &memAssignments{m} }

// Users returns the user-store view.
func (m *MemStore) Users() store.UserStore { return &memUsers{m} }

// Comments returns the comment-store view.
func (m *MemStore) Comments() store.CommentStore { return &memComments{m} }

// RunTx implements store.TxRunner. The in-memory store has no transactions;
// fn runs directly with a nil *sql.Tx, which every view's WithTx ignores.
func (m *MemStore) RunTx(ctx context.Context, fn store.TxFn) error {
	return fn(ctx, nil)
}

func copyTask(t *domain.Task) *domain.Task {
	c := *t
	return &c
}

func copyAssignment(a *domain.Assignment) *domain.Assignment {
	c := *a
	return &c
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	return &c
}

// memTasks implements store.TaskStore.
type memTasks struct{ s *MemStore }

func (t *memTasks) Create(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return store.NewStoreError("task", "create", "validation failed", err)
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.nextTaskID++
	task.ID = t.s.nextTaskID
	t.s.tasks[task.ID] = copyTask(task)
	return nil
}

func (t *memTasks) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	task, ok := t.s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return copyTask(task), nil
}

func (t *memTasks) Update(ctx context.Context, task *domain.Task) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.s.tasks[task.ID]; !ok {
		return store.ErrTaskNotFound
	}
	task.UpdatedAt = time.Now().UTC()
	t.s.tasks[task.ID] = copyTask(task)
	return nil
}

func (t *memTasks) Delete(ctx context.Context, id int64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.s.tasks[id]; !ok {
		return store.ErrTaskNotFound
	}
	delete(t.s.tasks, id)
	delete(t.s.assignments, id)
	delete(t.s.comments, id)
	return nil
}

func (t *memTasks) List(ctx context.Context) ([]*domain.Task, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	out := make([]*domain.Task, 0, len(t.s.tasks))
	for _, task := range t.s.tasks {
		out = append(out, copyTask(task))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTasks) ListByAssignee(ctx context.Context, userID int64) ([]*domain.Task, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []*domain.Task
	for taskID, byUser := range t.s.assignments {
		if _, ok := byUser[userID]; ok {
			if task, exists := t.s.tasks[taskID]; exists {
				out = append(out, copyTask(task))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTasks) ListIncomplete(ctx context.Context) ([]*domain.Task, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []*domain.Task
	for id, task := range t.s.tasks {
		if !t.s.completeLocked(id) {
			out = append(out, copyTask(task))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTasks) WithTx(tx *sql.Tx) store.TaskStore { return t }

// completeLocked mirrors the completion condition; the caller holds the lock.
func (m *MemStore) completeLocked(taskID int64) bool {
	byUser := m.assignments[taskID]
	if len(byUser) == 0 {
		return false
	}
	for _, a := range byUser {
		if a.Status != domain.AssignmentCompleted {
			return false
		}
	}
	return true
}

// memAssignments implements store.AssignmentStore.
type memAssignments struct{ s *MemStore }

func (a *memAssignments) Create(ctx context.Context, assignment *domain.Assignment) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	byUser := a.s.assignments[assignment.TaskID]
	if byUser == nil {
		byUser = make(map[int64]*domain.Assignment)
		a.s.assignments[assignment.TaskID] = byUser
	}
	if _, ok := byUser[assignment.UserID]; ok {
		return store.ErrAssignmentExists
	}
	byUser[assignment.UserID] = copyAssignment(assignment)
	return nil
}

func (a *memAssignments) Get(ctx context.Context, taskID, userID int64) (*domain.Assignment, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if found, ok := a.s.assignments[taskID][userID]; ok {
		return copyAssignment(found), nil
	}
	return nil, store.ErrAssignmentNotFound
}

func (a *memAssignments) ListByTask(ctx context.Context, taskID int64) ([]*domain.Assignment, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	var out []*domain.Assignment
	for _, found := range a.s.assignments[taskID] {
		out = append(out, copyAssignment(found))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (a *memAssignments) ListOutstanding(ctx context.Context, taskID int64) ([]*domain.Assignment, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	var out []*domain.Assignment
	for _, found := range a.s.assignments[taskID] {
		if found.Status != domain.AssignmentCompleted {
			out = append(out, copyAssignment(found))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (a *memAssignments) UpdateStatus(ctx context.Context, taskID, userID int64, status domain.AssignmentStatus) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	found, ok := a.s.assignments[taskID][userID]
	if !ok {
		return store.ErrAssignmentNotFound
	}
	found.Status = status
	return nil
}

func (a *memAssignments) ReplaceForTask(ctx context.Context, taskID int64, userIDs []int64) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	byUser := make(map[int64]*domain.Assignment, len(userIDs))
	for _, userID := range userIDs {
		byUser[userID] = domain.NewAssignment(taskID, userID)
	}
	a.s.assignments[taskID] = byUser
	return nil
}

func (a *memAssignments) CountByTask(ctx context.Context, taskID int64) (int, int, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	total := 0
	completed := 0
	for _, found := range a.s.assignments[taskID] {
		total++
		if found.Status == domain.AssignmentCompleted {
			completed++
		}
	}
	return total, completed, nil
}

func (a *memAssignments) WithTx(tx *sql.Tx) store.AssignmentStore { return a }

// memUsers implements store.UserStore.
type memUsers struct{ s *MemStore }

func (u *memUsers) Create(ctx context.Context, user *domain.User) error {
	if err := user.Validate(); err != nil {
		return store.NewStoreError("user", "create", "validation failed", err)
	}
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if _, ok := u.s.users[user.ID]; ok {
		return store.ErrDuplicate
	}
	for _, existing := range u.s.users {
		if existing.PhoneNumber == user.PhoneNumber {
			return store.ErrPhoneNumberExists
		}
	}
	u.s.users[user.ID] = copyUser(user)
	return nil
}

func (u *memUsers) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if user, ok := u.s.users[id]; ok {
		return copyUser(user), nil
	}
	return nil, store.ErrUserNotFound
}

func (u *memUsers) GetByPhoneNumber(ctx context.Context, phoneNumber string) (*domain.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, user := range u.s.users {
		if user.PhoneNumber == phoneNumber {
			return copyUser(user), nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (u *memUsers) ListByRole(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	var out []*domain.User
	for _, user := range u.s.users {
		if user.Role == role {
			out = append(out, copyUser(user))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (u *memUsers) UpdateUsername(ctx context.Context, id int64, username string) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[id]
	if !ok {
		return store.ErrUserNotFound
	}
	user.Username = username
	return nil
}

func (u *memUsers) WithTx(tx *sql.Tx) store.UserStore { return u }

// memComments implements store.CommentStore.
type memComments struct{ s *MemStore }

func (c *memComments) Create(ctx context.Context, comment *domain.Comment) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.nextCommentID++
	comment.ID = c.s.nextCommentID
	stored := *comment
	c.s.comments[comment.TaskID] = append(c.s.comments[comment.TaskID], &stored)
	return nil
}

func (c *memComments) ListByTask(ctx context.Context, taskID int64) ([]*domain.Comment, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	list := c.s.comments[taskID]
	out := make([]*domain.Comment, 0, len(list))
	for _, comment := range list {
		stored := *comment
		out = append(out, &stored)
	}
	return out, nil
}

func (c *memComments) WithTx(tx *sql.Tx) store.CommentStore { return c }
