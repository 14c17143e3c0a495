package board

import (
	"context"
	"errors"
	"sync"
	"time"

	"taskBoard/internal/auth"
	"taskBoard/internal/logger"
	"taskBoard/internal/models/task"

	"go.uber.org/zap"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrUnknownTask      = errors.New("task is not on the board")
)

const unknownError = "Unknown error"

const (
	titleCreated      = "Task created"
	titleCreateFailed = "Error creating task"
	titleUpdated      = "Task updated"
	titleUpdateFailed = "Error updating task"
	titleDeleted      = "Task deleted"
	titleDeleteFailed = "Error deleting task"
	titleFetchFailed  = "Error fetching tasks"
	titleStatusFailed = "Error updating task status"
)

// Store persists tasks. Update and Delete are scoped to the caller by the store itself.
type Store interface {
	List(ctx context.Context, ownerID string) ([]task.Task, error)
	Create(ctx context.Context, ownerID string, in task.CreateInput) (task.Task, error)
	Update(ctx context.Context, id string, in task.UpdateInput) (task.Task, error)
	Delete(ctx context.Context, id string) error
}

// Identity returns the signed-in user, or nil when there is none.
type Identity interface {
	CurrentUser(ctx context.Context) (*auth.User, error)
}

type Notifier interface {
	Success(ctx context.Context, title, description string)
	Error(ctx context.Context, title, description string)
}

// Manager owns one user's task list: it derives the filtered view and
// applies mutations, optimistically for completion and status changes.
type Manager struct {
	store    Store
	identity Identity
	notifier Notifier
	now      func() time.Time

	mtx       sync.Mutex
	tasks     []task.Task
	criteria  Criteria
	loading   bool
	preloaded bool
	version   uint64
	filtered  *filteredView

	initOnce sync.Once
	initErr  error
}

type filteredView struct {
	version uint64
	tasks   []task.Task
}

type Option func(*Manager)

// WithInitialTasks preloads the list; Init then skips the first load.
func WithInitialTasks(tasks []task.Task) Option {
	return func(m *Manager) {
		m.tasks = task.CloneAll(tasks)
		if m.tasks == nil {
			m.tasks = []task.Task{}
		}
		m.preloaded = true
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithCriteria(c Criteria) Option {
	return func(m *Manager) { m.criteria = c }
}

func New(store Store, identity Identity, notifier Notifier, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		identity: identity,
		notifier: notifier,
		now:      time.Now,
		tasks:    []task.Task{},
		criteria: DefaultCriteria(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.loading = !m.preloaded
	return m
}

// Init performs the first load once, unless the manager was preloaded.
func (m *Manager) Init(ctx context.Context) error {
	m.initOnce.Do(func() {
		if m.preloaded {
			return
		}
		m.initErr = m.Load(ctx)
	})
	return m.initErr
}

// Load replaces the list with the owner's tasks. On failure the list is kept.
func (m *Manager) Load(ctx context.Context) error {
	m.setLoading(true)
	defer m.setLoading(false)

	user, err := m.currentUser(ctx)
	if err != nil {
		m.fail(ctx, titleFetchFailed, err)
		return err
	}

	tasks, err := m.store.List(ctx, user.ID)
	if err != nil {
		m.fail(ctx, titleFetchFailed, err)
		return err
	}

	m.mtx.Lock()
	m.tasks = task.CloneAll(tasks)
	if m.tasks == nil {
		m.tasks = []task.Task{}
	}
	m.changed()
	m.mtx.Unlock()

	logger.Debug("Board: tasks loaded", zap.String("owner_id", user.ID), zap.Int("count", len(tasks)))
	return nil
}

func (m *Manager) Loading() bool {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.loading
}

// Tasks returns the full unfiltered list, most recently created first.
func (m *Manager) Tasks() []task.Task {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return task.CloneAll(m.tasks)
}

func (m *Manager) Get(id string) (task.Task, bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if i := m.indexOf(id); i >= 0 {
		return m.tasks[i].Clone(), true
	}
	return task.Task{}, false
}

func (m *Manager) Criteria() Criteria {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.criteria
}

func (m *Manager) SetCriteria(c Criteria) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if c != m.criteria {
		m.criteria = c
		m.changed()
	}
}

// ApplyCriteria updates the criteria named by p and returns the result.
func (m *Manager) ApplyCriteria(p CriteriaPatch) Criteria {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	next := m.criteria.With(p)
	if next != m.criteria {
		m.criteria = next
		m.changed()
	}
	return next
}

// Filtered returns the list under the current criteria. The result is
// recomputed only after the tasks or the criteria change.
func (m *Manager) Filtered() []task.Task {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.filtered == nil || m.filtered.version != m.version {
		m.filtered = &filteredView{version: m.version, tasks: Apply(m.tasks, m.criteria)}
	}
	return task.CloneAll(m.filtered.tasks)
}

// Create validates in, persists it for the current user and puts the stored task at the head of the list.
func (m *Manager) Create(ctx context.Context, in task.CreateInput) (task.Task, error) {
	if err := in.Validate(); err != nil {
		return task.Task{}, err
	}
	in = in.Normalize(m.now())

	user, err := m.currentUser(ctx)
	if err != nil {
		m.fail(ctx, titleCreateFailed, err)
		return task.Task{}, err
	}

	created, err := m.store.Create(ctx, user.ID, in)
	if err != nil {
		m.fail(ctx, titleCreateFailed, err)
		return task.Task{}, err
	}

	m.mtx.Lock()
	m.tasks = append([]task.Task{created.Clone()}, m.tasks...)
	m.changed()
	m.mtx.Unlock()

	m.notifier.Success(ctx, titleCreated, "Your task has been created successfully.")
	return created, nil
}

// Update persists a partial change and replaces the local copy with the stored task.
func (m *Manager) Update(ctx context.Context, id string, in task.UpdateInput) (task.Task, error) {
	if err := in.Validate(); err != nil {
		return task.Task{}, err
	}

	// a partial patch is only valid against the dates it leaves untouched
	m.mtx.Lock()
	var err error
	if i := m.indexOf(id); i >= 0 {
		err = task.Apply(m.tasks[i], in).ValidateDates()
	}
	m.mtx.Unlock()
	if err != nil {
		return task.Task{}, err
	}
	in = in.Normalize(m.now())

	updated, err := m.store.Update(ctx, id, in)
	if err != nil {
		m.fail(ctx, titleUpdateFailed, err)
		return task.Task{}, err
	}

	m.mtx.Lock()
	if i := m.indexOf(id); i >= 0 {
		m.tasks[i] = updated.Clone()
		m.changed()
	}
	m.mtx.Unlock()

	m.notifier.Success(ctx, titleUpdated, "Your task has been updated successfully.")
	return updated, nil
}

func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		m.fail(ctx, titleDeleteFailed, err)
		return err
	}

	m.mtx.Lock()
	if i := m.indexOf(id); i >= 0 {
		m.tasks = append(m.tasks[:i:i], m.tasks[i+1:]...)
		m.changed()
	}
	m.mtx.Unlock()

	m.notifier.Success(ctx, titleDeleted, "Your task has been deleted successfully.")
	return nil
}

// ToggleComplete marks the task done or back to todo. The change is visible
// immediately and undone if persisting it fails.
func (m *Manager) ToggleComplete(ctx context.Context, id string, completed bool) error {
	status := task.StatusTodo
	if completed {
		status = task.StatusDone
	}
	return m.optimistic(ctx, id, m.completionPatch(status), titleUpdateFailed)
}

// UpdateStatus moves the task to status, optimistically like ToggleComplete.
func (m *Manager) UpdateStatus(ctx context.Context, id string, status task.Status) error {
	if !status.Valid() {
		return &task.ValidationError{Field: "status", Reason: "unknown status " + string(status)}
	}
	return m.optimistic(ctx, id, m.completionPatch(status), titleStatusFailed)
}

func (m *Manager) completionPatch(status task.Status) task.UpdateInput {
	completed := status == task.StatusDone
	end := task.Null[time.Time]()
	if completed {
		end = task.Value(m.now())
	}
	return task.UpdateInput{
		Status:      &status,
		IsCompleted: &completed,
		EndDate:     end,
	}
}

// optimistic applies patch locally, persists it without holding the lock and
// restores the whole pre-patch list if persisting fails. The stored task
// returned on success is not consulted.
func (m *Manager) optimistic(ctx context.Context, id string, patch task.UpdateInput, failTitle string) error {
	m.mtx.Lock()
	i := m.indexOf(id)
	if i < 0 {
		m.mtx.Unlock()
		m.fail(ctx, failTitle, ErrUnknownTask)
		return ErrUnknownTask
	}
	snapshot := task.CloneAll(m.tasks)
	m.tasks[i] = task.Apply(m.tasks[i], patch)
	m.changed()
	m.mtx.Unlock()

	if _, err := m.store.Update(ctx, id, patch); err != nil {
		m.mtx.Lock()
		m.tasks = snapshot
		m.changed()
		m.mtx.Unlock()

		logger.Warn("Board: optimistic update rolled back", zap.String("task_id", id), zap.Error(err))
		m.fail(ctx, failTitle, err)
		return err
	}
	return nil
}

func (m *Manager) currentUser(ctx context.Context) (*auth.User, error) {
	user, err := m.identity.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotAuthenticated
	}
	return user, nil
}

func (m *Manager) fail(ctx context.Context, title string, err error) {
	m.notifier.Error(ctx, title, ErrorMessage(err))
}

func (m *Manager) setLoading(v bool) {
	m.mtx.Lock()
	m.loading = v
	m.mtx.Unlock()
}

// changed must be called with mtx held.
func (m *Manager) changed() {
	m.version++
}

func (m *Manager) indexOf(id string) int {
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// ErrorMessage is the human-readable text shown for err.
func ErrorMessage(err error) string {
	if err == nil || err.Error() == "" {
		return unknownError
	}
	return err.Error()
}
