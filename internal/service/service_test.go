package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"taskBoard/internal/auth"
	"taskBoard/internal/board"
	"taskBoard/internal/models/task"
	"taskBoard/internal/notify"
	"taskBoard/internal/repository/task/inmemory"
	"taskBoard/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTaskRepository is a repository whose answers are scripted per test.
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTaskRepository) List(ctx context.Context, ownerID string) ([]task.Task, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]task.Task), args.Error(1)
}

func (m *MockTaskRepository) Create(ctx context.Context, ownerID string, in task.CreateInput) (task.Task, error) {
	args := m.Called(ctx, ownerID, in)
	return args.Get(0).(task.Task), args.Error(1)
}

func (m *MockTaskRepository) Update(ctx context.Context, id string, in task.UpdateInput) (task.Task, error) {
	args := m.Called(ctx, id, in)
	return args.Get(0).(task.Task), args.Error(1)
}

func (m *MockTaskRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var _ service.TaskRepository = (*MockTaskRepository)(nil)
var _ service.TaskRepository = (*inmemory.TaskStorage)(nil)

var secret = []byte("service-test-secret")

type fixture struct {
	svc      *service.TaskService
	verifier *auth.Verifier
}

func newFixture(repo service.TaskRepository, opts ...service.Option) fixture {
	verifier := auth.NewHS256(secret)
	return fixture{
		svc:      service.NewTaskService(repo, auth.NewIdentity(verifier), notify.NewLog(), opts...),
		verifier: verifier,
	}
}

// signIn returns a context carrying a freshly verified token for userID.
func (f fixture) signIn(t *testing.T, userID string) context.Context {
	t.Helper()
	token, err := auth.Issue(secret, auth.NewClaims(auth.User{ID: userID}, time.Hour, time.Now()))
	require.NoError(t, err)
	user, claims, err := f.verifier.Verify(token)
	require.NoError(t, err)
	return auth.WithUser(context.Background(), user, claims)
}

func businessCode(t *testing.T, err error) string {
	t.Helper()
	var busErr *service.BusinessError
	require.ErrorAs(t, err, &busErr)
	return busErr.Code
}

func TestTaskService_HealthCheck(t *testing.T) {
	tests := []struct {
		name        string
		setupMock   func(*MockTaskRepository)
		expectError bool
	}{
		{
			name: "success - health check passes",
			setupMock: func(m *MockTaskRepository) {
				m.On("HealthCheck", mock.Anything).Return(nil)
			},
		},
		{
			name: "error - health check fails",
			setupMock: func(m *MockTaskRepository) {
				m.On("HealthCheck", mock.Anything).Return(errors.New("db connection failed"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockTaskRepository)
			tt.setupMock(mockRepo)

			err := newFixture(mockRepo).svc.HealthCheck(context.Background())
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestTaskService_RequiresUser(t *testing.T) {
	f := newFixture(inmemory.NewTaskStorage())

	_, _, err := f.svc.ListTasks(context.Background())
	assert.Equal(t, service.CodeUnauthorized, businessCode(t, err))

	_, err = f.svc.CreateTask(context.Background(), task.CreateInput{Title: "x"})
	assert.Equal(t, service.CodeUnauthorized, businessCode(t, err))

	assert.Equal(t, service.CodeUnauthorized, businessCode(t, f.svc.SignOut(context.Background())))
	assert.Zero(t, f.svc.Sessions())
}

func TestTaskService_CreateAndList(t *testing.T) {
	f := newFixture(inmemory.NewTaskStorage())
	alice := f.signIn(t, "alice")
	bob := f.signIn(t, "bob")

	first, err := f.svc.CreateTask(alice, task.CreateInput{Title: "Buy milk"})
	require.NoError(t, err)
	_, err = f.svc.CreateTask(alice, task.CreateInput{Title: "Walk dog", Status: task.StatusInProgress})
	require.NoError(t, err)

	tasks, criteria, err := f.svc.ListTasks(alice)
	require.NoError(t, err)
	assert.Equal(t, board.DefaultCriteria(), criteria)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Walk dog", tasks[0].Title)
	assert.Equal(t, first.ID, tasks[1].ID)

	tasks, _, err = f.svc.ListTasks(bob)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Equal(t, 2, f.svc.Sessions())
}

func TestTaskService_CriteriaPersistPerSession(t *testing.T) {
	f := newFixture(inmemory.NewTaskStorage())
	alice := f.signIn(t, "alice")

	_, err := f.svc.CreateTask(alice, task.CreateInput{Title: "Foobar"})
	require.NoError(t, err)
	_, err = f.svc.CreateTask(alice, task.CreateInput{Title: "bar"})
	require.NoError(t, err)

	tasks, criteria, err := f.svc.ListTasks(alice, service.WithQuery("foo"))
	require.NoError(t, err)
	assert.Equal(t, "foo", criteria.Query)
	require.Len(t, tasks, 1)

	// no options keeps the previous query
	tasks, criteria, err = f.svc.ListTasks(alice)
	require.NoError(t, err)
	assert.Equal(t, "foo", criteria.Query)
	assert.Len(t, tasks, 1)

	tasks, _, err = f.svc.ListTasks(alice, service.WithQuery(""), service.WithSort(board.SortCreatedAsc))
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Foobar", tasks[0].Title)
}

func TestTaskService_ValidationAndNotFound(t *testing.T) {
	f := newFixture(inmemory.NewTaskStorage())
	alice := f.signIn(t, "alice")

	_, err := f.svc.CreateTask(alice, task.CreateInput{Title: ""})
	assert.Equal(t, service.CodeValidation, businessCode(t, err))

	title := "x"
	_, err = f.svc.UpdateTask(alice, "missing", task.UpdateInput{Title: &title})
	assert.Equal(t, service.CodeNotFound, businessCode(t, err))

	assert.Equal(t, service.CodeNotFound, businessCode(t, f.svc.DeleteTask(alice, "missing")))

	_, err = f.svc.ToggleComplete(alice, "missing", true)
	assert.Equal(t, service.CodeNotFound, businessCode(t, err))

	_, err = f.svc.UpdateStatus(alice, "missing", task.Status("blocked"))
	assert.Equal(t, service.CodeValidation, businessCode(t, err))
}

func TestTaskService_ToggleAndStatus(t *testing.T) {
	now := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(inmemory.NewTaskStorage(), service.WithClock(func() time.Time { return now }))
	alice := f.signIn(t, "alice")

	created, err := f.svc.CreateTask(alice, task.CreateInput{Title: "Ship it"})
	require.NoError(t, err)

	done, err := f.svc.ToggleComplete(alice, created.ID, true)
	require.NoError(t, err)
	assert.Equal(t, task.StatusDone, done.Status)
	assert.True(t, done.IsCompleted)
	require.NotNil(t, done.EndDate)
	assert.Equal(t, now, *done.EndDate)

	moved, err := f.svc.UpdateStatus(alice, created.ID, task.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, task.StatusInProgress, moved.Status)
	assert.False(t, moved.IsCompleted)
	assert.Nil(t, moved.EndDate)

	columns, _, err := f.svc.Board(alice)
	require.NoError(t, err)
	require.Len(t, columns, 3)
	assert.Len(t, columns[1].Tasks, 1)
}

func TestTaskService_OptimisticRollback(t *testing.T) {
	mockRepo := new(MockTaskRepository)
	stored := task.Task{ID: "t1", UserID: "alice", Title: "Stored", Status: task.StatusTodo}
	mockRepo.On("List", mock.Anything, "alice").Return([]task.Task{stored}, nil)
	mockRepo.On("Update", mock.Anything, "t1", mock.Anything).Return(task.Task{}, errors.New("write timeout"))

	f := newFixture(mockRepo)
	alice := f.signIn(t, "alice")

	_, err := f.svc.ToggleComplete(alice, "t1", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write timeout")

	tasks, _, err := f.svc.ListTasks(alice)
	require.NoError(t, err)
	assert.Equal(t, []task.Task{stored}, tasks)
}

func TestTaskService_FailedFirstLoadIsRetried(t *testing.T) {
	mockRepo := new(MockTaskRepository)
	mockRepo.On("List", mock.Anything, "alice").Return(nil, errors.New("db down")).Once()
	mockRepo.On("List", mock.Anything, "alice").Return([]task.Task{{ID: "t1", UserID: "alice", Title: "Back"}}, nil).Once()

	f := newFixture(mockRepo)
	alice := f.signIn(t, "alice")

	_, _, err := f.svc.ListTasks(alice)
	require.Error(t, err)
	assert.Zero(t, f.svc.Sessions())

	tasks, _, err := f.svc.ListTasks(alice)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	mockRepo.AssertExpectations(t)
}

func TestTaskService_Refresh(t *testing.T) {
	storage := inmemory.NewTaskStorage()
	f := newFixture(storage)
	alice := f.signIn(t, "alice")

	tasks, _, err := f.svc.ListTasks(alice)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	// written behind the board's back
	_, err = storage.Create(alice, "alice", task.CreateInput{Title: "external"})
	require.NoError(t, err)

	tasks, _, err = f.svc.ListTasks(alice)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	tasks, err = f.svc.Refresh(alice)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "external", tasks[0].Title)
}

func TestTaskService_Timeline(t *testing.T) {
	now := time.Date(2026, time.January, 20, 0, 0, 0, 0, time.UTC)
	f := newFixture(inmemory.NewTaskStorage(), service.WithClock(func() time.Time { return now }))
	alice := f.signIn(t, "alice")

	layout, _, err := f.svc.Timeline(alice)
	require.NoError(t, err)
	assert.Equal(t, 1, layout.Range.TotalDays)
	assert.Empty(t, layout.Bars)

	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	due := time.Date(2026, time.January, 3, 0, 0, 0, 0, time.UTC)
	_, err = f.svc.CreateTask(alice, task.CreateInput{Title: "A", StartDate: &start, DueDate: &due})
	require.NoError(t, err)

	layout, _, err = f.svc.Timeline(alice)
	require.NoError(t, err)
	require.Len(t, layout.Bars, 1)
	assert.Equal(t, start.AddDate(0, 0, -1), layout.Range.Start)
	assert.Equal(t, 8, layout.Range.TotalDays)
}

func TestTaskService_SignOut(t *testing.T) {
	f := newFixture(inmemory.NewTaskStorage())
	alice := f.signIn(t, "alice")

	_, _, err := f.svc.ListTasks(alice)
	require.NoError(t, err)
	assert.Equal(t, 1, f.svc.Sessions())

	require.NoError(t, f.svc.SignOut(alice))
	assert.Zero(t, f.svc.Sessions())

	claims, ok := auth.ClaimsFromContext(alice)
	require.True(t, ok)
	token, err := auth.Issue(secret, *claims)
	require.NoError(t, err)
	_, _, err = f.verifier.Verify(token)
	assert.ErrorIs(t, err, auth.ErrRevokedToken)
}

func TestTaskService_EvictIdle(t *testing.T) {
	now := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(inmemory.NewTaskStorage(), service.WithClock(func() time.Time { return now }))

	_, _, err := f.svc.ListTasks(f.signIn(t, "alice"))
	require.NoError(t, err)

	now = now.Add(time.Hour)
	_, _, err = f.svc.ListTasks(f.signIn(t, "bob"))
	require.NoError(t, err)

	evicted := f.svc.EvictIdle(now.Add(-30 * time.Minute))
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, f.svc.Sessions())
}

func TestBusinessError(t *testing.T) {
	err := service.NewNotFound("task", "42")
	assert.Equal(t, service.CodeNotFound, err.Code)
	assert.Equal(t, "42", err.Details["id"])
	assert.Equal(t, "[NOT_FOUND] task 42 not found", err.Error())

	wrapped := service.NewUnauthorized(board.ErrNotAuthenticated)
	assert.ErrorIs(t, wrapped, board.ErrNotAuthenticated)

	custom := service.NewBusinessError("CONFLICT", "busy", service.ToDetail("retry", true))
	assert.Equal(t, true, custom.Details["retry"])
}
