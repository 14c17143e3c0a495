package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"taskBoard/internal/auth"
	"taskBoard/internal/board"
	"taskBoard/internal/models/task"
	"taskBoard/internal/repository"
	"taskBoard/internal/repository/task/postgres"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var _ board.Store = (*postgres.Storage)(nil)

// PostgresTestSuite runs the storage against a throwaway PostgreSQL container.
type PostgresTestSuite struct {
	suite.Suite
	container  testcontainers.Container
	storage    *postgres.Storage
	connString string
	ctx        context.Context
}

func (s *PostgresTestSuite) SetupSuite() {
	s.ctx = context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(s.ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(s.T(), err)
	s.container = container

	host, err := container.Host(s.ctx)
	require.NoError(s.T(), err)

	port, err := container.MappedPort(s.ctx, "5432")
	require.NoError(s.T(), err)

	s.connString = fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	require.NoError(s.T(), postgres.Migrate(s.connString))
	// a second run finds nothing to do
	require.NoError(s.T(), postgres.Migrate(s.connString))

	s.storage, err = postgres.New(s.ctx, s.connString, postgres.PoolConfig{MaxConns: 4, MinConns: 1})
	require.NoError(s.T(), err)
}

func (s *PostgresTestSuite) TearDownSuite() {
	if s.storage != nil {
		s.storage.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresTestSuite) SetupTest() {
	conn, err := pgx.Connect(s.ctx, s.connString)
	require.NoError(s.T(), err)
	defer conn.Close(s.ctx)

	_, err = conn.Exec(s.ctx, "DELETE FROM tasks")
	require.NoError(s.T(), err)
}

func TestPostgresTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}
	suite.Run(t, new(PostgresTestSuite))
}

func asUser(id string) context.Context {
	return auth.WithUser(context.Background(), &auth.User{ID: id}, nil)
}

func (s *PostgresTestSuite) TestHealthCheck() {
	assert.NoError(s.T(), s.storage.HealthCheck(s.ctx))
}

func (s *PostgresTestSuite) TestCreateAndList() {
	desc := "Test Description"
	start := time.Date(2026, time.May, 1, 9, 0, 0, 0, time.UTC)
	due := start.Add(48 * time.Hour)

	created, err := s.storage.Create(asUser("alice"), "alice", task.CreateInput{
		Title:       "Test Task",
		Description: &desc,
		StartDate:   &start,
		DueDate:     &due,
	})
	require.NoError(s.T(), err)

	_, err = uuid.Parse(created.ID)
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), "alice", created.UserID)
	assert.Equal(s.T(), task.StatusTodo, created.Status)
	assert.False(s.T(), created.IsCompleted)
	assert.False(s.T(), created.CreatedAt.IsZero())
	require.NotNil(s.T(), created.StartDate)
	assert.True(s.T(), start.Equal(*created.StartDate))
	assert.Nil(s.T(), created.EndDate)

	second, err := s.storage.Create(asUser("alice"), "alice", task.CreateInput{Title: "Second", Status: task.StatusDone})
	require.NoError(s.T(), err)
	assert.True(s.T(), second.IsCompleted)

	_, err = s.storage.Create(asUser("bob"), "bob", task.CreateInput{Title: "Not yours"})
	require.NoError(s.T(), err)

	tasks, err := s.storage.List(s.ctx, "alice")
	require.NoError(s.T(), err)
	require.Len(s.T(), tasks, 2)
	assert.Equal(s.T(), second.ID, tasks[0].ID)
	assert.Equal(s.T(), created.ID, tasks[1].ID)
}

func (s *PostgresTestSuite) TestUpdate() {
	created, err := s.storage.Create(asUser("alice"), "alice", task.CreateInput{Title: "Original Title", Description: ptr("text")})
	require.NoError(s.T(), err)

	status := task.StatusDone
	completed := true
	end := time.Date(2026, time.May, 3, 0, 0, 0, 0, time.UTC)
	updated, err := s.storage.Update(asUser("alice"), created.ID, task.UpdateInput{
		Title:       ptr("Updated Title"),
		Description: task.Null[string](),
		Status:      &status,
		IsCompleted: &completed,
		EndDate:     task.Value(end),
	})
	require.NoError(s.T(), err)

	assert.Equal(s.T(), "Updated Title", updated.Title)
	assert.Nil(s.T(), updated.Description)
	assert.Equal(s.T(), task.StatusDone, updated.Status)
	assert.True(s.T(), updated.IsCompleted)
	require.NotNil(s.T(), updated.EndDate)
	assert.True(s.T(), end.Equal(*updated.EndDate))
	assert.True(s.T(), created.CreatedAt.Equal(updated.CreatedAt))

	unchanged, err := s.storage.Update(asUser("alice"), created.ID, task.UpdateInput{})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Updated Title", unchanged.Title)
}

func (s *PostgresTestSuite) TestUpdateIsScoped() {
	created, err := s.storage.Create(asUser("alice"), "alice", task.CreateInput{Title: "private"})
	require.NoError(s.T(), err)

	_, err = s.storage.Update(asUser("bob"), created.ID, task.UpdateInput{Title: ptr("hijacked")})
	assert.ErrorIs(s.T(), err, repository.ErrNotFound)

	_, err = s.storage.Update(asUser("alice"), uuid.NewString(), task.UpdateInput{Title: ptr("x")})
	assert.ErrorIs(s.T(), err, repository.ErrNotFound)

	_, err = s.storage.Update(asUser("alice"), "not-a-uuid", task.UpdateInput{Title: ptr("x")})
	assert.ErrorIs(s.T(), err, repository.ErrNotFound)

	_, err = s.storage.Update(s.ctx, created.ID, task.UpdateInput{Title: ptr("x")})
	assert.ErrorIs(s.T(), err, repository.ErrNoOwner)
}

func (s *PostgresTestSuite) TestDelete() {
	created, err := s.storage.Create(asUser("alice"), "alice", task.CreateInput{Title: "to delete"})
	require.NoError(s.T(), err)

	assert.ErrorIs(s.T(), s.storage.Delete(asUser("bob"), created.ID), repository.ErrNotFound)
	require.NoError(s.T(), s.storage.Delete(asUser("alice"), created.ID))
	assert.ErrorIs(s.T(), s.storage.Delete(asUser("alice"), created.ID), repository.ErrNotFound)

	tasks, err := s.storage.List(s.ctx, "alice")
	require.NoError(s.T(), err)
	assert.Empty(s.T(), tasks)
}

func (s *PostgresTestSuite) TestTitleConstraint() {
	_, err := s.storage.Create(asUser("alice"), "alice", task.CreateInput{Title: ""})
	assert.Error(s.T(), err)
}

func ptr[T any](v T) *T { return &v }

func TestStorage_NewInvalidConnString(t *testing.T) {
	_, err := postgres.New(context.Background(), "invalid", postgres.PoolConfig{})
	assert.Error(t, err)
}
