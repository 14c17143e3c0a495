package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"taskBoard/internal/auth"
	"taskBoard/internal/board"
	"taskBoard/internal/logger"
	"taskBoard/internal/models/task"
	repo "taskBoard/internal/repository"
	"taskBoard/internal/timeline"

	"go.uber.org/zap"
)

// TaskService keeps one board per signed-in user and translates board
// errors into business errors for the HTTP layer.
type TaskService struct {
	repo     TaskRepository
	identity Identity
	notifier board.Notifier
	now      func() time.Time

	mtx      sync.Mutex
	sessions map[string]*session
}

type session struct {
	board    *board.Manager
	lastUsed time.Time
}

func NewTaskService(repo TaskRepository, identity Identity, notifier board.Notifier, opts ...Option) *TaskService {
	s := &TaskService{
		repo:     repo,
		identity: identity,
		notifier: notifier,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TaskService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}

// ListTasks applies opts to the caller's criteria and returns the filtered list.
func (s *TaskService) ListTasks(ctx context.Context, opts ...CriteriaOption) ([]task.Task, board.Criteria, error) {
	b, err := s.boardFor(ctx)
	if err != nil {
		return nil, board.Criteria{}, err
	}
	criteria := b.ApplyCriteria(patch(opts))
	return b.Filtered(), criteria, nil
}

func (s *TaskService) Board(ctx context.Context, opts ...CriteriaOption) ([]board.Column, board.Criteria, error) {
	b, err := s.boardFor(ctx)
	if err != nil {
		return nil, board.Criteria{}, err
	}
	criteria := b.ApplyCriteria(patch(opts))
	return board.Columns(b.Filtered(), criteria.Status), criteria, nil
}

func (s *TaskService) Timeline(ctx context.Context, opts ...CriteriaOption) (timeline.Layout, board.Criteria, error) {
	b, err := s.boardFor(ctx)
	if err != nil {
		return timeline.Layout{}, board.Criteria{}, err
	}
	criteria := b.ApplyCriteria(patch(opts))
	return timeline.Compute(b.Filtered(), s.now()), criteria, nil
}

func (s *TaskService) Refresh(ctx context.Context) ([]task.Task, error) {
	b, err := s.boardFor(ctx)
	if err != nil {
		return nil, err
	}
	if err := b.Load(ctx); err != nil {
		return nil, translate(err, "")
	}
	return b.Filtered(), nil
}

func (s *TaskService) CreateTask(ctx context.Context, in task.CreateInput) (task.Task, error) {
	b, err := s.boardFor(ctx)
	if err != nil {
		return task.Task{}, err
	}
	created, err := b.Create(ctx, in)
	if err != nil {
		return task.Task{}, translate(err, "")
	}
	return created, nil
}

func (s *TaskService) UpdateTask(ctx context.Context, id string, in task.UpdateInput) (task.Task, error) {
	b, err := s.boardFor(ctx)
	if err != nil {
		return task.Task{}, err
	}
	updated, err := b.Update(ctx, id, in)
	if err != nil {
		return task.Task{}, translate(err, id)
	}
	return updated, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	b, err := s.boardFor(ctx)
	if err != nil {
		return err
	}
	if err := b.Delete(ctx, id); err != nil {
		return translate(err, id)
	}
	return nil
}

// ToggleComplete returns the task as the board shows it after the change.
func (s *TaskService) ToggleComplete(ctx context.Context, id string, completed bool) (task.Task, error) {
	b, err := s.boardFor(ctx)
	if err != nil {
		return task.Task{}, err
	}
	if err := b.ToggleComplete(ctx, id, completed); err != nil {
		return task.Task{}, translate(err, id)
	}
	return s.current(b, id)
}

func (s *TaskService) UpdateStatus(ctx context.Context, id string, status task.Status) (task.Task, error) {
	b, err := s.boardFor(ctx)
	if err != nil {
		return task.Task{}, err
	}
	if err := b.UpdateStatus(ctx, id, status); err != nil {
		return task.Task{}, translate(err, id)
	}
	return s.current(b, id)
}

// SignOut revokes the caller's token and forgets their board.
func (s *TaskService) SignOut(ctx context.Context) error {
	user, ok := auth.UserFromContext(ctx)
	if !ok {
		return NewUnauthorized(board.ErrNotAuthenticated)
	}
	if err := s.identity.SignOut(ctx); err != nil {
		return NewUnauthorized(err)
	}

	s.mtx.Lock()
	delete(s.sessions, user.ID)
	s.mtx.Unlock()

	logger.Info("Service: signed out", zap.String("owner_id", user.ID))
	return nil
}

// EvictIdle drops boards unused since before and reports how many went.
func (s *TaskService) EvictIdle(before time.Time) int {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	evicted := 0
	for owner, sess := range s.sessions {
		if sess.lastUsed.Before(before) {
			delete(s.sessions, owner)
			evicted++
		}
	}
	return evicted
}

func (s *TaskService) Sessions() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return len(s.sessions)
}

// boardFor returns the caller's board, creating and loading it on first use.
// A board whose first load fails is discarded so the next request retries.
func (s *TaskService) boardFor(ctx context.Context) (*board.Manager, error) {
	user, ok := auth.UserFromContext(ctx)
	if !ok {
		return nil, NewUnauthorized(board.ErrNotAuthenticated)
	}

	s.mtx.Lock()
	sess, exists := s.sessions[user.ID]
	if !exists {
		sess = &session{board: board.New(s.repo, s.identity, s.notifier, board.WithClock(s.now))}
		s.sessions[user.ID] = sess
		logger.Info("Service: board session opened", zap.String("owner_id", user.ID))
	}
	sess.lastUsed = s.now()
	s.mtx.Unlock()

	if err := sess.board.Init(ctx); err != nil {
		s.mtx.Lock()
		if s.sessions[user.ID] == sess {
			delete(s.sessions, user.ID)
		}
		s.mtx.Unlock()
		return nil, translate(err, "")
	}
	return sess.board, nil
}

func (s *TaskService) current(b *board.Manager, id string) (task.Task, error) {
	t, ok := b.Get(id)
	if !ok {
		return task.Task{}, NewNotFound("task", id)
	}
	return t, nil
}

func patch(opts []CriteriaOption) board.CriteriaPatch {
	var p board.CriteriaPatch
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func translate(err error, id string) error {
	var vErr *task.ValidationError
	switch {
	case errors.As(err, &vErr):
		return NewValidationError(vErr.Field, vErr.Reason)
	case errors.Is(err, board.ErrNotAuthenticated), errors.Is(err, repo.ErrNoOwner):
		return NewUnauthorized(err)
	case errors.Is(err, repo.ErrNotFound), errors.Is(err, board.ErrUnknownTask):
		logger.Info("Service: task not found", zap.String("target_id", id))
		return NewNotFound("task", id)
	}
	return fmt.Errorf("board operation: %w", err)
}
