package inmemory

import (
	"context"
	"sync"
	"time"

	"taskBoard/internal/logger"
	"taskBoard/internal/models/task"
	repo "taskBoard/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TaskStorage struct {
	storage map[string]task.Task
	mtx     *sync.RWMutex
	ids     []string
	now     func() time.Time
}

func NewTaskStorage() *TaskStorage {
	return &TaskStorage{
		storage: make(map[string]task.Task),
		mtx:     &sync.RWMutex{},
		ids:     []string{},
		now:     time.Now,
	}
}

func (s *TaskStorage) HealthCheck(ctx context.Context) error {
	logger.Debug("Repository: in-memory storage is healthy")
	return nil
}

// List returns the owner's tasks, newest first.
func (s *TaskStorage) List(ctx context.Context, ownerID string) ([]task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := []task.Task{}
	for i := len(s.ids) - 1; i >= 0; i-- {
		t := s.storage[s.ids[i]]
		if t.UserID != ownerID {
			continue
		}
		res = append(res, t.Clone())
	}
	return res, nil
}

func (s *TaskStorage) Create(ctx context.Context, ownerID string, in task.CreateInput) (task.Task, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	status := in.Status
	if status == "" {
		status = task.StatusTodo
	}

	created := task.Task{
		ID:          uuid.NewString(),
		UserID:      ownerID,
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
		IsCompleted: status == task.StatusDone,
		DueDate:     in.DueDate,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		CreatedAt:   s.now(),
	}.Clone()

	s.storage[created.ID] = created
	s.ids = append(s.ids, created.ID)

	logger.Debug("Repository: task created", zap.String("task_id", created.ID), zap.String("owner_id", ownerID))
	return created.Clone(), nil
}

// Update changes only tasks owned by the user in ctx; others look missing.
func (s *TaskStorage) Update(ctx context.Context, id string, in task.UpdateInput) (task.Task, error) {
	ownerID, err := repo.OwnerID(ctx)
	if err != nil {
		return task.Task{}, err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	existing, ok := s.storage[id]
	if !ok || existing.UserID != ownerID {
		return task.Task{}, repo.ErrNotFound
	}

	updated := task.Apply(existing, in)
	s.storage[id] = updated
	return updated.Clone(), nil
}

func (s *TaskStorage) Delete(ctx context.Context, id string) error {
	ownerID, err := repo.OwnerID(ctx)
	if err != nil {
		return err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	existing, ok := s.storage[id]
	if !ok || existing.UserID != ownerID {
		return repo.ErrNotFound
	}

	delete(s.storage, id)
	for ind, val := range s.ids {
		if val == id {
			s.ids = append(s.ids[:ind], s.ids[ind+1:]...)
			break
		}
	}
	return nil
}
