// Package cache keeps each owner's task list in Redis in front of a slower store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"taskBoard/internal/logger"
	"taskBoard/internal/models/task"
	repo "taskBoard/internal/repository"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type backend interface {
	List(ctx context.Context, ownerID string) ([]task.Task, error)
	Create(ctx context.Context, ownerID string, in task.CreateInput) (task.Task, error)
	Update(ctx context.Context, id string, in task.UpdateInput) (task.Task, error)
	Delete(ctx context.Context, id string) error
}

var errStaleFill = errors.New("cache: generation changed during fill")

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Store serves List from Redis when it can and drops the owner's entry after every write.
type Store struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

func New(base backend, client *redis.Client, ttl time.Duration) *Store {
	if base == nil {
		panic("cache.New: base store is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Store{base: base, redis: client, ttl: ttl}
}

func (s *Store) List(ctx context.Context, ownerID string) ([]task.Task, error) {
	if tasks, ok := s.load(ctx, ownerID); ok {
		return tasks, nil
	}

	gen, fill := s.generation(ctx, ownerID)
	tasks, err := s.base.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if fill {
		s.store(ctx, ownerID, gen, tasks)
	}
	return tasks, nil
}

func (s *Store) Create(ctx context.Context, ownerID string, in task.CreateInput) (task.Task, error) {
	created, err := s.base.Create(ctx, ownerID, in)
	if err != nil {
		return task.Task{}, err
	}
	s.evict(ctx, ownerID)
	return created, nil
}

func (s *Store) Update(ctx context.Context, id string, in task.UpdateInput) (task.Task, error) {
	updated, err := s.base.Update(ctx, id, in)
	if err != nil {
		return task.Task{}, err
	}
	s.evict(ctx, updated.UserID)
	return updated, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.base.Delete(ctx, id); err != nil {
		return err
	}
	if ownerID, err := repo.OwnerID(ctx); err == nil {
		s.evict(ctx, ownerID)
	}
	return nil
}

// HealthCheck checks the backing store first, then Redis.
func (s *Store) HealthCheck(ctx context.Context) error {
	if hc, ok := s.base.(healthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return err
		}
	}
	if s.redis == nil {
		return nil
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (s *Store) load(ctx context.Context, ownerID string) ([]task.Task, bool) {
	if s.redis == nil {
		return nil, false
	}
	data, err := s.redis.Get(ctx, tasksKey(ownerID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("Cache: read failed, falling back to store", zap.String("owner_id", ownerID), zap.Error(err))
			_ = s.redis.Del(ctx, tasksKey(ownerID)).Err()
		}
		return nil, false
	}

	var tasks []task.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		logger.Warn("Cache: dropping corrupt entry", zap.String("owner_id", ownerID), zap.Error(err))
		_ = s.redis.Del(ctx, tasksKey(ownerID)).Err()
		return nil, false
	}
	return tasks, true
}

// generation reads the owner's write counter. Every write bumps it, so a list
// read from the base store may only be cached while the counter is unchanged.
func (s *Store) generation(ctx context.Context, ownerID string) (int64, bool) {
	if s.redis == nil || s.ttl == 0 {
		return 0, false
	}
	gen, err := s.redis.Get(ctx, genKey(ownerID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		logger.Warn("Cache: generation read failed, skipping fill", zap.String("owner_id", ownerID), zap.Error(err))
		return 0, false
	}
	return gen, true
}

func (s *Store) store(ctx context.Context, ownerID string, gen int64, tasks []task.Task) {
	data, err := json.Marshal(tasks)
	if err != nil {
		return
	}

	err = s.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey(ownerID)).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, tasksKey(ownerID), data, s.ttl)
			return nil
		})
		return err
	}, genKey(ownerID))

	switch {
	case err == nil:
	case errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		logger.Debug("Cache: list changed while loading, not cached", zap.String("owner_id", ownerID))
	default:
		logger.Warn("Cache: write failed", zap.String("owner_id", ownerID), zap.Error(err))
	}
}

// evict drops the cached list and bumps the generation so that fills started
// before this write are discarded.
func (s *Store) evict(ctx context.Context, ownerID string) {
	if s.redis == nil || ownerID == "" {
		return
	}
	_, err := s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, genKey(ownerID))
		p.Del(ctx, tasksKey(ownerID))
		return nil
	})
	if err != nil {
		logger.Warn("Cache: evict failed", zap.String("owner_id", ownerID), zap.Error(err))
	}
}

func tasksKey(ownerID string) string {
	return "tasks:" + ownerID
}

func genKey(ownerID string) string {
	return tasksKey(ownerID) + ":gen"
}
