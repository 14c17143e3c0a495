package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskBoard/internal/logger"
	"taskBoard/internal/models/task"
	repo "taskBoard/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const slowQuery = 100 * time.Millisecond

const columns = `id::text AS id, user_id, title, description, status, is_completed,
				due_date, start_date, end_date, created_at`

type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
}

type Storage struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, connString string, poolCfg PoolConfig) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: failed to parse database config", err)
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if poolCfg.MaxConns > 0 {
		config.MaxConns = poolCfg.MaxConns
	}
	if poolCfg.MinConns > 0 {
		config.MinConns = poolCfg.MinConns
	}
	if poolCfg.MaxConnIdleTime > 0 {
		config.MaxConnIdleTime = poolCfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: failed to create pool", err)
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		logger.Error("Repository: ping failed", err)
		return nil, fmt.Errorf("ping: %w", err)
	}

	logger.Info("Repository: connected to PostgreSQL",
		zap.Int32("max_conns", config.MaxConns),
		zap.Int32("min_conns", config.MinConns))
	return &Storage{pool: pool}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
	logger.Info("Repository: all PostgreSQL connections closed")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		logger.Error("Repository: ping failed", err)
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

func (s *Storage) List(ctx context.Context, ownerID string) ([]task.Task, error) {
	start := time.Now()

	query := `SELECT ` + columns + `
				FROM tasks
				WHERE user_id = $1
				ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, ownerID)
	if err != nil {
		logger.Error("Repository: failed to list tasks", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	tasks, err := pgx.CollectRows(rows, pgx.RowToStructByName[task.Task])
	if err != nil {
		logger.Error("Repository: failed to scan tasks", err)
		return nil, fmt.Errorf("scan tasks: %w", err)
	}

	warnIfSlow(start)
	return tasks, nil
}

func (s *Storage) Create(ctx context.Context, ownerID string, in task.CreateInput) (task.Task, error) {
	start := time.Now()

	status := in.Status
	if status == "" {
		status = task.StatusTodo
	}

	query := `INSERT INTO tasks
				(id, user_id, title, description, status, is_completed, due_date, start_date, end_date, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
				RETURNING ` + columns

	rows, err := s.pool.Query(ctx, query,
		uuid.New(),
		ownerID,
		in.Title,
		in.Description,
		string(status),
		status == task.StatusDone,
		in.DueDate,
		in.StartDate,
		in.EndDate,
	)
	if err != nil {
		logger.Error("Repository: failed to insert task", err, zap.Duration("ms", time.Since(start)))
		return task.Task{}, fmt.Errorf("insert task: %w", err)
	}

	created, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[task.Task])
	if err != nil {
		logger.Error("Repository: failed to insert task", err, zap.Duration("ms", time.Since(start)))
		return task.Task{}, fmt.Errorf("insert task: %w", err)
	}

	warnIfSlow(start)
	return created, nil
}

// Update writes only the fields set in in, and only on a task owned by the user in ctx.
func (s *Storage) Update(ctx context.Context, id string, in task.UpdateInput) (task.Task, error) {
	start := time.Now()

	ownerID, err := repo.OwnerID(ctx)
	if err != nil {
		return task.Task{}, err
	}
	taskID, err := uuid.Parse(id)
	if err != nil {
		return task.Task{}, repo.ErrNotFound
	}

	sets, args := updateAssignments(in)
	var query string
	if len(sets) == 0 {
		query = `SELECT ` + columns + ` FROM tasks WHERE id = $1 AND user_id = $2`
	} else {
		query = fmt.Sprintf(`UPDATE tasks
				SET %s
				WHERE id = $%d AND user_id = $%d
				RETURNING %s`, strings.Join(sets, ", "), len(args)+1, len(args)+2, columns)
	}
	args = append(args, taskID, ownerID)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: failed to update task", err, zap.Duration("ms", time.Since(start)))
		return task.Task{}, fmt.Errorf("update task: %w", err)
	}

	updated, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[task.Task])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logger.Warn("Repository: task to update not found", zap.String("task_id", id))
			return task.Task{}, repo.ErrNotFound
		}
		logger.Error("Repository: failed to update task", err, zap.Duration("ms", time.Since(start)))
		return task.Task{}, fmt.Errorf("update task: %w", err)
	}

	warnIfSlow(start)
	return updated, nil
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	start := time.Now()

	ownerID, err := repo.OwnerID(ctx)
	if err != nil {
		return err
	}
	taskID, err := uuid.Parse(id)
	if err != nil {
		return repo.ErrNotFound
	}

	query := `DELETE FROM tasks
				WHERE id = $1 AND user_id = $2`

	tag, err := s.pool.Exec(ctx, query, taskID, ownerID)
	if err != nil {
		logger.Error("Repository: failed to delete task", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}

	warnIfSlow(start)
	return nil
}

func updateAssignments(in task.UpdateInput) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if in.Title != nil {
		add("title", *in.Title)
	}
	if in.Description.Set {
		add("description", in.Description.Value)
	}
	if in.Status != nil {
		add("status", string(*in.Status))
	}
	if in.IsCompleted != nil {
		add("is_completed", *in.IsCompleted)
	}
	if in.DueDate.Set {
		add("due_date", in.DueDate.Value)
	}
	if in.StartDate.Set {
		add("start_date", in.StartDate.Value)
	}
	if in.EndDate.Set {
		add("end_date", in.EndDate.Value)
	}
	return sets, args
}

func warnIfSlow(start time.Time) {
	if elapsed := time.Since(start); elapsed > slowQuery {
		logger.Warn("Repository: slow query", zap.Duration("ms", elapsed))
	}
}
