package handlers

import (
	"context"

	"taskBoard/internal/board"
	"taskBoard/internal/models/task"
	"taskBoard/internal/service"
	"taskBoard/internal/timeline"
)

type Service interface {
	HealthCheck(ctx context.Context) error
	ListTasks(ctx context.Context, opts ...service.CriteriaOption) ([]task.Task, board.Criteria, error)
	Board(ctx context.Context, opts ...service.CriteriaOption) ([]board.Column, board.Criteria, error)
	Timeline(ctx context.Context, opts ...service.CriteriaOption) (timeline.Layout, board.Criteria, error)
	Refresh(ctx context.Context) ([]task.Task, error)
	CreateTask(ctx context.Context, in task.CreateInput) (task.Task, error)
	UpdateTask(ctx context.Context, id string, in task.UpdateInput) (task.Task, error)
	DeleteTask(ctx context.Context, id string) error
	ToggleComplete(ctx context.Context, id string, completed bool) (task.Task, error)
	UpdateStatus(ctx context.Context, id string, status task.Status) (task.Task, error)
	SignOut(ctx context.Context) error
}

var _ Service = (*service.TaskService)(nil)
