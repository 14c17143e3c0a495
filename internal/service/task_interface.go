package service

import (
	"context"

	"taskBoard/internal/board"
)

type TaskRepository interface {
	board.Store
	HealthCheck(ctx context.Context) error
}

type Identity interface {
	board.Identity
	SignOut(ctx context.Context) error
}
