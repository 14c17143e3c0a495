// Package notify delivers board notifications to the structured log.
package notify

import (
	"context"

	"taskBoard/internal/auth"
	"taskBoard/internal/logger"

	"go.uber.org/zap"
)

// Log writes success notifications at info level and errors at warn level.
type Log struct{}

func NewLog() *Log {
	return &Log{}
}

func (l *Log) Success(ctx context.Context, title, description string) {
	logger.Info("Notify: "+title, fields(ctx, description)...)
}

func (l *Log) Error(ctx context.Context, title, description string) {
	logger.Warn("Notify: "+title, fields(ctx, description)...)
}

func fields(ctx context.Context, description string) []zap.Field {
	fs := []zap.Field{zap.String("description", description)}
	if user, ok := auth.UserFromContext(ctx); ok {
		fs = append(fs, zap.String("owner_id", user.ID))
	}
	return fs
}
