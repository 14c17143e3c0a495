package repository

import (
	"context"
	"errors"

	"taskBoard/internal/auth"
)

var (
	ErrNotFound = errors.New("task not found")
	// ErrNoOwner is returned when a write has no signed-in user to scope it to.
	ErrNoOwner = errors.New("no owner in context")
)

// OwnerID returns the user every row access is scoped to.
func OwnerID(ctx context.Context) (string, error) {
	user, ok := auth.UserFromContext(ctx)
	if !ok || user.ID == "" {
		return "", ErrNoOwner
	}
	return user.ID, nil
}
