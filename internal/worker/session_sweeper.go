package worker

import (
	"context"
	"time"

	"taskBoard/internal/logger"

	"go.uber.org/zap"
)

// SessionStore is the part of the task service the sweeper needs.
type SessionStore interface {
	EvictIdle(before time.Time) int
	Sessions() int
}

// SessionSweeper periodically forgets boards nobody has used for idleTimeout.
type SessionSweeper struct {
	store       SessionStore
	interval    time.Duration
	idleTimeout time.Duration
	now         func() time.Time
}

func NewSessionSweeper(store SessionStore, interval, idleTimeout *time.Duration) *SessionSweeper {
	intervalToSet := 5 * time.Minute
	if interval != nil {
		intervalToSet = *interval
	}

	idleToSet := 30 * time.Minute
	if idleTimeout != nil {
		idleToSet = *idleTimeout
	}

	return &SessionSweeper{
		store:       store,
		interval:    intervalToSet,
		idleTimeout: idleToSet,
		now:         time.Now,
	}
}

// Start sweeps on every tick until ctx is cancelled.
func (w *SessionSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logger.Debug("Worker: sweeping idle board sessions", zap.Time("started_at", w.now()))
			w.Sweep()
		case <-ctx.Done():
			logger.Info("Worker: session sweeper stopping")
			return
		}
	}
}

// Sweep evicts idle sessions once and returns how many were dropped.
func (w *SessionSweeper) Sweep() int {
	start := time.Now()

	evicted := w.store.EvictIdle(w.now().Add(-w.idleTimeout))

	logger.Info(
		"Worker: session sweep finished",
		zap.Duration("ms", time.Since(start)),
		zap.Int("evicted", evicted),
		zap.Int("remaining", w.store.Sessions()),
	)
	return evicted
}
