package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Advisory lock key space: experiment locks use the experiment id
// directly (bigserial, always >= 1). Key 0 is reserved for the trigger
// queue claim section.
const triggerClaimLockKey = 0

// WithExperimentLock runs fn while holding the PostgreSQL advisory lock
// for the experiment. The lock serializes the (current_position,
// next_step_number, insert) critical section across all processes
// writing to the same experiment; different experiments do not contend.
//
// The lock is session-scoped: each call acquires a dedicated pooled
// connection and releases the lock before returning it. Calls must not
// nest for the same experiment — the second acquisition would wait on a
// different connection and deadlock.
func (s *Store) WithExperimentLock(ctx context.Context, experimentID int64, fn func(ctx context.Context) error) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for experiment lock: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", experimentID); err != nil {
		conn.Release()
		return fmt.Errorf("failed to acquire advisory lock for experiment %d: %w", experimentID, err)
	}

	defer func() {
		// Unlock on a background context: the caller's context may
		// already be cancelled and the lock must still be released.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := conn.Exec(unlockCtx, "SELECT pg_advisory_unlock($1)", experimentID); err != nil {
			// Destroy the session so the lock dies with it instead of
			// returning a still-locked connection to the pool.
			slog.Error("Failed to release experiment advisory lock, closing connection",
				"experiment_id", experimentID, "error", err)
			_ = conn.Hijack().Close(unlockCtx)
			return
		}
		conn.Release()
	}()

	return fn(ctx)
}
