package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mazebench/mazebench/pkg/models"
)

const triggerColumns = `id, dedup_token, payload, status, attempts, max_attempts,
	pod_id, last_error, created_at, claimed_at, completed_at`

func scanTrigger(row pgx.Row) (*models.TriggerRecord, error) {
	var (
		rec       models.TriggerRecord
		payload   []byte
		status    string
		podID     *string
		lastError *string
	)
	if err := row.Scan(
		&rec.ID, &rec.DedupToken, &payload, &status, &rec.Attempts, &rec.MaxAttempts,
		&podID, &lastError, &rec.CreatedAt, &rec.ClaimedAt, &rec.CompletedAt,
	); err != nil {
		return nil, err
	}
	rec.Status = models.TriggerStatus(status)
	if podID != nil {
		rec.PodID = *podID
	}
	if lastError != nil {
		rec.LastError = *lastError
	}
	if err := json.Unmarshal(payload, &rec.Event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger payload: %w", err)
	}
	return &rec, nil
}

// EnqueueTrigger appends a trigger event to the FIFO queue. The dedup
// token is unique: re-delivery of an already-enqueued event returns
// ErrDuplicateTrigger.
func (s *Store) EnqueueTrigger(ctx context.Context, event models.TriggerEvent, dedupToken string, maxAttempts int) (*models.TriggerRecord, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trigger event: %w", err)
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO trigger_events (dedup_token, payload, status, max_attempts)
		 VALUES ($1, $2, 'pending', $3)
		 RETURNING `+triggerColumns,
		dedupToken, payload, maxAttempts,
	)
	rec, err := scanTrigger(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("dedup token %q: %w", dedupToken, ErrDuplicateTrigger)
		}
		return nil, fmt.Errorf("failed to enqueue trigger: %w", err)
	}
	return rec, nil
}

// ClaimNextTrigger atomically claims the oldest pending trigger using
// FOR UPDATE SKIP LOCKED within a transaction. Claims serialize on a
// dedicated advisory lock, which both preserves strict FIFO order and
// makes the concurrency-cap check race-free: when maxConcurrent
// triggers are already in_progress the claim fails with ErrAtCapacity.
func (s *Store) ClaimNextTrigger(ctx context.Context, podID string, maxConcurrent int) (*models.TriggerRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(triggerClaimLockKey)); err != nil {
		return nil, fmt.Errorf("failed to acquire claim lock: %w", err)
	}

	if maxConcurrent > 0 {
		var active int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM trigger_events WHERE status = 'in_progress'`).Scan(&active); err != nil {
			return nil, fmt.Errorf("failed to count active triggers: %w", err)
		}
		if active >= maxConcurrent {
			return nil, ErrAtCapacity
		}
	}

	var id int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM trigger_events
		 WHERE status = 'pending'
		 ORDER BY id
		 LIMIT 1
		 FOR UPDATE SKIP LOCKED`,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoTriggersAvailable
		}
		return nil, fmt.Errorf("failed to query pending trigger: %w", err)
	}

	row := tx.QueryRow(ctx,
		`UPDATE trigger_events
		 SET status = 'in_progress', attempts = attempts + 1, pod_id = $2, claimed_at = now()
		 WHERE id = $1
		 RETURNING `+triggerColumns,
		id, podID,
	)
	rec, err := scanTrigger(row)
	if err != nil {
		return nil, fmt.Errorf("failed to claim trigger %d: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return rec, nil
}

// CompleteTrigger marks a claimed trigger as processed
func (s *Store) CompleteTrigger(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE trigger_events
		 SET status = 'completed', completed_at = now(), last_error = NULL
		 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to complete trigger %d: %w", id, err)
	}
	return nil
}

// ReleaseTrigger returns a claimed trigger to the queue after a failed
// admission attempt. The trigger goes back to pending until its attempt
// budget is exhausted, then lands in failed. Returns the resulting
// status.
func (s *Store) ReleaseTrigger(ctx context.Context, id int64, cause string) (models.TriggerStatus, error) {
	var status string
	err := s.pool.QueryRow(ctx,
		`UPDATE trigger_events
		 SET status = CASE WHEN attempts >= max_attempts THEN 'failed' ELSE 'pending' END,
		     completed_at = CASE WHEN attempts >= max_attempts THEN now() ELSE NULL END,
		     pod_id = NULL,
		     claimed_at = NULL,
		     last_error = $2
		 WHERE id = $1
		 RETURNING status`,
		id, cause,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("trigger %d: %w", id, ErrNotFound)
		}
		return "", fmt.Errorf("failed to release trigger %d: %w", id, err)
	}
	return models.TriggerStatus(status), nil
}

// RecoverStaleTriggers re-queues in_progress triggers whose claim is
// older than the visibility timeout (their worker died without
// completing or releasing). Returns the recovered ids.
func (s *Store) RecoverStaleTriggers(ctx context.Context, visibilityTimeout time.Duration) ([]int64, error) {
	return s.recoverTriggers(ctx,
		`UPDATE trigger_events
		 SET status = CASE WHEN attempts >= max_attempts THEN 'failed' ELSE 'pending' END,
		     completed_at = CASE WHEN attempts >= max_attempts THEN now() ELSE NULL END,
		     pod_id = NULL,
		     claimed_at = NULL,
		     last_error = 'claim expired: worker lost'
		 WHERE status = 'in_progress' AND claimed_at < now() - make_interval(secs => $1)
		 RETURNING id`,
		visibilityTimeout.Seconds())
}

// RecoverPodTriggers re-queues in_progress triggers claimed by the
// given pod. Called at startup so a restarted pod releases its own
// stranded claims immediately.
func (s *Store) RecoverPodTriggers(ctx context.Context, podID string) ([]int64, error) {
	return s.recoverTriggers(ctx,
		`UPDATE trigger_events
		 SET status = CASE WHEN attempts >= max_attempts THEN 'failed' ELSE 'pending' END,
		     completed_at = CASE WHEN attempts >= max_attempts THEN now() ELSE NULL END,
		     pod_id = NULL,
		     claimed_at = NULL,
		     last_error = 'pod restarted during processing'
		 WHERE status = 'in_progress' AND pod_id = $1
		 RETURNING id`,
		podID)
}

func (s *Store) recoverTriggers(ctx context.Context, query string, arg any) ([]int64, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to recover triggers: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan recovered trigger id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recovered triggers: %w", err)
	}
	return ids, nil
}

// DeleteOldTriggers removes completed and failed trigger rows older
// than ttl. Pending and in_progress rows are never touched.
func (s *Store) DeleteOldTriggers(ctx context.Context, ttl time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM trigger_events
		 WHERE status IN ('completed', 'failed')
		   AND completed_at IS NOT NULL
		   AND completed_at < now() - make_interval(secs => $1)`,
		ttl.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old triggers: %w", err)
	}
	return tag.RowsAffected(), nil
}

// QueueDepth returns the number of pending triggers
func (s *Store) QueueDepth(ctx context.Context) (int, error) {
	var depth int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM trigger_events WHERE status = 'pending'`).Scan(&depth); err != nil {
		return 0, fmt.Errorf("failed to read queue depth: %w", err)
	}
	return depth, nil
}

// CountActiveTriggers returns the number of in_progress triggers
func (s *Store) CountActiveTriggers(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM trigger_events WHERE status = 'in_progress'`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active triggers: %w", err)
	}
	return count, nil
}
