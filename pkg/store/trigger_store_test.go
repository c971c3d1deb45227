package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mazebench/mazebench/pkg/models"
)

func testTriggerEvent() models.TriggerEvent {
	return models.TriggerEvent{
		LLMProvider:   models.ProviderLocalChat,
		ModelName:     "qwen3:8b",
		MazeID:        1,
		PromptVersion: "v1",
	}
}

// enqueueTestTrigger enqueues one trigger with a fresh dedup token.
func enqueueTestTrigger(t *testing.T, st *Store, maxAttempts int) *models.TriggerRecord {
	t.Helper()
	rec, err := st.EnqueueTrigger(context.Background(), testTriggerEvent(), uuid.NewString(), maxAttempts)
	require.NoError(t, err)
	return rec
}

// triggerStatus reads a trigger's status column directly.
func triggerStatus(t *testing.T, st *Store, id int64) models.TriggerStatus {
	t.Helper()
	var status string
	err := st.pool.QueryRow(context.Background(),
		`SELECT status FROM trigger_events WHERE id = $1`, id).Scan(&status)
	require.NoError(t, err)
	return models.TriggerStatus(status)
}

func TestEnqueueTrigger(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	event := testTriggerEvent()
	event.Config = &models.EventConfig{Temperature: float64Ptr(0.2)}

	rec, err := st.EnqueueTrigger(ctx, event, "msg-001", 3)
	require.NoError(t, err)
	assert.NotZero(t, rec.ID)
	assert.Equal(t, "msg-001", rec.DedupToken)
	assert.Equal(t, models.TriggerPending, rec.Status)
	assert.Equal(t, 0, rec.Attempts)
	assert.Equal(t, 3, rec.MaxAttempts)
	assert.Equal(t, "qwen3:8b", rec.Event.ModelName)
	require.NotNil(t, rec.Event.Config)
	assert.Equal(t, 0.2, *rec.Event.Config.Temperature)
}

func TestEnqueueTrigger_Duplicate(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	_, err := st.EnqueueTrigger(ctx, testTriggerEvent(), "msg-dup", 3)
	require.NoError(t, err)

	// Re-delivery of the same message id is rejected, not re-queued.
	_, err = st.EnqueueTrigger(ctx, testTriggerEvent(), "msg-dup", 3)
	assert.ErrorIs(t, err, ErrDuplicateTrigger)

	depth, err := st.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestClaimNextTrigger_FIFO(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	var enqueued []int64
	for i := 0; i < 3; i++ {
		rec, err := st.EnqueueTrigger(ctx, testTriggerEvent(), fmt.Sprintf("msg-%d", i), 3)
		require.NoError(t, err)
		enqueued = append(enqueued, rec.ID)
	}

	// Claims come back strictly in enqueue order.
	for i := 0; i < 3; i++ {
		rec, err := st.ClaimNextTrigger(ctx, "pod-1", 0)
		require.NoError(t, err)
		assert.Equal(t, enqueued[i], rec.ID)
		assert.Equal(t, models.TriggerInProgress, rec.Status)
		assert.Equal(t, 1, rec.Attempts)
		assert.Equal(t, "pod-1", rec.PodID)
		assert.NotNil(t, rec.ClaimedAt)
	}

	_, err := st.ClaimNextTrigger(ctx, "pod-1", 0)
	assert.ErrorIs(t, err, ErrNoTriggersAvailable)
}

func TestClaimNextTrigger_AtCapacity(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	enqueueTestTrigger(t, st, 3)
	enqueueTestTrigger(t, st, 3)

	first, err := st.ClaimNextTrigger(ctx, "pod-1", 1)
	require.NoError(t, err)

	// One trigger in flight fills the whole concurrency budget.
	_, err = st.ClaimNextTrigger(ctx, "pod-1", 1)
	assert.ErrorIs(t, err, ErrAtCapacity)

	require.NoError(t, st.CompleteTrigger(ctx, first.ID))

	second, err := st.ClaimNextTrigger(ctx, "pod-1", 1)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestCompleteTrigger(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	enqueueTestTrigger(t, st, 3)
	rec, err := st.ClaimNextTrigger(ctx, "pod-1", 0)
	require.NoError(t, err)

	require.NoError(t, st.CompleteTrigger(ctx, rec.ID))
	assert.Equal(t, models.TriggerCompleted, triggerStatus(t, st, rec.ID))

	active, err := st.CountActiveTriggers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, active)
}

func TestReleaseTrigger_RequeuesUntilExhausted(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	rec := enqueueTestTrigger(t, st, 2)

	// Attempt 1 fails: back to pending.
	claimed, err := st.ClaimNextTrigger(ctx, "pod-1", 0)
	require.NoError(t, err)
	require.Equal(t, rec.ID, claimed.ID)

	status, err := st.ReleaseTrigger(ctx, claimed.ID, "maze not found")
	require.NoError(t, err)
	assert.Equal(t, models.TriggerPending, status)

	// Attempt 2 fails: budget exhausted, trigger lands in failed.
	claimed, err = st.ClaimNextTrigger(ctx, "pod-1", 0)
	require.NoError(t, err)
	require.Equal(t, 2, claimed.Attempts)

	status, err = st.ReleaseTrigger(ctx, claimed.ID, "maze not found")
	require.NoError(t, err)
	assert.Equal(t, models.TriggerFailed, status)

	_, err = st.ClaimNextTrigger(ctx, "pod-1", 0)
	assert.ErrorIs(t, err, ErrNoTriggersAvailable)
}

func TestReleaseTrigger_NotFound(t *testing.T) {
	st := setupStore(t)

	_, err := st.ReleaseTrigger(context.Background(), 99999, "whatever")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecoverStaleTriggers(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	stale := enqueueTestTrigger(t, st, 3)
	fresh := enqueueTestTrigger(t, st, 3)

	claimedStale, err := st.ClaimNextTrigger(ctx, "pod-dead", 0)
	require.NoError(t, err)
	require.Equal(t, stale.ID, claimedStale.ID)
	claimedFresh, err := st.ClaimNextTrigger(ctx, "pod-live", 0)
	require.NoError(t, err)
	require.Equal(t, fresh.ID, claimedFresh.ID)

	// Age the first claim past the visibility timeout.
	_, err = st.pool.Exec(ctx,
		`UPDATE trigger_events SET claimed_at = now() - interval '10 minutes' WHERE id = $1`,
		stale.ID)
	require.NoError(t, err)

	recovered, err := st.RecoverStaleTriggers(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []int64{stale.ID}, recovered)
	assert.Equal(t, models.TriggerPending, triggerStatus(t, st, stale.ID))
	assert.Equal(t, models.TriggerInProgress, triggerStatus(t, st, fresh.ID))
}

func TestRecoverPodTriggers(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	a := enqueueTestTrigger(t, st, 3)
	b := enqueueTestTrigger(t, st, 3)

	claimedA, err := st.ClaimNextTrigger(ctx, "pod-a", 0)
	require.NoError(t, err)
	require.Equal(t, a.ID, claimedA.ID)
	claimedB, err := st.ClaimNextTrigger(ctx, "pod-b", 0)
	require.NoError(t, err)
	require.Equal(t, b.ID, claimedB.ID)

	recovered, err := st.RecoverPodTriggers(ctx, "pod-a")
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID}, recovered)
	assert.Equal(t, models.TriggerPending, triggerStatus(t, st, a.ID))
	assert.Equal(t, models.TriggerInProgress, triggerStatus(t, st, b.ID))
}

func TestDeleteOldTriggers(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	oldCompleted := enqueueTestTrigger(t, st, 3)
	oldFailed := enqueueTestTrigger(t, st, 3)
	recentCompleted := enqueueTestTrigger(t, st, 3)
	pending := enqueueTestTrigger(t, st, 3)

	_, err := st.pool.Exec(ctx,
		`UPDATE trigger_events SET status = 'completed', completed_at = now() - interval '8 days' WHERE id = $1`,
		oldCompleted.ID)
	require.NoError(t, err)
	_, err = st.pool.Exec(ctx,
		`UPDATE trigger_events SET status = 'failed', completed_at = now() - interval '8 days' WHERE id = $1`,
		oldFailed.ID)
	require.NoError(t, err)
	_, err = st.pool.Exec(ctx,
		`UPDATE trigger_events SET status = 'completed', completed_at = now() WHERE id = $1`,
		recentCompleted.ID)
	require.NoError(t, err)

	deleted, err := st.DeleteOldTriggers(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	// Recent and pending rows survive.
	assert.Equal(t, models.TriggerCompleted, triggerStatus(t, st, recentCompleted.ID))
	assert.Equal(t, models.TriggerPending, triggerStatus(t, st, pending.ID))
}

func TestQueueDepth(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	depth, err := st.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)

	enqueueTestTrigger(t, st, 3)
	enqueueTestTrigger(t, st, 3)

	depth, err = st.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, depth)

	_, err = st.ClaimNextTrigger(ctx, "pod-1", 0)
	require.NoError(t, err)

	depth, err = st.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)

	active, err := st.CountActiveTriggers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, active)
}

func float64Ptr(v float64) *float64 { return &v }
