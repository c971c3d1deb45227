package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mazebench/mazebench/pkg/models"
	"github.com/mazebench/mazebench/pkg/store"
)

// orphanState tracks orphan detection metrics (thread-safe).
type orphanState struct {
	mu               sync.Mutex
	lastOrphanScan   time.Time
	orphansRecovered int
}

// runRecovery periodically scans for orphaned experiments and stale
// triggers. All pods run this independently — operations are idempotent.
func (p *WorkerPool) runRecovery(ctx context.Context) {
	ticker := time.NewTicker(p.config.OrphanDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.detectAndRecoverOrphans(ctx); err != nil {
				slog.Error("Orphan detection failed", "error", err)
			}
			if err := p.recoverStaleTriggers(ctx); err != nil {
				slog.Error("Stale trigger recovery failed", "error", err)
			}
		}
	}
}

// detectAndRecoverOrphans finds RUNNING experiments whose heartbeat went
// stale (owning pod crashed) and finalizes them as ABORTED. The turn
// loop cannot be resumed: its conversation state died with the pod.
func (p *WorkerPool) detectAndRecoverOrphans(ctx context.Context) error {
	orphans, err := p.store.FindOrphanedExperiments(ctx, p.config.OrphanThreshold)
	if err != nil {
		return fmt.Errorf("querying orphaned experiments: %w", err)
	}

	if len(orphans) == 0 {
		p.orphans.mu.Lock()
		p.orphans.lastOrphanScan = time.Now()
		p.orphans.mu.Unlock()
		return nil
	}

	slog.Warn("Detected orphaned experiments", "count", len(orphans))

	recovered := 0
	for _, id := range orphans {
		lastErr := models.NewLastError(fmt.Errorf(
			"orphaned: no heartbeat for at least %v, owning pod presumed crashed",
			p.config.OrphanThreshold))
		if err := p.store.Finalize(ctx, id, models.StatusAborted, false, lastErr); err != nil {
			slog.Error("Failed to abort orphaned experiment",
				"experiment_id", id,
				"error", err)
			continue
		}
		slog.Warn("Orphaned experiment aborted", "experiment_id", id)
		recovered++
	}

	p.orphans.mu.Lock()
	p.orphans.lastOrphanScan = time.Now()
	p.orphans.orphansRecovered += recovered
	p.orphans.mu.Unlock()

	return nil
}

// recoverStaleTriggers releases in_progress triggers that exceeded the
// visibility timeout back to pending so another pod can retry them.
func (p *WorkerPool) recoverStaleTriggers(ctx context.Context) error {
	released, err := p.store.RecoverStaleTriggers(ctx, p.config.VisibilityTimeout)
	if err != nil {
		return fmt.Errorf("recovering stale triggers: %w", err)
	}
	if len(released) > 0 {
		slog.Warn("Released stale triggers back to pending",
			"count", len(released),
			"trigger_ids", released)
	}
	return nil
}

// RecoverStartupTriggers performs a one-time recovery of triggers owned
// by this pod that were in_progress when the pod previously crashed.
// Called once during startup, before the worker pool begins processing.
// The experiments those triggers started are handled separately by the
// heartbeat-based orphan scan.
func RecoverStartupTriggers(ctx context.Context, st *store.Store, podID string) error {
	released, err := st.RecoverPodTriggers(ctx, podID)
	if err != nil {
		return fmt.Errorf("recovering pod triggers: %w", err)
	}

	if len(released) == 0 {
		return nil
	}

	slog.Warn("Recovered triggers from previous run",
		"pod_id", podID,
		"count", len(released),
		"trigger_ids", released)
	return nil
}
