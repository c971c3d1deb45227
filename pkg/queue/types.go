// Package queue provides the trigger queue worker pool: claiming
// queued trigger events, admitting them as experiments, and recovering
// work lost to crashed pods.
package queue

import (
	"context"
	"time"

	"github.com/mazebench/mazebench/pkg/models"
)

// TriggerExecutor admits one claimed trigger event and drives the
// resulting experiment to a terminal state.
//
// A nil return means the trigger is consumed: the experiment reached a
// terminal status (FAILED included — a deterministic outcome must not
// be redelivered). A non-nil return means delivery should be retried:
// the worker releases the trigger back to pending until its attempts
// are exhausted. Each delivery creates a fresh experiment row, so
// redelivery never mutates earlier state.
type TriggerExecutor interface {
	Execute(ctx context.Context, trigger *models.TriggerRecord) error
}

// PoolHealth contains health information for the entire worker pool.
type PoolHealth struct {
	IsHealthy         bool           `json:"is_healthy"`
	DBReachable       bool           `json:"db_reachable"`
	DBError           string         `json:"db_error,omitempty"`
	PodID             string         `json:"pod_id"`
	ActiveWorkers     int            `json:"active_workers"`
	TotalWorkers      int            `json:"total_workers"`
	ActiveExperiments int            `json:"active_experiments"`
	MaxConcurrent     int            `json:"max_concurrent"`
	QueueDepth        int            `json:"queue_depth"`
	WorkerStats       []WorkerHealth `json:"worker_stats"`
	LastOrphanScan    time.Time      `json:"last_orphan_scan"`
	OrphansRecovered  int            `json:"orphans_recovered"`
}

// WorkerHealth contains health information for a single worker.
type WorkerHealth struct {
	ID                string    `json:"id"`
	Status            string    `json:"status"` // "idle" or "working"
	CurrentTriggerID  int64     `json:"current_trigger_id,omitempty"`
	TriggersProcessed int       `json:"triggers_processed"`
	LastActivity      time.Time `json:"last_activity"`
}
