package queue

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/mazebench/mazebench/pkg/config"
	"github.com/mazebench/mazebench/pkg/models"
	"github.com/mazebench/mazebench/pkg/store"
)

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// Worker is a single queue worker that polls for and processes trigger
// events. Claiming is delegated to the store, which enforces FIFO order
// and the global concurrency cap in one transaction.
type Worker struct {
	id       string
	podID    string
	store    *store.Store
	config   *config.QueueConfig
	executor TriggerExecutor
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Health tracking
	mu                sync.RWMutex
	status            WorkerStatus
	currentTriggerID  int64
	triggersProcessed int
	lastActivity      time.Time
}

// NewWorker creates a new queue worker.
func NewWorker(id, podID string, st *store.Store, cfg *config.QueueConfig, executor TriggerExecutor) *Worker {
	return &Worker{
		id:           id,
		podID:        podID,
		store:        st,
		config:       cfg,
		executor:     executor,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish.
// It is safe to call Stop multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:                w.id,
		Status:            string(w.status),
		CurrentTriggerID:  w.currentTriggerID,
		TriggersProcessed: w.triggersProcessed,
		LastActivity:      w.lastActivity,
	}
}

// run is the main worker loop.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id, "pod_id", w.podID)
	log.Info("Worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("Worker shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, store.ErrNoTriggersAvailable) || errors.Is(err, store.ErrAtCapacity) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("Error processing trigger", "error", err)
				w.sleep(time.Second) // Brief backoff on error
			}
		}
	}
}

// sleep waits for the given duration or until stop is signalled.
func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess claims the next trigger and runs it through the
// executor. The claim enforces the global in-flight experiment cap, so
// a successful claim is a grant to start one experiment.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	trigger, err := w.store.ClaimNextTrigger(ctx, w.podID, w.config.MaxConcurrentExperiments)
	if err != nil {
		return err
	}

	log := slog.With(
		"trigger_id", trigger.ID,
		"dedup_token", trigger.DedupToken,
		"attempt", trigger.Attempts,
		"worker_id", w.id,
	)
	log.Info("Trigger claimed")

	w.setStatus(WorkerStatusWorking, trigger.ID)
	defer w.setStatus(WorkerStatusIdle, 0)

	execErr := w.executor.Execute(ctx, trigger)

	// Trigger state writes use a background context — the worker ctx may
	// already be cancelled when execution ends during shutdown.
	if execErr != nil {
		status, relErr := w.store.ReleaseTrigger(context.Background(), trigger.ID, execErr.Error())
		if relErr != nil {
			log.Error("Failed to release trigger after execution error", "error", relErr)
			return relErr
		}
		switch status {
		case models.TriggerFailed:
			log.Error("Trigger failed permanently, attempts exhausted", "error", execErr)
		default:
			log.Warn("Trigger released for retry", "error", execErr)
		}
	} else {
		if err := w.store.CompleteTrigger(context.Background(), trigger.ID); err != nil {
			log.Error("Failed to complete trigger", "error", err)
			return err
		}
	}

	w.mu.Lock()
	w.triggersProcessed++
	w.mu.Unlock()

	log.Info("Trigger processing complete", "retried", execErr != nil)
	return nil
}

// pollInterval returns the poll duration with jitter.
func (w *Worker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	// Range: [base - jitter, base + jitter]
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

// setStatus updates the worker's health tracking state.
func (w *Worker) setStatus(status WorkerStatus, triggerID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentTriggerID = triggerID
	w.lastActivity = time.Now()
}
