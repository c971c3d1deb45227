package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mazebench/mazebench/pkg/config"
	"github.com/mazebench/mazebench/pkg/store"
)

// WorkerPool manages a pool of queue workers plus the background
// recovery loop (orphaned experiments and stale triggers).
type WorkerPool struct {
	podID    string
	store    *store.Store
	config   *config.QueueConfig
	executor TriggerExecutor
	workers  []*Worker
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool

	// Orphan detection state
	orphans orphanState
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(podID string, st *store.Store, cfg *config.QueueConfig, executor TriggerExecutor) *WorkerPool {
	return &WorkerPool{
		podID:    podID,
		store:    st,
		config:   cfg,
		executor: executor,
		workers:  make([]*Worker, 0, cfg.WorkerCount),
		stopCh:   make(chan struct{}),
	}
}

// Start spawns worker goroutines and the recovery background task.
// It is safe to call multiple times; subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) error {
	if p.started {
		slog.Warn("Worker pool already started, ignoring duplicate Start call", "pod_id", p.podID)
		return nil
	}
	p.started = true

	slog.Info("Starting worker pool",
		"pod_id", p.podID,
		"worker_count", p.config.WorkerCount,
		"max_concurrent_experiments", p.config.MaxConcurrentExperiments)

	for i := 0; i < p.config.WorkerCount; i++ {
		workerID := fmt.Sprintf("%s-worker-%d", p.podID, i)
		worker := NewWorker(workerID, p.podID, p.store, p.config, p.executor)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}

	// Start orphan and stale-trigger recovery
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runRecovery(ctx)
	}()

	slog.Info("Worker pool started")
	return nil
}

// Stop signals all workers to stop and waits for them to finish.
// Workers finish their current triggers before exiting (graceful shutdown).
func (p *WorkerPool) Stop() {
	slog.Info("Stopping worker pool gracefully")

	active := p.activeTriggerIDs()
	if len(active) > 0 {
		slog.Info("Waiting for active triggers to complete",
			"count", len(active),
			"trigger_ids", active)
	}

	// Signal all workers to stop (they finish current triggers)
	for _, worker := range p.workers {
		worker.Stop()
	}

	// Signal the recovery loop to stop
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()

	slog.Info("Worker pool stopped gracefully")
}

// Health returns the current health status of the pool.
func (p *WorkerPool) Health() *PoolHealth {
	ctx := context.Background()

	queueDepth, errQ := p.store.QueueDepth(ctx)
	if errQ != nil {
		slog.Error("Failed to query queue depth for health check",
			"pod_id", p.podID,
			"error", errQ)
	}

	activeExperiments, errA := p.store.CountRunningExperiments(ctx)
	if errA != nil {
		slog.Error("Failed to query running experiments for health check",
			"pod_id", p.podID,
			"error", errA)
	}

	workerStats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, worker := range p.workers {
		stats := worker.Health()
		workerStats[i] = stats
		if stats.Status == string(WorkerStatusWorking) {
			activeWorkers++
		}
	}

	// DB errors affect health status - if we can't reach the DB, we're not healthy
	dbHealthy := errQ == nil && errA == nil
	isHealthy := len(p.workers) > 0 && activeExperiments <= p.config.MaxConcurrentExperiments && dbHealthy

	p.orphans.mu.Lock()
	lastOrphanScan := p.orphans.lastOrphanScan
	orphansRecovered := p.orphans.orphansRecovered
	p.orphans.mu.Unlock()

	var dbError string
	if !dbHealthy {
		if errQ != nil {
			dbError = fmt.Sprintf("queue depth query failed: %v", errQ)
		} else if errA != nil {
			dbError = fmt.Sprintf("running experiments query failed: %v", errA)
		}
	}

	return &PoolHealth{
		IsHealthy:         isHealthy,
		DBReachable:       dbHealthy,
		DBError:           dbError,
		PodID:             p.podID,
		ActiveWorkers:     activeWorkers,
		TotalWorkers:      len(p.workers),
		ActiveExperiments: activeExperiments,
		MaxConcurrent:     p.config.MaxConcurrentExperiments,
		QueueDepth:        queueDepth,
		WorkerStats:       workerStats,
		LastOrphanScan:    lastOrphanScan,
		OrphansRecovered:  orphansRecovered,
	}
}

// activeTriggerIDs returns the ids of triggers currently being processed
// by this pool's workers (for logging).
func (p *WorkerPool) activeTriggerIDs() []int64 {
	ids := make([]int64, 0, len(p.workers))
	for _, worker := range p.workers {
		if h := worker.Health(); h.Status == string(WorkerStatusWorking) && h.CurrentTriggerID != 0 {
			ids = append(ids, h.CurrentTriggerID)
		}
	}
	return ids
}
