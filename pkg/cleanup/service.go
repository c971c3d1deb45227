// Package cleanup provides data retention for finished experiments and
// processed trigger rows.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/mazebench/mazebench/pkg/config"
	"github.com/mazebench/mazebench/pkg/store"
)

// Service periodically enforces retention policies:
//   - Deletes terminal experiments past the retention window (their
//     action rows cascade)
//   - Deletes completed and failed trigger rows past their TTL
//
// All operations are idempotent and safe to run from multiple pods.
type Service struct {
	config *config.RetentionConfig
	store  *store.Store

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg *config.RetentionConfig, st *store.Store) *Service {
	return &Service{
		config: cfg,
		store:  st,
	}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"experiment_retention_days", s.config.ExperimentRetentionDays,
		"trigger_ttl", s.config.TriggerTTL,
		"interval", s.config.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.deleteOldExperiments(ctx)
	s.deleteOldTriggers(ctx)
}

func (s *Service) deleteOldExperiments(ctx context.Context) {
	if s.config.ExperimentRetentionDays <= 0 {
		return
	}
	retention := time.Duration(s.config.ExperimentRetentionDays) * 24 * time.Hour
	count, err := s.store.DeleteOldExperiments(ctx, retention)
	if err != nil {
		slog.Error("Retention: experiment cleanup failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: deleted old experiments", "count", count)
	}
}

func (s *Service) deleteOldTriggers(ctx context.Context) {
	if s.config.TriggerTTL <= 0 {
		return
	}
	count, err := s.store.DeleteOldTriggers(ctx, s.config.TriggerTTL)
	if err != nil {
		slog.Error("Retention: trigger cleanup failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: deleted old triggers", "count", count)
	}
}
