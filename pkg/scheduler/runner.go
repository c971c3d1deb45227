// Package scheduler drives one experiment from admission to a terminal
// state through alternating Invoke and Check phases, pacing turns to
// the configured per-model rate limit and classifying every outcome
// into the experiment error taxonomy.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/mazebench/mazebench/pkg/agent"
	"github.com/mazebench/mazebench/pkg/models"
)

const finalizeTimeout = 10 * time.Second

// Store is the slice of the data store the runner needs
type Store interface {
	CreateExperiment(ctx context.Context, rec models.AdmissionRecord) (*models.Experiment, error)
	CurrentPosition(ctx context.Context, experimentID int64) (models.Position, error)
	CountMovements(ctx context.Context, experimentID int64) (int, error)
	RecordTurnTokens(ctx context.Context, id int64, turnNumber int, inputTokens, outputTokens int64, costUSD float64) error
	Finalize(ctx context.Context, id int64, status models.ExecutionStatus, goalFound bool, lastErr *models.LastError) error
	Heartbeat(ctx context.Context, id int64) error
}

// TurnRunner runs one turn of model interaction
type TurnRunner interface {
	RunTurn(ctx context.Context, pos models.Position, turnNumber, remainingMoves int) (*agent.TurnResult, error)
}

var _ TurnRunner = (*agent.Invoker)(nil)

// InvokerFactory builds the turn runner once the experiment row exists.
// The dispatcher and invoker both need the created experiment, so
// construction is deferred past the Start phase.
type InvokerFactory func(exp *models.Experiment) TurnRunner

// Config carries the per-run scheduling knobs resolved at admission
type Config struct {
	// RateLimitRPM bounds the turn rate for this (provider, model) pair.
	// Must be positive; the run fails fast with CONFIG_MISSING otherwise.
	RateLimitRPM int

	// HeartbeatInterval is how often the run stamps last_heartbeat_at
	// for orphan detection.
	HeartbeatInterval time.Duration
}

// Runner owns a single experiment for its whole lifetime. The admission
// layer guarantees no other runner is active for the same experiment.
type Runner struct {
	store      Store
	newInvoker InvokerFactory
	cfg        Config
}

// NewRunner creates a runner
func NewRunner(store Store, newInvoker InvokerFactory, cfg Config) *Runner {
	return &Runner{store: store, newInvoker: newInvoker, cfg: cfg}
}

// Run creates the experiment row and loops Invoke then Check until a
// termination predicate fires, finalizing with the matching status and
// last_error. The returned experiment reflects the terminal state.
//
// Run returns an error only when it could not drive the experiment to
// a terminal state: creation failed, the context was cancelled
// mid-run (the row stays RUNNING for recovery), or the finalize write
// itself failed. A run that finalizes the experiment, as FAILED
// included, returns nil so the trigger message is not redelivered for
// a deterministically terminal outcome.
func (r *Runner) Run(ctx context.Context, rec models.AdmissionRecord) (*models.Experiment, error) {
	if r.cfg.RateLimitRPM <= 0 {
		return nil, models.Classifiedf(models.ErrorKindConfigMissing,
			"rate_limit_rpm must be positive for %s/%s, got %d", rec.LLMProvider, rec.ModelName, r.cfg.RateLimitRPM)
	}

	exp, err := r.store.CreateExperiment(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to start experiment: %w", err)
	}
	slog.Info("Experiment started",
		"experiment_id", exp.ID,
		"execution_name", exp.ExecutionName,
		"maze_id", exp.MazeID,
		"model", exp.ModelName,
		"provider", exp.LLMProvider)

	heartbeatCtx, cancelHeartbeat := context.WithCancel(ctx)
	defer cancelHeartbeat()
	go r.runHeartbeat(heartbeatCtx, exp.ID)

	invoker := r.newInvoker(exp)

	// Burst 1 with a full initial bucket: the first Invoke proceeds
	// immediately, every later one waits 60/rpm seconds.
	limiter := rate.NewLimiter(rate.Limit(float64(r.cfg.RateLimitRPM)/60.0), 1)
	deadline := exp.StartedAt.Add(exp.ModelConfig.MaxDuration())
	movements := 0

	for turn := 1; ; turn++ {
		if err := limiter.Wait(ctx); err != nil {
			return exp, fmt.Errorf("experiment %d interrupted before turn %d: %w", exp.ID, turn, err)
		}

		pos, err := r.store.CurrentPosition(ctx, exp.ID)
		if err != nil {
			return exp, r.finalizeFailure(exp, models.NewClassified(models.ErrorKindInternal, err))
		}

		result, err := invoker.RunTurn(ctx, pos, turn, exp.ModelConfig.MaxMoves-movements)
		if err != nil {
			if ctx.Err() != nil {
				// Shutdown mid-turn: leave the row RUNNING for recovery.
				return exp, fmt.Errorf("experiment %d interrupted during turn %d: %w", exp.ID, turn, ctx.Err())
			}
			return exp, r.finalizeFailure(exp, err)
		}

		if err := r.store.RecordTurnTokens(ctx, exp.ID, turn, result.InputTokens, result.OutputTokens, result.CostUSD); err != nil {
			return exp, r.finalizeFailure(exp, models.NewClassified(models.ErrorKindInternal, err))
		}

		movements, err = r.store.CountMovements(ctx, exp.ID)
		if err != nil {
			return exp, r.finalizeFailure(exp, models.NewClassified(models.ErrorKindInternal, err))
		}

		switch {
		case result.GoalReached:
			slog.Info("Goal reached", "experiment_id", exp.ID, "turn", turn, "movements", movements)
			return exp, r.finalize(exp, models.StatusSucceeded, true, nil)

		case movements >= exp.ModelConfig.MaxMoves:
			return exp, r.finalize(exp, models.StatusFailed, false, models.NewLastError(
				models.Classifiedf(models.ErrorKindBudgetMoves,
					"movement budget exhausted: %d of %d moves used", movements, exp.ModelConfig.MaxMoves)))

		case !time.Now().Before(deadline):
			return exp, r.finalize(exp, models.StatusTimedOut, false, models.NewLastError(
				models.Classifiedf(models.ErrorKindBudgetTime,
					"duration budget of %d minutes exhausted", exp.ModelConfig.MaxDurationMinutes)))

		case result.Actions == 0 && !result.Capped:
			return exp, r.finalize(exp, models.StatusFailed, false, models.NewLastError(
				models.Classifiedf(models.ErrorKindAgentStalled,
					"turn %d yielded with zero actions", turn)))
		}

		slog.Debug("Turn complete",
			"experiment_id", exp.ID,
			"turn", turn,
			"actions", result.Actions,
			"movements", movements,
			"capped", result.Capped)
	}
}

// runHeartbeat stamps last_heartbeat_at until the run ends
func (r *Runner) runHeartbeat(ctx context.Context, experimentID int64) {
	ticker := time.NewTicker(r.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.store.Heartbeat(ctx, experimentID); err != nil {
				slog.Warn("Heartbeat update failed", "experiment_id", experimentID, "error", err)
			}
		}
	}
}

// finalizeFailure classifies the terminating cause and finalizes the
// experiment as FAILED
func (r *Runner) finalizeFailure(exp *models.Experiment, cause error) error {
	slog.Error("Experiment failed",
		"experiment_id", exp.ID,
		"error_kind", models.KindOf(cause),
		"error", cause)
	return r.finalize(exp, models.StatusFailed, false, models.NewLastError(cause))
}

// finalize writes the terminal state and mirrors it onto the in-memory
// experiment. The write runs on a fresh context so a cancelled run
// cannot lose its outcome.
func (r *Runner) finalize(exp *models.Experiment, status models.ExecutionStatus, goalFound bool, lastErr *models.LastError) error {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	if err := r.store.Finalize(ctx, exp.ID, status, goalFound, lastErr); err != nil {
		return fmt.Errorf("failed to finalize experiment %d: %w", exp.ID, err)
	}

	now := time.Now().UTC()
	exp.CompletedAt = &now
	exp.ExecutionStatus = status
	exp.GoalFound = &goalFound
	exp.LastError = lastErr

	slog.Info("Experiment finalized",
		"experiment_id", exp.ID,
		"status", status,
		"goal_found", goalFound)
	return nil
}
