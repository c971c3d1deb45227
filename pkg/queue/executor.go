package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mazebench/mazebench/pkg/agent"
	"github.com/mazebench/mazebench/pkg/config"
	"github.com/mazebench/mazebench/pkg/llm"
	"github.com/mazebench/mazebench/pkg/maze"
	"github.com/mazebench/mazebench/pkg/models"
	"github.com/mazebench/mazebench/pkg/prompt"
	"github.com/mazebench/mazebench/pkg/scheduler"
	"github.com/mazebench/mazebench/pkg/store"
	"github.com/mazebench/mazebench/pkg/tools"
)

// ExperimentExecutor implements TriggerExecutor: it validates the
// trigger envelope, freezes the experiment configuration, and runs the
// turn loop scheduler to a terminal state.
type ExperimentExecutor struct {
	cfg     *config.Config
	store   *store.Store
	prompts *prompt.Builder
}

// NewExperimentExecutor creates an experiment executor.
func NewExperimentExecutor(cfg *config.Config, st *store.Store) *ExperimentExecutor {
	return &ExperimentExecutor{
		cfg:     cfg,
		store:   st,
		prompts: prompt.NewBuilder(),
	}
}

// admission is the validated, frozen result of admitting one event.
type admission struct {
	record   models.AdmissionRecord
	world    *maze.Maze
	provider *config.ProviderConfig
	settings *config.ModelSettings
}

// Execute admits one trigger event and drives the experiment to a
// terminal state. Errors are returned only when the outcome is not
// terminal (bad envelope, infrastructure failure, shutdown mid-run);
// the worker then releases the trigger for redelivery. An experiment
// finalized as FAILED is a consumed trigger, not an error.
func (e *ExperimentExecutor) Execute(ctx context.Context, trigger *models.TriggerRecord) error {
	event := trigger.Event
	logger := slog.With(
		"trigger_id", trigger.ID,
		"llm_provider", event.LLMProvider,
		"model_name", event.ModelName,
		"maze_id", event.MazeID,
	)
	logger.Info("Admitting trigger event")

	adm, err := e.admit(ctx, event)
	if err != nil {
		logger.Error("Admission failed", "error", err)
		return err
	}

	chat, err := llm.NewChatClient(event.LLMProvider, llm.Config{
		BaseURL:        adm.provider.BaseURL,
		APIKey:         adm.provider.APIKey(),
		RequestTimeout: adm.settings.RequestTimeout,
		MaxTokens:      adm.settings.MaxTokens,
	})
	if err != nil {
		logger.Error("Failed to build chat client", "error", err)
		return err
	}

	rates := agent.CostRates{
		InputPer1K:  adm.settings.CostPer1KInputUSD,
		OutputPer1K: adm.settings.CostPer1KOutputUSD,
	}

	// The dispatcher and invoker need the experiment row, which does not
	// exist until the runner's Start phase creates it.
	newInvoker := func(exp *models.Experiment) scheduler.TurnRunner {
		dispatcher := tools.NewDispatcher(e.store, adm.world, exp)
		return agent.NewInvoker(chat, dispatcher, e.prompts, exp, rates)
	}

	runner := scheduler.NewRunner(e.store, newInvoker, scheduler.Config{
		RateLimitRPM:      adm.settings.RateLimitRPM,
		HeartbeatInterval: e.cfg.Queue.HeartbeatInterval,
	})

	exp, err := runner.Run(ctx, adm.record)
	if err != nil {
		logger.Error("Experiment did not reach a terminal state", "error", err)
		return err
	}

	logger.Info("Experiment finished",
		"experiment_id", exp.ID,
		"execution_name", exp.ExecutionName,
		"execution_status", exp.ExecutionStatus,
		"goal_found", exp.GoalFound != nil && *exp.GoalFound,
		"total_cost_usd", exp.TotalCostUSD)
	return nil
}

// admit validates the envelope and captures the immutable experiment
// configuration: sweep-level parameters merged with the per-event
// overrides, stamped with fresh execution identifiers.
func (e *ExperimentExecutor) admit(ctx context.Context, event models.TriggerEvent) (*admission, error) {
	if !event.LLMProvider.IsValid() {
		return nil, models.Classifiedf(models.ErrorKindConfigMissing,
			"unknown llm_provider %q", string(event.LLMProvider))
	}
	if event.ModelName == "" {
		return nil, models.Classifiedf(models.ErrorKindConfigMissing, "model_name is required")
	}
	if _, err := prompt.Resolve(event.PromptVersion); err != nil {
		return nil, err
	}

	// local-chat events must carry their inference config in the event
	// itself. Falling back to a shared mutable store races when several
	// admissions arrive quickly; the event is the only trusted source.
	if event.LLMProvider == models.ProviderLocalChat && event.Config.IsEmpty() {
		return nil, models.Classifiedf(models.ErrorKindConfigMissing,
			"local-chat events require a non-empty config object")
	}

	world, err := e.store.GetMaze(ctx, event.MazeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.Classifiedf(models.ErrorKindConfigMissing,
				"maze %d not found", event.MazeID)
		}
		return nil, fmt.Errorf("loading maze %d: %w", event.MazeID, err)
	}

	providerCfg, settings, err := e.cfg.ResolveModel(event.LLMProvider, event.ModelName)
	if err != nil {
		return nil, models.NewClassified(models.ErrorKindConfigMissing, err)
	}

	// Sweep parameters are read exactly once, here. The merged config is
	// frozen into the experiment row and never re-read mid-run.
	sweep, err := e.cfg.SweepSource.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading sweep parameters: %w", err)
	}
	modelCfg := sweep.BaseModelConfig()
	event.Config.ApplyTo(&modelCfg)

	messageID := event.MessageID
	if messageID == "" {
		messageID = uuid.NewString()
	}

	rec := models.AdmissionRecord{
		MazeID:          event.MazeID,
		ModelName:       event.ModelName,
		PromptVersion:   event.PromptVersion,
		LLMProvider:     event.LLMProvider,
		GoalDescription: event.GoalDescription,
		ModelConfig:     modelCfg,
		ExecutionID:     uuid.NewString(),
		ExecutionName:   executionName(event),
		MessageID:       messageID,
	}

	return &admission{
		record:   rec,
		world:    world,
		provider: providerCfg,
		settings: settings,
	}, nil
}

// executionName builds the human-readable run name used to group and
// filter the experiments of one sweep.
func executionName(event models.TriggerEvent) string {
	return fmt.Sprintf("%s-maze%d-%s",
		event.ModelName, event.MazeID, time.Now().UTC().Format("20060102-150405"))
}
