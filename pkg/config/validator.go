package config

import (
	"fmt"

	"github.com/mazebench/mazebench/pkg/models"
)

// ConfigValidator validates configuration comprehensively with clear error messages
type ConfigValidator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration
func NewValidator(cfg *Config) *ConfigValidator {
	return &ConfigValidator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast - stops at first error)
func (v *ConfigValidator) ValidateAll() error {
	if err := v.validateQueue(); err != nil {
		return fmt.Errorf("queue validation failed: %w", err)
	}

	if err := v.validateSweep(); err != nil {
		return fmt.Errorf("sweep validation failed: %w", err)
	}

	if err := v.validateAPI(); err != nil {
		return fmt.Errorf("api validation failed: %w", err)
	}

	if err := v.validateRetention(); err != nil {
		return fmt.Errorf("retention validation failed: %w", err)
	}

	if err := v.validateProviders(); err != nil {
		return fmt.Errorf("provider validation failed: %w", err)
	}

	return nil
}

func (v *ConfigValidator) validateQueue() error {
	q := v.cfg.Queue

	if q.WorkerCount < 1 {
		return NewValidationError("queue", "queue", "worker_count", fmt.Errorf("must be at least 1"))
	}
	if q.MaxConcurrentExperiments < 1 {
		return NewValidationError("queue", "queue", "max_concurrent_experiments", fmt.Errorf("must be at least 1"))
	}
	if q.PollInterval <= 0 {
		return NewValidationError("queue", "queue", "poll_interval", fmt.Errorf("must be positive"))
	}
	if q.PollIntervalJitter < 0 {
		return NewValidationError("queue", "queue", "poll_interval_jitter", fmt.Errorf("must not be negative"))
	}
	if q.VisibilityTimeout <= 0 {
		return NewValidationError("queue", "queue", "visibility_timeout", fmt.Errorf("must be positive"))
	}
	if q.MaxDeliveryAttempts < 1 {
		return NewValidationError("queue", "queue", "max_delivery_attempts", fmt.Errorf("must be at least 1"))
	}
	if q.HeartbeatInterval <= 0 {
		return NewValidationError("queue", "queue", "heartbeat_interval", fmt.Errorf("must be positive"))
	}
	if q.OrphanThreshold <= q.HeartbeatInterval {
		return NewValidationError("queue", "queue", "orphan_threshold",
			fmt.Errorf("must exceed heartbeat_interval (%s)", q.HeartbeatInterval))
	}

	return nil
}

func (v *ConfigValidator) validateSweep() error {
	s := v.cfg.Sweep

	if s.RecallInterval < 1 {
		return NewValidationError("sweep", "sweep_defaults", "recall_interval", fmt.Errorf("must be at least 1"))
	}
	if s.MaxRecallActions < 1 {
		return NewValidationError("sweep", "sweep_defaults", "max_recall_actions", fmt.Errorf("must be at least 1"))
	}
	if s.MaxMoves < 1 {
		return NewValidationError("sweep", "sweep_defaults", "max_moves", fmt.Errorf("must be at least 1"))
	}
	if s.MaxDurationMinutes < 1 {
		return NewValidationError("sweep", "sweep_defaults", "max_duration_minutes", fmt.Errorf("must be at least 1"))
	}
	if s.MaxActionsPerTurn < 1 {
		return NewValidationError("sweep", "sweep_defaults", "max_actions_per_turn", fmt.Errorf("must be at least 1"))
	}
	if s.VisionRange < 1 {
		return NewValidationError("sweep", "sweep_defaults", "vision_range", fmt.Errorf("must be at least 1"))
	}

	return nil
}

func (v *ConfigValidator) validateAPI() error {
	if v.cfg.API.ListenAddr == "" {
		return NewValidationError("api", "api", "listen_addr", ErrMissingRequiredField)
	}
	return nil
}

func (v *ConfigValidator) validateRetention() error {
	r := v.cfg.Retention

	if r.ExperimentRetentionDays < 0 {
		return NewValidationError("retention", "retention", "experiment_retention_days", fmt.Errorf("must not be negative"))
	}
	if r.TriggerTTL < 0 {
		return NewValidationError("retention", "retention", "trigger_ttl", fmt.Errorf("must not be negative"))
	}
	if r.Enabled() && r.CleanupInterval <= 0 {
		return NewValidationError("retention", "retention", "cleanup_interval", fmt.Errorf("must be positive when retention is enabled"))
	}

	return nil
}

func (v *ConfigValidator) validateProviders() error {
	for name, provider := range v.cfg.Providers.GetAll() {
		if !name.IsValid() {
			return NewValidationError("provider", string(name), "",
				fmt.Errorf("unknown provider, expected %s or %s", models.ProviderLocalChat, models.ProviderManagedAgent))
		}

		// local-chat talks to a self-hosted endpoint, so the URL is required
		if name == models.ProviderLocalChat && provider.BaseURL == "" {
			return NewValidationError("provider", string(name), "base_url", ErrMissingRequiredField)
		}

		// Every configured model must resolve to a positive pacing budget,
		// otherwise admission would reject its experiments at runtime.
		for model := range provider.Models {
			settings, err := provider.ResolveModel(model)
			if err != nil {
				return NewValidationError("provider", string(name), model, err)
			}
			if settings.RateLimitRPM <= 0 {
				return NewValidationError("provider", string(name), model,
					fmt.Errorf("rate_limit_rpm must be positive, got %d", settings.RateLimitRPM))
			}
			if settings.RequestTimeout <= 0 {
				return NewValidationError("provider", string(name), model,
					fmt.Errorf("request_timeout must be positive, got %s", settings.RequestTimeout))
			}
			if settings.CostPer1KInputUSD < 0 || settings.CostPer1KOutputUSD < 0 {
				return NewValidationError("provider", string(name), model,
					fmt.Errorf("token costs must not be negative"))
			}
		}
	}

	return nil
}
