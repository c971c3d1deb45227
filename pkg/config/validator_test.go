package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mazebench/mazebench/pkg/models"
)

// validConfig builds a configuration that passes validation, for tests to
// break one field at a time.
func validConfig() *Config {
	providers := map[models.Provider]*ProviderConfig{
		models.ProviderLocalChat: {
			BaseURL: "http://gpu-box:11434",
			Defaults: &ModelSettings{
				RateLimitRPM:   30,
				RequestTimeout: 30 * time.Second,
			},
			Models: map[string]*ModelSettings{
				"qwen3:4b": {},
			},
		},
	}
	return &Config{
		Sweep:     DefaultSweepDefaults(),
		Queue:     DefaultQueueConfig(),
		API:       DefaultAPIConfig(),
		Retention: DefaultRetentionConfig(),
		Providers: NewProviderRegistry(providers),
	}
}

func TestValidateAllPasses(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, NewValidator(cfg).ValidateAll())
}

func TestValidateQueue(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*QueueConfig)
		contains string
	}{
		{
			name:     "zero workers",
			mutate:   func(q *QueueConfig) { q.WorkerCount = 0 },
			contains: "worker_count",
		},
		{
			name:     "zero concurrency",
			mutate:   func(q *QueueConfig) { q.MaxConcurrentExperiments = 0 },
			contains: "max_concurrent_experiments",
		},
		{
			name:     "negative poll interval",
			mutate:   func(q *QueueConfig) { q.PollInterval = -time.Second },
			contains: "poll_interval",
		},
		{
			name:     "zero visibility timeout",
			mutate:   func(q *QueueConfig) { q.VisibilityTimeout = 0 },
			contains: "visibility_timeout",
		},
		{
			name:     "zero delivery attempts",
			mutate:   func(q *QueueConfig) { q.MaxDeliveryAttempts = 0 },
			contains: "max_delivery_attempts",
		},
		{
			name:     "orphan threshold below heartbeat",
			mutate:   func(q *QueueConfig) { q.OrphanThreshold = q.HeartbeatInterval },
			contains: "orphan_threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg.Queue)

			err := NewValidator(cfg).ValidateAll()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestValidateSweep(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*SweepDefaults)
		contains string
	}{
		{
			name:     "zero recall interval",
			mutate:   func(s *SweepDefaults) { s.RecallInterval = 0 },
			contains: "recall_interval",
		},
		{
			name:     "zero recall cap",
			mutate:   func(s *SweepDefaults) { s.MaxRecallActions = 0 },
			contains: "max_recall_actions",
		},
		{
			name:     "zero move budget",
			mutate:   func(s *SweepDefaults) { s.MaxMoves = 0 },
			contains: "max_moves",
		},
		{
			name:     "zero duration budget",
			mutate:   func(s *SweepDefaults) { s.MaxDurationMinutes = 0 },
			contains: "max_duration_minutes",
		},
		{
			name:     "zero actions per turn",
			mutate:   func(s *SweepDefaults) { s.MaxActionsPerTurn = 0 },
			contains: "max_actions_per_turn",
		},
		{
			name:     "zero vision range",
			mutate:   func(s *SweepDefaults) { s.VisionRange = 0 },
			contains: "vision_range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg.Sweep)

			err := NewValidator(cfg).ValidateAll()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestValidateAPIListenAddr(t *testing.T) {
	cfg := validConfig()
	cfg.API.ListenAddr = ""

	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen_addr")
}

func TestValidateRetention(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		cfg := validConfig()
		assert.False(t, cfg.Retention.Enabled())
		require.NoError(t, NewValidator(cfg).ValidateAll())
	})

	t.Run("negative retention days", func(t *testing.T) {
		cfg := validConfig()
		cfg.Retention.ExperimentRetentionDays = -1

		err := NewValidator(cfg).ValidateAll()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "experiment_retention_days")
	})

	t.Run("enabled without interval", func(t *testing.T) {
		cfg := validConfig()
		cfg.Retention.ExperimentRetentionDays = 90
		cfg.Retention.CleanupInterval = 0

		err := NewValidator(cfg).ValidateAll()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cleanup_interval")
	})
}

func TestValidateProviders(t *testing.T) {
	t.Run("unknown provider name", func(t *testing.T) {
		cfg := validConfig()
		cfg.Providers = NewProviderRegistry(map[models.Provider]*ProviderConfig{
			"openai": {BaseURL: "http://x"},
		})

		err := NewValidator(cfg).ValidateAll()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown provider")
	})

	t.Run("local-chat without base_url", func(t *testing.T) {
		cfg := validConfig()
		cfg.Providers = NewProviderRegistry(map[models.Provider]*ProviderConfig{
			models.ProviderLocalChat: {
				Defaults: &ModelSettings{RateLimitRPM: 30, RequestTimeout: time.Second},
			},
		})

		err := NewValidator(cfg).ValidateAll()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "base_url")
	})

	t.Run("model without pacing budget", func(t *testing.T) {
		cfg := validConfig()
		cfg.Providers = NewProviderRegistry(map[models.Provider]*ProviderConfig{
			models.ProviderManagedAgent: {
				Defaults: &ModelSettings{RequestTimeout: time.Second},
				Models:   map[string]*ModelSettings{"claude-sonnet-4-5": {}},
			},
		})

		err := NewValidator(cfg).ValidateAll()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rate_limit_rpm")
	})

	t.Run("negative token cost", func(t *testing.T) {
		cfg := validConfig()
		cfg.Providers = NewProviderRegistry(map[models.Provider]*ProviderConfig{
			models.ProviderManagedAgent: {
				Defaults: &ModelSettings{RateLimitRPM: 10, RequestTimeout: time.Second},
				Models: map[string]*ModelSettings{
					"claude-sonnet-4-5": {CostPer1KInputUSD: -1},
				},
			},
		})

		err := NewValidator(cfg).ValidateAll()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "costs")
	})
}
