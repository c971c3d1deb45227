package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"dario.cat/mergo"

	"github.com/mazebench/mazebench/pkg/models"
)

// ModelSettings are the per-model invocation settings. Provider-level
// defaults fill any field a model entry leaves zero.
type ModelSettings struct {
	// RateLimitRPM is the requests-per-minute pacing budget. Required
	// (positive) for every model an experiment runs against.
	RateLimitRPM int `yaml:"rate_limit_rpm"`

	// RequestTimeout bounds a single chat invocation.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxTokens caps the completion length for managed backends.
	MaxTokens int `yaml:"max_tokens"`

	// CostPer1KInputUSD and CostPer1KOutputUSD price reported token usage.
	CostPer1KInputUSD  float64 `yaml:"cost_per_1k_input_usd"`
	CostPer1KOutputUSD float64 `yaml:"cost_per_1k_output_usd"`
}

// ProviderConfig defines one chat backend family.
type ProviderConfig struct {
	// BaseURL is the endpoint root. Required for local-chat.
	BaseURL string `yaml:"base_url,omitempty"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env,omitempty"`

	// Defaults are settings shared by every model under this provider.
	Defaults *ModelSettings `yaml:"defaults,omitempty"`

	// Models maps model name to its settings overrides.
	Models map[string]*ModelSettings `yaml:"models,omitempty"`
}

// APIKey resolves the provider API key from the environment. Empty when
// APIKeyEnv is unset or the variable is empty.
func (c *ProviderConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// ResolveModel returns the effective settings for a model: the model
// entry with zero fields filled from the provider defaults.
func (c *ProviderConfig) ResolveModel(model string) (*ModelSettings, error) {
	settings, exists := c.Models[model]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, model)
	}

	resolved := *settings
	if c.Defaults != nil {
		if err := mergo.Merge(&resolved, *c.Defaults); err != nil {
			return nil, fmt.Errorf("failed to merge model settings for %s: %w", model, err)
		}
	}
	return &resolved, nil
}

// ProviderRegistry stores provider configurations in memory with
// thread-safe access
type ProviderRegistry struct {
	providers map[models.Provider]*ProviderConfig
	mu        sync.RWMutex
}

// NewProviderRegistry creates a new provider registry
func NewProviderRegistry(providers map[models.Provider]*ProviderConfig) *ProviderRegistry {
	// Defensive copy to prevent external mutation
	copied := make(map[models.Provider]*ProviderConfig, len(providers))
	for k, v := range providers {
		copied[k] = v
	}
	return &ProviderRegistry{
		providers: copied,
	}
}

// Get retrieves a provider configuration by name (thread-safe)
func (r *ProviderRegistry) Get(provider models.Provider) (*ProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, exists := r.providers[provider]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, provider)
	}
	return cfg, nil
}

// GetAll returns all provider configurations (thread-safe, returns copy)
func (r *ProviderRegistry) GetAll() map[models.Provider]*ProviderConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[models.Provider]*ProviderConfig, len(r.providers))
	for k, v := range r.providers {
		result[k] = v
	}
	return result
}

// Has checks if a provider exists in the registry (thread-safe)
func (r *ProviderRegistry) Has(provider models.Provider) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.providers[provider]
	return exists
}

// Len returns the number of providers in the registry (thread-safe)
func (r *ProviderRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}
