package config

import (
	"os"

	"github.com/mazebench/mazebench/pkg/models"
)

// Config is the umbrella configuration object that encapsulates
// all registries, defaults, and configuration state.
// This is the primary object returned by Initialize() and used throughout the application.
type Config struct {
	configDir string // Configuration directory path (for reference)

	// Sweep-level experiment parameter defaults
	Sweep *SweepDefaults

	// SweepSource supplies the effective sweep parameters at admission
	// (static YAML values or a Redis hash, per sweep_store settings)
	SweepSource SweepSource

	// Queue and worker pool configuration
	Queue *QueueConfig

	// API server configuration
	API *APIConfig

	// Data retention policies
	Retention *RetentionConfig

	// Provider registry
	Providers *ProviderRegistry
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	// ListenAddr is the host:port the API server binds to.
	ListenAddr string `yaml:"listen_addr"`

	// APIKeyEnv names the environment variable holding the ingress API
	// key. When the variable is set, write endpoints require the
	// X-API-Key header to match.
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
}

// APIKey resolves the ingress API key from the environment. Empty means
// authentication is disabled.
func (c *APIConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// DefaultAPIConfig returns the built-in API defaults.
func DefaultAPIConfig() *APIConfig {
	return &APIConfig{
		ListenAddr: ":8080",
	}
}

// Stats contains statistics about loaded configuration
type Stats struct {
	Providers int
	Models    int
}

// Stats returns configuration statistics for logging/monitoring
func (c *Config) Stats() Stats {
	s := Stats{}
	if c.Providers != nil {
		s.Providers = c.Providers.Len()
		for _, p := range c.Providers.GetAll() {
			s.Models += len(p.Models)
		}
	}
	return s
}

// ConfigDir returns the configuration directory path
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetProvider retrieves a provider configuration by name.
// This is a convenience method that wraps Providers.Get().
func (c *Config) GetProvider(provider models.Provider) (*ProviderConfig, error) {
	return c.Providers.Get(provider)
}

// ResolveModel returns the provider configuration and effective model
// settings for one provider/model pair.
func (c *Config) ResolveModel(provider models.Provider, model string) (*ProviderConfig, *ModelSettings, error) {
	pc, err := c.Providers.Get(provider)
	if err != nil {
		return nil, nil, err
	}
	settings, err := pc.ResolveModel(model)
	if err != nil {
		return nil, nil, err
	}
	return pc, settings, nil
}
