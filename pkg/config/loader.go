package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/mazebench/mazebench/pkg/models"
)

// MazebenchYAMLConfig represents the complete mazebench.yaml file structure
type MazebenchYAMLConfig struct {
	API           *APIConfig            `yaml:"api"`
	Queue         *QueueConfig          `yaml:"queue"`
	SweepDefaults *SweepDefaults        `yaml:"sweep_defaults"`
	SweepStore    *SweepStoreYAMLConfig `yaml:"sweep_store"`
	Retention     *RetentionConfig      `yaml:"retention"`
}

// SweepStoreYAMLConfig selects where admission reads sweep parameters from.
type SweepStoreYAMLConfig struct {
	// Backend is "static" (YAML sweep_defaults only) or "redis".
	Backend string `yaml:"backend"`

	// Addr is the Redis host:port, required for the redis backend.
	Addr string `yaml:"addr,omitempty"`

	// PasswordEnv names the environment variable holding the Redis password.
	PasswordEnv string `yaml:"password_env,omitempty"`

	// Key is the Redis hash key holding the sweep parameters.
	Key string `yaml:"key,omitempty"`
}

// ProvidersYAMLConfig represents the complete providers.yaml file structure
type ProvidersYAMLConfig struct {
	Providers map[string]*ProviderConfig `yaml:"providers"`
}

// DefaultSweepHashKey is the Redis hash consulted by the redis sweep backend.
const DefaultSweepHashKey = "mazebench:sweep"

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load YAML files from configDir
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge user-defined values over built-in defaults
//  5. Build the provider registry and sweep source
//  6. Validate all configuration
//  7. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"providers", stats.Providers,
		"models", stats.Models)

	return cfg, nil
}

// load is the internal loader (not exported)
func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{
		configDir: configDir,
	}

	// 1. Load mazebench.yaml (api, queue, sweep defaults, sweep store)
	mainConfig, err := loader.loadMazebenchYAML()
	if err != nil {
		return nil, NewLoadError("mazebench.yaml", err)
	}

	// 2. Load providers.yaml
	providers, err := loader.loadProvidersYAML()
	if err != nil {
		return nil, NewLoadError("providers.yaml", err)
	}

	// 3. Resolve queue config (merge user YAML over built-in defaults)
	queueConfig := DefaultQueueConfig()
	if mainConfig.Queue != nil {
		if err := mergo.Merge(queueConfig, mainConfig.Queue, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge queue config: %w", err)
		}
	}

	// 4. Resolve sweep defaults the same way
	sweepDefaults := DefaultSweepDefaults()
	if mainConfig.SweepDefaults != nil {
		if err := mergo.Merge(sweepDefaults, mainConfig.SweepDefaults, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge sweep defaults: %w", err)
		}
	}

	// 5. Resolve API config
	apiConfig := DefaultAPIConfig()
	if mainConfig.API != nil {
		if err := mergo.Merge(apiConfig, mainConfig.API, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge api config: %w", err)
		}
	}

	// 5a. Resolve retention config
	retentionConfig := DefaultRetentionConfig()
	if mainConfig.Retention != nil {
		if err := mergo.Merge(retentionConfig, mainConfig.Retention, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge retention config: %w", err)
		}
	}

	// 6. Apply provider-level fallbacks before validation
	providersTyped := make(map[models.Provider]*ProviderConfig, len(providers))
	for name, pc := range providers {
		applyProviderDefaults(pc)
		providersTyped[models.Provider(name)] = pc
	}

	// 7. Build sweep source
	sweepSource, err := buildSweepSource(mainConfig.SweepStore, sweepDefaults)
	if err != nil {
		return nil, err
	}

	return &Config{
		configDir:   configDir,
		Sweep:       sweepDefaults,
		SweepSource: sweepSource,
		Queue:       queueConfig,
		API:         apiConfig,
		Retention:   retentionConfig,
		Providers:   NewProviderRegistry(providersTyped),
	}, nil
}

// validate performs comprehensive validation on loaded configuration
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

// applyProviderDefaults fills provider-wide fallbacks so every resolved
// model carries a usable timeout.
func applyProviderDefaults(pc *ProviderConfig) {
	if pc.Defaults == nil {
		pc.Defaults = &ModelSettings{}
	}
	if pc.Defaults.RequestTimeout == 0 {
		pc.Defaults.RequestTimeout = 60 * time.Second
	}
	if pc.Defaults.MaxTokens == 0 {
		pc.Defaults.MaxTokens = 1024
	}
}

// buildSweepSource constructs the sweep parameter source selected by the
// sweep_store section. Absent section or "static" backend serves the
// YAML values directly.
func buildSweepSource(store *SweepStoreYAMLConfig, defaults *SweepDefaults) (SweepSource, error) {
	if store == nil || store.Backend == "" || store.Backend == "static" {
		return NewStaticSweepSource(defaults), nil
	}
	if store.Backend != "redis" {
		return nil, NewValidationError("sweep_store", store.Backend, "backend",
			fmt.Errorf("%w: must be static or redis", ErrInvalidValue))
	}
	if store.Addr == "" {
		return nil, NewValidationError("sweep_store", "redis", "addr", ErrMissingRequiredField)
	}

	key := store.Key
	if key == "" {
		key = DefaultSweepHashKey
	}
	var password string
	if store.PasswordEnv != "" {
		password = os.Getenv(store.PasswordEnv)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     store.Addr,
		Password: password,
	})
	slog.Info("Sweep parameters served from redis", "addr", store.Addr, "key", key)
	return NewRedisSweepSource(client, key, defaults), nil
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand environment variables using {{.VAR}} template syntax
	data = ExpandEnv(data)

	// Parse YAML
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadMazebenchYAML() (*MazebenchYAMLConfig, error) {
	var config MazebenchYAMLConfig

	if err := l.loadYAML("mazebench.yaml", &config); err != nil {
		return nil, err
	}

	return &config, nil
}

func (l *configLoader) loadProvidersYAML() (map[string]*ProviderConfig, error) {
	var config ProvidersYAMLConfig

	// Initialize map to avoid nil map
	config.Providers = make(map[string]*ProviderConfig)

	if err := l.loadYAML("providers.yaml", &config); err != nil {
		return nil, err
	}

	return config.Providers, nil
}
