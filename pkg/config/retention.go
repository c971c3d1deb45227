package config

import "time"

// RetentionConfig controls the background retention sweeper. A policy
// with a zero value is disabled; the sweeper only runs when at least
// one policy is active.
type RetentionConfig struct {
	// ExperimentRetentionDays deletes terminal experiments (and their
	// action rows, via cascade) completed more than this many days ago.
	// Zero disables experiment retention.
	ExperimentRetentionDays int `yaml:"experiment_retention_days"`

	// TriggerTTL deletes completed and failed trigger rows older than
	// this. Zero disables trigger retention.
	TriggerTTL time.Duration `yaml:"trigger_ttl"`

	// CleanupInterval is how often the sweeper runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// Enabled reports whether any retention policy is active.
func (c *RetentionConfig) Enabled() bool {
	return c.ExperimentRetentionDays > 0 || c.TriggerTTL > 0
}

// DefaultRetentionConfig returns the built-in retention defaults: all
// policies disabled, so nothing is deleted unless configured.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		CleanupInterval: 12 * time.Hour,
	}
}
