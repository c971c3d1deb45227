package config

import "time"

// QueueConfig contains trigger queue and worker pool configuration.
// These values control how trigger events are polled, claimed, and processed.
type QueueConfig struct {
	// WorkerCount is the number of worker goroutines per replica/pod.
	// Each worker independently polls and processes trigger events.
	WorkerCount int `yaml:"worker_count"`

	// MaxConcurrentExperiments is the global limit of experiments running
	// across ALL replicas/pods. Enforced by database COUNT(*) check at claim.
	MaxConcurrentExperiments int `yaml:"max_concurrent_experiments"`

	// PollInterval is the base interval for checking pending triggers.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollIntervalJitter is the random jitter added to PollInterval.
	// Actual interval: PollInterval ± PollIntervalJitter.
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`

	// VisibilityTimeout is how long a claimed trigger may sit in_progress
	// without completion before it is released back to pending. Must exceed
	// the longest expected experiment duration.
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`

	// MaxDeliveryAttempts is how many times a trigger is delivered before
	// it is marked failed permanently.
	MaxDeliveryAttempts int `yaml:"max_delivery_attempts"`

	// HeartbeatInterval is how often a worker refreshes the heartbeat of
	// the experiment it is executing.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// GracefulShutdownTimeout is the max time to wait for active experiments
	// to complete during shutdown.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// OrphanDetectionInterval is how often to scan for orphaned experiments.
	OrphanDetectionInterval time.Duration `yaml:"orphan_detection_interval"`

	// OrphanThreshold is how long an experiment can go without a heartbeat
	// before it is considered orphaned.
	OrphanThreshold time.Duration `yaml:"orphan_threshold"`
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		WorkerCount:              1,
		MaxConcurrentExperiments: 1,
		PollInterval:             1 * time.Second,
		PollIntervalJitter:       500 * time.Millisecond,
		VisibilityTimeout:        90 * time.Minute,
		MaxDeliveryAttempts:      3,
		HeartbeatInterval:        30 * time.Second,
		GracefulShutdownTimeout:  15 * time.Minute,
		OrphanDetectionInterval:  1 * time.Minute,
		OrphanThreshold:          5 * time.Minute,
	}
}
