package config

import "github.com/mazebench/mazebench/pkg/models"

// SweepDefaults are the sweep-level experiment parameters shared by every
// run in a sweep. They are read once at admission and frozen into the
// experiment's model_config together with the per-event overrides.
type SweepDefaults struct {
	// RecallInterval is the number of movement actions required between
	// successful recalls.
	RecallInterval int `yaml:"recall_interval"`

	// MaxRecallActions caps how many remembered tiles a recall returns.
	MaxRecallActions int `yaml:"max_recall_actions"`

	// MaxMoves is the movement budget for one experiment.
	MaxMoves int `yaml:"max_moves"`

	// MaxDurationMinutes is the wall-clock budget for one experiment.
	MaxDurationMinutes int `yaml:"max_duration_minutes"`

	// MaxActionsPerTurn caps tool calls honored from a single model turn.
	MaxActionsPerTurn int `yaml:"max_actions_per_turn"`

	// VisionRange is the straight-line observation distance in tiles.
	VisionRange int `yaml:"vision_range"`
}

// DefaultSweepDefaults returns the built-in sweep parameters.
func DefaultSweepDefaults() *SweepDefaults {
	return &SweepDefaults{
		RecallInterval:     3,
		MaxRecallActions:   50,
		MaxMoves:           100,
		MaxDurationMinutes: 60,
		MaxActionsPerTurn:  5,
		VisionRange:        2,
	}
}

// BaseModelConfig converts the sweep defaults into the base model_config
// that per-event overrides are applied on top of.
func (d *SweepDefaults) BaseModelConfig() models.ModelConfig {
	return models.ModelConfig{
		RecallInterval:     d.RecallInterval,
		MaxRecallActions:   d.MaxRecallActions,
		MaxMoves:           d.MaxMoves,
		MaxDurationMinutes: d.MaxDurationMinutes,
		MaxActionsPerTurn:  d.MaxActionsPerTurn,
		VisionRange:        d.VisionRange,
	}
}
