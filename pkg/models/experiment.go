package models

import "time"

// ModelConfig is the immutable per-experiment configuration captured at
// admission: inference knobs from the trigger event merged over the
// sweep-level defaults. It is persisted as a JSON column and never
// mutated afterwards.
type ModelConfig struct {
	NumCtx             int     `json:"num_ctx,omitempty" yaml:"num_ctx"`
	Temperature        float64 `json:"temperature,omitempty" yaml:"temperature"`
	RepeatPenalty      float64 `json:"repeat_penalty,omitempty" yaml:"repeat_penalty"`
	NumPredict         int     `json:"num_predict,omitempty" yaml:"num_predict"`
	RecallInterval     int     `json:"recall_interval" yaml:"recall_interval"`
	MaxRecallActions   int     `json:"max_recall_actions" yaml:"max_recall_actions"`
	MaxMoves           int     `json:"max_moves" yaml:"max_moves"`
	MaxDurationMinutes int     `json:"max_duration_minutes" yaml:"max_duration_minutes"`
	MaxActionsPerTurn  int     `json:"max_actions_per_turn" yaml:"max_actions_per_turn"`
	VisionRange        int     `json:"vision_range" yaml:"vision_range"`
}

// MaxDuration returns the wall-clock budget as a duration
func (c ModelConfig) MaxDuration() time.Duration {
	return time.Duration(c.MaxDurationMinutes) * time.Minute
}

// Experiment is one maze run by one model under one frozen config
type Experiment struct {
	ID                int64           `json:"id"`
	MazeID            int64           `json:"maze_id"`
	ModelName         string          `json:"model_name"`
	PromptVersion     string          `json:"prompt_version"`
	LLMProvider       Provider        `json:"llm_provider"`
	StartX            int             `json:"start_x"`
	StartY            int             `json:"start_y"`
	GoalDescription   string          `json:"goal_description,omitempty"`
	ModelConfig       ModelConfig     `json:"model_config"`
	StartedAt         time.Time       `json:"started_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	GoalFound         *bool           `json:"goal_found,omitempty"`
	ExecutionStatus   ExecutionStatus `json:"execution_status"`
	LastError         *LastError      `json:"last_error,omitempty"`
	ExecutionID       string          `json:"execution_id"`
	ExecutionName     string          `json:"execution_name"`
	MessageID         string          `json:"message_id"`
	TotalInputTokens  int64           `json:"total_input_tokens"`
	TotalOutputTokens int64           `json:"total_output_tokens"`
	TotalCostUSD      float64         `json:"total_cost_usd"`
	LastHeartbeatAt   *time.Time      `json:"last_heartbeat_at,omitempty"`
}

// ExperimentFilters contains filtering options for listing experiments
type ExperimentFilters struct {
	Status        ExecutionStatus `json:"status,omitempty"`
	MazeID        int64           `json:"maze_id,omitempty"`
	ModelName     string          `json:"model_name,omitempty"`
	ExecutionName string          `json:"execution_name,omitempty"`
	Limit         int             `json:"limit,omitempty"`
	Offset        int             `json:"offset,omitempty"`
}

// ExperimentListResponse contains a paginated experiment list
type ExperimentListResponse struct {
	Experiments []*Experiment `json:"experiments"`
	TotalCount  int           `json:"total_count"`
	Limit       int           `json:"limit"`
	Offset      int           `json:"offset"`
}

// Position is a derived experiment position
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}
