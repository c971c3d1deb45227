package models

import "time"

// EventConfig carries the per-experiment inference knobs from the
// trigger envelope. Pointer fields distinguish absent from explicit
// zero so an event can legitimately request temperature 0.
type EventConfig struct {
	NumCtx            *int     `json:"num_ctx,omitempty"`
	Temperature       *float64 `json:"temperature,omitempty"`
	RepeatPenalty     *float64 `json:"repeat_penalty,omitempty"`
	NumPredict        *int     `json:"num_predict,omitempty"`
	MaxActionsPerTurn *int     `json:"max_actions_per_turn,omitempty"`
}

// IsEmpty reports whether no field is set
func (c *EventConfig) IsEmpty() bool {
	if c == nil {
		return true
	}
	return c.NumCtx == nil && c.Temperature == nil && c.RepeatPenalty == nil &&
		c.NumPredict == nil && c.MaxActionsPerTurn == nil
}

// ApplyTo overlays the set fields onto a ModelConfig
func (c *EventConfig) ApplyTo(mc *ModelConfig) {
	if c == nil {
		return
	}
	if c.NumCtx != nil {
		mc.NumCtx = *c.NumCtx
	}
	if c.Temperature != nil {
		mc.Temperature = *c.Temperature
	}
	if c.RepeatPenalty != nil {
		mc.RepeatPenalty = *c.RepeatPenalty
	}
	if c.NumPredict != nil {
		mc.NumPredict = *c.NumPredict
	}
	if c.MaxActionsPerTurn != nil {
		mc.MaxActionsPerTurn = *c.MaxActionsPerTurn
	}
}

// TriggerEvent is the wire envelope accepted from the trigger bus.
// MessageID doubles as the queue de-duplication token; one is generated
// when the producer omits it.
type TriggerEvent struct {
	LLMProvider     Provider     `json:"llm_provider"`
	ModelName       string       `json:"model_name"`
	MazeID          int64        `json:"maze_id"`
	PromptVersion   string       `json:"prompt_version"`
	GoalDescription string       `json:"goal_description,omitempty"`
	Config          *EventConfig `json:"config,omitempty"`
	MessageID       string       `json:"message_id,omitempty"`
}

// TriggerRecord is one queued trigger event row
type TriggerRecord struct {
	ID          int64         `json:"id"`
	DedupToken  string        `json:"dedup_token"`
	Event       TriggerEvent  `json:"event"`
	Status      TriggerStatus `json:"status"`
	Attempts    int           `json:"attempts"`
	MaxAttempts int           `json:"max_attempts"`
	PodID       string        `json:"pod_id,omitempty"`
	LastError   string        `json:"last_error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	ClaimedAt   *time.Time    `json:"claimed_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// AdmissionRecord is a validated trigger with frozen configuration,
// ready to become an experiment row
type AdmissionRecord struct {
	MazeID          int64
	ModelName       string
	PromptVersion   string
	LLMProvider     Provider
	GoalDescription string
	ModelConfig     ModelConfig
	ExecutionID     string
	ExecutionName   string
	MessageID       string
}
