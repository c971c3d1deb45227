package models

import "time"

// SeenTile is one observed tile in a tiles_seen payload
type SeenTile struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Type string `json:"type"`
}

// AgentAction is one tool invocation, recorded as one append-only audit
// row. ToX/ToY are nil for failed moves and for recalls: the agent did
// not move, and the current-position rule falls back to FromX/FromY.
// Token and cost fields hold the enclosing turn's aggregate usage,
// stamped once the turn completes; they are nil while the turn is still
// running. Experiment totals remain the authoritative accumulator.
type AgentAction struct {
	ID           int64      `json:"id"`
	ExperimentID int64      `json:"experiment_id"`
	StepNumber   int        `json:"step_number"`
	TurnNumber   int        `json:"turn_number"`
	ActionType   ActionType `json:"action_type"`
	Reasoning    string     `json:"reasoning,omitempty"`
	FromX        int        `json:"from_x"`
	FromY        int        `json:"from_y"`
	ToX          *int       `json:"to_x,omitempty"`
	ToY          *int       `json:"to_y,omitempty"`
	Success      bool       `json:"success"`
	TilesSeen    []SeenTile `json:"tiles_seen,omitempty"`
	InputTokens  *int64     `json:"input_tokens,omitempty"`
	OutputTokens *int64     `json:"output_tokens,omitempty"`
	CostUSD      *float64   `json:"cost_usd,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// EndPosition returns the position after the action under the shared
// current-position rule: ToX/ToY when both set, otherwise FromX/FromY
func (a *AgentAction) EndPosition() Position {
	if a.ToX != nil && a.ToY != nil {
		return Position{X: *a.ToX, Y: *a.ToY}
	}
	return Position{X: a.FromX, Y: a.FromY}
}

// AppendActionParams carries one action row to the store. StepNumber is
// assigned by the store under the experiment lock.
type AppendActionParams struct {
	TurnNumber int
	ActionType ActionType
	Reasoning  string
	FromX      int
	FromY      int
	ToX        *int
	ToY        *int
	Success    bool
	TilesSeen  []SeenTile
}
