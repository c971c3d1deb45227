// Package models defines the domain types shared across the service:
// experiments, actions, trigger envelopes, model configuration, and the
// error taxonomy.
package models

// ExecutionStatus is the lifecycle state of an experiment
type ExecutionStatus string

const (
	// StatusRunning means the turn loop owns the experiment
	StatusRunning ExecutionStatus = "RUNNING"
	// StatusSucceeded means the loop finished without a classified error
	StatusSucceeded ExecutionStatus = "SUCCEEDED"
	// StatusFailed means the loop finished with a classified error
	StatusFailed ExecutionStatus = "FAILED"
	// StatusTimedOut means the duration budget was exceeded
	StatusTimedOut ExecutionStatus = "TIMED_OUT"
	// StatusAborted means the experiment was orphaned by a crashed runner
	StatusAborted ExecutionStatus = "ABORTED"
)

// IsValid checks if the execution status is valid
func (s ExecutionStatus) IsValid() bool {
	switch s {
	case StatusRunning, StatusSucceeded, StatusFailed, StatusTimedOut, StatusAborted:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is a final state
func (s ExecutionStatus) IsTerminal() bool {
	return s.IsValid() && s != StatusRunning
}

// Provider identifies the chat backend family for an experiment
type Provider string

const (
	// ProviderManagedAgent is a hosted vendor backend (Anthropic Messages API)
	ProviderManagedAgent Provider = "managed-agent"
	// ProviderLocalChat is a self-hosted chat-completions endpoint
	ProviderLocalChat Provider = "local-chat"
)

// IsValid checks if the provider is valid
func (p Provider) IsValid() bool {
	return p == ProviderManagedAgent || p == ProviderLocalChat
}

// ActionType is the tool a model invoked, one per audit row
type ActionType string

const (
	// ActionMoveNorth attempts to enter (x, y-1)
	ActionMoveNorth ActionType = "move_north"
	// ActionMoveSouth attempts to enter (x, y+1)
	ActionMoveSouth ActionType = "move_south"
	// ActionMoveEast attempts to enter (x+1, y)
	ActionMoveEast ActionType = "move_east"
	// ActionMoveWest attempts to enter (x-1, y)
	ActionMoveWest ActionType = "move_west"
	// ActionRecall returns previously observed tiles
	ActionRecall ActionType = "recall"
)

// IsValid checks if the action type is valid
func (a ActionType) IsValid() bool {
	switch a {
	case ActionMoveNorth, ActionMoveSouth, ActionMoveEast, ActionMoveWest, ActionRecall:
		return true
	default:
		return false
	}
}

// IsMovement reports whether the action is one of the four moves.
// Movement actions are the ones that count toward the recall cooldown,
// whether or not they succeeded.
func (a ActionType) IsMovement() bool {
	switch a {
	case ActionMoveNorth, ActionMoveSouth, ActionMoveEast, ActionMoveWest:
		return true
	default:
		return false
	}
}

// TriggerStatus is the queue lifecycle state of a trigger event
type TriggerStatus string

const (
	// TriggerPending means the event is waiting to be claimed
	TriggerPending TriggerStatus = "pending"
	// TriggerInProgress means a worker claimed the event
	TriggerInProgress TriggerStatus = "in_progress"
	// TriggerCompleted means the admission run finished
	TriggerCompleted TriggerStatus = "completed"
	// TriggerFailed means all delivery attempts were exhausted
	TriggerFailed TriggerStatus = "failed"
)

// IsValid checks if the trigger status is valid
func (s TriggerStatus) IsValid() bool {
	switch s {
	case TriggerPending, TriggerInProgress, TriggerCompleted, TriggerFailed:
		return true
	default:
		return false
	}
}
