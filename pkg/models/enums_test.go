package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecutionStatusIsValid(t *testing.T) {
	tests := []struct {
		name   string
		status ExecutionStatus
		valid  bool
	}{
		{"running", StatusRunning, true},
		{"succeeded", StatusSucceeded, true},
		{"failed", StatusFailed, true},
		{"timed out", StatusTimedOut, true},
		{"aborted", StatusAborted, true},
		{"invalid", ExecutionStatus("DONE"), false},
		{"empty", ExecutionStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.status.IsValid())
		})
	}
}

func TestExecutionStatusIsTerminal(t *testing.T) {
	assert.False(t, StatusRunning.IsTerminal())
	assert.True(t, StatusSucceeded.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusTimedOut.IsTerminal())
	assert.True(t, StatusAborted.IsTerminal())
	assert.False(t, ExecutionStatus("bogus").IsTerminal())
}

func TestProviderIsValid(t *testing.T) {
	tests := []struct {
		name     string
		provider Provider
		valid    bool
	}{
		{"managed-agent", ProviderManagedAgent, true},
		{"local-chat", ProviderLocalChat, true},
		{"invalid", Provider("openai"), false},
		{"empty", Provider(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.provider.IsValid())
		})
	}
}

func TestActionTypeIsMovement(t *testing.T) {
	tests := []struct {
		name     string
		action   ActionType
		movement bool
	}{
		{"north", ActionMoveNorth, true},
		{"south", ActionMoveSouth, true},
		{"east", ActionMoveEast, true},
		{"west", ActionMoveWest, true},
		{"recall", ActionRecall, false},
		{"invalid", ActionType("jump"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.movement, tt.action.IsMovement())
		})
	}
}

func TestTriggerStatusIsValid(t *testing.T) {
	tests := []struct {
		name   string
		status TriggerStatus
		valid  bool
	}{
		{"pending", TriggerPending, true},
		{"in_progress", TriggerInProgress, true},
		{"completed", TriggerCompleted, true},
		{"failed", TriggerFailed, true},
		{"invalid", TriggerStatus("queued"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.status.IsValid())
		})
	}
}
