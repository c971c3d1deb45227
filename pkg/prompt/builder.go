package prompt

import (
	"fmt"
	"strings"

	"github.com/mazebench/mazebench/pkg/models"
)

// Builder builds the per-turn user message for agent invocations.
// Stateless — all state comes from parameters. Thread-safe — no mutable
// state.
type Builder struct{}

// NewBuilder creates a Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// BuildTurnMessage composes the single user message that opens a turn's
// conversation: the versioned strategy template, the experiment state
// section, and the tool usage reminder.
func (b *Builder) BuildTurnMessage(exp *models.Experiment, pos models.Position, turnNumber int) (string, error) {
	body, err := Resolve(exp.PromptVersion)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(body)
	sb.WriteString("\n\n")
	sb.WriteString(formatStateSection(exp, pos, turnNumber))
	sb.WriteString("\n")
	sb.WriteString(formatToolReminder(exp.ID))
	return sb.String(), nil
}

// formatStateSection builds the current-state section.
func formatStateSection(exp *models.Experiment, pos models.Position, turnNumber int) string {
	var sb strings.Builder
	sb.WriteString("## Current State\n")
	fmt.Fprintf(&sb, "Experiment id: %d\n", exp.ID)
	fmt.Fprintf(&sb, "Current position: (%d, %d)\n", pos.X, pos.Y)
	fmt.Fprintf(&sb, "Turn: %d\n", turnNumber)

	goal := exp.GoalDescription
	if goal == "" {
		goal = "Reach the GOAL tile."
	}
	fmt.Fprintf(&sb, "Goal: %s\n", goal)
	return sb.String()
}

// formatToolReminder builds the experimentId reminder appended to every
// turn message.
func formatToolReminder(experimentID int64) string {
	return fmt.Sprintf(
		"## Tool Usage\nEvery tool call MUST include \"experimentId\": %d in its arguments. Calls without it are rejected.\n",
		experimentID)
}
