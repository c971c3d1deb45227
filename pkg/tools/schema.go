package tools

import (
	"github.com/mazebench/mazebench/pkg/llm"
	"github.com/mazebench/mazebench/pkg/models"
)

// Definitions returns the tool surface offered to the model: the four
// cardinal moves and recall. Every tool takes the same arguments object
// with a required experimentId and an optional reasoning string.
func Definitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        string(models.ActionMoveNorth),
			Description: "Move one tile north (decreases y). Fails without moving when the target tile is a wall or out of bounds.",
			InputSchema: inputSchema(),
		},
		{
			Name:        string(models.ActionMoveSouth),
			Description: "Move one tile south (increases y). Fails without moving when the target tile is a wall or out of bounds.",
			InputSchema: inputSchema(),
		},
		{
			Name:        string(models.ActionMoveEast),
			Description: "Move one tile east (increases x). Fails without moving when the target tile is a wall or out of bounds.",
			InputSchema: inputSchema(),
		},
		{
			Name:        string(models.ActionMoveWest),
			Description: "Move one tile west (decreases x). Fails without moving when the target tile is a wall or out of bounds.",
			InputSchema: inputSchema(),
		},
		{
			Name:        string(models.ActionRecall),
			Description: "Return previously observed tiles, most recent first. Subject to a cooldown measured in movement actions since the last successful recall.",
			InputSchema: inputSchema(),
		},
	}
}

// inputSchema builds the shared JSON-Schema descriptor. A fresh map is
// returned per tool so callers can hold their own copy.
func inputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"experimentId": map[string]any{
				"type":        "integer",
				"description": "Identifier of the experiment this action belongs to.",
			},
			"reasoning": map[string]any{
				"type":        "string",
				"description": "Short explanation of why this action was chosen.",
			},
		},
		"required": []string{"experimentId"},
	}
}
