package tools

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/mazebench/mazebench/pkg/maze"
	"github.com/mazebench/mazebench/pkg/models"
)

// Result is the structured observation returned to the model after a
// tool call. It is serialized as the content of the tool-role message.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`

	// Position is the agent's position after the action. Failed moves
	// and recalls report the unchanged position.
	Position models.Position `json:"position"`

	// Visible renders the tiles attached to this action: vision from the
	// new position for successful moves, remembered tiles for successful
	// recalls.
	Visible string `json:"visible,omitempty"`

	// Cooldown details, set only on a failed recall.
	MovesSinceLastRecall *int `json:"moves_since_last_recall,omitempty"`
	MovesRequired        *int `json:"moves_required,omitempty"`
}

// Payload renders the result as the JSON object handed back to the
// model
func (r Result) Payload() string {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"success":%t,"message":%q}`, r.Success, r.Message)
	}
	return string(data)
}

// Outcome is what a dispatch returns to the invoker: the persisted
// audit row, the observation for the model, and whether the action
// stepped onto the goal tile.
type Outcome struct {
	Action      *models.AgentAction
	Result      Result
	GoalReached bool
}

// visionTiles converts a vision map into the tiles_seen payload,
// ordered by row then column so the persisted form is deterministic
func visionTiles(visible map[maze.Coord]maze.TileType) []models.SeenTile {
	tiles := make([]models.SeenTile, 0, len(visible))
	for c, t := range visible {
		tiles = append(tiles, models.SeenTile{X: c.X, Y: c.Y, Type: t.String()})
	}
	slices.SortFunc(tiles, func(a, b models.SeenTile) int {
		if a.Y != b.Y {
			return a.Y - b.Y
		}
		return a.X - b.X
	})
	return tiles
}

// renderTiles formats tiles as a compact single line, preserving the
// input order
func renderTiles(tiles []models.SeenTile) string {
	if len(tiles) == 0 {
		return ""
	}
	parts := make([]string, len(tiles))
	for i, t := range tiles {
		parts[i] = fmt.Sprintf("(%d, %d): %s", t.X, t.Y, t.Type)
	}
	return strings.Join(parts, "; ")
}
