package api

import (
	"github.com/mazebench/mazebench/pkg/database"
	"github.com/mazebench/mazebench/pkg/maze"
	"github.com/mazebench/mazebench/pkg/models"
	"github.com/mazebench/mazebench/pkg/queue"
)

// TriggerResponse is returned by POST /api/v1/triggers.
type TriggerResponse struct {
	TriggerID  int64  `json:"trigger_id"`
	DedupToken string `json:"dedup_token"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

// MazeResponse is the wire form of a maze: grid cells are the numeric
// tile codes (0 empty, 1 wall, 2 goal).
type MazeResponse struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Grid   [][]int `json:"grid"`
	StartX int     `json:"start_x"`
	StartY int     `json:"start_y"`
}

func newMazeResponse(m *maze.Maze) *MazeResponse {
	grid := make([][]int, len(m.Grid))
	for y, row := range m.Grid {
		grid[y] = make([]int, len(row))
		for x, tile := range row {
			grid[y][x] = int(tile)
		}
	}
	return &MazeResponse{
		ID:     m.ID,
		Name:   m.Name,
		Width:  m.Width,
		Height: m.Height,
		Grid:   grid,
		StartX: m.StartX,
		StartY: m.StartY,
	}
}

// ActionListResponse is returned by GET /api/v1/experiments/:id/actions.
type ActionListResponse struct {
	ExperimentID int64                 `json:"experiment_id"`
	Actions      []*models.AgentAction `json:"actions"`
	Count        int                   `json:"count"`
}

// PositionResponse is returned by GET /api/v1/experiments/:id/position.
type PositionResponse struct {
	ExperimentID int64 `json:"experiment_id"`
	X            int   `json:"x"`
	Y            int   `json:"y"`
}

// HealthCheck is one named component check in the health response.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	Status     string                 `json:"status"`
	Version    string                 `json:"version"`
	Checks     map[string]HealthCheck `json:"checks"`
	Database   *database.HealthStatus `json:"database,omitempty"`
	WorkerPool *queue.PoolHealth      `json:"worker_pool,omitempty"`
}
