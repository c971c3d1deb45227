package models

// CreateMazeRequest contains fields for creating a maze. Either Rows
// (row-per-string picture) or an explicit Grid must be supplied; with a
// Grid the start position comes from StartX/StartY.
type CreateMazeRequest struct {
	Name   string   `json:"name"`
	Rows   []string `json:"rows,omitempty"`
	Grid   [][]int  `json:"grid,omitempty"`
	StartX int      `json:"start_x"`
	StartY int      `json:"start_y"`
}
