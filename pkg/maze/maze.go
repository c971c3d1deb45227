// Package maze implements the grid world model: tile classification,
// movement rules, and cardinal line-of-sight vision. Everything here is
// pure computation; persistence lives in pkg/store.
package maze

import (
	"errors"
	"fmt"
)

// TileType identifies what occupies a grid cell
type TileType int

const (
	// TileEmpty is a walkable cell
	TileEmpty TileType = 0
	// TileWall blocks movement and sight
	TileWall TileType = 1
	// TileGoal is the target cell; walkable, blocks sight like a wall
	TileGoal TileType = 2
	// TileOutOfBounds is returned by classification for coordinates outside the grid
	TileOutOfBounds TileType = -1
)

// String returns the canonical name for the tile type
func (t TileType) String() string {
	switch t {
	case TileEmpty:
		return "EMPTY"
	case TileWall:
		return "WALL"
	case TileGoal:
		return "GOAL"
	case TileOutOfBounds:
		return "OUT_OF_BOUNDS"
	default:
		return fmt.Sprintf("TileType(%d)", int(t))
	}
}

// CanEnter reports whether an agent may occupy this tile
func (t TileType) CanEnter() bool {
	return t == TileEmpty || t == TileGoal
}

// Coord is a grid position. X grows east, Y grows south; (0,0) is the
// top-left corner.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// String formats the coordinate as (x, y)
func (c Coord) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Y)
}

// Direction is one of the four cardinal movement directions
type Direction int

const (
	// North decreases Y
	North Direction = iota
	// South increases Y
	South
	// East increases X
	East
	// West decreases X
	West
)

// Delta returns the (dx, dy) offset of one step in the direction
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case North:
		return 0, -1
	case South:
		return 0, 1
	case East:
		return 1, 0
	case West:
		return -1, 0
	default:
		return 0, 0
	}
}

// String returns the lower-case direction name
func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case South:
		return "south"
	case East:
		return "east"
	case West:
		return "west"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Maze is an immutable grid world. Grid is indexed [y][x].
type Maze struct {
	ID     int64
	Name   string
	Width  int
	Height int
	Grid   [][]TileType
	StartX int
	StartY int
}

// ClassifyTile returns the tile at (x, y), or TileOutOfBounds when the
// coordinates fall outside [0,W)x[0,H)
func (m *Maze) ClassifyTile(x, y int) TileType {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height {
		return TileOutOfBounds
	}
	return m.Grid[y][x]
}

// Start returns the configured start position
func (m *Maze) Start() Coord {
	return Coord{X: m.StartX, Y: m.StartY}
}

// GoalPosition returns the coordinates of the goal tile
func (m *Maze) GoalPosition() (Coord, bool) {
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.Grid[y][x] == TileGoal {
				return Coord{X: x, Y: y}, true
			}
		}
	}
	return Coord{}, false
}

// Validate checks the structural invariants: positive dimensions, a
// rectangular grid of known tile values, exactly one goal, and an
// in-bounds walkable start cell
func (m *Maze) Validate() error {
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("maze dimensions must be positive, got %dx%d", m.Width, m.Height)
	}
	if len(m.Grid) != m.Height {
		return fmt.Errorf("grid has %d rows, expected %d", len(m.Grid), m.Height)
	}
	goals := 0
	for y, row := range m.Grid {
		if len(row) != m.Width {
			return fmt.Errorf("grid row %d has %d cells, expected %d", y, len(row), m.Width)
		}
		for x, tile := range row {
			switch tile {
			case TileEmpty, TileWall:
			case TileGoal:
				goals++
			default:
				return fmt.Errorf("grid cell (%d, %d) has unknown tile value %d", x, y, int(tile))
			}
		}
	}
	if goals != 1 {
		return fmt.Errorf("maze must contain exactly one goal tile, found %d", goals)
	}
	start := m.ClassifyTile(m.StartX, m.StartY)
	if start == TileOutOfBounds {
		return fmt.Errorf("start position (%d, %d) is outside the grid", m.StartX, m.StartY)
	}
	if start != TileEmpty {
		return errors.New("start position must be an empty tile")
	}
	return nil
}
