package maze

import (
	"errors"
	"fmt"
)

// ParseRows builds a maze from a row-per-string picture, top row first:
// '.' empty, '#' wall, 'G' goal, 'S' the start cell (empty). Rows must
// be non-empty and equal length, with exactly one 'S' and one 'G'. Used
// by tests and seed fixtures.
func ParseRows(name string, rows []string) (*Maze, error) {
	if len(rows) == 0 {
		return nil, errors.New("maze needs at least one row")
	}
	width := len(rows[0])
	if width == 0 {
		return nil, errors.New("maze rows must be non-empty")
	}
	m := &Maze{
		Name:   name,
		Width:  width,
		Height: len(rows),
		Grid:   make([][]TileType, len(rows)),
		StartX: -1,
		StartY: -1,
	}
	for y, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has length %d, expected %d", y, len(row), width)
		}
		m.Grid[y] = make([]TileType, width)
		for x, r := range row {
			switch r {
			case '.':
				m.Grid[y][x] = TileEmpty
			case '#':
				m.Grid[y][x] = TileWall
			case 'G':
				m.Grid[y][x] = TileGoal
			case 'S':
				if m.StartX >= 0 {
					return nil, errors.New("maze must contain exactly one start cell")
				}
				m.Grid[y][x] = TileEmpty
				m.StartX, m.StartY = x, y
			default:
				return nil, fmt.Errorf("unknown tile rune %q at (%d, %d)", r, x, y)
			}
		}
	}
	if m.StartX < 0 {
		return nil, errors.New("maze must contain a start cell 'S'")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
