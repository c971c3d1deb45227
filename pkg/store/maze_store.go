package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mazebench/mazebench/pkg/maze"
)

// CreateMaze validates and persists a maze, returning it with the
// assigned id
func (s *Store) CreateMaze(ctx context.Context, m *maze.Maze) (*maze.Maze, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid maze: %w", err)
	}

	gridJSON, err := json.Marshal(m.Grid)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal maze grid: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO mazes (name, width, height, grid, start_x, start_y)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		m.Name, m.Width, m.Height, gridJSON, m.StartX, m.StartY,
	).Scan(&m.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert maze: %w", err)
	}

	return m, nil
}

// GetMaze loads a maze by id
func (s *Store) GetMaze(ctx context.Context, id int64) (*maze.Maze, error) {
	m := &maze.Maze{}
	var gridJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, name, width, height, grid, start_x, start_y
		 FROM mazes WHERE id = $1`,
		id,
	).Scan(&m.ID, &m.Name, &m.Width, &m.Height, &gridJSON, &m.StartX, &m.StartY)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("maze %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load maze %d: %w", id, err)
	}

	if err := json.Unmarshal(gridJSON, &m.Grid); err != nil {
		return nil, fmt.Errorf("failed to unmarshal grid for maze %d: %w", id, err)
	}

	return m, nil
}
