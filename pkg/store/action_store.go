package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mazebench/mazebench/pkg/models"
)

const movementActionTypes = `('move_north', 'move_south', 'move_east', 'move_west')`

// CurrentPosition implements the single shared position rule: the most
// recent action's to-position when it moved, its from-position when it
// did not (failed move or recall), and the experiment's start position
// when no actions exist yet.
func (s *Store) CurrentPosition(ctx context.Context, experimentID int64) (models.Position, error) {
	var (
		fromX, fromY int
		toX, toY     *int
	)
	err := s.pool.QueryRow(ctx,
		`SELECT from_x, from_y, to_x, to_y FROM agent_actions
		 WHERE experiment_id = $1 ORDER BY step_number DESC LIMIT 1`,
		experimentID,
	).Scan(&fromX, &fromY, &toX, &toY)
	switch {
	case err == nil:
		if toX != nil && toY != nil {
			return models.Position{X: *toX, Y: *toY}, nil
		}
		return models.Position{X: fromX, Y: fromY}, nil
	case errors.Is(err, pgx.ErrNoRows):
		var p models.Position
		err := s.pool.QueryRow(ctx,
			`SELECT start_x, start_y FROM experiments WHERE id = $1`, experimentID,
		).Scan(&p.X, &p.Y)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return models.Position{}, fmt.Errorf("experiment %d: %w", experimentID, ErrNotFound)
			}
			return models.Position{}, fmt.Errorf("failed to read start position for experiment %d: %w", experimentID, err)
		}
		return p, nil
	default:
		return models.Position{}, fmt.Errorf("failed to read last action for experiment %d: %w", experimentID, err)
	}
}

// NextStepNumber returns max(step_number) + 1 for the experiment, or 1
// when no actions exist
func (s *Store) NextStepNumber(ctx context.Context, experimentID int64) (int, error) {
	var next int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(step_number), 0) + 1 FROM agent_actions WHERE experiment_id = $1`,
		experimentID,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to compute next step for experiment %d: %w", experimentID, err)
	}
	return next, nil
}

// AppendAction inserts one audit row, assigning the next dense step
// number in the same statement. Callers must hold the experiment
// advisory lock so the step assignment cannot race.
func (s *Store) AppendAction(ctx context.Context, experimentID int64, params models.AppendActionParams) (*models.AgentAction, error) {
	var tilesJSON []byte
	if len(params.TilesSeen) > 0 {
		var err error
		tilesJSON, err = json.Marshal(params.TilesSeen)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal tiles_seen: %w", err)
		}
	}

	action := &models.AgentAction{
		ExperimentID: experimentID,
		TurnNumber:   params.TurnNumber,
		ActionType:   params.ActionType,
		Reasoning:    params.Reasoning,
		FromX:        params.FromX,
		FromY:        params.FromY,
		ToX:          params.ToX,
		ToY:          params.ToY,
		Success:      params.Success,
		TilesSeen:    params.TilesSeen,
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO agent_actions (experiment_id, step_number, turn_number, action_type,
			reasoning, from_x, from_y, to_x, to_y, success, tiles_seen)
		 SELECT $1, COALESCE(MAX(step_number), 0) + 1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		 FROM agent_actions WHERE experiment_id = $1
		 RETURNING id, step_number, created_at`,
		experimentID, params.TurnNumber, string(params.ActionType), params.Reasoning,
		params.FromX, params.FromY, params.ToX, params.ToY, params.Success, tilesJSON,
	).Scan(&action.ID, &action.StepNumber, &action.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append action for experiment %d: %w", experimentID, err)
	}

	return action, nil
}

// ListActions returns the full audit trail ordered by step number
func (s *Store) ListActions(ctx context.Context, experimentID int64) ([]*models.AgentAction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, experiment_id, step_number, turn_number, action_type, reasoning,
			from_x, from_y, to_x, to_y, success, tiles_seen,
			input_tokens, output_tokens, cost_usd, created_at
		 FROM agent_actions WHERE experiment_id = $1 ORDER BY step_number`,
		experimentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions for experiment %d: %w", experimentID, err)
	}
	defer rows.Close()

	var actions []*models.AgentAction
	for rows.Next() {
		var (
			a         models.AgentAction
			kind      string
			tilesJSON []byte
		)
		if err := rows.Scan(
			&a.ID, &a.ExperimentID, &a.StepNumber, &a.TurnNumber, &kind, &a.Reasoning,
			&a.FromX, &a.FromY, &a.ToX, &a.ToY, &a.Success, &tilesJSON,
			&a.InputTokens, &a.OutputTokens, &a.CostUSD, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		a.ActionType = models.ActionType(kind)
		if len(tilesJSON) > 0 {
			if err := json.Unmarshal(tilesJSON, &a.TilesSeen); err != nil {
				return nil, fmt.Errorf("failed to unmarshal tiles_seen for action %d: %w", a.ID, err)
			}
		}
		actions = append(actions, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate actions: %w", err)
	}
	return actions, nil
}

// CountMovements returns the number of movement actions recorded for
// the experiment, successful or not
func (s *Store) CountMovements(ctx context.Context, experimentID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM agent_actions
		 WHERE experiment_id = $1 AND action_type IN `+movementActionTypes,
		experimentID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count movements for experiment %d: %w", experimentID, err)
	}
	return count, nil
}

// MovementsSinceLastRecall counts movement actions (successful or not)
// after the most recent successful recall, or since the experiment
// start when no recall has succeeded yet. Failed recalls do not reset
// the counter.
func (s *Store) MovementsSinceLastRecall(ctx context.Context, experimentID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM agent_actions
		 WHERE experiment_id = $1
		   AND action_type IN `+movementActionTypes+`
		   AND step_number > COALESCE((
			SELECT MAX(step_number) FROM agent_actions
			WHERE experiment_id = $1 AND action_type = 'recall' AND success), 0)`,
		experimentID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count movements since recall for experiment %d: %w", experimentID, err)
	}
	return count, nil
}

// SeenTiles returns the distinct tiles observed by prior tiles_seen
// payloads, most recent observation first, de-duplicated by position
// keeping the latest, capped at limit entries
func (s *Store) SeenTiles(ctx context.Context, experimentID int64, limit int) ([]models.SeenTile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tiles_seen FROM agent_actions
		 WHERE experiment_id = $1 AND tiles_seen IS NOT NULL
		 ORDER BY step_number DESC`,
		experimentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query seen tiles for experiment %d: %w", experimentID, err)
	}
	defer rows.Close()

	type position struct{ x, y int }
	seen := make(map[position]struct{})
	var tiles []models.SeenTile

	for rows.Next() {
		if limit > 0 && len(tiles) >= limit {
			break
		}
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan tiles_seen: %w", err)
		}
		var batch []models.SeenTile
		if err := json.Unmarshal(payload, &batch); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tiles_seen: %w", err)
		}
		for _, t := range batch {
			key := position{x: t.X, y: t.Y}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			tiles = append(tiles, t)
			if limit > 0 && len(tiles) >= limit {
				break
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tiles_seen rows: %w", err)
	}
	return tiles, nil
}
