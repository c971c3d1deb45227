// Package tools executes single tool requests against authoritative
// world state: it resolves the agent's current position, applies the
// movement or recall rules, persists one audit row per call, and
// returns a structured observation for the model. All of this happens
// under the per-experiment advisory lock so concurrent writers cannot
// interleave position reads and step assignment.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mazebench/mazebench/pkg/llm"
	"github.com/mazebench/mazebench/pkg/maze"
	"github.com/mazebench/mazebench/pkg/models"
)

// Store is the slice of the data store the dispatcher needs. The
// production implementation is pkg/store.
type Store interface {
	WithExperimentLock(ctx context.Context, experimentID int64, fn func(ctx context.Context) error) error
	CurrentPosition(ctx context.Context, experimentID int64) (models.Position, error)
	AppendAction(ctx context.Context, experimentID int64, params models.AppendActionParams) (*models.AgentAction, error)
	MovementsSinceLastRecall(ctx context.Context, experimentID int64) (int, error)
	SeenTiles(ctx context.Context, experimentID int64, limit int) ([]models.SeenTile, error)
}

// Dispatcher serves one experiment against one maze. It is created per
// scheduler run and is not safe for concurrent use; the turn loop calls
// it strictly sequentially.
type Dispatcher struct {
	store Store
	world *maze.Maze
	exp   *models.Experiment
}

// NewDispatcher creates a dispatcher bound to the experiment and its
// maze
func NewDispatcher(store Store, world *maze.Maze, exp *models.Experiment) *Dispatcher {
	return &Dispatcher{store: store, world: world, exp: exp}
}

// toolInput is the arguments object every tool accepts
type toolInput struct {
	ExperimentID *int64 `json:"experimentId"`
	Reasoning    string `json:"reasoning"`
}

// Execute runs one tool call and appends its audit row, stamped with
// the enclosing turn number. Failed moves and cooldown-blocked recalls
// are normal outcomes reported back to the model; Execute returns an
// error only for malformed arguments (TOOL_INVALID_INPUT) or handler
// failures (TOOL_DISPATCH_FAILED), both of which fail the turn.
func (d *Dispatcher) Execute(ctx context.Context, call llm.ToolCall, turnNumber int) (*Outcome, error) {
	action := models.ActionType(call.Name)
	if !action.IsValid() {
		return nil, models.Classifiedf(models.ErrorKindToolDispatchFailed, "no handler for tool %q", call.Name)
	}

	input, err := parseInput(call.Arguments)
	if err != nil {
		return nil, models.NewClassified(models.ErrorKindToolInvalidInput, err)
	}
	if *input.ExperimentID != d.exp.ID {
		return nil, models.Classifiedf(models.ErrorKindToolInvalidInput,
			"experimentId %d does not match experiment %d", *input.ExperimentID, d.exp.ID)
	}

	var out *Outcome
	err = d.store.WithExperimentLock(ctx, d.exp.ID, func(ctx context.Context) error {
		var err error
		if action.IsMovement() {
			out, err = d.executeMove(ctx, action, input.Reasoning, turnNumber)
		} else {
			out, err = d.executeRecall(ctx, input.Reasoning, turnNumber)
		}
		return err
	})
	if err != nil {
		var classified *models.ClassifiedError
		if errors.As(err, &classified) {
			return nil, err
		}
		return nil, models.NewClassified(models.ErrorKindToolDispatchFailed, err)
	}
	return out, nil
}

// executeMove applies the movement rule: classify the target tile,
// append the audit row, and attach vision from the new position when
// the move succeeded. Must run under the experiment lock.
func (d *Dispatcher) executeMove(ctx context.Context, action models.ActionType, reasoning string, turnNumber int) (*Outcome, error) {
	pos, err := d.store.CurrentPosition(ctx, d.exp.ID)
	if err != nil {
		return nil, err
	}

	dir := directionOf(action)
	dx, dy := dir.Delta()
	target := maze.Coord{X: pos.X + dx, Y: pos.Y + dy}
	tile := d.world.ClassifyTile(target.X, target.Y)

	params := models.AppendActionParams{
		TurnNumber: turnNumber,
		ActionType: action,
		Reasoning:  reasoning,
		FromX:      pos.X,
		FromY:      pos.Y,
	}
	var (
		result Result
		goal   bool
	)
	if tile.CanEnter() {
		params.Success = true
		params.ToX, params.ToY = &target.X, &target.Y
		params.TilesSeen = visionTiles(d.world.Vision(target.X, target.Y, d.exp.ModelConfig.VisionRange))
		goal = tile == maze.TileGoal

		message := fmt.Sprintf("moved %s to %s", dir, target)
		if goal {
			message += " and reached the goal"
		}
		result = Result{
			Success:  true,
			Message:  message,
			Position: models.Position{X: target.X, Y: target.Y},
			Visible:  renderTiles(params.TilesSeen),
		}
	} else {
		result = Result{
			Success:  false,
			Message:  fmt.Sprintf("blocked: tile at %s is %s", target, tile),
			Position: pos,
		}
	}

	row, err := d.store.AppendAction(ctx, d.exp.ID, params)
	if err != nil {
		return nil, err
	}
	return &Outcome{Action: row, Result: result, GoalReached: goal}, nil
}

// executeRecall checks the cooldown and, when permitted, returns the
// distinct previously observed tiles, most recent first, capped at
// max_recall_actions. A blocked recall still appends an audit row but
// does not reset the cooldown counter. Must run under the experiment
// lock.
func (d *Dispatcher) executeRecall(ctx context.Context, reasoning string, turnNumber int) (*Outcome, error) {
	pos, err := d.store.CurrentPosition(ctx, d.exp.ID)
	if err != nil {
		return nil, err
	}
	moves, err := d.store.MovementsSinceLastRecall(ctx, d.exp.ID)
	if err != nil {
		return nil, err
	}

	params := models.AppendActionParams{
		TurnNumber: turnNumber,
		ActionType: models.ActionRecall,
		Reasoning:  reasoning,
		FromX:      pos.X,
		FromY:      pos.Y,
	}

	interval := d.exp.ModelConfig.RecallInterval
	if moves < interval {
		result := Result{
			Success:              false,
			Message:              fmt.Sprintf("cooldown: need %d more moves", interval-moves),
			Position:             pos,
			MovesSinceLastRecall: &moves,
			MovesRequired:        &interval,
		}
		row, err := d.store.AppendAction(ctx, d.exp.ID, params)
		if err != nil {
			return nil, err
		}
		return &Outcome{Action: row, Result: result}, nil
	}

	tiles, err := d.store.SeenTiles(ctx, d.exp.ID, d.exp.ModelConfig.MaxRecallActions)
	if err != nil {
		return nil, err
	}
	params.Success = true
	row, err := d.store.AppendAction(ctx, d.exp.ID, params)
	if err != nil {
		return nil, err
	}
	result := Result{
		Success:  true,
		Message:  fmt.Sprintf("recalled %d previously seen tiles", len(tiles)),
		Position: pos,
		Visible:  renderTiles(tiles),
	}
	return &Outcome{Action: row, Result: result}, nil
}

// parseInput decodes the arguments object and enforces the required
// experimentId field
func parseInput(raw json.RawMessage) (*toolInput, error) {
	if len(raw) == 0 {
		return nil, errors.New("arguments object is empty")
	}
	var input toolInput
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("invalid arguments object: %w", err)
	}
	if input.ExperimentID == nil {
		return nil, errors.New("missing required field experimentId")
	}
	return &input, nil
}

// directionOf maps a movement action to its grid direction. Callers
// must pass a movement action.
func directionOf(action models.ActionType) maze.Direction {
	switch action {
	case models.ActionMoveNorth:
		return maze.North
	case models.ActionMoveSouth:
		return maze.South
	case models.ActionMoveEast:
		return maze.East
	default:
		return maze.West
	}
}
