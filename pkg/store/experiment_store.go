package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mazebench/mazebench/pkg/models"
)

const experimentColumns = `id, maze_id, model_name, prompt_version, llm_provider, start_x, start_y,
	goal_description, model_config, started_at, completed_at, goal_found, execution_status,
	last_error, execution_id, execution_name, message_id,
	total_input_tokens, total_output_tokens, total_cost_usd, last_heartbeat_at`

func scanExperiment(row pgx.Row) (*models.Experiment, error) {
	var (
		e           models.Experiment
		provider    string
		status      string
		configJSON  []byte
		lastErrJSON []byte
	)
	if err := row.Scan(
		&e.ID, &e.MazeID, &e.ModelName, &e.PromptVersion, &provider, &e.StartX, &e.StartY,
		&e.GoalDescription, &configJSON, &e.StartedAt, &e.CompletedAt, &e.GoalFound, &status,
		&lastErrJSON, &e.ExecutionID, &e.ExecutionName, &e.MessageID,
		&e.TotalInputTokens, &e.TotalOutputTokens, &e.TotalCostUSD, &e.LastHeartbeatAt,
	); err != nil {
		return nil, err
	}
	e.LLMProvider = models.Provider(provider)
	e.ExecutionStatus = models.ExecutionStatus(status)
	if err := json.Unmarshal(configJSON, &e.ModelConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model_config: %w", err)
	}
	if len(lastErrJSON) > 0 {
		e.LastError = &models.LastError{}
		if err := json.Unmarshal(lastErrJSON, e.LastError); err != nil {
			return nil, fmt.Errorf("failed to unmarshal last_error: %w", err)
		}
	}
	return &e, nil
}

// CreateExperiment inserts a RUNNING experiment from an admission
// record, copying the start position from the maze row in the same
// statement
func (s *Store) CreateExperiment(ctx context.Context, rec models.AdmissionRecord) (*models.Experiment, error) {
	configJSON, err := json.Marshal(rec.ModelConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal model_config: %w", err)
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO experiments (maze_id, model_name, prompt_version, llm_provider,
			start_x, start_y, goal_description, model_config, execution_status,
			execution_id, execution_name, message_id, last_heartbeat_at)
		 SELECT m.id, $2, $3, $4, m.start_x, m.start_y, $5, $6, 'RUNNING', $7, $8, $9, now()
		 FROM mazes m WHERE m.id = $1
		 RETURNING `+experimentColumns,
		rec.MazeID, rec.ModelName, rec.PromptVersion, string(rec.LLMProvider),
		rec.GoalDescription, configJSON, rec.ExecutionID, rec.ExecutionName, rec.MessageID,
	)

	exp, err := scanExperiment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("maze %d: %w", rec.MazeID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to create experiment: %w", err)
	}
	return exp, nil
}

// GetExperiment loads an experiment by id
func (s *Store) GetExperiment(ctx context.Context, id int64) (*models.Experiment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+experimentColumns+` FROM experiments WHERE id = $1`, id)

	exp, err := scanExperiment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("experiment %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load experiment %d: %w", id, err)
	}
	return exp, nil
}

// ListExperiments returns experiments matching the filters, newest
// first, with the unfiltered total for pagination
func (s *Store) ListExperiments(ctx context.Context, filters models.ExperimentFilters) (*models.ExperimentListResponse, error) {
	var conds []string
	var args []any

	addCond := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filters.Status != "" {
		addCond("execution_status = $%d", string(filters.Status))
	}
	if filters.MazeID != 0 {
		addCond("maze_id = $%d", filters.MazeID)
	}
	if filters.ModelName != "" {
		addCond("model_name = $%d", filters.ModelName)
	}
	if filters.ExecutionName != "" {
		addCond("execution_name = $%d", filters.ExecutionName)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM experiments`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count experiments: %w", err)
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + experimentColumns + ` FROM experiments` + where +
		fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}
	defer rows.Close()

	experiments := make([]*models.Experiment, 0, limit)
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan experiment: %w", err)
		}
		experiments = append(experiments, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate experiments: %w", err)
	}

	return &models.ExperimentListResponse{
		Experiments: experiments,
		TotalCount:  total,
		Limit:       limit,
		Offset:      offset,
	}, nil
}

// Finalize marks an experiment terminal: sets completed_at, the final
// execution_status, goal_found, and the optional last_error. Calling it
// on an already-finalized experiment logs and is a no-op.
func (s *Store) Finalize(ctx context.Context, id int64, status models.ExecutionStatus, goalFound bool, lastErr *models.LastError) error {
	if !status.IsTerminal() {
		return fmt.Errorf("finalize requires a terminal status, got %q", status)
	}

	var lastErrJSON []byte
	if lastErr != nil {
		var err error
		lastErrJSON, err = json.Marshal(lastErr)
		if err != nil {
			return fmt.Errorf("failed to marshal last_error: %w", err)
		}
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE experiments
		 SET completed_at = now(), execution_status = $2, goal_found = $3, last_error = $4
		 WHERE id = $1 AND completed_at IS NULL`,
		id, string(status), goalFound, lastErrJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize experiment %d: %w", id, err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM experiments WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check experiment %d: %w", id, err)
		}
		if !exists {
			return fmt.Errorf("experiment %d: %w", id, ErrNotFound)
		}
		slog.Info("Experiment already finalized, skipping", "experiment_id", id, "status", status)
	}
	return nil
}

// RecordTurnTokens accumulates one turn's token and cost deltas onto
// the experiment totals and stamps the same aggregate onto the turn's
// action rows, in one transaction. Addition happens in SQL on bigint
// and double precision columns; values never pass through strings.
func (s *Store) RecordTurnTokens(ctx context.Context, id int64, turnNumber int, inputTokens, outputTokens int64, costUSD float64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE experiments
		 SET total_input_tokens = total_input_tokens + $2,
		     total_output_tokens = total_output_tokens + $3,
		     total_cost_usd = total_cost_usd + $4
		 WHERE id = $1`,
		id, inputTokens, outputTokens, costUSD,
	)
	if err != nil {
		return fmt.Errorf("failed to record turn tokens for experiment %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("experiment %d: %w", id, ErrNotFound)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE agent_actions
		 SET input_tokens = $3, output_tokens = $4, cost_usd = $5
		 WHERE experiment_id = $1 AND turn_number = $2`,
		id, turnNumber, inputTokens, outputTokens, costUSD,
	); err != nil {
		return fmt.Errorf("failed to stamp turn %d usage for experiment %d: %w", turnNumber, id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit turn tokens for experiment %d: %w", id, err)
	}
	return nil
}

// Heartbeat stamps last_heartbeat_at for orphan detection. Finalized
// experiments are left untouched.
func (s *Store) Heartbeat(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE experiments SET last_heartbeat_at = now()
		 WHERE id = $1 AND completed_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to update heartbeat for experiment %d: %w", id, err)
	}
	return nil
}

// CountRunningExperiments returns the number of experiments currently
// in RUNNING state
func (s *Store) CountRunningExperiments(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM experiments WHERE execution_status = 'RUNNING'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count running experiments: %w", err)
	}
	return count, nil
}

// DeleteOldExperiments removes terminal experiments completed more than
// retention ago. Their action rows go with them via the FK cascade.
// RUNNING experiments are never touched.
func (s *Store) DeleteOldExperiments(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM experiments
		 WHERE execution_status <> 'RUNNING'
		   AND completed_at IS NOT NULL
		   AND completed_at < now() - make_interval(secs => $1)`,
		retention.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old experiments: %w", err)
	}
	return tag.RowsAffected(), nil
}

// FindOrphanedExperiments returns ids of RUNNING experiments whose
// heartbeat (or start, if none) is older than staleAfter
func (s *Store) FindOrphanedExperiments(ctx context.Context, staleAfter time.Duration) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM experiments
		 WHERE execution_status = 'RUNNING'
		   AND completed_at IS NULL
		   AND COALESCE(last_heartbeat_at, started_at) < now() - make_interval(secs => $1)`,
		staleAfter.Seconds(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query orphaned experiments: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan orphaned experiment id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orphaned experiments: %w", err)
	}
	return ids, nil
}
