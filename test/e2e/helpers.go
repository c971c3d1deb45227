package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mazebench/mazebench/pkg/models"
)

// ────────────────────────────────────────────────────────────
// HTTP Client Helpers
// ────────────────────────────────────────────────────────────

// CreateMaze posts a row-picture maze and returns its id.
func (app *TestApp) CreateMaze(t *testing.T, name string, rows []string) int64 {
	t.Helper()
	resp := app.postJSON(t, "/api/v1/mazes", map[string]any{
		"name": name,
		"rows": rows,
	}, http.StatusCreated)
	return int64(resp["id"].(float64))
}

// TriggerBody builds the default local-chat trigger envelope for a maze.
func TriggerBody(mazeID int64) map[string]any {
	return map[string]any{
		"llm_provider":   string(models.ProviderLocalChat),
		"model_name":     testModelName,
		"maze_id":        mazeID,
		"prompt_version": "v1",
		"config": map[string]any{
			"temperature": 0.2,
			"num_ctx":     4096,
		},
	}
}

// SubmitTrigger posts a default trigger for the maze and returns the
// parsed response.
func (app *TestApp) SubmitTrigger(t *testing.T, mazeID int64) map[string]any {
	t.Helper()
	return app.postJSON(t, "/api/v1/triggers", TriggerBody(mazeID), http.StatusAccepted)
}

// SubmitTriggerWithMessageID posts a trigger carrying an explicit
// message id (dedup token).
func (app *TestApp) SubmitTriggerWithMessageID(t *testing.T, mazeID int64, messageID string) map[string]any {
	t.Helper()
	body := TriggerBody(mazeID)
	body["message_id"] = messageID
	return app.postJSON(t, "/api/v1/triggers", body, http.StatusAccepted)
}

func (app *TestApp) postJSON(t *testing.T, path string, body any, expectedStatus int) map[string]any {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, app.BaseURL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, expectedStatus, resp.StatusCode, "POST %s: unexpected status", path)
	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

func (app *TestApp) getJSON(t *testing.T, path string, expectedStatus int) map[string]any {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, app.BaseURL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, expectedStatus, resp.StatusCode, "GET %s: unexpected status", path)
	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

// GetExperiment retrieves an experiment via the API.
func (app *TestApp) GetExperiment(t *testing.T, id int64) map[string]any {
	t.Helper()
	return app.getJSON(t, fmt.Sprintf("/api/v1/experiments/%d", id), http.StatusOK)
}

// GetActions retrieves the action audit trail via the API.
func (app *TestApp) GetActions(t *testing.T, experimentID int64) map[string]any {
	t.Helper()
	return app.getJSON(t, fmt.Sprintf("/api/v1/experiments/%d/actions", experimentID), http.StatusOK)
}

// GetPosition retrieves the derived current position via the API.
func (app *TestApp) GetPosition(t *testing.T, experimentID int64) map[string]any {
	t.Helper()
	return app.getJSON(t, fmt.Sprintf("/api/v1/experiments/%d/position", experimentID), http.StatusOK)
}

// GetHealth calls GET /api/v1/health.
func (app *TestApp) GetHealth(t *testing.T) map[string]any {
	t.Helper()
	return app.getJSON(t, "/api/v1/health", http.StatusOK)
}

// ────────────────────────────────────────────────────────────
// Polling Helpers
// ────────────────────────────────────────────────────────────

// WaitForExperiment polls until an experiment for the maze exists and
// returns the newest one.
func (app *TestApp) WaitForExperiment(t *testing.T, mazeID int64) *models.Experiment {
	t.Helper()
	var exp *models.Experiment
	require.Eventually(t, func() bool {
		resp, err := app.Store.ListExperiments(context.Background(), models.ExperimentFilters{MazeID: mazeID})
		if err != nil || resp.TotalCount == 0 {
			return false
		}
		exp = resp.Experiments[0]
		return true
	}, 30*time.Second, 100*time.Millisecond,
		"no experiment appeared for maze %d", mazeID)
	return exp
}

// WaitForExperimentStatus polls the DB until the experiment reaches one
// of the expected statuses and returns the refreshed row.
func (app *TestApp) WaitForExperimentStatus(t *testing.T, experimentID int64, expected ...models.ExecutionStatus) *models.Experiment {
	t.Helper()
	var (
		exp  *models.Experiment
		last models.ExecutionStatus
	)
	require.Eventually(t, func() bool {
		row, err := app.Store.GetExperiment(context.Background(), experimentID)
		if err != nil {
			return false
		}
		exp, last = row, row.ExecutionStatus
		for _, want := range expected {
			if row.ExecutionStatus == want {
				return true
			}
		}
		return false
	}, 30*time.Second, 100*time.Millisecond,
		"experiment %d did not reach status %v (last: %s)", experimentID, expected, last)
	return exp
}

// WaitForExperimentCount polls until exactly n experiments exist for
// the maze.
func (app *TestApp) WaitForExperimentCount(t *testing.T, mazeID int64, n int) []*models.Experiment {
	t.Helper()
	var experiments []*models.Experiment
	var lastCount int
	require.Eventually(t, func() bool {
		resp, err := app.Store.ListExperiments(context.Background(), models.ExperimentFilters{MazeID: mazeID})
		if err != nil {
			return false
		}
		experiments, lastCount = resp.Experiments, resp.TotalCount
		return lastCount == n
	}, 30*time.Second, 100*time.Millisecond,
		"expected %d experiments for maze %d, last saw %d", n, mazeID, lastCount)
	return experiments
}

// ────────────────────────────────────────────────────────────
// Trigger Row Helpers
// ────────────────────────────────────────────────────────────

// triggerRow is the observable state of one queued trigger.
type triggerRow struct {
	Status    models.TriggerStatus
	Attempts  int
	PodID     string
	LastError string
}

// TriggerState reads the trigger row directly; the API deliberately has
// no trigger read surface.
func (app *TestApp) TriggerState(t *testing.T, triggerID int64) triggerRow {
	t.Helper()
	var row triggerRow
	err := app.Pool.QueryRow(context.Background(),
		`SELECT status, attempts, COALESCE(pod_id, ''), COALESCE(last_error, '')
		 FROM trigger_events WHERE id = $1`,
		triggerID,
	).Scan(&row.Status, &row.Attempts, &row.PodID, &row.LastError)
	require.NoError(t, err)
	return row
}

// WaitForTriggerStatus polls until the trigger reaches the expected
// status and returns the row.
func (app *TestApp) WaitForTriggerStatus(t *testing.T, triggerID int64, expected models.TriggerStatus) triggerRow {
	t.Helper()
	var row triggerRow
	require.Eventually(t, func() bool {
		var err error
		row, err = triggerState(app, triggerID)
		return err == nil && row.Status == expected
	}, 30*time.Second, 100*time.Millisecond,
		"trigger %d did not reach status %s (last: %s)", triggerID, expected, row.Status)
	return row
}

// triggerState is the error-returning variant used inside Eventually
// conditions, where require must not fire from the polling closure.
func triggerState(app *TestApp, triggerID int64) (triggerRow, error) {
	var row triggerRow
	err := app.Pool.QueryRow(context.Background(),
		`SELECT status, attempts, COALESCE(pod_id, ''), COALESCE(last_error, '')
		 FROM trigger_events WHERE id = $1`,
		triggerID,
	).Scan(&row.Status, &row.Attempts, &row.PodID, &row.LastError)
	return row, err
}

// triggerIDFrom extracts the trigger id from a submit response.
func triggerIDFrom(t *testing.T, resp map[string]any) int64 {
	t.Helper()
	id, ok := resp["trigger_id"].(float64)
	require.True(t, ok, "trigger response missing trigger_id: %v", resp)
	return int64(id)
}
