package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateMazeHandler_Validation(t *testing.T) {
	r := newValidationRouter(&Server{})

	tests := []struct {
		name   string
		body   string
		errMsg string
	}{
		{
			name:   "missing name",
			body:   `{"rows": ["S.G"]}`,
			errMsg: "name is required",
		},
		{
			name:   "rows and grid both set",
			body:   `{"name": "m", "rows": ["S.G"], "grid": [[0, 0, 2]]}`,
			errMsg: "not both",
		},
		{
			name:   "neither rows nor grid",
			body:   `{"name": "m"}`,
			errMsg: "either rows or grid is required",
		},
		{
			name:   "unknown tile rune",
			body:   `{"name": "m", "rows": ["S?G"]}`,
			errMsg: "unknown tile rune",
		},
		{
			name:   "rows without start",
			body:   `{"name": "m", "rows": [".#G"]}`,
			errMsg: "start cell",
		},
		{
			name:   "grid without goal",
			body:   `{"name": "m", "grid": [[0, 0, 0]], "start_x": 0, "start_y": 0}`,
			errMsg: "exactly one goal",
		},
		{
			name:   "grid start on wall",
			body:   `{"name": "m", "grid": [[1, 0, 2]], "start_x": 0, "start_y": 0}`,
			errMsg: "start position must be an empty tile",
		},
		{
			name:   "ragged grid",
			body:   `{"name": "m", "grid": [[0, 0, 2], [0, 0]], "start_x": 0, "start_y": 0}`,
			errMsg: "expected 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/mazes", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			r.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.errMsg)
		})
	}
}

func TestGetMazeHandler_InvalidID(t *testing.T) {
	r := newValidationRouter(&Server{})

	for _, id := range []string{"abc", "0", "-3"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/mazes/"+id, nil)
		rec := httptest.NewRecorder()

		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "id %q", id)
		assert.Contains(t, rec.Body.String(), "invalid id")
	}
}
