package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/mazebench/mazebench/pkg/models"
)

// newValidationRouter registers all routes against a server with no
// backing store. Only validation paths (which return 400 before any
// store call) can be exercised through it; happy paths are covered by
// the e2e tests.
func newValidationRouter(s *Server) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/v1/triggers", s.submitTriggerHandler)
	r.POST("/api/v1/mazes", s.createMazeHandler)
	r.GET("/api/v1/mazes/:id", s.getMazeHandler)
	r.GET("/api/v1/experiments", s.listExperimentsHandler)
	r.GET("/api/v1/experiments/:id", s.getExperimentHandler)
	r.GET("/api/v1/experiments/:id/actions", s.listActionsHandler)
	r.GET("/api/v1/experiments/:id/position", s.getPositionHandler)
	return r
}

func TestSubmitTriggerHandler_Validation(t *testing.T) {
	r := newValidationRouter(&Server{})

	tests := []struct {
		name   string
		body   string
		errMsg string
	}{
		{
			name:   "malformed json",
			body:   `{"llm_provider": `,
			errMsg: "unexpected",
		},
		{
			name:   "unknown provider",
			body:   `{"llm_provider": "gpu-farm", "model_name": "m", "maze_id": 1, "prompt_version": "v1"}`,
			errMsg: "invalid llm_provider",
		},
		{
			name:   "missing model name",
			body:   `{"llm_provider": "local-chat", "maze_id": 1, "prompt_version": "v1"}`,
			errMsg: "model_name is required",
		},
		{
			name:   "missing maze id",
			body:   `{"llm_provider": "local-chat", "model_name": "m", "prompt_version": "v1"}`,
			errMsg: "maze_id is required",
		},
		{
			name:   "unknown prompt version",
			body:   `{"llm_provider": "local-chat", "model_name": "m", "maze_id": 1, "prompt_version": "v99"}`,
			errMsg: "invalid prompt_version",
		},
		{
			name:   "local-chat without config",
			body:   `{"llm_provider": "local-chat", "model_name": "m", "maze_id": 1, "prompt_version": "v1"}`,
			errMsg: "config is required for local-chat",
		},
		{
			name:   "local-chat with empty config",
			body:   `{"llm_provider": "local-chat", "model_name": "m", "maze_id": 1, "prompt_version": "v1", "config": {}}`,
			errMsg: "config is required for local-chat",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/triggers", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			r.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.errMsg)
		})
	}
}

func TestValidateTriggerEvent(t *testing.T) {
	temp := 0.7
	ev := models.TriggerEvent{
		LLMProvider:   models.ProviderLocalChat,
		ModelName:     "qwen3:8b",
		MazeID:        1,
		PromptVersion: "v1",
		Config:        &models.EventConfig{Temperature: &temp},
	}
	assert.Empty(t, validateTriggerEvent(&ev))

	ev.Config = nil
	assert.Contains(t, validateTriggerEvent(&ev), "config is required")

	// Managed-agent backends carry their own defaults; config stays optional.
	ev.LLMProvider = models.ProviderManagedAgent
	assert.Empty(t, validateTriggerEvent(&ev))
}
