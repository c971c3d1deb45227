package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mazebench/mazebench/pkg/models"
)

func chatRequestFixture() *ChatRequest {
	return &ChatRequest{
		Model: "qwen3:4b",
		Messages: []ConversationMessage{
			{Role: RoleUser, Content: "you are at (0, 1)"},
		},
		Tools: []ToolDefinition{
			{
				Name:        "move_east",
				Description: "Move one tile east",
				InputSchema: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"experimentId": map[string]any{"type": "integer"},
					},
					"required": []string{"experimentId"},
				},
			},
		},
		Options: Options{
			NumCtx:        4096,
			Temperature:   0.7,
			RepeatPenalty: 1.1,
			NumPredict:    256,
		},
	}
}

func TestLocalClientChat(t *testing.T) {
	var captured localChatRequest
	var capturedKey string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat", r.URL.Path)
		capturedKey = r.Header.Get("X-API-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"message": {
				"role": "assistant",
				"content": "heading east",
				"tool_calls": [
					{"function": {"name": "move_east", "arguments": {"experimentId": 7}}}
				]
			},
			"prompt_eval_count": 120,
			"eval_count": 40,
			"done_reason": "stop"
		}`))
	}))
	defer server.Close()

	client := NewLocalClient(Config{
		BaseURL:        server.URL,
		APIKey:         "test-key",
		RequestTimeout: 5 * time.Second,
	})

	resp, err := client.Chat(context.Background(), chatRequestFixture())
	require.NoError(t, err)

	// Wire request carries the full envelope
	assert.Equal(t, "test-key", capturedKey)
	assert.Equal(t, "qwen3:4b", captured.Model)
	assert.False(t, captured.Stream)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, RoleUser, captured.Messages[0].Role)
	require.Len(t, captured.Tools, 1)
	assert.Equal(t, "function", captured.Tools[0].Type)
	assert.Equal(t, "move_east", captured.Tools[0].Function.Name)
	require.NotNil(t, captured.Options)
	assert.Equal(t, 4096, captured.Options.NumCtx)
	assert.Equal(t, 0.7, captured.Options.Temperature)
	assert.Equal(t, 1.1, captured.Options.RepeatPenalty)
	assert.Equal(t, 256, captured.Options.NumPredict)

	// Response translated
	assert.Equal(t, "heading east", resp.Content)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "move_east", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"experimentId": 7}`, string(resp.ToolCalls[0].Arguments))
	assert.Equal(t, int64(120), resp.Usage.InputTokens)
	assert.Equal(t, int64(40), resp.Usage.OutputTokens)
	assert.Equal(t, "stop", resp.DoneReason)
}

func TestLocalClientSendsToolResults(t *testing.T) {
	var captured localChatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"message": {"role": "assistant", "content": "done"}}`))
	}))
	defer server.Close()

	client := NewLocalClient(Config{BaseURL: server.URL, RequestTimeout: 5 * time.Second})

	req := &ChatRequest{
		Model: "qwen3:4b",
		Messages: []ConversationMessage{
			{Role: RoleUser, Content: "go"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{
				{Name: "move_east", Arguments: json.RawMessage(`{"experimentId":7}`)},
			}},
			{Role: RoleTool, ToolName: "move_east", Content: `{"success":true}`},
		},
	}
	_, err := client.Chat(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, captured.Messages, 3)
	assert.Equal(t, RoleAssistant, captured.Messages[1].Role)
	require.Len(t, captured.Messages[1].ToolCalls, 1)
	assert.Equal(t, "move_east", captured.Messages[1].ToolCalls[0].Function.Name)
	assert.Equal(t, RoleTool, captured.Messages[2].Role)
	assert.Equal(t, "move_east", captured.Messages[2].ToolName)
	assert.Equal(t, `{"success":true}`, captured.Messages[2].Content)
}

func TestLocalClientClassifiesFailures(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantKind models.ErrorKind
		contains string
	}{
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "slow down", http.StatusTooManyRequests)
			},
			wantKind: models.ErrorKindRateLimited,
			contains: "HTTP 429",
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			wantKind: models.ErrorKindTransportError,
			contains: "HTTP 500",
		},
		{
			name: "undecodable body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("not json"))
			},
			wantKind: models.ErrorKindSchemaError,
			contains: "decode",
		},
		{
			name: "missing message envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"prompt_eval_count": 5}`))
			},
			wantKind: models.ErrorKindSchemaError,
			contains: "missing message",
		},
		{
			name: "tool call without function name",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"message": {"role": "assistant", "tool_calls": [{"function": {"arguments": {}}}]}}`))
			},
			wantKind: models.ErrorKindSchemaError,
			contains: "function name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewLocalClient(Config{BaseURL: server.URL, RequestTimeout: 5 * time.Second})
			_, err := client.Chat(context.Background(), chatRequestFixture())

			require.Error(t, err)
			assert.Equal(t, tt.wantKind, models.KindOf(err))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestLocalClientTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewLocalClient(Config{BaseURL: server.URL, RequestTimeout: 20 * time.Millisecond})
	_, err := client.Chat(context.Background(), chatRequestFixture())

	require.Error(t, err)
	assert.Equal(t, models.ErrorKindTransportTimeout, models.KindOf(err))
}

func TestLocalClientConnectionRefused(t *testing.T) {
	// Port reserved then released, nothing listens on it
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	client := NewLocalClient(Config{BaseURL: addr, RequestTimeout: time.Second})
	_, err := client.Chat(context.Background(), chatRequestFixture())

	require.Error(t, err)
	assert.Equal(t, models.ErrorKindTransportError, models.KindOf(err))
}
