package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mazebench/mazebench/pkg/models"
)

// maxErrorBodyBytes bounds how much of an error response is kept for the
// persisted cause string.
const maxErrorBodyBytes = 512

// LocalClient talks to a self-hosted chat-completions endpoint
// (POST {base}/chat, non-streaming). One HTTP call per iteration of the
// turn's tool loop.
type LocalClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewLocalClient creates a client for the local-chat provider.
func NewLocalClient(cfg Config) *LocalClient {
	return &LocalClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

// localChatRequest is the wire request envelope.
type localChatRequest struct {
	Model    string         `json:"model"`
	Messages []localMessage `json:"messages"`
	Tools    []localTool    `json:"tools,omitempty"`
	Options  *localOptions  `json:"options,omitempty"`
	Stream   bool           `json:"stream"`
}

type localMessage struct {
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	ToolCalls []localToolCall `json:"tool_calls,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
}

type localTool struct {
	Type     string            `json:"type"`
	Function localToolFunction `json:"function"`
}

type localToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type localOptions struct {
	NumCtx        int     `json:"num_ctx,omitempty"`
	Temperature   float64 `json:"temperature,omitempty"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
	NumPredict    int     `json:"num_predict,omitempty"`
}

// localChatResponse is the wire response envelope.
type localChatResponse struct {
	Message         *localMessage `json:"message"`
	PromptEvalCount int64         `json:"prompt_eval_count"`
	EvalCount       int64         `json:"eval_count"`
	DoneReason      string        `json:"done_reason"`
}

type localToolCall struct {
	Function localCallFunction `json:"function"`
}

type localCallFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Chat sends one non-streaming request. Failures come back classified:
// request timeout as TRANSPORT_TIMEOUT, HTTP 429 as RATE_LIMITED, other
// non-2xx or network failures as TRANSPORT_ERROR, and undecodable bodies
// as SCHEMA_ERROR.
func (c *LocalClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, models.Classifiedf(models.ErrorKindInternal, "failed to encode chat request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, models.Classifiedf(models.ErrorKindInternal, "failed to build chat request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, models.Classifiedf(models.ErrorKindTransportTimeout, "chat request timed out: %v", err)
		}
		return nil, models.Classifiedf(models.ErrorKindTransportError, "chat request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, models.Classifiedf(models.ErrorKindRateLimited, "HTTP 429: %s", readErrorBody(resp.Body))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, models.Classifiedf(models.ErrorKindTransportError, "HTTP %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	var wire localChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, models.Classifiedf(models.ErrorKindSchemaError, "failed to decode chat response: %v", err)
	}
	if wire.Message == nil {
		return nil, models.Classifiedf(models.ErrorKindSchemaError, "chat response missing message envelope")
	}

	out := &ChatResponse{
		Content: wire.Message.Content,
		Usage: Usage{
			InputTokens:  wire.PromptEvalCount,
			OutputTokens: wire.EvalCount,
		},
		DoneReason: wire.DoneReason,
	}
	for _, tc := range wire.Message.ToolCalls {
		if tc.Function.Name == "" {
			return nil, models.Classifiedf(models.ErrorKindSchemaError, "chat response tool call missing function name")
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

// buildRequest converts the provider-neutral request to the wire shape.
func (c *LocalClient) buildRequest(req *ChatRequest) *localChatRequest {
	wire := &localChatRequest{
		Model:  req.Model,
		Stream: false,
		Options: &localOptions{
			NumCtx:        req.Options.NumCtx,
			Temperature:   req.Options.Temperature,
			RepeatPenalty: req.Options.RepeatPenalty,
			NumPredict:    req.Options.NumPredict,
		},
	}

	for _, msg := range req.Messages {
		wireMsg := localMessage{
			Role:     msg.Role,
			Content:  msg.Content,
			ToolName: msg.ToolName,
		}
		for _, tc := range msg.ToolCalls {
			wireMsg.ToolCalls = append(wireMsg.ToolCalls, localToolCall{
				Function: localCallFunction{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		wire.Messages = append(wire.Messages, wireMsg)
	}

	for _, tool := range req.Tools {
		wire.Tools = append(wire.Tools, localTool{
			Type: "function",
			Function: localToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.InputSchema,
			},
		})
	}
	return wire
}

// isTimeout reports whether a transport error was a timeout rather than
// a connection failure.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var timeoutErr interface{ Timeout() bool }
	return errors.As(err, &timeoutErr) && timeoutErr.Timeout()
}

// readErrorBody captures a bounded snippet of an error response body.
func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBodyBytes))
	if err != nil || len(data) == 0 {
		return "(no body)"
	}
	return strings.TrimSpace(string(data))
}

var _ ChatClient = (*LocalClient)(nil)

// String identifies the transport in logs.
func (c *LocalClient) String() string {
	return fmt.Sprintf("local-chat(%s)", c.baseURL)
}
