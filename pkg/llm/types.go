// Package llm provides the chat transports for the two provider
// families: a self-hosted chat-completions endpoint (local-chat) and
// the Anthropic Messages API (managed-agent). Both implement the same
// non-streaming ChatClient surface, and both return transport failures
// classified with the experiment error taxonomy. Requests are never
// retried here.
package llm

import (
	"context"
	"encoding/json"
	"time"
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ConversationMessage is one entry of a turn's conversation buffer
type ConversationMessage struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall // assistant messages that requested tools
	ToolName   string     // tool result messages
	ToolCallID string     // tool result messages (managed provider correlation)
}

// ToolCall is a model's request to invoke one tool. ID is empty for the
// local provider, which correlates results by position.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolDefinition describes one tool offered to the model. InputSchema
// is a JSON-Schema object descriptor.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Options are the inference knobs forwarded to the backend
type Options struct {
	NumCtx        int
	Temperature   float64
	RepeatPenalty float64
	NumPredict    int
}

// Usage reports token consumption for one chat call
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// ChatRequest is one model invocation within a turn
type ChatRequest struct {
	Model    string
	Messages []ConversationMessage
	Tools    []ToolDefinition
	Options  Options
}

// ChatResponse is the decoded backend reply
type ChatResponse struct {
	Content    string
	ToolCalls  []ToolCall
	Usage      Usage
	DoneReason string
}

// ChatClient is the provider-neutral chat surface used by the agent
// invoker
type ChatClient interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// Config describes one chat endpoint
type Config struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	// MaxTokens caps completion length for the managed provider when the
	// request does not set num_predict.
	MaxTokens int
}
