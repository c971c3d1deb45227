package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/mazebench/mazebench/pkg/models"
)

// ChatScriptEntry defines one scripted response from the chat backend.
// Entries are consumed in request order; an exhausted script answers
// with plain content so the run stalls deterministically instead of
// hanging.
type ChatScriptEntry struct {
	// Normal response fields.
	Content   string
	ToolCalls []ScriptedToolCall

	// Token usage reported with the response. Both zero means the
	// defaults (10 in, 5 out) so every response carries plausible usage.
	InputTokens  int64
	OutputTokens int64

	// Failure injection. StatusCode replies with that HTTP status and
	// ErrorBody; RawBody replies 200 with the exact bytes; Delay sleeps
	// before answering (timeout tests).
	StatusCode int
	ErrorBody  string
	RawBody    string
	Delay      time.Duration
}

// ScriptedToolCall is one tool request inside a scripted response. The
// experimentId argument is stamped at reply time from the turn prompt,
// because scripts are written before the experiment row exists.
type ScriptedToolCall struct {
	Name      string
	Reasoning string

	// OmitExperimentID leaves experimentId out of the arguments.
	// ExperimentID overrides the stamped id when non-zero. RawArguments
	// replaces the whole arguments object.
	OmitExperimentID bool
	ExperimentID     int64
	RawArguments     string
}

// moveCall scripts a movement request in the given direction.
func moveCall(action models.ActionType, reasoning string) ScriptedToolCall {
	return ScriptedToolCall{Name: string(action), Reasoning: reasoning}
}

// recallCall scripts a recall request.
func recallCall(reasoning string) ScriptedToolCall {
	return ScriptedToolCall{Name: string(models.ActionRecall), Reasoning: reasoning}
}

// ────────────────────────────────────────────────────────────
// Wire mirror of the local-chat protocol. Defined independently of
// pkg/llm so the mock asserts the wire contract, not the client's
// internal types.
// ────────────────────────────────────────────────────────────

type wireRequest struct {
	Model    string         `json:"model"`
	Messages []wireMessage  `json:"messages"`
	Tools    []wireTool     `json:"tools"`
	Options  map[string]any `json:"options"`
	Stream   bool           `json:"stream"`
}

type wireMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
	ToolName  string         `json:"tool_name,omitempty"`
}

type wireTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

type wireToolCall struct {
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type wireResponse struct {
	Message         *wireMessage `json:"message"`
	PromptEvalCount int64        `json:"prompt_eval_count"`
	EvalCount       int64        `json:"eval_count"`
	DoneReason      string       `json:"done_reason"`
}

// experimentIDPattern matches the id line of the turn prompt's state
// section.
var experimentIDPattern = regexp.MustCompile(`Experiment id: (\d+)`)

// MockChatBackend serves the local-chat protocol (POST /chat) on a real
// HTTP listener. Only the model is faked; the client, transport, and
// wire encoding under test are the production ones.
type MockChatBackend struct {
	mu       sync.Mutex
	script   []ChatScriptEntry
	index    int
	requests []wireRequest
	srv      *httptest.Server
}

// NewMockChatBackend starts the backend; shutdown is registered via
// t.Cleanup.
func NewMockChatBackend(t *testing.T) *MockChatBackend {
	t.Helper()
	m := &MockChatBackend{}
	m.srv = httptest.NewServer(http.HandlerFunc(m.handle))
	t.Cleanup(m.srv.Close)
	return m
}

// URL returns the backend's base URL for the provider registry.
func (m *MockChatBackend) URL() string {
	return m.srv.URL
}

// Enqueue appends entries to the script.
func (m *MockChatBackend) Enqueue(entries ...ChatScriptEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, entries...)
}

// CallCount returns how many chat requests the backend has served.
func (m *MockChatBackend) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Request returns the i-th captured request.
func (m *MockChatBackend) Request(i int) wireRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[i]
}

func (m *MockChatBackend) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/chat" {
		http.NotFound(w, r)
		return
	}

	var req wireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	entry := ChatScriptEntry{Content: "script exhausted, yielding"}
	if m.index < len(m.script) {
		entry = m.script[m.index]
		m.index++
	}
	m.mu.Unlock()

	if entry.Delay > 0 {
		select {
		case <-time.After(entry.Delay):
		case <-r.Context().Done():
			return
		}
	}
	if entry.StatusCode != 0 {
		http.Error(w, entry.ErrorBody, entry.StatusCode)
		return
	}
	if entry.RawBody != "" {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(entry.RawBody))
		return
	}

	expID := experimentIDFrom(req.Messages)
	resp := wireResponse{
		Message:         &wireMessage{Role: "assistant", Content: entry.Content},
		PromptEvalCount: entry.InputTokens,
		EvalCount:       entry.OutputTokens,
		DoneReason:      "stop",
	}
	if resp.PromptEvalCount == 0 && resp.EvalCount == 0 {
		resp.PromptEvalCount, resp.EvalCount = 10, 5
	}
	for _, call := range entry.ToolCalls {
		var wc wireToolCall
		wc.Function.Name = call.Name
		wc.Function.Arguments = buildArguments(call, expID)
		resp.Message.ToolCalls = append(resp.Message.ToolCalls, wc)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(&resp)
}

// buildArguments renders the arguments object for one scripted call.
func buildArguments(call ScriptedToolCall, stampedID int64) json.RawMessage {
	if call.RawArguments != "" {
		return json.RawMessage(call.RawArguments)
	}
	args := map[string]any{}
	switch {
	case call.OmitExperimentID:
	case call.ExperimentID != 0:
		args["experimentId"] = call.ExperimentID
	default:
		args["experimentId"] = stampedID
	}
	if call.Reasoning != "" {
		args["reasoning"] = call.Reasoning
	}
	data, _ := json.Marshal(args)
	return data
}

// experimentIDFrom extracts the experiment id from the conversation's
// opening user message.
func experimentIDFrom(messages []wireMessage) int64 {
	for _, msg := range messages {
		if msg.Role != "user" {
			continue
		}
		if match := experimentIDPattern.FindStringSubmatch(msg.Content); match != nil {
			id, _ := strconv.ParseInt(match[1], 10, 64)
			return id
		}
	}
	return 0
}
