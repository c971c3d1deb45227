package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mazebench/mazebench/pkg/llm"
	"github.com/mazebench/mazebench/pkg/models"
	"github.com/mazebench/mazebench/pkg/prompt"
	"github.com/mazebench/mazebench/pkg/tools"
)

// scriptedChat replays canned responses and captures each request with
// a deep copy of the conversation at call time.
type scriptedChat struct {
	responses []*llm.ChatResponse
	errs      []error
	requests  []*llm.ChatRequest
}

func (s *scriptedChat) Chat(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	captured := *req
	captured.Messages = append([]llm.ConversationMessage(nil), req.Messages...)
	s.requests = append(s.requests, &captured)

	call := len(s.requests) - 1
	if call < len(s.errs) && s.errs[call] != nil {
		return nil, s.errs[call]
	}
	if call >= len(s.responses) {
		return nil, fmt.Errorf("unexpected chat call %d", call+1)
	}
	return s.responses[call], nil
}

// scriptedDispatcher pops outcomes in execution order
type scriptedDispatcher struct {
	outcomes []*tools.Outcome
	errs     []error
	calls    []llm.ToolCall
	turns    []int
}

func (s *scriptedDispatcher) Execute(_ context.Context, call llm.ToolCall, turnNumber int) (*tools.Outcome, error) {
	s.calls = append(s.calls, call)
	s.turns = append(s.turns, turnNumber)

	idx := len(s.calls) - 1
	if idx < len(s.errs) && s.errs[idx] != nil {
		return nil, s.errs[idx]
	}
	if idx >= len(s.outcomes) {
		return nil, fmt.Errorf("unexpected dispatch %d", idx+1)
	}
	return s.outcomes[idx], nil
}

func invokerExperiment() *models.Experiment {
	return &models.Experiment{
		ID:            7,
		MazeID:        1,
		ModelName:     "qwen3:4b",
		PromptVersion: "v1",
		LLMProvider:   models.ProviderLocalChat,
		ModelConfig: models.ModelConfig{
			Temperature:        0.2,
			NumPredict:         512,
			RecallInterval:     3,
			MaxRecallActions:   50,
			MaxMoves:           100,
			MaxDurationMinutes: 60,
			MaxActionsPerTurn:  5,
			VisionRange:        2,
		},
	}
}

func toolCall(name string, id string) llm.ToolCall {
	args, _ := json.Marshal(map[string]any{"experimentId": 7})
	return llm.ToolCall{ID: id, Name: name, Arguments: args}
}

func moveOutcome(x, y int, goal bool) *tools.Outcome {
	return &tools.Outcome{
		Action: &models.AgentAction{ExperimentID: 7, ActionType: models.ActionMoveEast, Success: true, ToX: &x, ToY: &y},
		Result: tools.Result{
			Success:  true,
			Message:  fmt.Sprintf("moved east to (%d, %d)", x, y),
			Position: models.Position{X: x, Y: y},
		},
		GoalReached: goal,
	}
}

func recallOutcome() *tools.Outcome {
	return &tools.Outcome{
		Action: &models.AgentAction{ExperimentID: 7, ActionType: models.ActionRecall, Success: true},
		Result: tools.Result{Success: true, Message: "recalled 3 previously seen tiles"},
	}
}

func textResponse(text string, in, out int64) *llm.ChatResponse {
	return &llm.ChatResponse{
		Content:    text,
		Usage:      llm.Usage{InputTokens: in, OutputTokens: out},
		DoneReason: "stop",
	}
}

func toolResponse(in, out int64, calls ...llm.ToolCall) *llm.ChatResponse {
	return &llm.ChatResponse{
		ToolCalls:  calls,
		Usage:      llm.Usage{InputTokens: in, OutputTokens: out},
		DoneReason: "tool_use",
	}
}

func TestRunTurnYieldsWithoutToolCalls(t *testing.T) {
	chat := &scriptedChat{responses: []*llm.ChatResponse{textResponse("I am done exploring.", 120, 30)}}
	dispatcher := &scriptedDispatcher{}
	exp := invokerExperiment()
	inv := NewInvoker(chat, dispatcher, prompt.NewBuilder(), exp, CostRates{})

	result, err := inv.RunTurn(context.Background(), models.Position{X: 0, Y: 1}, 1, 100)
	require.NoError(t, err)

	assert.Equal(t, 1, result.TurnNumber)
	assert.Zero(t, result.Actions)
	assert.False(t, result.Capped)
	assert.False(t, result.GoalReached)
	assert.Equal(t, int64(120), result.InputTokens)
	assert.Equal(t, int64(30), result.OutputTokens)
	assert.Empty(t, dispatcher.calls)

	require.Len(t, chat.requests, 1)
	req := chat.requests[0]
	assert.Equal(t, "qwen3:4b", req.Model)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, llm.RoleUser, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "Current position: (0, 1)")
	assert.Contains(t, req.Messages[0].Content, `"experimentId": 7`)
	assert.Len(t, req.Tools, 5)
	assert.Equal(t, 0.2, req.Options.Temperature)
	assert.Equal(t, 512, req.Options.NumPredict)
}

func TestRunTurnExecutesToolCallsInOrder(t *testing.T) {
	chat := &scriptedChat{responses: []*llm.ChatResponse{
		toolResponse(100, 40, toolCall("move_east", "c1"), toolCall("move_east", "c2")),
		textResponse("Continuing next turn.", 200, 20),
	}}
	dispatcher := &scriptedDispatcher{outcomes: []*tools.Outcome{
		moveOutcome(1, 1, false),
		moveOutcome(2, 1, false),
	}}
	exp := invokerExperiment()
	inv := NewInvoker(chat, dispatcher, prompt.NewBuilder(), exp, CostRates{InputPer1K: 0.01, OutputPer1K: 0.03})

	result, err := inv.RunTurn(context.Background(), models.Position{X: 0, Y: 1}, 2, 100)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Actions)
	assert.False(t, result.Capped)
	assert.False(t, result.GoalReached)
	assert.Equal(t, int64(300), result.InputTokens)
	assert.Equal(t, int64(60), result.OutputTokens)
	assert.InDelta(t, 300.0/1000*0.01+60.0/1000*0.03, result.CostUSD, 1e-9)

	require.Len(t, dispatcher.calls, 2)
	assert.Equal(t, "c1", dispatcher.calls[0].ID)
	assert.Equal(t, "c2", dispatcher.calls[1].ID)
	assert.Equal(t, []int{2, 2}, dispatcher.turns)

	// Second request carries the transcript: user, assistant, two tool results.
	require.Len(t, chat.requests, 2)
	second := chat.requests[1].Messages
	require.Len(t, second, 4)
	assert.Equal(t, llm.RoleAssistant, second[1].Role)
	require.Len(t, second[1].ToolCalls, 2)
	assert.Equal(t, llm.RoleTool, second[2].Role)
	assert.Equal(t, "move_east", second[2].ToolName)
	assert.Equal(t, "c1", second[2].ToolCallID)
	assert.Contains(t, second[2].Content, `"success":true`)
	assert.Contains(t, second[3].Content, "moved east to (2, 1)")
}

func TestRunTurnGoalShortCircuits(t *testing.T) {
	chat := &scriptedChat{responses: []*llm.ChatResponse{
		toolResponse(90, 25,
			toolCall("move_east", "c1"),
			toolCall("move_east", "c2"),
			toolCall("move_east", "c3")),
	}}
	dispatcher := &scriptedDispatcher{outcomes: []*tools.Outcome{
		moveOutcome(1, 1, false),
		moveOutcome(2, 1, true),
	}}
	inv := NewInvoker(chat, dispatcher, prompt.NewBuilder(), invokerExperiment(), CostRates{})

	result, err := inv.RunTurn(context.Background(), models.Position{X: 0, Y: 1}, 1, 100)
	require.NoError(t, err)

	assert.True(t, result.GoalReached)
	assert.Equal(t, 2, result.Actions)
	assert.False(t, result.Capped)
	// The third requested call is discarded; the model is not called again.
	assert.Len(t, dispatcher.calls, 2)
	assert.Len(t, chat.requests, 1)
}

func TestRunTurnCapsWithinOneResponse(t *testing.T) {
	exp := invokerExperiment()
	exp.ModelConfig.MaxActionsPerTurn = 2

	chat := &scriptedChat{responses: []*llm.ChatResponse{
		toolResponse(80, 20,
			toolCall("move_east", "c1"),
			toolCall("move_east", "c2"),
			toolCall("move_east", "c3")),
	}}
	dispatcher := &scriptedDispatcher{outcomes: []*tools.Outcome{
		moveOutcome(1, 1, false),
		moveOutcome(2, 1, false),
	}}
	inv := NewInvoker(chat, dispatcher, prompt.NewBuilder(), exp, CostRates{})

	result, err := inv.RunTurn(context.Background(), models.Position{X: 0, Y: 1}, 1, 100)
	require.NoError(t, err)

	assert.True(t, result.Capped)
	assert.Equal(t, 2, result.Actions)
	assert.Len(t, dispatcher.calls, 2)
	assert.Len(t, chat.requests, 1)
}

func TestRunTurnCapSpansModelRoundTrips(t *testing.T) {
	exp := invokerExperiment()
	exp.ModelConfig.MaxActionsPerTurn = 3

	chat := &scriptedChat{responses: []*llm.ChatResponse{
		toolResponse(100, 30, toolCall("move_east", "c1"), toolCall("move_east", "c2")),
		toolResponse(150, 35, toolCall("move_east", "c3"), toolCall("move_east", "c4")),
	}}
	dispatcher := &scriptedDispatcher{outcomes: []*tools.Outcome{
		moveOutcome(1, 1, false),
		moveOutcome(2, 1, false),
		moveOutcome(3, 1, false),
	}}
	inv := NewInvoker(chat, dispatcher, prompt.NewBuilder(), exp, CostRates{})

	result, err := inv.RunTurn(context.Background(), models.Position{X: 0, Y: 1}, 1, 100)
	require.NoError(t, err)

	assert.True(t, result.Capped)
	assert.Equal(t, 3, result.Actions)
	assert.Equal(t, int64(250), result.InputTokens)
	assert.Equal(t, int64(65), result.OutputTokens)
	require.Len(t, dispatcher.calls, 3)
	assert.Equal(t, "c3", dispatcher.calls[2].ID)
	assert.Len(t, chat.requests, 2)
}

func TestRunTurnCapsAtMovementBudget(t *testing.T) {
	chat := &scriptedChat{responses: []*llm.ChatResponse{
		toolResponse(70, 15,
			toolCall("recall", "c1"),
			toolCall("move_east", "c2"),
			toolCall("move_east", "c3")),
	}}
	dispatcher := &scriptedDispatcher{outcomes: []*tools.Outcome{
		recallOutcome(),
		moveOutcome(1, 1, false),
	}}
	inv := NewInvoker(chat, dispatcher, prompt.NewBuilder(), invokerExperiment(), CostRates{})

	// One movement left: the recall executes freely, the first move uses
	// the budget, the second move caps the turn.
	result, err := inv.RunTurn(context.Background(), models.Position{X: 0, Y: 1}, 1, 1)
	require.NoError(t, err)

	assert.True(t, result.Capped)
	assert.Equal(t, 2, result.Actions)
	require.Len(t, dispatcher.calls, 2)
	assert.Equal(t, "recall", dispatcher.calls[0].Name)
	assert.Equal(t, "move_east", dispatcher.calls[1].Name)
	assert.Len(t, chat.requests, 1)
}

func TestRunTurnChatFailure(t *testing.T) {
	chat := &scriptedChat{errs: []error{
		models.Classifiedf(models.ErrorKindTransportError, "HTTP 500: boom"),
	}}
	inv := NewInvoker(chat, &scriptedDispatcher{}, prompt.NewBuilder(), invokerExperiment(), CostRates{})

	result, err := inv.RunTurn(context.Background(), models.Position{}, 3, 100)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, models.ErrorKindTransportError, models.KindOf(err))
}

func TestRunTurnDispatchFailure(t *testing.T) {
	chat := &scriptedChat{responses: []*llm.ChatResponse{
		toolResponse(50, 10, toolCall("move_east", "c1")),
	}}
	dispatcher := &scriptedDispatcher{errs: []error{
		models.Classifiedf(models.ErrorKindToolDispatchFailed, "connection reset"),
	}}
	inv := NewInvoker(chat, dispatcher, prompt.NewBuilder(), invokerExperiment(), CostRates{})

	result, err := inv.RunTurn(context.Background(), models.Position{}, 1, 100)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, models.ErrorKindToolDispatchFailed, models.KindOf(err))
}

func TestRunTurnUnknownPromptVersion(t *testing.T) {
	exp := invokerExperiment()
	exp.PromptVersion = "v9"
	chat := &scriptedChat{}
	inv := NewInvoker(chat, &scriptedDispatcher{}, prompt.NewBuilder(), exp, CostRates{})

	result, err := inv.RunTurn(context.Background(), models.Position{}, 1, 100)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, models.ErrorKindConfigMissing, models.KindOf(err))
	assert.Empty(t, chat.requests)
}

func TestCostRates(t *testing.T) {
	r := CostRates{InputPer1K: 0.003, OutputPer1K: 0.015}
	assert.InDelta(t, 0.003*2+0.015*1, r.Cost(2000, 1000), 1e-9)
	assert.Zero(t, CostRates{}.Cost(5000, 5000))
}
