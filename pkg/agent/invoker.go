// Package agent runs single turns of model interaction: it opens a
// fresh conversation with the turn prompt, relays tool requests to the
// dispatcher, feeds structured observations back, and accounts tokens.
// A turn is one externally observable step of the scheduler but may
// contain several model round trips.
package agent

import (
	"context"
	"log/slog"

	"github.com/mazebench/mazebench/pkg/llm"
	"github.com/mazebench/mazebench/pkg/models"
	"github.com/mazebench/mazebench/pkg/prompt"
	"github.com/mazebench/mazebench/pkg/tools"
)

// ToolDispatcher executes one tool call against world state
type ToolDispatcher interface {
	Execute(ctx context.Context, call llm.ToolCall, turnNumber int) (*tools.Outcome, error)
}

var _ ToolDispatcher = (*tools.Dispatcher)(nil)

// CostRates prices tokens for one (provider, model) pair, in USD per
// thousand tokens
type CostRates struct {
	InputPer1K  float64
	OutputPer1K float64
}

// Cost converts a turn's token counts into dollars
func (r CostRates) Cost(inputTokens, outputTokens int64) float64 {
	return float64(inputTokens)/1000*r.InputPer1K + float64(outputTokens)/1000*r.OutputPer1K
}

// TurnResult is what one completed turn reports to the scheduler.
// Token and cost deltas cover every model call the turn made; the
// scheduler persists them atomically.
type TurnResult struct {
	TurnNumber int

	// Actions is the number of tool calls actually executed (and
	// therefore persisted as audit rows).
	Actions int

	// Capped is set when the per-turn action budget stopped the turn.
	// Remaining requested calls were discarded, not deferred.
	Capped bool

	// GoalReached is set when a successful move entered the goal tile.
	GoalReached bool

	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
}

// Invoker runs turns for a single experiment. The conversation buffer
// is rebuilt from scratch every turn; the model carries no positional
// memory across turns, so each opening message restates the full
// current state.
type Invoker struct {
	chat       llm.ChatClient
	dispatcher ToolDispatcher
	prompts    *prompt.Builder
	defs       []llm.ToolDefinition
	exp        *models.Experiment
	rates      CostRates
}

// NewInvoker creates an invoker bound to one experiment
func NewInvoker(chat llm.ChatClient, dispatcher ToolDispatcher, prompts *prompt.Builder, exp *models.Experiment, rates CostRates) *Invoker {
	return &Invoker{
		chat:       chat,
		dispatcher: dispatcher,
		prompts:    prompts,
		defs:       tools.Definitions(),
		exp:        exp,
		rates:      rates,
	}
}

// RunTurn executes one turn starting from pos. The loop sends the
// conversation to the model, executes requested tool calls in order,
// and repeats until the model yields, the per-turn cap hits, or a move
// reaches the goal. remainingMoves is the experiment's unused movement
// budget; the turn caps rather than execute a movement beyond it, which
// keeps the total movement count within max_moves even when the
// per-turn action cap is larger than what is left. Any error is
// classified and fails the turn immediately; nothing is retried.
func (inv *Invoker) RunTurn(ctx context.Context, pos models.Position, turnNumber, remainingMoves int) (*TurnResult, error) {
	opening, err := inv.prompts.BuildTurnMessage(inv.exp, pos, turnNumber)
	if err != nil {
		return nil, err
	}

	conversation := []llm.ConversationMessage{{Role: llm.RoleUser, Content: opening}}
	result := &TurnResult{TurnNumber: turnNumber}
	movements := 0

	for {
		resp, err := inv.chat.Chat(ctx, &llm.ChatRequest{
			Model:    inv.exp.ModelName,
			Messages: conversation,
			Tools:    inv.defs,
			Options:  inferenceOptions(inv.exp.ModelConfig),
		})
		if err != nil {
			return nil, err
		}
		result.InputTokens += resp.Usage.InputTokens
		result.OutputTokens += resp.Usage.OutputTokens

		conversation = append(conversation, llm.ConversationMessage{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		if len(resp.ToolCalls) == 0 {
			// The model yielded.
			break
		}

		for _, call := range resp.ToolCalls {
			if result.Actions >= inv.exp.ModelConfig.MaxActionsPerTurn {
				result.Capped = true
				slog.Debug("Turn capped, discarding remaining tool calls",
					"experiment_id", inv.exp.ID,
					"turn", turnNumber,
					"actions", result.Actions)
				break
			}
			if models.ActionType(call.Name).IsMovement() && movements >= remainingMoves {
				result.Capped = true
				slog.Debug("Movement budget reached mid-turn, discarding remaining tool calls",
					"experiment_id", inv.exp.ID,
					"turn", turnNumber,
					"movements", movements)
				break
			}

			outcome, err := inv.dispatcher.Execute(ctx, call, turnNumber)
			if err != nil {
				return nil, err
			}
			result.Actions++
			if outcome.Action.ActionType.IsMovement() {
				movements++
			}

			conversation = append(conversation, llm.ConversationMessage{
				Role:       llm.RoleTool,
				Content:    outcome.Result.Payload(),
				ToolName:   call.Name,
				ToolCallID: call.ID,
			})

			if outcome.GoalReached {
				result.GoalReached = true
				break
			}
		}

		if result.Capped || result.GoalReached {
			break
		}
	}

	result.CostUSD = inv.rates.Cost(result.InputTokens, result.OutputTokens)
	return result, nil
}

// inferenceOptions forwards the frozen per-experiment inference knobs
func inferenceOptions(cfg models.ModelConfig) llm.Options {
	return llm.Options{
		NumCtx:        cfg.NumCtx,
		Temperature:   cfg.Temperature,
		RepeatPenalty: cfg.RepeatPenalty,
		NumPredict:    cfg.NumPredict,
	}
}
