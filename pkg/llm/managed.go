package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mazebench/mazebench/pkg/models"
)

// messagesService is the slice of the Anthropic SDK the managed client
// uses. Tests inject a stub.
type messagesService interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// ManagedClient adapts the Anthropic Messages API to the ChatClient
// surface. Turn boundaries are preserved: one Messages.New call per
// iteration of the turn's tool loop, no streaming, no retries.
type ManagedClient struct {
	messages  messagesService
	timeout   time.Duration
	maxTokens int64
}

// NewManagedClient creates a client for the managed-agent provider.
func NewManagedClient(cfg Config) *ManagedClient {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	ac := sdk.NewClient(opts...)
	return &ManagedClient{
		messages:  &ac.Messages,
		timeout:   cfg.RequestTimeout,
		maxTokens: int64(cfg.MaxTokens),
	}
}

// newManagedClientWithService wires an injected messages service, used
// by tests.
func newManagedClientWithService(svc messagesService, cfg Config) *ManagedClient {
	return &ManagedClient{
		messages:  svc,
		timeout:   cfg.RequestTimeout,
		maxTokens: int64(cfg.MaxTokens),
	}
}

// Chat sends one request and translates the response. Failures come back
// classified the same way as the local transport.
func (c *ManagedClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	msg, err := c.messages.New(ctx, *params)
	if err != nil {
		return nil, classifyManagedError(err)
	}
	return translateManagedResponse(msg)
}

// buildParams converts the provider-neutral request to Messages API
// parameters.
func (c *ManagedClient) buildParams(req *ChatRequest) (*sdk.MessageNewParams, error) {
	maxTokens := int64(req.Options.NumPredict)
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	if maxTokens <= 0 {
		return nil, models.Classifiedf(models.ErrorKindConfigMissing, "managed-agent requires a positive completion token cap")
	}

	conversation := make([]sdk.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleUser:
			conversation = append(conversation, sdk.NewUserMessage(sdk.NewTextBlock(msg.Content)))

		case RoleAssistant:
			blocks := make([]sdk.ContentBlockParamUnion, 0, 1+len(msg.ToolCalls))
			if msg.Content != "" {
				blocks = append(blocks, sdk.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, sdk.NewToolUseBlock(tc.ID, tc.Arguments, tc.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			conversation = append(conversation, sdk.NewAssistantMessage(blocks...))

		case RoleTool:
			// The Messages API carries tool results as user-role blocks
			// correlated by tool_use id.
			conversation = append(conversation,
				sdk.NewUserMessage(sdk.NewToolResultBlock(msg.ToolCallID, msg.Content, false)))

		default:
			return nil, models.Classifiedf(models.ErrorKindInternal, "unsupported conversation role %q", msg.Role)
		}
	}
	if len(conversation) == 0 {
		return nil, models.Classifiedf(models.ErrorKindInternal, "managed-agent requires at least one message")
	}

	params := &sdk.MessageNewParams{
		MaxTokens: maxTokens,
		Messages:  conversation,
		Model:     sdk.Model(req.Model),
	}
	if req.Options.Temperature > 0 {
		params.Temperature = sdk.Float(req.Options.Temperature)
	}

	for _, tool := range req.Tools {
		u := sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{ExtraFields: tool.InputSchema}, tool.Name)
		if u.OfTool != nil && tool.Description != "" {
			u.OfTool.Description = sdk.String(tool.Description)
		}
		params.Tools = append(params.Tools, u)
	}
	return params, nil
}

// translateManagedResponse flattens content blocks into the neutral
// response shape.
func translateManagedResponse(msg *sdk.Message) (*ChatResponse, error) {
	if msg == nil {
		return nil, models.Classifiedf(models.ErrorKindSchemaError, "managed response message is nil")
	}

	out := &ChatResponse{
		Usage: Usage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
		DoneReason: string(msg.StopReason),
	}

	var text []string
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				text = append(text, block.Text)
			}
		case "tool_use":
			if block.Name == "" {
				return nil, models.Classifiedf(models.ErrorKindSchemaError, "managed response tool_use block missing name")
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: block.Input,
			})
		}
	}
	out.Content = strings.Join(text, "\n")
	return out, nil
}

// classifyManagedError maps SDK failures onto the error taxonomy.
func classifyManagedError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.Classifiedf(models.ErrorKindTransportTimeout, "chat request timed out: %v", err)
	}

	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return models.NewClassified(models.ErrorKindRateLimited, fmt.Errorf("HTTP 429: %v", err))
		}
		return models.NewClassified(models.ErrorKindTransportError, fmt.Errorf("HTTP %d: %v", apiErr.StatusCode, err))
	}

	if isTimeout(err) {
		return models.Classifiedf(models.ErrorKindTransportTimeout, "chat request timed out: %v", err)
	}
	return models.Classifiedf(models.ErrorKindTransportError, "chat request failed: %v", err)
}

var _ ChatClient = (*ManagedClient)(nil)
