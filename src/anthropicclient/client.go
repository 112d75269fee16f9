// Package anthropicclient adapts the Anthropic messages API to aisdk.
package anthropicclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/elee1766/pagepilot/src/aisdk"
)

const defaultMaxTokens = 4096

// ErrEmptyResponse indicates the API returned no content.
var ErrEmptyResponse = errors.New("empty response from API")

// modelAliases maps the dotted names users tend to type onto API model ids.
var modelAliases = map[string]string{
	"claude-3.5-sonnet": "claude-3-5-sonnet-latest",
	"claude-3.5-haiku":  "claude-3-5-haiku-latest",
	"claude-3.7-sonnet": "claude-3-7-sonnet-latest",
	"claude-3-opus":     "claude-3-opus-latest",
	"claude-sonnet-4":   "claude-sonnet-4-0",
	"claude-opus-4":     "claude-opus-4-0",
}

// ResolveModel returns the API model id for name.
func ResolveModel(name string) string {
	if alias, ok := modelAliases[strings.ToLower(name)]; ok {
		return alias
	}
	return name
}

var _ aisdk.Provider = (*Client)(nil)

// Config holds configuration for the Anthropic client.
type Config struct {
	APIKey     string
	BaseURL    string
	MaxRetries int
	Logger     *slog.Logger
}

// Client is an aisdk.Provider backed by anthropic-sdk-go.
type Client struct {
	api    anthropic.Client
	logger *slog.Logger
}

// NewClient creates an Anthropic client.
func NewClient(cfg Config) *Client {
	options := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		options = append(options, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries > 0 {
		options = append(options, option.WithMaxRetries(cfg.MaxRetries))
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		api:    anthropic.NewClient(options...),
		logger: logger.With("component", "anthropic_client"),
	}
}

// GetModels lists the models the key can use.
func (c *Client) GetModels(ctx context.Context) ([]*aisdk.ModelInfo, error) {
	page, err := c.api.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	out := make([]*aisdk.ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		out = append(out, &aisdk.ModelInfo{ID: m.ID, Name: m.DisplayName, Provider: "anthropic"})
	}
	return out, nil
}

// Model binds modelName, resolving known aliases.
func (c *Client) Model(ctx context.Context, modelName string) (aisdk.ModelClient, error) {
	id := ResolveModel(modelName)
	return &ModelClient{
		client: c,
		model:  &aisdk.ModelInfo{ID: id, Name: modelName, Provider: "anthropic"},
	}, nil
}

var _ aisdk.ModelClient = (*ModelClient)(nil)

// ModelClient is a Client bound to one model.
type ModelClient struct {
	client *Client
	model  *aisdk.ModelInfo
}

func (mc *ModelClient) GetModelInfo() *aisdk.ModelInfo {
	return mc.model
}

// CreateChatCompletion sends the conversation through the messages API.
func (mc *ModelClient) CreateChatCompletion(ctx context.Context, req *aisdk.ChatCompletionRequest) (*aisdk.ChatCompletionResponse, error) {
	req.Model = mc.model.ID
	params, err := toMessageParams(req)
	if err != nil {
		return nil, err
	}

	logger := mc.client.logger.With("model", req.Model)
	logger.Debug("sending messages request", "messages", len(params.Messages), "tools", len(params.Tools))

	msg, err := mc.client.api.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}

	resp, err := fromMessage(msg)
	if err != nil {
		return nil, err
	}
	logger.Debug("messages request successful", "usage_total", resp.Usage.TotalTokens)
	return resp, nil
}

// jsonInstruction is appended to the system prompt when a JSON object is
// requested, since the messages API has no response format switch.
const jsonInstruction = "Respond with a single JSON object only, without code fences or commentary."

func toMessageParams(req *aisdk.ChatCompletionRequest) (anthropic.MessageNewParams, error) {
	withTools := len(req.Tools) > 0
	messages, err := toAnthropicMessages(req.Messages, withTools)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	maxTokens := defaultMaxTokens
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		maxTokens = *req.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}

	system := req.SystemPrompt
	if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_object" {
		system = strings.TrimSpace(system + "\n\n" + jsonInstruction)
		if req.ResponseFormat.Schema != nil {
			if raw, err := json.Marshal(req.ResponseFormat.Schema); err == nil {
				system += "\nThe object must match this JSON schema:\n" + string(raw)
			}
		}
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: system}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if len(req.Stop) > 0 {
		params.StopSequences = req.Stop
	}

	if withTools {
		tools, err := toAnthropicTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = tools
		switch req.ToolChoice {
		case "none":
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfNone: &anthropic.ToolChoiceNoneParam{}}
		case "auto":
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
		}
	}

	return params, nil
}

// toAnthropicMessages converts the history. System messages are dropped, and
// consecutive tool results are folded into one user turn. The API rejects
// tool_use and tool_result blocks in a request that declares no tools, so
// without tools the tool traffic is rendered as plain text.
func toAnthropicMessages(messages []*aisdk.Message, withTools bool) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam
	var pendingResults []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(pendingResults) > 0 {
			result = append(result, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, msg := range messages {
		if msg == nil || msg.Role == aisdk.RoleSystem {
			continue
		}

		if msg.Role == aisdk.RoleTool {
			if withTools {
				pendingResults = append(pendingResults, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, msg.IsError))
			} else {
				pendingResults = append(pendingResults, anthropic.NewTextBlock(toolResultText(msg)))
			}
			continue
		}
		flush()

		var content []anthropic.ContentBlockParamUnion
		if msg.Content != "" {
			content = append(content, anthropic.NewTextBlock(msg.Content))
		}
		for _, tc := range msg.ToolCalls {
			input := map[string]any{}
			if len(tc.Function.Arguments) > 0 {
				if err := json.Unmarshal(tc.Function.Arguments, &input); err != nil {
					return nil, fmt.Errorf("invalid tool call input for %s: %w", tc.Function.Name, err)
				}
			}
			if withTools {
				content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Function.Name))
			} else {
				content = append(content, anthropic.NewTextBlock(toolCallText(tc)))
			}
		}
		if len(content) == 0 {
			continue
		}

		if msg.Role == aisdk.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}
	flush()

	return result, nil
}

func toolCallText(tc aisdk.ToolCall) string {
	args := strings.TrimSpace(string(tc.Function.Arguments))
	if args == "" {
		args = "{}"
	}
	return fmt.Sprintf("[called %s %s]", tc.Function.Name, args)
}

func toolResultText(msg *aisdk.Message) string {
	name := msg.Name
	if name == "" {
		name = msg.ToolCallID
	}
	if msg.IsError {
		return fmt.Sprintf("[%s failed] %s", name, msg.Content)
	}
	return fmt.Sprintf("[%s] %s", name, msg.Content)
}

func toAnthropicTools(tools []*aisdk.ChatTool) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		raw, err := json.Marshal(tool.Function.ParametersMap())
		if err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", tool.Function.Name, err)
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", tool.Function.Name, err)
		}

		toolParam := anthropic.ToolUnionParamOfTool(schema, tool.Function.Name)
		if toolParam.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", tool.Function.Name)
		}
		if tool.Function.Description != "" {
			toolParam.OfTool.Description = anthropic.String(tool.Function.Description)
		}
		result = append(result, toolParam)
	}
	return result, nil
}

func fromMessage(msg *anthropic.Message) (*aisdk.ChatCompletionResponse, error) {
	if msg == nil || len(msg.Content) == 0 {
		return nil, ErrEmptyResponse
	}

	out := aisdk.Message{Role: aisdk.RoleAssistant}
	var text []string
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text = append(text, block.Text)
		case "tool_use":
			tu := block.AsToolUse()
			args := json.RawMessage(tu.Input)
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			out.ToolCalls = append(out.ToolCalls, aisdk.ToolCall{
				ID:       tu.ID,
				Type:     "function",
				Function: aisdk.FunctionCall{Name: tu.Name, Arguments: args},
			})
		}
	}
	out.Content = strings.Join(text, "")

	finish := string(msg.StopReason)
	if finish == "tool_use" {
		finish = "tool_calls"
	}

	prompt := int(msg.Usage.InputTokens)
	completion := int(msg.Usage.OutputTokens)
	return &aisdk.ChatCompletionResponse{
		ID:     msg.ID,
		Object: "chat.completion",
		Model:  string(msg.Model),
		Choices: []aisdk.Choice{{
			Message:      out,
			FinishReason: finish,
		}},
		Usage: aisdk.Usage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
	}, nil
}
