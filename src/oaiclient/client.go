// Package oaiclient adapts the OpenAI chat completions API to aisdk.
package oaiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/elee1766/pagepilot/src/aisdk"
	"github.com/sashabaranov/go-openai"
)

// ErrEmptyResponse indicates the API returned no choices.
var ErrEmptyResponse = errors.New("empty response from API")

var _ aisdk.Provider = (*Client)(nil)

// Config holds configuration for the OpenAI client.
type Config struct {
	APIKey  string
	BaseURL string
	Logger  *slog.Logger
}

// Client is an aisdk.Provider backed by go-openai.
type Client struct {
	api    *openai.Client
	logger *slog.Logger
}

// NewClient creates an OpenAI client. BaseURL overrides the public endpoint.
func NewClient(cfg Config) *Client {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		api:    openai.NewClientWithConfig(config),
		logger: logger.With("component", "openai_client"),
	}
}

// GetModels lists the models available to the key, sorted by id.
func (c *Client) GetModels(ctx context.Context) ([]*aisdk.ModelInfo, error) {
	list, err := c.api.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	out := make([]*aisdk.ModelInfo, 0, len(list.Models))
	for _, m := range list.Models {
		out = append(out, &aisdk.ModelInfo{ID: m.ID, Name: m.ID, Provider: "openai"})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Model binds modelName without a network round trip.
func (c *Client) Model(ctx context.Context, modelName string) (aisdk.ModelClient, error) {
	return &ModelClient{
		client: c,
		model:  &aisdk.ModelInfo{ID: modelName, Name: modelName, Provider: "openai"},
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

// CreateChatCompletion creates a chat completion with the bound model.
func (mc *ModelClient) CreateChatCompletion(ctx context.Context, req *aisdk.ChatCompletionRequest) (*aisdk.ChatCompletionResponse, error) {
	req.Model = mc.model.ID
	logger := mc.client.logger.With("model", req.Model)
	logger.Debug("sending chat completion request", "messages", len(req.Messages), "tools", len(req.Tools))

	resp, err := mc.client.api.CreateChatCompletion(ctx, toOpenAIRequest(req))
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	logger.Debug("chat completion successful", "usage_total", resp.Usage.TotalTokens)
	return fromOpenAIResponse(resp), nil
}

// reasoningModel reports whether the model takes max_completion_tokens.
func reasoningModel(model string) bool {
	return strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4")
}

func toOpenAIRequest(req *aisdk.ChatCompletionRequest) openai.ChatCompletionRequest {
	out := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: toOpenAIMessages(req.SystemPrompt, req.Messages),
		Stop:     req.Stop,
		User:     req.User,
	}
	if req.Temperature != nil {
		out.Temperature = float32(*req.Temperature)
	}
	if req.MaxTokens != nil {
		if reasoningModel(req.Model) {
			out.MaxCompletionTokens = *req.MaxTokens
		} else {
			out.MaxTokens = *req.MaxTokens
		}
	}
	if len(req.Tools) > 0 {
		out.Tools = toOpenAITools(req.Tools)
		if req.ToolChoice != "" {
			out.ToolChoice = req.ToolChoice
		}
	}
	if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_object" {
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return out
}

func toOpenAIMessages(system string, messages []*aisdk.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		oaiMsg := openai.ChatCompletionMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		if msg.Role == aisdk.RoleTool {
			oaiMsg.Name = msg.Name
		}
		for _, tc := range msg.ToolCalls {
			args := string(tc.Function.Arguments)
			if args == "" {
				args = "{}"
			}
			oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: args,
				},
			})
		}
		result = append(result, oaiMsg)
	}
	return result
}

func toOpenAITools(tools []*aisdk.ChatTool) []openai.Tool {
	result := make([]openai.Tool, 0, len(tools))
	for _, tool := range tools {
		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  tool.Function.ParametersMap(),
			},
		})
	}
	return result
}

func fromOpenAIResponse(resp openai.ChatCompletionResponse) *aisdk.ChatCompletionResponse {
	out := &aisdk.ChatCompletionResponse{
		ID:      resp.ID,
		Object:  resp.Object,
		Created: resp.Created,
		Model:   resp.Model,
		Usage: aisdk.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	for _, ch := range resp.Choices {
		msg := aisdk.Message{
			Role:    aisdk.RoleAssistant,
			Content: ch.Message.Content,
		}
		for _, tc := range ch.Message.ToolCalls {
			args := tc.Function.Arguments
			if !json.Valid([]byte(args)) {
				args = "{}"
			}
			msg.ToolCalls = append(msg.ToolCalls, aisdk.ToolCall{
				ID:       tc.ID,
				Type:     "function",
				Function: aisdk.FunctionCall{Name: tc.Function.Name, Arguments: json.RawMessage(args)},
			})
		}
		out.Choices = append(out.Choices, aisdk.Choice{
			Index:        ch.Index,
			Message:      msg,
			FinishReason: string(ch.FinishReason),
		})
	}
	return out
}
