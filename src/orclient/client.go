package orclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/elee1766/pagepilot/src/aisdk"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultTimeout = 60 * time.Second
)

var _ aisdk.Provider = (*Client)(nil)

// Client is the OpenRouter API client.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
	modelCache *ModelCache
}

// NewClient creates a new OpenRouter API client.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.RetryCount == 0 {
		config.RetryCount = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger.With("component", "openrouter_client"),
	}
	client.modelCache = NewModelCache(client, time.Hour)

	return client
}

// wire types in the OpenAI chat format. Tool call arguments travel as a
// JSON-encoded string.
type wireFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function wireFunctionCall `json:"function"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	Name       string         `json:"name,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
}

type wireResponseFormat struct {
	Type string `json:"type"`
}

type wireRequest struct {
	Model          string              `json:"model"`
	Messages       []wireMessage       `json:"messages"`
	Temperature    *float64            `json:"temperature,omitempty"`
	MaxTokens      *int                `json:"max_tokens,omitempty"`
	Stop           []string            `json:"stop,omitempty"`
	Tools          []*aisdk.ChatTool   `json:"tools,omitempty"`
	ToolChoice     string              `json:"tool_choice,omitempty"`
	ResponseFormat *wireResponseFormat `json:"response_format,omitempty"`
	User           string              `json:"user,omitempty"`
}

type wireChoice struct {
	Index        int         `json:"index"`
	Message      wireMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type wireResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []wireChoice `json:"choices"`
	Usage   aisdk.Usage  `json:"usage"`
}

// createChatCompletion sends a chat completion request to OpenRouter.
func (c *Client) createChatCompletion(ctx context.Context, req *aisdk.ChatCompletionRequest) (*aisdk.ChatCompletionResponse, error) {
	if c.config.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	logger := c.logger.With("method", "CreateChatCompletion", "model", req.Model)
	logger.Debug("sending chat completion request", "messages", len(req.Messages), "tools", len(req.Tools))

	body, err := json.Marshal(formatRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.doRequestWithRetry(ctx, http.MethodPost, "/chat/completions", body)
	if err != nil {
		logger.Error("request failed", "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	var result wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	logger.Debug("chat completion successful", "usage_total", result.Usage.TotalTokens)
	return parseResponse(&result), nil
}

func formatRequest(req *aisdk.ChatCompletionRequest) *wireRequest {
	out := &wireRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stop:        req.Stop,
		Tools:       req.Tools,
		ToolChoice:  req.ToolChoice,
		User:        req.User,
	}
	if req.ResponseFormat != nil {
		out.ResponseFormat = &wireResponseFormat{Type: req.ResponseFormat.Type}
	}

	if req.SystemPrompt != "" {
		out.Messages = append(out.Messages, wireMessage{Role: string(aisdk.RoleSystem), Content: req.SystemPrompt})
	}
	for _, msg := range req.Messages {
		if msg == nil {
			continue
		}
		wm := wireMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			args := string(tc.Function.Arguments)
			if args == "" {
				args = "{}"
			}
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID:       tc.ID,
				Type:     "function",
				Function: wireFunctionCall{Name: tc.Function.Name, Arguments: args},
			})
		}
		out.Messages = append(out.Messages, wm)
	}
	return out
}

func parseResponse(r *wireResponse) *aisdk.ChatCompletionResponse {
	out := &aisdk.ChatCompletionResponse{
		ID:      r.ID,
		Object:  r.Object,
		Created: r.Created,
		Model:   r.Model,
		Usage:   r.Usage,
	}
	for _, ch := range r.Choices {
		msg := aisdk.Message{
			Role:    aisdk.Role(ch.Message.Role),
			Content: ch.Message.Content,
		}
		for _, tc := range ch.Message.ToolCalls {
			args := tc.Function.Arguments
			if args == "" {
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
			FinishReason: ch.FinishReason,
		})
	}
	return out
}

// newRequest creates a new HTTP request with the appropriate headers.
func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	// Optional headers for ranking
	if c.config.SiteURL != "" {
		req.Header.Set("HTTP-Referer", c.config.SiteURL)
	}
	if c.config.SiteName != "" {
		req.Header.Set("X-Title", c.config.SiteName)
	}

	return req, nil
}

// doRequestWithRetry performs an HTTP request, retrying transport failures
// and retryable API errors. Non-2xx responses are returned as *APIError.
func (c *Client) doRequestWithRetry(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	logger := c.logger.With("method", "doRequestWithRetry", "path", path)

	var lastErr error
	for attempt := 1; attempt <= c.config.RetryCount; attempt++ {
		if attempt > 1 {
			delay := GetRetryDelay(lastErr, attempt-1, c.config.RetryDelay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := c.newRequest(ctx, method, path, body)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			logger.Debug("request attempt failed", "attempt", attempt, "error", err)
			continue
		}

		if resp.StatusCode < 300 {
			return resp, nil
		}

		apiErr := c.handleError(resp)
		resp.Body.Close()
		if !IsRetryable(apiErr) {
			return nil, apiErr
		}
		lastErr = apiErr
		logger.Debug("retryable API error", "attempt", attempt, "status_code", resp.StatusCode)
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.config.RetryCount, lastErr)
}

// handleError turns an error response into an *APIError.
func (c *Client) handleError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read error response: %w", err)
	}

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    string(body),
		RequestID:  resp.Header.Get("X-Request-ID"),
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		apiErr.Type = errResp.Error.Type
		apiErr.Message = errResp.Error.Message
		apiErr.Code = codeString(errResp.Error.Code)
		apiErr.Param = errResp.Error.Param
	}

	return apiErr
}
