// Package aisdk holds the provider-neutral chat types shared by the model
// clients, the agent toolbox and the orchestrator.
package aisdk

import (
	"encoding/json"
	"time"

	jsonschema "github.com/swaggest/jsonschema-go"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// Name is required for tool responses to identify the function
	Name string `json:"name,omitempty"`
	// ToolCallID is required for tool responses to reference the original call
	ToolCallID string `json:"tool_call_id,omitempty"`
	// ToolCalls contains function calls requested by the assistant.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// IsError marks a tool response that reports a failure.
	IsError   bool      `json:"-"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// ToolCall represents a function call request from the model (OpenAI format).
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"` // Always "function" for now
	Function FunctionCall `json:"function"`
}

// FunctionCall contains the function name and arguments.
type FunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type ToolResponse struct {
	Type     string `json:"type"`
	Content  []byte `json:"content"`
	Metadata string `json:"metadata,omitempty"`
	IsError  bool   `json:"is_error"`
}

// ChatCompletionRequest represents a request to the chat completions endpoint.
type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	SystemPrompt   string          `json:"-"`
	Messages       []*Message      `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	Stop           []string        `json:"stop,omitempty"`
	Tools          []*ChatTool     `json:"tools,omitempty"`
	ToolChoice     string          `json:"tool_choice,omitempty"` // "auto", "none", or specific tool
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
	User           string          `json:"user,omitempty"`
}

// ResponseFormat specifies the format of the response.
type ResponseFormat struct {
	Type string `json:"type"` // "text" or "json_object"
	// Schema describes the expected JSON object. Providers without native
	// schema support receive it as an instruction.
	Schema *jsonschema.Schema `json:"-"`
}

// ChatCompletionResponse represents a response from the chat completions endpoint.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice represents a single completion choice.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// FirstMessage returns the message of the first choice.
func (r *ChatCompletionResponse) FirstMessage() (*Message, bool) {
	if r == nil || len(r.Choices) == 0 {
		return nil, false
	}
	return &r.Choices[0].Message, true
}

// ModelInfo describes the model a ModelClient is bound to.
type ModelInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	Description   string `json:"description,omitempty"`
	ContextLength int    `json:"context_length,omitempty"`
}
