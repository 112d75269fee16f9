package orclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/elee1766/pagepilot/src/aisdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		RetryCount: 3,
		RetryDelay: time.Millisecond,
	})
}

func TestCreateChatCompletionWireFormat(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models":
			json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{{"id": "openai/gpt-4o", "name": "GPT-4o"}}})
		case "/chat/completions":
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.Write([]byte(`{"id":"r1","choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","content":"","tool_calls":[{"id":"c1","type":"function","function":{"name":"navigateToUrl","arguments":"{\"url\":\"https://x.test\"}"}}]}}],"usage":{"total_tokens":12}}`))
		}
	})

	mc, err := client.Model(context.Background(), "openai/gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "GPT-4o", mc.GetModelInfo().Name)

	resp, err := mc.CreateChatCompletion(context.Background(), &aisdk.ChatCompletionRequest{
		SystemPrompt: "be brief",
		Messages: []*aisdk.Message{
			{Role: aisdk.RoleUser, Content: "go"},
			{Role: aisdk.RoleAssistant, ToolCalls: []aisdk.ToolCall{{ID: "c0", Function: aisdk.FunctionCall{Name: "noop", Arguments: json.RawMessage(`{"a":1}`)}}}},
			{Role: aisdk.RoleTool, ToolCallID: "c0", Name: "noop", Content: "ok"},
		},
		ResponseFormat: &aisdk.ResponseFormat{Type: "json_object"},
	})
	require.NoError(t, err)

	msgs := got["messages"].([]any)
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	call := msgs[2].(map[string]any)["tool_calls"].([]any)[0].(map[string]any)
	assert.Equal(t, `{"a":1}`, call["function"].(map[string]any)["arguments"], "arguments are sent as a string")
	assert.Equal(t, "json_object", got["response_format"].(map[string]any)["type"])
	assert.Equal(t, "openai/gpt-4o", got["model"])

	msg, ok := resp.FirstMessage()
	require.True(t, ok)
	require.Len(t, msg.ToolCalls, 1)
	assert.JSONEq(t, `{"url":"https://x.test"}`, string(msg.ToolCalls[0].Function.Arguments))
	assert.Equal(t, 12, resp.Usage.TotalTokens)
}

func TestUnlistedModelStillUsable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	})
	mc, err := client.Model(context.Background(), "vendor/new-model")
	require.NoError(t, err)
	assert.Equal(t, "vendor/new-model", mc.GetModelInfo().ID)
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hi"}}]}`))
	})

	resp, err := client.createChatCompletion(context.Background(), &aisdk.ChatCompletionRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "hi", resp.Choices[0].Message.Content)
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"No auth credentials found","code":401}}`))
	})

	_, err := client.createChatCompletion(context.Background(), &aisdk.ChatCompletionRequest{Model: "m"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsAuthError())
	assert.Equal(t, "No auth credentials found", apiErr.Message)
	assert.Equal(t, "401", apiErr.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMissingAPIKey(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:0"})
	_, err := client.createChatCompletion(context.Background(), &aisdk.ChatCompletionRequest{Model: "m"})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestEmptyChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})
	_, err := client.createChatCompletion(context.Background(), &aisdk.ChatCompletionRequest{Model: "m"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
