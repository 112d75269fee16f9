package anthropicclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elee1766/pagepilot/src/aisdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveModel(t *testing.T) {
	tests := map[string]string{
		"claude-3.5-sonnet":        "claude-3-5-sonnet-latest",
		"Claude-3.5-Haiku":         "claude-3-5-haiku-latest",
		"claude-3-5-sonnet-latest": "claude-3-5-sonnet-latest",
		"claude-sonnet-4":          "claude-sonnet-4-0",
	}
	for in, want := range tests {
		assert.Equal(t, want, ResolveModel(in), in)
	}
}

func TestToAnthropicMessagesFoldsToolResults(t *testing.T) {
	msgs, err := toAnthropicMessages([]*aisdk.Message{
		{Role: aisdk.RoleSystem, Content: "ignored"},
		{Role: aisdk.RoleUser, Content: "open example.com"},
		{Role: aisdk.RoleAssistant, ToolCalls: []aisdk.ToolCall{
			{ID: "a", Function: aisdk.FunctionCall{Name: "navigateToUrl", Arguments: json.RawMessage(`{"url":"https://example.com"}`)}},
			{ID: "b", Function: aisdk.FunctionCall{Name: "getCurrentTabContent"}},
		}},
		{Role: aisdk.RoleTool, ToolCallID: "a", Content: "ok"},
		{Role: aisdk.RoleTool, ToolCallID: "b", Content: "boom", IsError: true},
		{Role: aisdk.RoleAssistant, Content: "done"},
	}, true)
	require.NoError(t, err)
	require.Len(t, msgs, 4)

	raw, err := json.Marshal(msgs)
	require.NoError(t, err)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "user", decoded[0]["role"])
	assert.Equal(t, "assistant", decoded[1]["role"])
	assert.Len(t, decoded[1]["content"], 2)
	assert.Equal(t, "user", decoded[2]["role"])
	results := decoded[2]["content"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, "tool_result", results[0].(map[string]any)["type"])
	assert.Equal(t, true, results[1].(map[string]any)["is_error"])
	assert.Equal(t, "assistant", decoded[3]["role"])
}

func TestToAnthropicMessagesBadArguments(t *testing.T) {
	_, err := toAnthropicMessages([]*aisdk.Message{
		{Role: aisdk.RoleAssistant, ToolCalls: []aisdk.ToolCall{{ID: "a", Function: aisdk.FunctionCall{Name: "x", Arguments: json.RawMessage(`[1,2]`)}}}},
	}, true)
	assert.Error(t, err)
}

func toolHistory() []*aisdk.Message {
	return []*aisdk.Message{
		{Role: aisdk.RoleUser, Content: "what is on the page?"},
		{Role: aisdk.RoleAssistant, ToolCalls: []aisdk.ToolCall{
			{ID: "toolu_1", Function: aisdk.FunctionCall{Name: "getCurrentTabContent", Arguments: json.RawMessage(`{}`)}},
		}},
		{Role: aisdk.RoleTool, ToolCallID: "toolu_1", Name: "getCurrentTabContent", Content: "Welcome"},
	}
}

func encodeParams(t *testing.T, req *aisdk.ChatCompletionRequest) map[string]any {
	t.Helper()
	params, err := toMessageParams(req)
	require.NoError(t, err)
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	return decoded
}

func blockTypes(t *testing.T, body map[string]any) []string {
	t.Helper()
	var types []string
	for _, m := range body["messages"].([]any) {
		for _, b := range m.(map[string]any)["content"].([]any) {
			types = append(types, b.(map[string]any)["type"].(string))
		}
	}
	return types
}

func TestToMessageParamsToolChoiceNone(t *testing.T) {
	tool := &aisdk.ChatTool{Type: "function", Function: aisdk.ChatToolFunction{Name: "getCurrentTabContent", Description: "Read the page"}}
	body := encodeParams(t, &aisdk.ChatCompletionRequest{
		Model:      "claude-3-5-sonnet-latest",
		Messages:   toolHistory(),
		Tools:      []*aisdk.ChatTool{tool},
		ToolChoice: "none",
	})

	require.Len(t, body["tools"], 1, "tool history needs declared tools")
	assert.Equal(t, map[string]any{"type": "none"}, body["tool_choice"])
	assert.Equal(t, []string{"text", "tool_use", "tool_result"}, blockTypes(t, body))
}

func TestToMessageParamsWithoutToolsFlattensHistory(t *testing.T) {
	body := encodeParams(t, &aisdk.ChatCompletionRequest{
		Model:    "claude-3-5-sonnet-latest",
		Messages: toolHistory(),
	})

	assert.Nil(t, body["tools"])
	assert.Nil(t, body["tool_choice"])
	assert.Equal(t, []string{"text", "text", "text"}, blockTypes(t, body))

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 3)
	call := msgs[1].(map[string]any)["content"].([]any)[0].(map[string]any)["text"]
	assert.Equal(t, "[called getCurrentTabContent {}]", call)
	result := msgs[2].(map[string]any)["content"].([]any)[0].(map[string]any)["text"]
	assert.Equal(t, "[getCurrentTabContent] Welcome", result)
}

func TestCreateChatCompletion(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-sonnet-latest",
			"stop_reason": "tool_use",
			"content": [
				{"type": "text", "text": "Let me look."},
				{"type": "tool_use", "id": "toolu_1", "name": "getInteractiveElements", "input": {}}
			],
			"usage": {"input_tokens": 20, "output_tokens": 7}
		}`))
	}))
	defer srv.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL})
	mc, err := client.Model(context.Background(), "claude-3.5-sonnet")
	require.NoError(t, err)
	assert.Equal(t, "claude-3-5-sonnet-latest", mc.GetModelInfo().ID)

	resp, err := mc.CreateChatCompletion(context.Background(), &aisdk.ChatCompletionRequest{
		SystemPrompt:   "be helpful",
		Messages:       []*aisdk.Message{{Role: aisdk.RoleUser, Content: "what can I click?"}},
		ResponseFormat: &aisdk.ResponseFormat{Type: "json_object"},
	})
	require.NoError(t, err)

	assert.Equal(t, "claude-3-5-sonnet-latest", body["model"])
	assert.EqualValues(t, defaultMaxTokens, body["max_tokens"])
	system := body["system"].([]any)[0].(map[string]any)["text"].(string)
	assert.Contains(t, system, "be helpful")
	assert.Contains(t, system, jsonInstruction)

	msg, ok := resp.FirstMessage()
	require.True(t, ok)
	assert.Equal(t, "Let me look.", msg.Content)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "toolu_1", msg.ToolCalls[0].ID)
	assert.JSONEq(t, `{}`, string(msg.ToolCalls[0].Function.Arguments))
	assert.Equal(t, "tool_calls", resp.Choices[0].FinishReason)
	assert.Equal(t, 27, resp.Usage.TotalTokens)
}
