package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/elee1766/pagepilot/src/aisdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoInput struct {
	Text  string `json:"text" required:"true" description:"Text to echo"`
	Times int    `json:"times,omitempty" description:"Repeat count"`
}

type echoOutput struct {
	Text string `json:"text"`
}

func newEchoTool(t *testing.T) *GenericTool[echoInput, echoOutput] {
	t.Helper()
	tool, err := NewGenericTool("echo", "Echo text back",
		func(ctx context.Context, in echoInput) (echoOutput, error) {
			if in.Text == "boom" {
				return echoOutput{}, errors.New("exploded")
			}
			return echoOutput{Text: in.Text}, nil
		})
	require.NoError(t, err)
	return tool
}

func call(name, args string) *aisdk.ToolCall {
	return &aisdk.ToolCall{
		ID:       "call_1",
		Type:     "function",
		Function: aisdk.FunctionCall{Name: name, Arguments: json.RawMessage(args)},
	}
}

func TestGenericToolSchema(t *testing.T) {
	tool := newEchoTool(t)
	assert.Equal(t, "function", tool.GetType())
	assert.Equal(t, "echo", tool.GetName())
	require.NotNil(t, tool.GetParameters())
	assert.Contains(t, tool.GetParameters().Required, "text")
	assert.Contains(t, tool.GetParameters().Properties, "times")
}

func TestGenericToolRejectsNonStruct(t *testing.T) {
	_, err := NewGenericTool("bad", "bad", func(ctx context.Context, in string) (echoOutput, error) {
		return echoOutput{}, nil
	})
	require.Error(t, err)
}

func TestGenericToolExecute(t *testing.T) {
	tool := newEchoTool(t)

	tests := []struct {
		name    string
		args    string
		isError bool
		content string
	}{
		{name: "success", args: `{"text":"hi"}`, content: `{"text":"hi"}`},
		{name: "missing required", args: `{}`, isError: true, content: "validation failed: required field 'text' is missing"},
		{name: "empty arguments", args: ``, isError: true, content: "validation failed: required field 'text' is missing"},
		{name: "malformed json", args: `{"text":`, isError: true},
		{name: "handler error", args: `{"text":"boom"}`, isError: true, content: "exploded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := tool.Execute(context.Background(), call("echo", tt.args))
			require.NoError(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.isError, resp.IsError)
			if tt.content != "" {
				assert.Equal(t, tt.content, string(resp.Content))
			}
		})
	}
}

func TestToolboxRegistration(t *testing.T) {
	tb := NewToolbox[Tool]()
	require.NoError(t, tb.RegisterTool(newEchoTool(t)))
	assert.Error(t, tb.RegisterTool(newEchoTool(t)), "duplicate names are rejected")

	other, err := NewGenericTool("alpha", "", func(ctx context.Context, in echoInput) (echoOutput, error) {
		return echoOutput{}, nil
	})
	require.NoError(t, err)
	require.NoError(t, tb.RegisterTool(other))

	tools := tb.Tools()
	require.Len(t, tools, 2)
	assert.Equal(t, "alpha", tools[0].GetName())
	assert.Equal(t, "echo", tools[1].GetName())
	assert.True(t, tb.HasTool("echo"))

	chat := ToChatTools(tools)
	assert.Equal(t, "alpha", chat[0].Function.Name)
	assert.Equal(t, "object", chat[1].Function.ParametersMap()["type"])
}

func TestToolboxExecuteUnknown(t *testing.T) {
	tb := NewToolbox[Tool]()
	_, err := tb.ExecuteTool(context.Background(), call("nope", `{}`))
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestToolboxMiddlewareOrder(t *testing.T) {
	tb := NewToolbox[Tool]()
	require.NoError(t, tb.RegisterTool(newEchoTool(t)))

	var order []string
	mark := func(name string) ToolMiddleware {
		return func(next ToolExecutor) ToolExecutor {
			return func(ctx context.Context, c *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
				order = append(order, name)
				return next(ctx, c)
			}
		}
	}
	tb.RegisterMiddleware(mark("outer"))
	tb.RegisterMiddleware(mark("inner"))
	tb.RegisterMiddleware(TimeoutMiddleware(time.Second))

	resp, err := tb.ExecuteTool(context.Background(), call("echo", `{"text":"x"}`))
	require.NoError(t, err)
	assert.False(t, resp.IsError)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

type fakeModel struct {
	last *aisdk.ChatCompletionRequest
	resp *aisdk.ChatCompletionResponse
}

func (f *fakeModel) CreateChatCompletion(ctx context.Context, req *aisdk.ChatCompletionRequest) (*aisdk.ChatCompletionResponse, error) {
	f.last = req
	return f.resp, nil
}

func (f *fakeModel) GetModelInfo() *aisdk.ModelInfo {
	return &aisdk.ModelInfo{ID: "fake"}
}

func TestAgentSendMessage(t *testing.T) {
	tb := NewToolbox[Tool]()
	require.NoError(t, tb.RegisterTool(newEchoTool(t)))

	model := &fakeModel{resp: &aisdk.ChatCompletionResponse{
		Choices: []aisdk.Choice{{Message: aisdk.Message{Content: "hello"}}},
	}}
	a := &Agent{SystemPrompt: "sys", Model: model, Toolbox: tb, MaxTokens: 100}

	conv := aisdk.NewConversation("c1", "", []*aisdk.Message{{Role: aisdk.RoleUser, Content: "earlier"}})
	msg, err := a.SendMessage(context.Background(), conv, &aisdk.Message{Role: aisdk.RoleUser, Content: "now"}, SendOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, aisdk.RoleAssistant, msg.Role)

	assert.Equal(t, "sys", model.last.SystemPrompt)
	assert.Len(t, model.last.Messages, 2)
	assert.Len(t, model.last.Tools, 1)
	assert.Equal(t, "auto", model.last.ToolChoice)
	require.NotNil(t, model.last.MaxTokens)
	assert.Equal(t, 100, *model.last.MaxTokens)
	assert.Len(t, conv.Messages, 1, "conversation is not mutated")

	_, err = a.SendMessage(context.Background(), conv, nil, SendOptions{DisableTools: true})
	require.NoError(t, err)
	assert.Len(t, model.last.Tools, 1, "tools stay declared for the tool history")
	assert.Equal(t, "none", model.last.ToolChoice)
}

func TestAgentSendMessageNoChoices(t *testing.T) {
	a := &Agent{Model: &fakeModel{resp: &aisdk.ChatCompletionResponse{}}}
	_, err := a.SendMessage(context.Background(), aisdk.NewConversation("c", "", nil), nil, SendOptions{})
	assert.Error(t, err)
}
