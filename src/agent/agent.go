package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/elee1766/pagepilot/src/aisdk"
)

type Agent struct {
	SystemPrompt string
	Model        aisdk.ModelClient
	Toolbox      *DefaultToolbox
	Logger       *slog.Logger
	MaxTokens    int
}

// SendOptions adjusts a single model call.
type SendOptions struct {
	// DisableTools keeps the tool definitions but sets the tool choice to
	// "none", forcing a plain text answer. Providers that validate tool
	// history against the declared tools still accept the request.
	DisableTools bool
	// SystemPrompt overrides the agent's system prompt for this call.
	SystemPrompt string
}

// SendMessage sends the conversation, plus message when non-nil, to the model
// and returns the first choice. The conversation itself is not modified.
func (a *Agent) SendMessage(ctx context.Context, conversation *aisdk.Conversation, message *aisdk.Message, opts SendOptions) (*aisdk.Message, error) {
	messages := conversation.Snapshot()
	if message != nil {
		messages = append(messages, message)
	}

	var chatTools []*aisdk.ChatTool
	if a.Toolbox != nil {
		chatTools = ToChatTools(a.Toolbox.Tools())
	}

	systemPrompt := a.SystemPrompt
	if conversation.SystemPrompt != "" {
		systemPrompt = conversation.SystemPrompt
	}
	if opts.SystemPrompt != "" {
		systemPrompt = opts.SystemPrompt
	}

	ccr := &aisdk.ChatCompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     messages,
		Tools:        chatTools,
	}
	if len(chatTools) > 0 {
		ccr.ToolChoice = "auto"
		if opts.DisableTools {
			ccr.ToolChoice = "none"
		}
	}
	if a.MaxTokens > 0 {
		maxTokens := a.MaxTokens
		ccr.MaxTokens = &maxTokens
	}

	response, err := a.Model.CreateChatCompletion(ctx, ccr)
	if err != nil {
		return nil, err
	}

	msg, ok := response.FirstMessage()
	if !ok {
		return nil, fmt.Errorf("no choices in response")
	}
	if msg.Role == "" {
		msg.Role = aisdk.RoleAssistant
	}
	if a.Logger != nil {
		a.Logger.Debug("model responded",
			"tool_calls", len(msg.ToolCalls),
			"prompt_tokens", response.Usage.PromptTokens,
			"completion_tokens", response.Usage.CompletionTokens)
	}
	return msg, nil
}
