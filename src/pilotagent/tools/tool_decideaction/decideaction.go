package tool_decideaction

import (
	"context"
	"fmt"
	"strings"

	"github.com/elee1766/pagepilot/src/agent"
	"github.com/elee1766/pagepilot/src/aisdk"
	"github.com/elee1766/pagepilot/src/pagebridge"
	"github.com/elee1766/pagepilot/src/pilotagent/toolsutil"
)

const Name = "decideAction"

const prompt = `Asks for advice on the single next step toward a request, given the page content.

WHEN TO USE THIS TOOL:
- When it is unclear which element to act on next
- To plan one step of a longer task

The answer is advice only; nothing on the page changes.
When pageContent is omitted the current tab's content is read first.`

const advisorPrompt = `You are a web automation planner. Given a user's request and the content of the page they are on, reply with the single next step to take (for example which link to click or which field to fill in) and one short sentence explaining it. Do not describe more than one step.`

type Input struct {
	Request     string `json:"request" required:"true" description:"What the user wants to achieve"`
	PageContent string `json:"pageContent,omitempty" description:"Page content to base the decision on"`
}

type Output struct {
	Decision string `json:"decision" description:"The recommended next step"`
}

// Tool returns the decideAction tool. page may be nil, in which case
// pageContent must be provided.
func Tool(page pagebridge.Page, model aisdk.ModelClient) (agent.Tool, error) {
	tool, err := agent.NewGenericTool(Name, prompt, func(ctx context.Context, in Input) (Output, error) {
		if model == nil {
			return Output{}, fmt.Errorf("no model is configured")
		}
		content := in.PageContent
		if strings.TrimSpace(content) == "" {
			if page == nil {
				return Output{}, fmt.Errorf("pageContent is required when no page is attached")
			}
			c, err := page.Content(ctx)
			if err != nil {
				return Output{}, toolsutil.Describe(Name, err)
			}
			content = c
		}

		resp, err := model.CreateChatCompletion(ctx, &aisdk.ChatCompletionRequest{
			SystemPrompt: advisorPrompt,
			Messages: []*aisdk.Message{{
				Role:    aisdk.RoleUser,
				Content: fmt.Sprintf("Request: %s\n\nPage content:\n%s", in.Request, toolsutil.Truncate(content, toolsutil.MaxContentRunes)),
			}},
		})
		if err != nil {
			return Output{}, fmt.Errorf("failed to decide action: %w", err)
		}
		msg, ok := resp.FirstMessage()
		if !ok || strings.TrimSpace(msg.Content) == "" {
			return Output{}, fmt.Errorf("failed to decide action: empty answer")
		}
		return Output{Decision: strings.TrimSpace(msg.Content)}, nil
	})
	if err != nil {
		return nil, err
	}
	return tool, nil
}
