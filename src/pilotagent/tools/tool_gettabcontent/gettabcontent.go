package tool_gettabcontent

import (
	"context"

	"github.com/elee1766/pagepilot/src/agent"
	"github.com/elee1766/pagepilot/src/pagebridge"
	"github.com/elee1766/pagepilot/src/pilotagent/toolsutil"
)

const Name = "getCurrentTabContent"

const prompt = `Reads the visible text of the current browser tab.

WHEN TO USE THIS TOOL:
- Before answering questions about the page the user is looking at
- To check the result of an action or navigation

LIMITATIONS:
- Scripts, styles and hidden markup are not included
- Very long pages are truncated`

type Input struct{}

type Output struct {
	Content string `json:"content" description:"The text content of the page"`
}

// Tool returns the getCurrentTabContent tool bound to page.
func Tool(page pagebridge.Page) (agent.Tool, error) {
	tool, err := agent.NewGenericTool(Name, prompt, func(ctx context.Context, _ Input) (Output, error) {
		if page == nil {
			return Output{}, toolsutil.ErrNoPage
		}
		content, err := page.Content(ctx)
		if err != nil {
			return Output{}, toolsutil.Describe(Name, err)
		}
		toolsutil.GetLogger().Debug("read page content", "size", toolsutil.FormatBytes(int64(len(content))))
		return Output{Content: toolsutil.Truncate(content, toolsutil.MaxContentRunes)}, nil
	})
	if err != nil {
		return nil, err
	}
	return tool, nil
}
