package tool_performaction

import (
	"context"
	"fmt"

	"github.com/elee1766/pagepilot/src/agent"
	"github.com/elee1766/pagepilot/src/pagebridge"
	"github.com/elee1766/pagepilot/src/pilotagent/toolsutil"
)

const Name = "performAction"

const prompt = `Clicks, types into or submits an element of the current tab.

HOW TO USE:
- Get the element's XPath from getInteractiveElements
- action "click" clicks the element
- action "type" replaces the field's text with value
- action "submit" submits the form that contains the element

Returns the page title and URL after the action.`

type Input struct {
	ElementXPath string `json:"elementXpath" required:"true" description:"XPath of the target element"`
	Action       string `json:"action" required:"true" enum:"click,type,submit" description:"The action to perform"`
	Value        string `json:"value,omitempty" description:"Text to type, for the type action"`
}

type Output struct {
	Title string `json:"title" description:"Page title after the action"`
	URL   string `json:"url" description:"Page URL after the action"`
}

// Tool returns the performAction tool bound to page.
func Tool(page pagebridge.Page) (agent.Tool, error) {
	tool, err := agent.NewGenericTool(Name, prompt, func(ctx context.Context, in Input) (Output, error) {
		if page == nil {
			return Output{}, toolsutil.ErrNoPage
		}
		action := pagebridge.Action(in.Action)
		switch action {
		case pagebridge.ActionClick, pagebridge.ActionType, pagebridge.ActionSubmit:
		default:
			return Output{}, fmt.Errorf("action must be one of: click, type, submit")
		}

		result, err := page.PerformAction(ctx, pagebridge.ActionRequest{
			ElementXPath: in.ElementXPath,
			Action:       action,
			Value:        in.Value,
		})
		if err != nil {
			return Output{}, toolsutil.Describe(Name, err)
		}
		toolsutil.GetLogger().Info("performed page action", "action", action, "xpath", in.ElementXPath, "url", result.URL)
		return Output{Title: result.Title, URL: result.URL}, nil
	})
	if err != nil {
		return nil, err
	}
	return tool, nil
}
