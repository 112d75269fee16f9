package tool_getelements

import (
	"context"

	"github.com/elee1766/pagepilot/src/agent"
	"github.com/elee1766/pagepilot/src/dom"
	"github.com/elee1766/pagepilot/src/pagebridge"
	"github.com/elee1766/pagepilot/src/pilotagent/toolsutil"
)

const Name = "getInteractiveElements"

const prompt = `Lists the buttons, links, inputs, selects, forms and editable regions of the current tab.

Each element has its visible text (at most 100 characters), its tag and an XPath.
Pass the XPath to performAction to click, type into or submit the element.
Call this again after the page changes; XPaths are not stable across navigations.`

type Input struct{}

type Output struct {
	Elements []dom.Element `json:"elements" description:"Interactive elements in document order"`
}

// Tool returns the getInteractiveElements tool bound to page.
func Tool(page pagebridge.Page) (agent.Tool, error) {
	tool, err := agent.NewGenericTool(Name, prompt, func(ctx context.Context, _ Input) (Output, error) {
		if page == nil {
			return Output{}, toolsutil.ErrNoPage
		}
		elements, err := page.InteractiveElements(ctx)
		if err != nil {
			return Output{}, toolsutil.Describe(Name, err)
		}
		if elements == nil {
			elements = []dom.Element{}
		}
		toolsutil.GetLogger().Debug("listed interactive elements", "count", len(elements))
		return Output{Elements: elements}, nil
	})
	if err != nil {
		return nil, err
	}
	return tool, nil
}
