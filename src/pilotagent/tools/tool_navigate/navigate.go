package tool_navigate

import (
	"context"
	"fmt"
	"net/url"

	"github.com/elee1766/pagepilot/src/agent"
	"github.com/elee1766/pagepilot/src/dom"
	"github.com/elee1766/pagepilot/src/pagebridge"
	"github.com/elee1766/pagepilot/src/pilotagent/toolsutil"
)

const Name = "navigateToUrl"

const prompt = `Opens a URL in the current tab and waits for it to load.

Returns the new page's title, final URL and its interactive elements, so a separate
getInteractiveElements call is not needed right after navigating.
Only http and https URLs are supported.`

type Input struct {
	URL string `json:"url" required:"true" description:"Absolute http or https URL"`
}

type Output struct {
	Title    string        `json:"title"`
	URL      string        `json:"url"`
	Elements []dom.Element `json:"elements"`
}

// Tool returns the navigateToUrl tool bound to page.
func Tool(page pagebridge.Page) (agent.Tool, error) {
	tool, err := agent.NewGenericTool(Name, prompt, func(ctx context.Context, in Input) (Output, error) {
		if page == nil {
			return Output{}, toolsutil.ErrNoPage
		}
		u, err := url.Parse(in.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return Output{}, fmt.Errorf("URL must be an absolute http:// or https:// URL")
		}

		result, err := page.Navigate(ctx, u.String())
		if err != nil {
			return Output{}, toolsutil.Describe(Name, err)
		}
		toolsutil.GetLogger().Info("navigated", "url", result.URL, "elements", len(result.Elements))

		elements := result.Elements
		if elements == nil {
			elements = []dom.Element{}
		}
		return Output{Title: result.Title, URL: result.URL, Elements: elements}, nil
	})
	if err != nil {
		return nil, err
	}
	return tool, nil
}
