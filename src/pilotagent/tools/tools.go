package tools

import (
	"github.com/elee1766/pagepilot/src/agent"
	"github.com/elee1766/pagepilot/src/aisdk"
	"github.com/elee1766/pagepilot/src/pagebridge"
	tool_decideaction "github.com/elee1766/pagepilot/src/pilotagent/tools/tool_decideaction"
	tool_getelements "github.com/elee1766/pagepilot/src/pilotagent/tools/tool_getelements"
	tool_gettabcontent "github.com/elee1766/pagepilot/src/pilotagent/tools/tool_gettabcontent"
	tool_navigate "github.com/elee1766/pagepilot/src/pilotagent/tools/tool_navigate"
	tool_performaction "github.com/elee1766/pagepilot/src/pilotagent/tools/tool_performaction"
)

// Tool name constants - re-exported from individual packages
const (
	GetCurrentTabContentName   = tool_gettabcontent.Name
	GetInteractiveElementsName = tool_getelements.Name
	DecideActionName           = tool_decideaction.Name
	PerformActionName          = tool_performaction.Name
	NavigateToURLName          = tool_navigate.Name
)

func GetCurrentTabContentTool(page pagebridge.Page) (agent.Tool, error) {
	return tool_gettabcontent.Tool(page)
}

func GetInteractiveElementsTool(page pagebridge.Page) (agent.Tool, error) {
	return tool_getelements.Tool(page)
}

func DecideActionTool(page pagebridge.Page, model aisdk.ModelClient) (agent.Tool, error) {
	return tool_decideaction.Tool(page, model)
}

func PerformActionTool(page pagebridge.Page) (agent.Tool, error) {
	return tool_performaction.Tool(page)
}

func NavigateToURLTool(page pagebridge.Page) (agent.Tool, error) {
	return tool_navigate.Tool(page)
}

// PageTools returns the tools that need a live page.
func PageTools(page pagebridge.Page) ([]agent.Tool, error) {
	constructors := []func(pagebridge.Page) (agent.Tool, error){
		GetCurrentTabContentTool,
		GetInteractiveElementsTool,
		PerformActionTool,
		NavigateToURLTool,
	}
	out := make([]agent.Tool, 0, len(constructors))
	for _, newTool := range constructors {
		tool, err := newTool(page)
		if err != nil {
			return nil, err
		}
		out = append(out, tool)
	}
	return out, nil
}
