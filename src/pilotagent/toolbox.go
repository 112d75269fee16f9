// Package pilotagent assembles the browser toolbox and the system prompt
// used by the orchestrator.
package pilotagent

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/elee1766/pagepilot/src/agent"
	"github.com/elee1766/pagepilot/src/aisdk"
	"github.com/elee1766/pagepilot/src/pagebridge"
	"github.com/elee1766/pagepilot/src/pilotagent/tools"
)

// ToolboxOptions configures NewToolbox.
type ToolboxOptions struct {
	// Page is the tab the page tools act on. When nil only decideAction is
	// registered.
	Page pagebridge.Page

	// Model answers decideAction.
	Model aisdk.ModelClient

	Logger *slog.Logger

	// Timeout bounds a single tool execution. Zero disables it.
	Timeout time.Duration

	// Middlewares are applied inside the logging and timeout layers.
	Middlewares []agent.ToolMiddleware
}

// NewToolbox registers the browser tools.
func NewToolbox(opts ToolboxOptions) (*agent.DefaultToolbox, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tb := agent.NewToolbox[agent.Tool]()

	var all []agent.Tool
	if opts.Page != nil {
		pageTools, err := tools.PageTools(opts.Page)
		if err != nil {
			return nil, fmt.Errorf("failed to create page tools: %w", err)
		}
		all = append(all, pageTools...)
	}
	decide, err := tools.DecideActionTool(opts.Page, opts.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s tool: %w", tools.DecideActionName, err)
	}
	all = append(all, decide)

	for _, tool := range all {
		if err := tb.RegisterTool(tool); err != nil {
			return nil, err
		}
	}

	tb.RegisterMiddleware(agent.LoggingMiddleware(logger.With("component", "toolbox")))
	tb.RegisterMiddleware(agent.TimeoutMiddleware(opts.Timeout))
	for _, mw := range opts.Middlewares {
		tb.RegisterMiddleware(mw)
	}
	return tb, nil
}
