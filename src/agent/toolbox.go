package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/elee1766/pagepilot/src/aisdk"
)

// ErrToolNotFound is returned by ExecuteTool for an unregistered tool name.
var ErrToolNotFound = errors.New("tool not found")

// ToolExecutor is a function type for tool execution
type ToolExecutor func(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error)

type DefaultToolbox = Toolbox[Tool]

// Toolbox handles tool/function calling functionality.
type Toolbox[T Tool] struct {
	tools      map[string]T
	middleware []ToolMiddleware
}

// ToolMiddleware is a function that wraps a ToolExecutor to add functionality.
type ToolMiddleware func(next ToolExecutor) ToolExecutor

// NewToolbox creates a new tool manager.
func NewToolbox[T Tool]() *Toolbox[T] {
	return &Toolbox[T]{
		tools: make(map[string]T),
	}
}

// RegisterTool registers a tool.
func (tm *Toolbox[T]) RegisterTool(tool T) error {
	if tool.GetName() == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	if _, exists := tm.tools[tool.GetName()]; exists {
		return fmt.Errorf("tool %s is already registered", tool.GetName())
	}

	tm.tools[tool.GetName()] = tool
	return nil
}

// RegisterMiddleware registers middleware that will be applied to all tool executions.
// Middleware is applied in the order it's registered (first registered = outermost layer).
func (tm *Toolbox[T]) RegisterMiddleware(middleware ToolMiddleware) {
	tm.middleware = append(tm.middleware, middleware)
}

// Tools returns the registered tools ordered by name.
func (tm *Toolbox[T]) Tools() []T {
	names := make([]string, 0, len(tm.tools))
	for name := range tm.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]T, 0, len(names))
	for _, name := range names {
		out = append(out, tm.tools[name])
	}
	return out
}

// ExecuteTool executes a tool call with middleware applied.
func (tm *Toolbox[T]) ExecuteTool(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
	tool, exists := tm.tools[call.Function.Name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, call.Function.Name)
	}

	finalExecutor := ToolExecutor(func(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
		return tool.Execute(ctx, call)
	})
	for i := len(tm.middleware) - 1; i >= 0; i-- {
		finalExecutor = tm.middleware[i](finalExecutor)
	}

	return finalExecutor(ctx, call)
}

// GetTool returns a specific tool by name.
func (tm *Toolbox[T]) GetTool(name string) (T, bool) {
	tool, exists := tm.tools[name]
	return tool, exists
}

// HasTool checks if a tool is available.
func (tm *Toolbox[T]) HasTool(name string) bool {
	_, exists := tm.tools[name]
	return exists
}

// LoggingMiddleware logs tool execution details.
func LoggingMiddleware(logger *slog.Logger) ToolMiddleware {
	return func(next ToolExecutor) ToolExecutor {
		return func(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
			start := time.Now()
			logger.Debug("executing tool", "tool", call.Function.Name, "params", string(call.Function.Arguments))
			result, err := next(ctx, call)
			switch {
			case err != nil:
				logger.Warn("tool execution failed", "tool", call.Function.Name, "error", err)
			case result != nil && result.IsError:
				logger.Info("tool reported error", "tool", call.Function.Name, "content", string(result.Content))
			default:
				logger.Debug("tool execution completed", "tool", call.Function.Name, "duration", time.Since(start))
			}
			return result, err
		}
	}
}

// TimeoutMiddleware bounds every tool execution by d. Zero disables it.
func TimeoutMiddleware(d time.Duration) ToolMiddleware {
	return func(next ToolExecutor) ToolExecutor {
		if d <= 0 {
			return next
		}
		return func(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, call)
		}
	}
}
