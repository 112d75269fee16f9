package orchestrator

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/elee1766/pagepilot/src/theme"
)

// ConsoleProcessorConfig configures the console event processor
type ConsoleProcessorConfig struct {
	ShowToolArguments bool
	ShowToolResults   bool
	// RawMode prints only the final reply, unstyled.
	RawMode          bool
	MaxResultPreview int
}

// ConsoleEventProcessor renders events on a terminal.
type ConsoleEventProcessor struct {
	config ConsoleProcessorConfig
	out    io.Writer
}

// NewConsoleEventProcessor creates a new console event processor
func NewConsoleEventProcessor(out io.Writer, config ConsoleProcessorConfig) *ConsoleEventProcessor {
	if config.MaxResultPreview == 0 {
		config.MaxResultPreview = 200
	}
	return &ConsoleEventProcessor{config: config, out: out}
}

// Process handles a single event
func (p *ConsoleEventProcessor) Process(event Event) error {
	if p.config.RawMode {
		if e, ok := event.(*ChatResponseEvent); ok {
			fmt.Fprintln(p.out, e.Content)
		}
		return nil
	}

	switch e := event.(type) {
	case *ToolCallEvent:
		p.processToolCall(e)
	case *ToolResultEvent:
		p.processToolResult(e)
	case *ChatResponseEvent:
		p.processChatResponse(e)
	case *ConversationDeletedEvent:
		if e.Success {
			fmt.Fprintln(p.out, theme.Success().Render("Deleted conversation "+e.ConversationID))
		} else {
			fmt.Fprintln(p.out, theme.Warning().Render("Nothing to delete for "+e.ConversationID))
		}
	}
	return nil
}

// Close cleans up resources
func (p *ConsoleEventProcessor) Close() error {
	return nil
}

func (p *ConsoleEventProcessor) processToolCall(e *ToolCallEvent) {
	fmt.Fprintf(p.out, "%s %s\n", theme.Muted().Render(fmt.Sprintf("[%d]", e.Step)), theme.Title().Render(e.Tool))

	if p.config.ShowToolArguments && len(e.Arguments) > 0 {
		var args interface{}
		if err := json.Unmarshal(e.Arguments, &args); err == nil {
			if pretty, err := json.MarshalIndent(args, "    ", "  "); err == nil {
				fmt.Fprintf(p.out, "    %s\n", theme.Muted().Render(string(pretty)))
				return
			}
		}
		fmt.Fprintf(p.out, "    %s\n", theme.Muted().Render(string(e.Arguments)))
	}
}

func (p *ConsoleEventProcessor) processToolResult(e *ToolResultEvent) {
	duration := (time.Duration(e.DurationMs) * time.Millisecond).Round(10 * time.Millisecond)
	if e.IsError {
		fmt.Fprintf(p.out, "    %s (%v)\n", theme.Error().Render(preview(e.Content, p.config.MaxResultPreview)), duration)
		return
	}
	fmt.Fprintf(p.out, "    %s (%v)\n", theme.Success().Render("done"), duration)
	if p.config.ShowToolResults && e.Content != "" {
		fmt.Fprintf(p.out, "    %s\n", theme.Muted().Render(preview(e.Content, p.config.MaxResultPreview)))
	}
}

func (p *ConsoleEventProcessor) processChatResponse(e *ChatResponseEvent) {
	if e.Error {
		fmt.Fprintln(p.out, theme.Error().Render(e.Content))
		return
	}
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, theme.Text().Render(e.Content))
}

func preview(s string, limit int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return s
}
