package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/elee1766/pagepilot/src/app"
	"github.com/elee1766/pagepilot/src/orchestrator"
	"github.com/elee1766/pagepilot/src/theme"
)

// ChatCmd sends messages to the agent from the terminal. Without text it
// reads one message per line from stdin.
type ChatCmd struct {
	Text         []string `arg:"" optional:"" help:"Message to send"`
	Conversation string   `short:"C" help:"Continue the conversation with this id"`
	Resume       bool     `short:"r" help:"Continue the most recent conversation"`
	Page         string   `enum:"none,static,cdp" default:"none" help:"What backs the page tools (none, static, cdp)"`
	URL          string   `short:"u" help:"Start URL for the static page"`
	Tab          string   `help:"URL pattern selecting the Chrome tab in cdp mode"`
	Raw          bool     `help:"Print only the reply"`
	Quiet        bool     `short:"q" help:"Hide tool calls and results"`
}

func (c *ChatCmd) Run(ctx context.Context, cli *CLI) error {
	if c.Resume && c.Conversation != "" {
		return usagef("--resume and --conversation are mutually exclusive")
	}
	if c.URL != "" && c.Page != string(app.PageStatic) {
		return usagef("--url requires --page=static")
	}

	a, err := cli.openApp(ctx, app.AppConfig{
		PageMode:   app.PageMode(c.Page),
		StartURL:   c.URL,
		TabPattern: c.Tab,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	convID := c.Conversation
	if c.Resume {
		convID, err = a.Orchestrator.LatestConversation(ctx)
		if err != nil {
			return err
		}
	}

	session := &chatSession{
		orch:           a.Orchestrator,
		conversationID: convID,
		newSink: func() *orchestrator.ChannelEventSink {
			return orchestrator.NewChannelEventSink(100, a.Logger, orchestrator.NewConsoleEventProcessor(os.Stdout, orchestrator.ConsoleProcessorConfig{
				ShowToolArguments: !c.Quiet,
				ShowToolResults:   !c.Quiet,
				RawMode:           c.Raw,
			}))
		},
	}
	if len(c.Text) > 0 {
		err = session.send(ctx, strings.Join(c.Text, " "))
	} else {
		err = session.repl(ctx, os.Stdin, os.Stderr)
	}
	if session.conversationID != "" && !c.Raw {
		fmt.Fprintln(os.Stderr, theme.Muted().Render("conversation "+session.conversationID))
	}
	return err
}

type chatSession struct {
	orch           *orchestrator.Orchestrator
	newSink        func() *orchestrator.ChannelEventSink
	conversationID string
}

// send runs one turn. The sink is drained before returning so output is
// not interleaved with the next prompt.
func (s *chatSession) send(ctx context.Context, text string) error {
	sink := s.newSink()
	resp, err := s.orch.HandleChat(ctx, orchestrator.ChatRequest{Message: text, ConversationID: s.conversationID}, sink)
	sink.Close()
	if err != nil {
		return err
	}
	s.conversationID = resp.ConversationID
	if resp.Error {
		return errTurnFailed
	}
	return ctx.Err()
}

func (s *chatSession) repl(ctx context.Context, in io.Reader, prompt io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for {
		fmt.Fprint(prompt, theme.Title().Render("> "))
		if !scanner.Scan() {
			fmt.Fprintln(prompt)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		}
		if err := s.send(ctx, line); err != nil && err != errTurnFailed {
			return err
		}
	}
}
