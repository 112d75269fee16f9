package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/elee1766/pagepilot/src/app"
	"github.com/elee1766/pagepilot/src/memory"
	"github.com/elee1766/pagepilot/src/orchestrator"
	"github.com/elee1766/pagepilot/src/storage"
	"github.com/elee1766/pagepilot/src/theme"
)

// ConversationsCmd inspects stored conversations
type ConversationsCmd struct {
	List      ConversationsListCmd      `cmd:"" default:"1" help:"List conversations, most recent first"`
	Show      ConversationsShowCmd      `cmd:"" help:"Print the messages of a conversation"`
	Latest    ConversationsLatestCmd    `cmd:"" help:"Print the id of the most recent conversation"`
	Delete    ConversationsDeleteCmd    `cmd:"" help:"Delete a conversation"`
	Summarize ConversationsSummarizeCmd `cmd:"" help:"Summarize a conversation with the chat model"`
}

type ConversationsListCmd struct {
	JSON bool `help:"Output JSON"`
}

func (c *ConversationsListCmd) Run(ctx context.Context, cli *CLI) error {
	a, err := cli.openApp(ctx, app.AppConfig{})
	if err != nil {
		return err
	}
	defer a.Close()

	convs, err := a.Orchestrator.ListConversations(ctx)
	if err != nil {
		return err
	}
	if c.JSON {
		if convs == nil {
			convs = []storage.Conversation{}
		}
		return printJSON(convs)
	}
	if len(convs) == 0 {
		fmt.Println(theme.Muted().Render("no conversations"))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLAST MESSAGE\tPREVIEW")
	for _, conv := range convs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", conv.ID, formatMillis(conv.LastMessageAt), preview(conv.Preview, 60))
	}
	return w.Flush()
}

type ConversationsShowCmd struct {
	ID   string `arg:"" help:"Conversation id"`
	JSON bool   `help:"Output JSON"`
}

func (c *ConversationsShowCmd) Run(ctx context.Context, cli *CLI) error {
	a, err := cli.openApp(ctx, app.AppConfig{})
	if err != nil {
		return err
	}
	defer a.Close()

	msgs, err := a.Orchestrator.LoadConversation(ctx, c.ID)
	if err != nil {
		return err
	}
	if c.JSON {
		if msgs == nil {
			msgs = []storage.Message{}
		}
		return printJSON(msgs)
	}
	if len(msgs) == 0 {
		return fmt.Errorf("conversation %s has no messages", c.ID)
	}
	for _, msg := range msgs {
		fmt.Println(theme.Title().Render(string(msg.Role)) + " " + theme.Muted().Render(formatMillis(msg.Timestamp)))
		fmt.Println(msg.Content)
		fmt.Println()
	}
	return nil
}

type ConversationsLatestCmd struct{}

func (c *ConversationsLatestCmd) Run(ctx context.Context, cli *CLI) error {
	a, err := cli.openApp(ctx, app.AppConfig{})
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := a.Orchestrator.LatestConversation(ctx)
	if err != nil {
		return err
	}
	if id == "" {
		return errors.New("no conversations")
	}
	fmt.Println(id)
	return nil
}

type ConversationsDeleteCmd struct {
	ID string `arg:"" help:"Conversation id"`
}

func (c *ConversationsDeleteCmd) Run(ctx context.Context, cli *CLI) error {
	a, err := cli.openApp(ctx, app.AppConfig{})
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.Orchestrator.DeleteConversation(ctx, c.ID, orchestrator.SinkFunc(func(orchestrator.Event) error { return nil })); err != nil {
		return err
	}
	fmt.Println(theme.Success().Render("deleted " + c.ID))
	return nil
}

type ConversationsSummarizeCmd struct {
	ID string `arg:"" optional:"" help:"Conversation id (defaults to the most recent)"`
}

func (c *ConversationsSummarizeCmd) Run(ctx context.Context, cli *CLI) error {
	a, err := cli.openApp(ctx, app.AppConfig{})
	if err != nil {
		return err
	}
	defer a.Close()
	if a.Memory == nil {
		return errors.New("memory is disabled in the configuration")
	}

	id := c.ID
	if id == "" {
		if id, err = a.Orchestrator.LatestConversation(ctx); err != nil {
			return err
		}
		if id == "" {
			return errors.New("no conversations")
		}
	}
	msgs, err := a.Orchestrator.LoadConversation(ctx, id)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return fmt.Errorf("conversation %s has no messages", id)
	}

	summary, err := a.Memory.SummarizeConversation(ctx, memory.TranscriptOf(msgs))
	if err != nil {
		return err
	}
	fmt.Println(summary)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}

// preview shortens s to n runes on one line.
func preview(s string, n int) string {
	r := []rune(s)
	for i, c := range r {
		if c == '\n' || c == '\r' {
			r[i] = ' '
		}
	}
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
