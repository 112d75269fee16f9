package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/elee1766/pagepilot/src/app"
	"github.com/elee1766/pagepilot/src/memory"
	"github.com/elee1766/pagepilot/src/storage"
	"github.com/elee1766/pagepilot/src/theme"
)

// MemoryCmd inspects and edits episodic memories
type MemoryCmd struct {
	List   MemoryListCmd   `cmd:"" default:"1" help:"List stored memories"`
	Query  MemoryQueryCmd  `cmd:"" help:"Find the memories most similar to a text"`
	Add    MemoryAddCmd    `cmd:"" help:"Reflect on a conversation and store the memory"`
	Delete MemoryDeleteCmd `cmd:"" help:"Delete a memory"`
}

// openMemory opens the app and fails when memory is disabled.
func openMemory(ctx context.Context, cli *CLI) (*app.App, error) {
	a, err := cli.openApp(ctx, app.AppConfig{})
	if err != nil {
		return nil, err
	}
	if a.Memory == nil {
		a.Close()
		return nil, errors.New("memory is disabled in the configuration")
	}
	return a, nil
}

type MemoryListCmd struct {
	JSON bool `help:"Output JSON"`
}

func (c *MemoryListCmd) Run(ctx context.Context, cli *CLI) error {
	a, err := openMemory(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	mems, err := a.Memory.List(ctx)
	if err != nil {
		return err
	}
	if c.JSON {
		if mems == nil {
			mems = []storage.EpisodicMemory{}
		}
		return printJSON(mems)
	}
	if len(mems) == 0 {
		fmt.Println(theme.Muted().Render("no memories"))
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCONVERSATION\tCREATED\tSITUATION")
	for _, m := range mems {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ID, m.ConversationID, m.CreatedAt.Local().Format("2006-01-02 15:04"), preview(m.Context, 60))
	}
	return w.Flush()
}

type MemoryQueryCmd struct {
	Text  []string `arg:"" help:"Text to match"`
	Limit int      `short:"n" default:"3" help:"Number of memories to return"`
	JSON  bool     `help:"Output JSON"`
}

func (c *MemoryQueryCmd) Run(ctx context.Context, cli *CLI) error {
	if c.Limit <= 0 {
		return usagef("--limit must be positive")
	}
	a, err := openMemory(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.Memory.Query(ctx, strings.Join(c.Text, " "), c.Limit)
	if err != nil {
		return err
	}
	if c.JSON {
		if results == nil {
			results = []memory.Result{}
		}
		return printJSON(results)
	}
	if len(results) == 0 {
		fmt.Println(theme.Muted().Render("no memories"))
		return nil
	}
	for _, r := range results {
		fmt.Println(theme.Title().Render(r.Memory.ID) + " " + theme.Muted().Render(fmt.Sprintf("score %.3f", r.Score)))
		fmt.Println(theme.Label("Situation", r.Memory.Context))
		fmt.Println(theme.Label("Went well", r.Memory.Good))
		fmt.Println(theme.Label("To improve", r.Memory.ToBeImproved))
		fmt.Println()
	}
	return nil
}

type MemoryAddCmd struct {
	ConversationID string `arg:"" help:"Conversation id"`
	Consolidate    bool   `default:"true" negatable:"" help:"Merge with similar memories"`
}

func (c *MemoryAddCmd) Run(ctx context.Context, cli *CLI) error {
	a, err := openMemory(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	msgs, err := a.Orchestrator.LoadConversation(ctx, c.ConversationID)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return fmt.Errorf("conversation %s has no messages", c.ConversationID)
	}
	transcript := memory.TranscriptOf(msgs)

	if !c.Consolidate {
		mem, err := a.Memory.Add(ctx, c.ConversationID, transcript)
		if err != nil {
			return err
		}
		fmt.Println(theme.Success().Render("stored " + mem.ID))
		return nil
	}

	result, err := a.Memory.Update(ctx, c.ConversationID, transcript)
	if err != nil {
		return err
	}
	msg := "stored " + result.Memory.ID
	if len(result.Replaced) > 0 {
		msg += fmt.Sprintf(", merged %d", len(result.Replaced))
	}
	fmt.Println(theme.Success().Render(msg))
	return nil
}

type MemoryDeleteCmd struct {
	ID string `arg:"" help:"Memory id"`
}

func (c *MemoryDeleteCmd) Run(ctx context.Context, cli *CLI) error {
	a, err := openMemory(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	deleted, err := a.Memory.Delete(ctx, c.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("memory %s not found", c.ID)
	}
	fmt.Println(theme.Success().Render("deleted " + c.ID))
	return nil
}
