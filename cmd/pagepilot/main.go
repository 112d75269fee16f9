package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

// CLI represents the main CLI structure
type CLI struct {
	Config   string `short:"c" type:"path" help:"Path to a config file"`
	DataDir  string `type:"path" help:"Override the data directory"`
	LogLevel string `help:"Log level (debug, info, warn, error)"`

	Serve         ServeCmd         `cmd:"" help:"Serve the extension UI socket and page bridge"`
	Chat          ChatCmd          `cmd:"" help:"Chat with the agent from the terminal"`
	Attach        AttachCmd        `cmd:"" help:"Serve a Chrome tab as the page for a running server"`
	Settings      SettingsCmd      `cmd:"" help:"Show and change the stored settings"`
	Conversations ConversationsCmd `cmd:"" help:"Inspect stored conversations"`
	Memory        MemoryCmd        `cmd:"" help:"Inspect episodic memories"`
	ConfigCmd     ConfigCmd        `cmd:"" name:"config" help:"Show or initialize configuration"`
	Migrate       MigrateCmd       `cmd:"" help:"Database migrations"`
}

func main() {
	var cli CLI
	parser := kong.Must(&cli,
		kong.Name("pagepilot"),
		kong.Description("Browser agent that reads and drives web pages"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	kctx, err := parser.Parse(os.Args[1:])
	if err != nil {
		parser.Errorf("%s", err)
		os.Exit(ExitUsage)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	kctx.BindTo(ctx, (*context.Context)(nil))

	if err := kctx.Run(&cli); err != nil {
		stop()
		FatalError(err)
	}
}
