package main

import (
	"context"
	"fmt"

	"github.com/elee1766/pagepilot/src/app"
)

// ServeCmd runs the local server the extension connects to
type ServeCmd struct {
	Listen string `short:"l" help:"Address to listen on (defaults to config)"`
	Page   string `enum:"bridge,cdp,none" default:"bridge" help:"What backs the page tools (bridge, cdp, none)"`
	Tab    string `help:"URL pattern selecting the Chrome tab in cdp mode"`
}

func (c *ServeCmd) Run(ctx context.Context, cli *CLI) error {
	a, err := cli.openApp(ctx, app.AppConfig{
		PageMode:   app.PageMode(c.Page),
		TabPattern: c.Tab,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := a.NewServer()
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	listen := c.Listen
	if listen == "" {
		listen = a.Config.Server.Listen
	}
	a.Logger.Info("starting server", "page", c.Page, "database", a.Store.Path())
	return srv.ListenAndServe(ctx, listen)
}
