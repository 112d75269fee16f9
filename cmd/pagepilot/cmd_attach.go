package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/elee1766/pagepilot/src/browser"
	"github.com/elee1766/pagepilot/src/dom"
	"github.com/elee1766/pagepilot/src/pagebridge"
	"github.com/gorilla/websocket"
)

// AttachCmd connects a Chrome tab to a running server's page bridge, for
// use when no extension is installed.
type AttachCmd struct {
	Server string `default:"ws://127.0.0.1:8765/bridge" help:"Bridge URL of the running server"`
	Tab    string `help:"URL pattern selecting the Chrome tab"`
	Origin string `default:"http://localhost" help:"Origin header sent to the server"`
}

func (c *AttachCmd) Run(ctx context.Context, cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	logger := cli.logger(cfg)

	tab, err := browser.Attach(ctx, browser.Options{
		DebugURL:    cfg.Bridge.DebugURL,
		URLPattern:  c.Tab,
		TypingDelay: cfg.Bridge.TypingDelay.Std(),
		Format:      dom.Format(cfg.Bridge.ContentFormat),
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("failed to attach to chrome: %w", err)
	}
	defer tab.Close()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.Server, http.Header{"Origin": {c.Origin}})
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.Server, err)
	}
	defer conn.Close()

	logger.Info("serving tab", "server", c.Server)
	err = pagebridge.Serve(ctx, conn, pagebridge.NewDispatcher(tab, logger), logger)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
