package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/elee1766/pagepilot/src/app"
	"github.com/elee1766/pagepilot/src/config"
	"github.com/elee1766/pagepilot/src/pilotagent/toolsutil"
)

// loadConfig loads the layered configuration and applies global flags
func (cli *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader(config.GetConfigPaths(cli.Config)).Load()
	if err != nil {
		return nil, err
	}
	if cli.DataDir != "" {
		cfg.Data.Directory = cli.DataDir
	}
	return cfg, nil
}

func (cli *CLI) logger(cfg *config.Config) *slog.Logger {
	logger := createLogger(os.Stderr, cfg.Observability.Logging, cli.LogLevel)
	slog.SetDefault(logger)
	toolsutil.SetLogger(logger)
	return logger
}

// openApp loads configuration and builds the app. The caller closes it.
func (cli *CLI) openApp(ctx context.Context, cfg app.AppConfig) (*app.App, error) {
	conf, err := cli.loadConfig()
	if err != nil {
		return nil, err
	}
	cfg.Config = conf
	cfg.Logger = cli.logger(conf)
	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to start: %w", err)
	}
	return a, nil
}

// maskAPIKey masks an API key for display
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
