package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/elee1766/pagepilot/src/app"
	"github.com/elee1766/pagepilot/src/models"
	"github.com/elee1766/pagepilot/src/storage"
	"github.com/elee1766/pagepilot/src/theme"
)

// SettingsCmd manages the settings shared with the extension
type SettingsCmd struct {
	Show      SettingsShowCmd      `cmd:"" default:"1" help:"Show the stored settings"`
	SetAPIKey SettingsSetAPIKeyCmd `cmd:"" name:"set-api-key" help:"Store the provider API key"`
	SetModel  SettingsSetModelCmd  `cmd:"" name:"set-model" help:"Select the chat model"`
}

type SettingsShowCmd struct{}

func (c *SettingsShowCmd) Run(ctx context.Context, cli *CLI) error {
	a, err := cli.openApp(ctx, app.AppConfig{})
	if err != nil {
		return err
	}
	defer a.Close()

	key, err := storage.GetSettingValue(ctx, a.Store.DB(), storage.SettingAPIKey)
	if err != nil {
		return err
	}
	view, err := a.Orchestrator.GetSettings(ctx)
	if err != nil {
		return err
	}

	shownKey := theme.Warning().Render("not set")
	if view.APIKeySet {
		shownKey = maskAPIKey(key)
	}
	fmt.Println(theme.Label("API key", shownKey))
	fmt.Println(theme.Label("Model", view.Model))
	fmt.Println(theme.Label("Provider", string(models.KindFor(view.Model))))
	fmt.Println(theme.Label("Database", a.Store.Path()))
	return nil
}

// SettingsSetAPIKeyCmd stores the key. "-" reads it from stdin.
type SettingsSetAPIKeyCmd struct {
	Key string `arg:"" help:"API key, or - to read it from stdin"`
}

func (c *SettingsSetAPIKeyCmd) Run(ctx context.Context, cli *CLI) error {
	key := c.Key
	if key == "-" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read API key: %w", err)
		}
		key = line
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return usagef("API key cannot be empty")
	}
	return saveSetting(ctx, cli, storage.SettingAPIKey, key)
}

type SettingsSetModelCmd struct {
	Model string `arg:"" help:"Model id, such as gpt-4o, claude-3-5-sonnet-latest or openai/gpt-4o"`
}

func (c *SettingsSetModelCmd) Run(ctx context.Context, cli *CLI) error {
	if strings.TrimSpace(c.Model) == "" {
		return usagef("model cannot be empty")
	}
	return saveSetting(ctx, cli, storage.SettingModel, c.Model)
}

func saveSetting(ctx context.Context, cli *CLI, settingType storage.SettingType, value string) error {
	a, err := cli.openApp(ctx, app.AppConfig{})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Orchestrator.SaveSetting(ctx, settingType, value); err != nil {
		return err
	}
	fmt.Println(theme.Success().Render(fmt.Sprintf("%s saved", settingType)))
	return nil
}
