package main

import (
	"context"
	"fmt"
	"os"

	"github.com/elee1766/pagepilot/src/config"
	"github.com/elee1766/pagepilot/src/theme"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ConfigCmd shows or writes configuration
type ConfigCmd struct {
	Show ConfigShowCmd `cmd:"" default:"1" help:"Print the effective configuration"`
	Init ConfigInitCmd `cmd:"" help:"Write the default configuration to the user config file"`
	Path ConfigPathCmd `cmd:"" help:"Print the config and database paths"`
}

type ConfigShowCmd struct{}

func (c *ConfigShowCmd) Run(ctx context.Context, cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(cfg)
}

type ConfigInitCmd struct {
	Path  string `type:"path" help:"File to write (defaults to the user config path)"`
	Force bool   `short:"f" help:"Overwrite an existing file"`
}

func (c *ConfigInitCmd) Run(ctx context.Context, cli *CLI) error {
	fsys := afero.NewOsFs()
	path := c.Path
	if path == "" {
		path = config.UserConfigPath(fsys)
	}
	if exists, _ := afero.Exists(fsys, path); exists && !c.Force {
		return usagef("%s already exists, pass --force to overwrite", path)
	}
	loader := config.NewLoaderFs(fsys, config.ConfigPrecedence{}, os.Getenv)
	if err := loader.SaveFile(config.DefaultConfig(), path); err != nil {
		return err
	}
	fmt.Println(theme.Success().Render("wrote " + path))
	return nil
}

type ConfigPathCmd struct{}

func (c *ConfigPathCmd) Run(ctx context.Context, cli *CLI) error {
	paths := config.GetConfigPaths(cli.Config)
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	fmt.Println(theme.Label("User config", paths.UserConfig))
	if paths.ProjectConfig != "" {
		fmt.Println(theme.Label("Project config", paths.ProjectConfig))
	}
	if paths.ExplicitConfig != "" {
		fmt.Println(theme.Label("Explicit config", paths.ExplicitConfig))
	}
	fmt.Println(theme.Label("Database", config.DatabasePath(cfg)))
	return nil
}
