package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"text/tabwriter"

	"github.com/elee1766/pagepilot/src/config"
	"github.com/elee1766/pagepilot/src/storage"
	"github.com/elee1766/pagepilot/src/theme"
)

// MigrateCmd manages database migrations
type MigrateCmd struct {
	Up     MigrateUpCmd     `cmd:"" default:"1" help:"Run pending migrations"`
	Status MigrateStatusCmd `cmd:"" help:"Show migration status"`
}

// MigrateUpCmd runs pending migrations
type MigrateUpCmd struct {
	DBPath string `type:"path" help:"Database path (defaults to config)"`
}

func (c *MigrateUpCmd) Run(ctx context.Context, cli *CLI) error {
	db, err := openDatabase(cli, c.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := db.AppliedMigrations(ctx)
	if err != nil {
		return err
	}
	fmt.Println(theme.Success().Render(fmt.Sprintf("%s is at version %d", db.Path(), latest(applied))))
	return nil
}

// MigrateStatusCmd shows migration status
type MigrateStatusCmd struct {
	DBPath string `type:"path" help:"Database path (defaults to config)"`
}

func (c *MigrateStatusCmd) Run(ctx context.Context, cli *CLI) error {
	db, err := openDatabase(cli, c.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := db.AppliedMigrations(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSTATUS")
	for _, m := range storage.Migrations() {
		status := "pending"
		if slices.Contains(applied, m.Version) {
			status = "applied"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", m.Version, m.Name, status)
	}
	return w.Flush()
}

// openDatabase opens, and so migrates, the database at path or the
// configured one.
func openDatabase(cli *CLI, path string) (*storage.DB, error) {
	if path == "" {
		cfg, err := cli.loadConfig()
		if err != nil {
			return nil, err
		}
		path = config.DatabasePath(cfg)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	db, err := storage.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func latest(versions []int) int {
	if len(versions) == 0 {
		return 0
	}
	return slices.Max(versions)
}
