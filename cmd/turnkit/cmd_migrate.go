package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/elee1766/turnkit/src/config"
	"github.com/elee1766/turnkit/src/storage"
)

// MigrateCmd manages database migrations
type MigrateCmd struct {
	Up     MigrateUpCmd     `cmd:"" help:"Run pending migrations"`
	Status MigrateStatusCmd `cmd:"" help:"Show migration status"`
}

// dbPath returns the explicit path, the configured one or the default.
func dbPath(explicit string, cli *CLI) string {
	if explicit != "" {
		return explicit
	}
	if cfg, err := loadConfig(cli.ConfigFile); err == nil && cfg.Storage.DatabasePath != "" {
		return cfg.Storage.DatabasePath
	}
	return config.GetDefaultStoragePaths().DatabasePath
}

// MigrateUpCmd runs pending migrations
type MigrateUpCmd struct {
	DBPath string `help:"Database path (defaults to config)"`
}

// Run executes the migrate up command. Open applies pending migrations.
func (c *MigrateUpCmd) Run(kctx *kong.Context, cli *CLI) error {
	path := dbPath(c.DBPath, cli)
	db, err := openStorage(path)
	if err != nil {
		return err
	}
	defer db.Close()

	versions, err := db.AppliedMigrations(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Database %s is at version %d\n", path, lastVersion(versions))
	return nil
}

// MigrateStatusCmd shows migration status
type MigrateStatusCmd struct {
	DBPath string `help:"Database path (defaults to config)"`
}

// Run executes the migrate status command
func (c *MigrateStatusCmd) Run(kctx *kong.Context, cli *CLI) error {
	path := dbPath(c.DBPath, cli)
	db, err := openStorage(path)
	if err != nil {
		return err
	}
	defer db.Close()

	versions, err := db.AppliedMigrations(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Database: %s\n", path)
	fmt.Printf("Applied:  %v\n", versions)
	fmt.Printf("Latest:   %d\n", storage.LatestMigration())
	return nil
}

func openStorage(path string) (*storage.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}
	db, err := storage.Open(context.Background(), path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func lastVersion(versions []int) int {
	if len(versions) == 0 {
		return 0
	}
	return versions[len(versions)-1]
}
