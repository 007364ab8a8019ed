package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/alecthomas/kong"
	"github.com/elee1766/turnkit/src/config"
)

// ConfigCmd manages configuration files
type ConfigCmd struct {
	Show ConfigShowCmd `cmd:"" help:"Print the merged configuration"`
	Init ConfigInitCmd `cmd:"" help:"Write a default config file"`
}

type ConfigShowCmd struct{}

func (c *ConfigShowCmd) Run(kctx *kong.Context, cli *CLI) error {
	cfg, err := loadConfig(cli.ConfigFile)
	if err != nil {
		return err
	}
	overrideConfigFromCLI(cfg, cli)
	cfg.API.APIKey = maskAPIKey(cfg.API.ResolveAPIKey())

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

type ConfigInitCmd struct {
	Path    string `arg:"" optional:"" type:"path" help:"Destination (defaults to the user config)"`
	Project bool   `help:"Write the project config in the current directory"`
	Force   bool   `help:"Overwrite an existing file"`
}

func (c *ConfigInitCmd) Run(kctx *kong.Context, cli *CLI) error {
	paths := config.GetConfigPaths()
	path := c.Path
	switch {
	case path != "":
	case c.Project:
		path = paths.ProjectConfig
	default:
		path = filepath.Join(xdg.ConfigHome, "turnkit", "config.json")
	}

	if _, err := os.Stat(path); err == nil && !c.Force {
		return fmt.Errorf("%w: %s already exists (use --force)", errUsage, path)
	}

	if err := config.NewLoader(paths).SaveFile(config.DefaultConfig(), path); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}
