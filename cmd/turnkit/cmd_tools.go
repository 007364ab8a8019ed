package main

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	"github.com/elee1766/turnkit/src/turnagent/tools"
)

// ToolsCmd represents all tool-related commands
type ToolsCmd struct {
	List ToolsListCmd `cmd:"list" help:"List available tools"`
}

// ToolsListCmd lists available tools
type ToolsListCmd struct {
	Format   string `short:"f" enum:"table,json,simple" default:"table" help:"Output format"`
	Category string `short:"c" help:"Filter by category"`
}

type toolStatus struct {
	tools.Info
	Status string `json:"status"`
}

func (c *ToolsListCmd) Run(kctx *kong.Context, cli *CLI) error {
	cfg, logger, err := setup(cli)
	if err != nil {
		return err
	}
	logger.Debug("Listing tools", "format", c.Format, "category", c.Category)

	var list []toolStatus
	for _, info := range tools.Known() {
		if c.Category != "" && info.Category != c.Category {
			continue
		}
		status := "enabled"
		switch {
		case len(cfg.Dispatch.Enabled) > 0 && !slices.Contains(cfg.Dispatch.Enabled, info.Name):
			status = "disabled"
		case slices.Contains(cfg.Dispatch.Deferred, info.Name):
			status = "deferred"
		}
		list = append(list, toolStatus{Info: info, Status: status})
	}

	switch c.Format {
	case "json":
		return printToolsJSON(list)
	case "simple":
		for _, t := range list {
			fmt.Println(t.Name)
		}
		return nil
	default:
		return printToolsTable(list)
	}
}

func printToolsTable(list []toolStatus) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "NAME\tCATEGORY\tPROVIDER\tSTATUS")
	fmt.Fprintln(w, "----\t--------\t--------\t------")
	for _, t := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Name, t.Category, t.Provider, t.Status)
	}
	return nil
}

func printToolsJSON(list []toolStatus) error {
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
