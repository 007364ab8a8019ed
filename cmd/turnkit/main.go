package main

import (
	"os"

	"github.com/alecthomas/kong"
)

// CLI represents the main CLI structure
type CLI struct {
	ConfigFile string `short:"c" name:"config-file" type:"path" help:"Config file (overrides the user config)"`
	APIKey     string `env:"OPENROUTER_API_KEY" help:"OpenRouter API key"`
	BaseURL    string `help:"Custom API base URL"`
	LogLevel   string `enum:",debug,info,warn,error" default:"" help:"Log level (defaults to config)"`
	LogFormat  string `enum:",text,json" default:"" help:"Log format (defaults to config)"`

	Prompt  PromptCmd  `cmd:"" help:"Run one turn against the model"`
	Replay  ReplayCmd  `cmd:"" help:"Decode a captured stream into its final message"`
	Memory  MemoryCmd  `cmd:"" help:"Inspect and edit memory files"`
	Tools   ToolsCmd   `cmd:"" help:"Tool information"`
	Migrate MigrateCmd `cmd:"" help:"Database migrations"`
	Conf    ConfigCmd  `cmd:"" name:"config" help:"Configuration management"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("turnkit"),
		kong.Description("Streaming turn runner for tool-using assistants"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	err := ctx.Run(&cli)
	os.Exit(handleError(os.Stderr, err))
}
