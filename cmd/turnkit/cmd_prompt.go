package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/elee1766/turnkit/src/aisdk"
	"github.com/elee1766/turnkit/src/app"
	"github.com/elee1766/turnkit/src/executor"
	"github.com/elee1766/turnkit/src/memory"
	"github.com/google/uuid"
)

// PromptCmd represents the single prompt command
type PromptCmd struct {
	Text         []string `arg:"" optional:"" help:"The prompt text to send"`
	File         string   `short:"f" help:"Load prompt from file (- for stdin)"`
	Model        string   `short:"m" help:"Model to use for this prompt (defaults to config)"`
	SystemPrompt string   `short:"s" help:"Replace the base system prompt"`
	Conversation string   `help:"Conversation ID; reuses the stored container of an earlier turn"`
	User         string   `short:"u" env:"TURNKIT_USER" default:"local" help:"User that owns memory files"`
	Stream       bool     `default:"true" negatable:"" help:"Print the answer as it streams"`
	Reasoning    bool     `help:"Show model reasoning"`
	Raw          bool     `help:"Output raw response without formatting"`
	JSON         bool     `help:"Print the final message as JSON"`
	Capture      string   `type:"path" help:"Write the raw stream to this file for replay"`
}

func (p *PromptCmd) Run(kctx *kong.Context, cli *CLI) error {
	text, err := p.promptText(os.Stdin)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := newApp(ctx, cli)
	if err != nil {
		return err
	}
	defer cleanup()
	if p.SystemPrompt != "" {
		a.Config.Agent.SystemPrompt = p.SystemPrompt
	}

	var capture io.Writer
	if p.Capture != "" {
		f, err := os.Create(p.Capture)
		if err != nil {
			return fmt.Errorf("failed to create capture file: %w", err)
		}
		defer f.Close()
		capture = f
	}

	var procs []executor.EventProcessor
	if !p.JSON {
		procs = append(procs, executor.NewConsoleEventProcessor(executor.ConsoleProcessorConfig{
			Out:               os.Stdout,
			ShowReasoning:     p.Reasoning,
			ShowToolArguments: true,
			ShowToolResults:   true,
			RawMode:           p.Raw,
			StreamMode:        p.Stream,
			Color:             !p.Raw && isTerminal(os.Stdout),
		}))
	}
	sink := executor.NewChannelEventSink(100, a.Logger, procs...)

	runner, err := a.NewRunner(ctx, app.RunnerOptions{
		Model:   p.Model,
		User:    p.User,
		Sink:    sink,
		Capture: capture,
	})
	if err != nil {
		sink.Close()
		return err
	}

	conversationID := p.Conversation
	if conversationID == "" {
		conversationID = uuid.New().String()
	}
	conv := aisdk.NewConversation(conversationID, a.SystemPrompt())
	ctx = memory.WithUserID(ctx, p.User)

	t, runErr := runner.RunTurn(ctx, conv, &aisdk.Message{Role: "user", Content: text})
	if err := sink.Close(); err != nil {
		a.Logger.Warn("event sink closed with errors", "error", err)
	}
	if runErr != nil {
		return runErr
	}

	if p.JSON {
		return writeFinalJSON(os.Stdout, t.ID, t.Final())
	}
	return nil
}

// promptText joins the positional words or reads File.
func (p *PromptCmd) promptText(stdin io.Reader) (string, error) {
	var text string
	switch {
	case p.File == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read prompt from stdin: %w", err)
		}
		text = string(data)
	case p.File != "":
		data, err := os.ReadFile(p.File)
		if err != nil {
			return "", fmt.Errorf("failed to read prompt file: %w", err)
		}
		text = string(data)
	default:
		text = strings.Join(p.Text, " ")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: prompt text is required", errUsage)
	}
	return text, nil
}
