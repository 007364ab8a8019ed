package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/elee1766/turnkit/src/executor"
	"github.com/elee1766/turnkit/src/frame"
	"github.com/elee1766/turnkit/src/turn"
	"github.com/spf13/afero"
)

// ReplayCmd decodes a stream captured by prompt --capture.
type ReplayCmd struct {
	File      string `arg:"" help:"Captured stream file"`
	Format    string `enum:",tags,records" default:"" help:"Wire format (defaults to config)"`
	Prefix    string `help:"Record line prefix (defaults to config)"`
	ChunkSize int    `default:"64" help:"Bytes fed to the reader at a time"`
	Reasoning bool   `help:"Show model reasoning"`
	JSON      bool   `help:"Print the final message as JSON"`
}

func (c *ReplayCmd) Run(kctx *kong.Context, cli *CLI) error {
	cfg, logger, err := setup(cli)
	if err != nil {
		return err
	}

	fcfg := frame.Config{
		Format:       frame.Format(cfg.Stream.Format),
		RecordPrefix: cfg.Stream.RecordPrefix,
		Logger:       logger,
	}
	if c.Format != "" {
		fcfg.Format = frame.Format(c.Format)
	}
	if c.Prefix != "" {
		fcfg.RecordPrefix = c.Prefix
	}

	f, err := afero.NewOsFs().Open(c.File)
	if err != nil {
		return fmt.Errorf("failed to open capture: %w", err)
	}
	defer f.Close()

	var sink executor.EventSink
	if !c.JSON {
		sink = executor.NewChannelEventSink(100, logger, executor.NewConsoleEventProcessor(executor.ConsoleProcessorConfig{
			Out:               os.Stdout,
			ShowReasoning:     c.Reasoning,
			ShowToolArguments: true,
			ShowToolResults:   true,
			Color:             isTerminal(os.Stdout),
		}))
	}

	t, err := replay(f, fcfg, c.ChunkSize, sink, time.Now)
	if sink != nil {
		sink.Close()
	}
	if err != nil {
		return err
	}
	if c.JSON {
		return writeFinalJSON(os.Stdout, t.ID, t.Final())
	}
	return nil
}

// replay feeds r through a frame reader in chunkSize pieces and completes a
// turn from the decoded deltas. Events go to sink when it is non-nil.
func replay(r io.Reader, cfg frame.Config, chunkSize int, sink executor.EventSink, now func() time.Time) (*turn.Turn, error) {
	reader, err := frame.New(cfg)
	if err != nil {
		return nil, err
	}
	if chunkSize <= 0 {
		chunkSize = 64
	}

	t := turn.New("replay", "replay", nil, nil)
	if err := t.Start(now()); err != nil {
		return nil, err
	}
	emitter := executor.NewEventEmitter(sink, t.ConversationID, t.ID, now)

	buf := make([]byte, chunkSize)
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			for _, d := range reader.Feed(buf[:n]) {
				if _, err := t.Apply(d); err != nil {
					return t, err
				}
				emitter.EmitDelta(d)
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return t, fmt.Errorf("failed to read capture: %w", readErr)
		}
	}
	for _, d := range reader.Flush() {
		if _, err := t.Apply(d); err != nil {
			return t, err
		}
		emitter.EmitDelta(d)
	}

	final, err := t.Complete(now())
	if err != nil {
		return t, err
	}
	emitter.EmitTurnComplete(final, 1)
	return t, nil
}
