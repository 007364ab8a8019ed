package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/elee1766/turnkit/src/memory"
)

// MemoryCmd runs memory commands outside a turn
type MemoryCmd struct {
	User string `short:"u" env:"TURNKIT_USER" default:"local" help:"User that owns the memory files"`

	View       MemoryViewCmd       `cmd:"" help:"List a directory or print a file"`
	Create     MemoryCreateCmd     `cmd:"" help:"Create or overwrite a file"`
	StrReplace MemoryStrReplaceCmd `cmd:"" name:"str-replace" help:"Replace a unique string in a file"`
	Insert     MemoryInsertCmd     `cmd:"" help:"Insert text after a line"`
	Delete     MemoryDeleteCmd     `cmd:"" help:"Delete a file or directory"`
	Rename     MemoryRenameCmd     `cmd:"" help:"Rename a file or directory"`
}

// runMemory opens the store, runs fn and prints its result.
func runMemory(cli *CLI, fn func(ctx context.Context, s *memory.Store, user string) (string, error)) error {
	ctx := context.Background()
	a, cleanup, err := newApp(ctx, cli)
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := fn(ctx, a.Memory, cli.Memory.User)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, out)
	return nil
}

type MemoryViewCmd struct {
	Path  string `arg:"" optional:"" default:"/memories" help:"Path under /memories"`
	Start int    `help:"First line to show (1-based)"`
	End   int    `help:"End of the line range; -1 for end of file"`
}

func (c *MemoryViewCmd) Run(kctx *kong.Context, cli *CLI) error {
	var rng *memory.ViewRange
	if c.Start != 0 || c.End != 0 {
		rng = &memory.ViewRange{Start: c.Start, End: c.End}
	}
	return runMemory(cli, func(ctx context.Context, s *memory.Store, user string) (string, error) {
		return s.View(ctx, user, c.Path, rng)
	})
}

type MemoryCreateCmd struct {
	Path string `arg:"" help:"File path under /memories"`
	Text string `arg:"" optional:"" help:"File content (read from stdin when omitted)"`
}

func (c *MemoryCreateCmd) Run(kctx *kong.Context, cli *CLI) error {
	text := c.Text
	if text == "" {
		data, err := readAllStdin()
		if err != nil {
			return err
		}
		text = data
	}
	return runMemory(cli, func(ctx context.Context, s *memory.Store, user string) (string, error) {
		return s.Create(ctx, user, c.Path, text)
	})
}

type MemoryStrReplaceCmd struct {
	Path string `arg:"" help:"File path under /memories"`
	Old  string `arg:"" help:"Text to replace; must occur exactly once"`
	New  string `arg:"" optional:"" help:"Replacement text"`
}

func (c *MemoryStrReplaceCmd) Run(kctx *kong.Context, cli *CLI) error {
	return runMemory(cli, func(ctx context.Context, s *memory.Store, user string) (string, error) {
		return s.StrReplace(ctx, user, c.Path, c.Old, c.New)
	})
}

type MemoryInsertCmd struct {
	Path string `arg:"" help:"File path under /memories"`
	Line int    `arg:"" help:"Insert after this line; 0 inserts at the top"`
	Text string `arg:"" help:"Text to insert"`
}

func (c *MemoryInsertCmd) Run(kctx *kong.Context, cli *CLI) error {
	return runMemory(cli, func(ctx context.Context, s *memory.Store, user string) (string, error) {
		return s.Insert(ctx, user, c.Path, c.Line, c.Text)
	})
}

type MemoryDeleteCmd struct {
	Path string `arg:"" help:"File or directory under /memories"`
}

func (c *MemoryDeleteCmd) Run(kctx *kong.Context, cli *CLI) error {
	return runMemory(cli, func(ctx context.Context, s *memory.Store, user string) (string, error) {
		return s.Delete(ctx, user, c.Path)
	})
}

type MemoryRenameCmd struct {
	Old string `arg:"" help:"Current path"`
	New string `arg:"" help:"New path"`
}

func (c *MemoryRenameCmd) Run(kctx *kong.Context, cli *CLI) error {
	return runMemory(cli, func(ctx context.Context, s *memory.Store, user string) (string, error) {
		return s.Rename(ctx, user, c.Old, c.New)
	})
}

func readAllStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), nil
}
