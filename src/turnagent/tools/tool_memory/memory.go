package tool_memory

import (
	"context"
	"fmt"

	"github.com/elee1766/turnkit/src/agent"
	"github.com/elee1766/turnkit/src/memory"
	"github.com/elee1766/turnkit/src/turnagent/toolsutil"
)

// Tool name constant
const Name = "memory"

const memoryPrompt = `Reads and writes the user's persistent memory files under /memories.

WHEN TO USE THIS TOOL:
- At the start of a task, view /memories to recall earlier progress
- Record facts, decisions and progress worth keeping across conversations
- Keep files small and organized; rename or delete files that are stale

COMMANDS:
- view: list a directory (path ending in / or the root) or show a file with line numbers; view_range selects [start, end) lines
- create: create or overwrite a file with file_text
- str_replace: replace the first occurrence of old_str with new_str
- insert: insert insert_text before line insert_line (1-indexed)
- delete: delete a file or a directory and everything under it
- rename: move old_path to new_path

All paths live under /memories. Relative paths are resolved against it.`

// MemoryInput represents the parameters for memory
type MemoryInput struct {
	Command    string `json:"command" required:"true" enum:"view,create,str_replace,insert,delete,rename" description:"The memory command to run"`
	Path       string `json:"path,omitempty" description:"Target path for view, create, str_replace, insert and delete"`
	ViewRange  []int  `json:"view_range,omitempty" minItems:"2" maxItems:"2" description:"Optional [start, end) line range for view; end <= 0 reads to the end"`
	FileText   string `json:"file_text,omitempty" description:"Content for create"`
	OldStr     string `json:"old_str,omitempty" description:"Text to replace for str_replace"`
	NewStr     string `json:"new_str,omitempty" description:"Replacement text for str_replace"`
	InsertLine int    `json:"insert_line,omitempty" description:"1-indexed line to insert before"`
	InsertText string `json:"insert_text,omitempty" description:"Text to insert"`
	OldPath    string `json:"old_path,omitempty" description:"Source path for rename"`
	NewPath    string `json:"new_path,omitempty" description:"Destination path for rename"`
}

// MemoryOutput represents the response from memory
type MemoryOutput struct {
	Success bool   `json:"success"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Tool returns the memory tool bound to store. The user is taken from the
// call context.
func Tool(store *memory.Store, opts ...agent.ToolOption) (agent.Tool, error) {
	if store == nil {
		return nil, fmt.Errorf("memory tool requires a store")
	}
	handler := func(ctx context.Context, input MemoryInput) (MemoryOutput, error) {
		return run(ctx, store, input)
	}
	return agent.NewGenericTool(Name, memoryPrompt, handler, opts...)
}

// run executes one command. Store failures are results, not errors, so the
// model sees them as {success:false}.
func run(ctx context.Context, store *memory.Store, input MemoryInput) (MemoryOutput, error) {
	if err := toolsutil.CheckContext(ctx); err != nil {
		return MemoryOutput{}, err
	}
	userID, ok := memory.UserIDFromContext(ctx)
	if !ok {
		return MemoryOutput{}, fmt.Errorf("no user in context")
	}

	var out string
	var err error
	switch input.Command {
	case "view":
		var rng *memory.ViewRange
		if len(input.ViewRange) > 0 {
			if len(input.ViewRange) != 2 {
				return failure(fmt.Errorf("%w: view_range must have two elements", memory.ErrInvalidCommand)), nil
			}
			rng = &memory.ViewRange{Start: input.ViewRange[0], End: input.ViewRange[1]}
		}
		out, err = store.View(ctx, userID, input.Path, rng)
	case "create":
		out, err = store.Create(ctx, userID, input.Path, input.FileText)
	case "str_replace":
		out, err = store.StrReplace(ctx, userID, input.Path, input.OldStr, input.NewStr)
	case "insert":
		out, err = store.Insert(ctx, userID, input.Path, input.InsertLine, input.InsertText)
	case "delete":
		out, err = store.Delete(ctx, userID, input.Path)
	case "rename":
		out, err = store.Rename(ctx, userID, input.OldPath, input.NewPath)
	default:
		err = fmt.Errorf("%w: %q", memory.ErrInvalidCommand, input.Command)
	}
	if err != nil {
		toolsutil.GetLogger().Debug("memory command failed", "command", input.Command, "user", userID, "error", err)
		return failure(err), nil
	}
	return MemoryOutput{Success: true, Content: out}, nil
}

func failure(err error) MemoryOutput {
	return MemoryOutput{Success: false, Error: err.Error()}
}
