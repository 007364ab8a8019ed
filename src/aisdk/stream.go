package aisdk

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
)

// DefaultChunkSize is the read size used by ReadChunks when size <= 0.
const DefaultChunkSize = 4096

// ChunkCallback is a function called for each chunk read from a stream.
type ChunkCallback func(chunk []byte) error

// ReadChunks reads r until EOF and calls fn for each chunk. Cancelling ctx
// closes r so a blocked Read returns immediately; the context error is then
// returned instead of the read error.
func ReadChunks(ctx context.Context, r io.ReadCloser, size int, fn ChunkCallback) error {
	if size <= 0 {
		size = DefaultChunkSize
	}
	stop := context.AfterFunc(ctx, func() { r.Close() })
	defer stop()

	buf := make([]byte, size)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if cbErr := fn(chunk); cbErr != nil {
				return cbErr
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// ToolCallAggregator assembles streamed function call fragments.
type ToolCallAggregator struct {
	calls map[int]*pendingCall
}

type pendingCall struct {
	id     string
	name   string
	args   strings.Builder
	caller Caller
}

// NewToolCallAggregator creates an empty aggregator.
func NewToolCallAggregator() *ToolCallAggregator {
	return &ToolCallAggregator{calls: make(map[int]*pendingCall)}
}

// Add merges one fragment.
func (a *ToolCallAggregator) Add(d ToolCallDelta) {
	pc, ok := a.calls[d.Index]
	if !ok {
		pc = &pendingCall{}
		a.calls[d.Index] = pc
	}
	if d.ID != "" {
		pc.id = d.ID
	}
	if d.Name != "" {
		pc.name = d.Name
	}
	if d.Caller.IsProgrammatic() {
		pc.caller = d.Caller
	}
	pc.args.WriteString(d.Arguments)
}

// Len returns the number of calls seen so far.
func (a *ToolCallAggregator) Len() int {
	return len(a.calls)
}

// Calls returns the assembled calls in index order. Calls without a name are
// skipped; empty arguments become "{}".
func (a *ToolCallAggregator) Calls() []ToolCall {
	indexes := make([]int, 0, len(a.calls))
	for i := range a.calls {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	out := make([]ToolCall, 0, len(indexes))
	for _, i := range indexes {
		pc := a.calls[i]
		if pc.name == "" {
			continue
		}
		args := strings.TrimSpace(pc.args.String())
		if args == "" {
			args = "{}"
		}
		caller := pc.caller
		if caller.Kind == "" {
			caller = Direct()
		}
		out = append(out, ToolCall{
			ID:       pc.id,
			Type:     "function",
			Function: FunctionCall{Name: pc.name, Arguments: json.RawMessage(args)},
			Caller:   caller,
		})
	}
	return out
}

// Reset discards all fragments.
func (a *ToolCallAggregator) Reset() {
	a.calls = make(map[int]*pendingCall)
}
