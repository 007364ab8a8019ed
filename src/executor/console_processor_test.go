package executor

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/elee1766/turnkit/src/aisdk"
	"github.com/elee1766/turnkit/src/turn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisibleContent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"answer\n<suggestions>\n- a", "answer\n"},
		{"answer <sugg", "answer "},
		{"answer <", "answer "},
		{"a < b", "a < b"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, visibleContent(tt.in), "input %q", tt.in)
	}
}

func TestConsoleStreamSuppressesSuggestions(t *testing.T) {
	var out bytes.Buffer
	p := NewConsoleEventProcessor(ConsoleProcessorConfig{Out: &out, StreamMode: true})

	for _, text := range []string{"The answer", " is 4.\n<sugg", "estions>\n- Why?"} {
		require.NoError(t, p.Process(&DeltaEvent{Delta: aisdk.ContentDelta{Text: text}}))
	}
	assert.Equal(t, "The answer is 4.\n", out.String())

	require.NoError(t, p.Process(&TurnCompleteEvent{Final: &turn.Final{
		Message:     &aisdk.Message{Role: "assistant", Content: "The answer is 4."},
		Suggestions: []string{"Why?"},
	}}))
	assert.Contains(t, out.String(), "You could ask:")
	assert.Contains(t, out.String(), "• Why?")
	assert.NotContains(t, out.String(), "<suggestions>")
}

func TestConsoleTurnComplete(t *testing.T) {
	var out bytes.Buffer
	p := NewConsoleEventProcessor(ConsoleProcessorConfig{Out: &out})

	require.NoError(t, p.Process(&TurnCompleteEvent{Final: &turn.Final{
		Message: &aisdk.Message{Role: "assistant", Content: "Go was released in 2009."},
		Snapshot: turn.Snapshot{
			Images: []turn.ImageRef{{URL: "https://img.example/gopher.png"}},
			Citations: []aisdk.Citation{
				aisdk.WebCitation{URL: "https://go.dev", Title: "The Go Programming Language"},
				aisdk.PageRangeCitation{DocumentRef: aisdk.DocumentRef{DocumentIndex: 2}, StartPageNumber: 3, EndPageNumber: 5},
			},
		},
	}}))

	got := out.String()
	assert.Contains(t, got, "Go was released in 2009.\n")
	assert.Contains(t, got, "https://img.example/gopher.png")
	assert.Contains(t, got, "[1] The Go Programming Language https://go.dev")
	assert.Contains(t, got, "[2] document 2 p.3-5")
	assert.NotContains(t, got, "You could ask:")
}

func TestConsoleToolEvents(t *testing.T) {
	var out bytes.Buffer
	p := NewConsoleEventProcessor(ConsoleProcessorConfig{Out: &out, ShowToolArguments: true})

	result := "web error: upstream unavailable"
	require.NoError(t, p.Process(&ToolEvent{Event: aisdk.ToolEvent{
		ID: "c1", Name: "web_search", Status: aisdk.ToolStatusStart,
		Input:  map[string]any{"query": "golang"},
		Caller: aisdk.Programmatic("srv_1"),
	}}))
	require.NoError(t, p.Process(&ToolEvent{
		Event:    aisdk.ToolEvent{ID: "c1", Name: "web_search", Status: aisdk.ToolStatusEnd, Result: &result},
		Failed:   true,
		Duration: 120 * time.Millisecond,
	}))

	got := out.String()
	assert.Contains(t, got, "Calling tool: web_search (from srv_1)")
	assert.Contains(t, got, `"query": "golang"`)
	assert.Contains(t, got, "Tool failed: web_search")
	assert.Contains(t, got, "(120ms)")
	assert.Contains(t, got, "Result: "+result)
}

func TestConsoleResultPreviewTruncated(t *testing.T) {
	var out bytes.Buffer
	p := NewConsoleEventProcessor(ConsoleProcessorConfig{Out: &out, ShowToolResults: true, MaxResultPreview: 10})

	result := "0123456789abcdefghij"
	require.NoError(t, p.Process(&ToolEvent{
		Event: aisdk.ToolEvent{Name: "memory", Status: aisdk.ToolStatusEnd, Result: &result},
	}))
	assert.Contains(t, out.String(), "Result: 0123456...")
	assert.NotContains(t, out.String(), "abcdef")
}

func TestConsoleErrors(t *testing.T) {
	var out bytes.Buffer
	p := NewConsoleEventProcessor(ConsoleProcessorConfig{Out: &out})

	require.NoError(t, p.Process(&ErrorEvent{Error: errors.New("connection reset"), Context: "stream"}))
	require.NoError(t, p.Process(&ErrorEvent{Error: errors.New("context canceled"), Cancelled: true}))
	assert.Contains(t, out.String(), "Error in stream: connection reset")
	assert.Contains(t, out.String(), "Turn cancelled")
}

func TestConsoleRawMode(t *testing.T) {
	var out bytes.Buffer
	p := NewConsoleEventProcessor(ConsoleProcessorConfig{Out: &out, RawMode: true, StreamMode: true})

	require.NoError(t, p.Process(&DeltaEvent{Delta: aisdk.ContentDelta{Text: "ignored"}}))
	require.NoError(t, p.Process(&TurnCompleteEvent{Final: &turn.Final{
		Message:     &aisdk.Message{Content: "final"},
		Suggestions: []string{"more"},
	}}))
	assert.Equal(t, "final", out.String())
}
