package executor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/elee1766/turnkit/src/aisdk"
	"github.com/elee1766/turnkit/src/theme"
	"github.com/elee1766/turnkit/src/turn"
)

// ConsoleProcessorConfig configures the console event processor
type ConsoleProcessorConfig struct {
	Out               io.Writer
	ShowReasoning     bool
	ShowToolArguments bool
	ShowToolResults   bool
	RawMode           bool
	StreamMode        bool
	// Color enables ANSI styling and syntax highlighting.
	Color            bool
	MaxResultPreview int // Max characters to show in result preview
	Theme            *theme.Theme
}

// ConsoleEventProcessor renders turn events for a terminal.
type ConsoleEventProcessor struct {
	config ConsoleProcessorConfig
	out    io.Writer

	muted   lipgloss.Style
	tool    lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	warning lipgloss.Style
	syntax  string

	// content and printed track streamed answer text so the suggestions
	// block is never echoed.
	content strings.Builder
	printed int
}

// NewConsoleEventProcessor creates a new console event processor
func NewConsoleEventProcessor(config ConsoleProcessorConfig) *ConsoleEventProcessor {
	if config.MaxResultPreview == 0 {
		config.MaxResultPreview = 200
	}
	if config.Out == nil {
		config.Out = os.Stdout
	}
	th := theme.Current()
	if config.Theme != nil {
		th = *config.Theme
	}

	r := lipgloss.NewRenderer(config.Out)
	style := func(c lipgloss.Color) lipgloss.Style {
		s := r.NewStyle()
		if config.Color {
			s = s.Foreground(c)
		}
		return s
	}
	return &ConsoleEventProcessor{
		config:  config,
		out:     config.Out,
		muted:   style(th.TextMuted),
		tool:    style(th.Primary).Bold(config.Color),
		success: style(th.Success),
		failure: style(th.Error),
		warning: style(th.Warning),
		syntax:  th.Syntax,
	}
}

// Process handles a single event
func (p *ConsoleEventProcessor) Process(event TurnEvent) error {
	if p.config.RawMode {
		if e, ok := event.(*TurnCompleteEvent); ok && e.Final != nil {
			fmt.Fprint(p.out, e.Final.Message.Content)
		}
		return nil
	}

	switch e := event.(type) {
	case *StepStartEvent:
		if e.Step > 1 {
			p.resetContent()
		}
	case *DeltaEvent:
		p.processDelta(e)
	case *ToolEvent:
		if e.Event.Status == aisdk.ToolStatusStart {
			p.processToolStart(e)
		} else {
			p.processToolEnd(e)
		}
	case *TurnCompleteEvent:
		p.processTurnComplete(e)
	case *ErrorEvent:
		p.processError(e)
	}
	return nil
}

// Close cleans up resources
func (p *ConsoleEventProcessor) Close() error {
	return nil
}

func (p *ConsoleEventProcessor) processDelta(e *DeltaEvent) {
	if !p.config.StreamMode {
		return
	}
	switch d := e.Delta.(type) {
	case aisdk.ContentDelta:
		p.content.WriteString(d.Text)
		visible := visibleContent(p.content.String())
		if len(visible) > p.printed {
			fmt.Fprint(p.out, visible[p.printed:])
			p.printed = len(visible)
		}
	case aisdk.ReasoningDelta:
		if p.config.ShowReasoning {
			fmt.Fprint(p.out, p.muted.Render(d.Text))
		}
	}
}

func (p *ConsoleEventProcessor) resetContent() {
	if p.printed > 0 {
		fmt.Fprintln(p.out)
	}
	p.content.Reset()
	p.printed = 0
}

func (p *ConsoleEventProcessor) processToolStart(e *ToolEvent) {
	label := "🔧 Calling tool: " + e.Event.Name
	if e.Event.Caller.IsProgrammatic() {
		label += " (from " + e.Event.Caller.ToolID + ")"
	}
	fmt.Fprintf(p.out, "\n%s\n", p.tool.Render(label))

	if p.config.ShowToolArguments && len(e.Event.Input) > 0 {
		args, err := json.MarshalIndent(e.Event.Input, "   ", "  ")
		if err != nil {
			return
		}
		fmt.Fprintf(p.out, "   Arguments:\n   %s\n", p.highlight(string(args)))
	}
}

func (p *ConsoleEventProcessor) processToolEnd(e *ToolEvent) {
	var line string
	if e.Failed {
		line = p.failure.Render("   ✗ Tool failed: " + e.Event.Name)
	} else {
		line = p.success.Render("   ✓ Tool completed: " + e.Event.Name)
	}
	fmt.Fprint(p.out, line)
	if e.Duration > 0 {
		fmt.Fprint(p.out, p.muted.Render(fmt.Sprintf(" (%v)", e.Duration.Round(10*time.Millisecond))))
	}
	fmt.Fprintln(p.out)

	if (p.config.ShowToolResults || e.Failed) && e.Event.Result != nil && *e.Event.Result != "" {
		preview := strings.Join(strings.Fields(*e.Event.Result), " ")
		preview = ansi.Truncate(preview, p.config.MaxResultPreview, "...")
		fmt.Fprintf(p.out, "   %s\n", p.muted.Render("Result: "+preview))
	}
}

func (p *ConsoleEventProcessor) processTurnComplete(e *TurnCompleteEvent) {
	if e.Final == nil {
		return
	}
	if p.config.StreamMode {
		fmt.Fprintln(p.out)
	} else {
		fmt.Fprintln(p.out, e.Final.Message.Content)
	}

	snap := e.Final.Snapshot
	for _, img := range snap.Images {
		fmt.Fprintf(p.out, "\n🖼  %s\n", img.URL)
	}
	if len(snap.Citations) > 0 {
		fmt.Fprintln(p.out, p.muted.Render("\nSources:"))
		for i, c := range snap.Citations {
			fmt.Fprintln(p.out, p.muted.Render(fmt.Sprintf("  [%d] %s", i+1, citationLabel(c))))
		}
	}
	if len(e.Final.Suggestions) > 0 {
		fmt.Fprintln(p.out, p.muted.Render("\nYou could ask:"))
		for _, s := range e.Final.Suggestions {
			fmt.Fprintln(p.out, p.muted.Render("  • "+s))
		}
	}
}

func (p *ConsoleEventProcessor) processError(e *ErrorEvent) {
	if e.Cancelled {
		fmt.Fprintf(p.out, "\n%s\n", p.warning.Render("⚠️  Turn cancelled"))
		return
	}
	fmt.Fprintf(p.out, "\n%s\n", p.failure.Render(fmt.Sprintf("❌ Error in %s: %v", e.Context, e.Error)))
}

func (p *ConsoleEventProcessor) highlight(source string) string {
	if !p.config.Color {
		return source
	}
	var buf bytes.Buffer
	if err := quick.Highlight(&buf, source, "json", "terminal256", p.syntax); err != nil {
		return source
	}
	return buf.String()
}

// visibleContent returns the part of streamed content that precedes the
// suggestions marker. A trailing prefix of the marker is held back until
// the next delta decides it.
func visibleContent(content string) string {
	if idx := strings.Index(content, turn.SuggestionsMarker); idx >= 0 {
		return content[:idx]
	}
	for n := len(turn.SuggestionsMarker) - 1; n > 0; n-- {
		if strings.HasSuffix(content, turn.SuggestionsMarker[:n]) {
			return content[:len(content)-n]
		}
	}
	return content
}

func citationLabel(c aisdk.Citation) string {
	switch v := c.(type) {
	case aisdk.WebCitation:
		if v.Title != "" {
			return v.Title + " " + v.URL
		}
		return v.URL
	case aisdk.CharRangeCitation:
		return documentLabel(v.DocumentRef)
	case aisdk.PageRangeCitation:
		return fmt.Sprintf("%s p.%d-%d", documentLabel(v.DocumentRef), v.StartPageNumber, v.EndPageNumber)
	case aisdk.BlockRangeCitation:
		return documentLabel(v.DocumentRef)
	case aisdk.SearchResultCitation:
		if v.Title != "" {
			return v.Title + " " + v.Source
		}
		return v.Source
	}
	return string(c.Kind())
}

func documentLabel(d aisdk.DocumentRef) string {
	if d.DocumentTitle != "" {
		return d.DocumentTitle
	}
	return fmt.Sprintf("document %d", d.DocumentIndex)
}
