// Package turn merges stream deltas into one structured assistant message.
package turn

import (
	"strings"
	"time"

	"github.com/elee1766/turnkit/src/aisdk"
)

// maxImages is the product cap on images per turn.
const maxImages = 1

// ImageRef is a generated image attached to the turn.
type ImageRef struct {
	URL     string `json:"url"`
	Partial bool   `json:"partial,omitempty"`
}

// Snapshot is the accumulated state after some prefix of the stream. A
// Snapshot returned by the Accumulator shares no memory with it.
type Snapshot struct {
	Content         string
	Reasoning       string
	Images          []ImageRef
	Citations       []aisdk.Citation
	ToolEvents      []aisdk.ToolEvent
	ContainerID     string
	ThinkingSeconds *int
	Meta            map[string]string
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Images = append([]ImageRef(nil), s.Images...)
	out.Citations = append([]aisdk.Citation(nil), s.Citations...)
	if s.ToolEvents != nil {
		out.ToolEvents = make([]aisdk.ToolEvent, len(s.ToolEvents))
		for i, ev := range s.ToolEvents {
			out.ToolEvents[i] = ev.Clone()
		}
	}
	if s.ThinkingSeconds != nil {
		secs := *s.ThinkingSeconds
		out.ThinkingSeconds = &secs
	}
	if s.Meta != nil {
		out.Meta = make(map[string]string, len(s.Meta))
		for k, v := range s.Meta {
			out.Meta[k] = v
		}
	}
	return out
}

// Accumulator applies deltas with a merge rule per field. It is not safe
// for concurrent use.
type Accumulator struct {
	state        Snapshot
	start        time.Time
	now          func() time.Time
	citationKeys map[string]struct{}
}

// Option configures an Accumulator.
type Option func(*Accumulator)

// WithClock replaces time.Now for thinking-time measurement.
func WithClock(now func() time.Time) Option {
	return func(a *Accumulator) { a.now = now }
}

// NewAccumulator creates an accumulator for a turn that started at start.
func NewAccumulator(start time.Time, opts ...Option) *Accumulator {
	a := &Accumulator{
		start:        start,
		now:          time.Now,
		citationKeys: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply merges d and returns the resulting snapshot.
func (a *Accumulator) Apply(d aisdk.Delta) Snapshot {
	switch v := d.(type) {
	case aisdk.ContentDelta:
		a.applyContent(v.Text)
	case aisdk.ReasoningDelta:
		a.state.Reasoning += nonOverlapping(a.state.Reasoning, v.Text)
	case aisdk.ImageDelta:
		a.applyImage(v)
	case aisdk.CitationDelta:
		a.applyCitation(v.Citation)
	case aisdk.ToolEventDelta:
		a.applyToolEvent(v.Event)
	case aisdk.ContainerIDDelta:
		a.state.ContainerID = v.ID
	case aisdk.MetaDelta:
		if a.state.Meta == nil {
			a.state.Meta = make(map[string]string)
		}
		a.state.Meta[v.Key] = v.Value
	case aisdk.ToolCallDelta:
		// Call requests are collected by the runner, not rendered.
	}
	return a.state.clone()
}

// Snapshot returns the current state.
func (a *Accumulator) Snapshot() Snapshot {
	return a.state.clone()
}

func (a *Accumulator) applyContent(text string) {
	if text == "" {
		return
	}
	if a.state.Content == "" && a.state.Reasoning != "" && a.state.ThinkingSeconds == nil {
		secs := int(a.now().Sub(a.start) / time.Second)
		if secs < 0 {
			secs = 0
		}
		a.state.ThinkingSeconds = &secs
	}
	a.state.Content += text
}

func (a *Accumulator) applyImage(img aisdk.ImageDelta) {
	if img.URL == "" {
		return
	}
	for i, existing := range a.state.Images {
		if existing.URL == img.URL {
			// A final image supersedes its own partial rendition.
			if !img.Partial {
				a.state.Images[i].Partial = false
			}
			return
		}
	}
	a.state.Images = append(a.state.Images, ImageRef{URL: img.URL, Partial: img.Partial})
	if len(a.state.Images) > maxImages {
		a.state.Images = a.state.Images[:maxImages]
	}
}

func (a *Accumulator) applyCitation(c aisdk.Citation) {
	if c == nil {
		return
	}
	key := c.Key()
	if _, seen := a.citationKeys[key]; seen {
		return
	}
	a.citationKeys[key] = struct{}{}
	a.state.Citations = append(a.state.Citations, c)
}

func (a *Accumulator) applyToolEvent(ev aisdk.ToolEvent) {
	ev = ev.Clone()
	if ev.Status == aisdk.ToolStatusEnd {
		if i := a.openStart(ev); i >= 0 {
			a.state.ToolEvents[i] = ev
			return
		}
	}
	a.state.ToolEvents = append(a.state.ToolEvents, ev)
}

// openStart finds the start entry an end event closes. Call ids decide when
// both sides carry one; otherwise the earliest open start with the name wins.
func (a *Accumulator) openStart(end aisdk.ToolEvent) int {
	fallback := -1
	for i, ev := range a.state.ToolEvents {
		if ev.Status != aisdk.ToolStatusStart || ev.Name != end.Name {
			continue
		}
		if end.ID != "" && ev.ID != "" {
			if ev.ID == end.ID {
				return i
			}
			continue
		}
		if fallback < 0 {
			fallback = i
		}
	}
	return fallback
}

// nonOverlapping returns the part of incoming not already present as a
// suffix of acc.
func nonOverlapping(acc, incoming string) string {
	n := min(len(acc), len(incoming))
	for k := n; k > 0; k-- {
		if strings.HasSuffix(acc, incoming[:k]) {
			return incoming[k:]
		}
	}
	return incoming
}
