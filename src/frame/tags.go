package frame

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"unicode/utf8"

	"github.com/elee1766/turnkit/src/aisdk"
)

// maxTagLen bounds a tag payload. A longer tag is malformed and is dropped
// through its closing '>'. Images carry data URLs and get a larger bound.
const (
	maxTagLen   = 64 << 10
	maxImageLen = 32 << 20
)

type tagKind struct {
	opener []byte
	json   bool
	maxLen int
}

var tagKinds = func() map[string]tagKind {
	kinds := map[string]bool{
		"thinking":      false,
		"image":         false,
		"image_partial": false,
		"citation":      true,
		"response_id":   false,
		"summary_text":  false,
		"incomplete":    false,
		"container_id":  false,
		"tool_use":      true,
		"tool_call":     true,
	}
	out := make(map[string]tagKind, len(kinds))
	for name, isJSON := range kinds {
		k := tagKind{opener: []byte("<" + name + ":"), json: isJSON, maxLen: maxTagLen}
		if name == "image" || name == "image_partial" {
			k.maxLen = maxImageLen
		}
		out[name] = k
	}
	return out
}()

type openerMatch int

const (
	openerNone openerMatch = iota
	openerPartial
	openerFull
)

// openTag is a tag whose opener has been read but whose closing '>' has
// not arrived yet.
type openTag struct {
	name    string
	kind    tagKind
	payload []byte
	closer  closeScanner
	// dropping is set once the payload outgrew kind.maxLen.
	dropping bool
}

// TagReader decodes the inline-tag wire variant.
type TagReader struct {
	// carry holds a partial opener or a split rune.
	carry     []byte
	open      *openTag
	callIndex int
	logger    *slog.Logger
}

// NewTagReader creates a reader for <kind:payload> streams.
func NewTagReader(logger *slog.Logger) *TagReader {
	return &TagReader{logger: logger}
}

func (r *TagReader) Feed(chunk []byte) []aisdk.Delta {
	var out []aisdk.Delta
	if r.open != nil {
		n, d, closed := r.continueTag(chunk)
		if !closed {
			return nil
		}
		if d != nil {
			out = append(out, d)
		}
		chunk = chunk[n:]
	}

	data := make([]byte, 0, len(r.carry)+len(chunk))
	data = append(data, r.carry...)
	data = append(data, chunk...)
	r.carry = nil

	var text []byte
	flushText := func() {
		if len(text) > 0 {
			out = append(out, aisdk.ContentDelta{Text: string(text)})
			text = nil
		}
	}

	i := 0
	for i < len(data) {
		p := bytes.IndexByte(data[i:], '<')
		if p < 0 {
			text = append(text, data[i:]...)
			break
		}
		p += i
		text = append(text, data[i:p]...)

		name, kind, match := matchOpener(data[p:])
		if match == openerNone {
			text = append(text, '<')
			i = p + 1
			continue
		}
		if match == openerPartial {
			r.carry = append([]byte(nil), data[p:]...)
			break
		}

		start := p + len(kind.opener)
		tag := &openTag{name: name, kind: kind, closer: closeScanner{json: kind.json}}
		end := tag.closer.scan(data[start:])
		if end < 0 {
			tag.payload = append([]byte(nil), data[start:]...)
			r.open = tag
			r.checkSize(tag)
			break
		}
		i = start + end + 1
		if end > kind.maxLen {
			r.logger.Debug("dropping oversized tag", "kind", name, "bytes", end)
			continue
		}
		if d := r.decode(name, data[start:start+end]); d != nil {
			flushText()
			out = append(out, d)
		}
	}

	// Hold back a rune split by the chunk boundary.
	if len(r.carry) == 0 && r.open == nil {
		if k := incompleteRuneSuffix(text); k > 0 {
			r.carry = append([]byte(nil), text[len(text)-k:]...)
			text = text[:len(text)-k]
		}
	}
	flushText()
	return out
}

// continueTag feeds chunk to the open tag. It reports how many bytes of
// chunk the tag consumed and whether it closed.
func (r *TagReader) continueTag(chunk []byte) (int, aisdk.Delta, bool) {
	tag := r.open
	end := tag.closer.scan(chunk)
	if end < 0 {
		if !tag.dropping {
			tag.payload = append(tag.payload, chunk...)
			r.checkSize(tag)
		}
		return len(chunk), nil, false
	}
	r.open = nil
	if tag.dropping || len(tag.payload)+end > tag.kind.maxLen {
		return end + 1, nil, true
	}
	return end + 1, r.decode(tag.name, append(tag.payload, chunk[:end]...)), true
}

// checkSize switches tag to dropping once its payload is too long. The
// rest of the tag is still consumed up to its closing '>'.
func (r *TagReader) checkSize(tag *openTag) {
	if tag.dropping || len(tag.payload) <= tag.kind.maxLen {
		return
	}
	r.logger.Debug("dropping oversized tag", "kind", tag.name, "limit", tag.kind.maxLen)
	tag.dropping = true
	tag.payload = nil
}

// Flush discards a tag that never closed. A trailing partial opener or
// split rune is plain text and is emitted.
func (r *TagReader) Flush() []aisdk.Delta {
	if r.open != nil {
		r.logger.Debug("discarding unterminated tag at end of stream", "kind", r.open.name, "bytes", len(r.open.payload))
		r.open = nil
	}
	carry := r.carry
	r.carry = nil
	if len(carry) == 0 {
		return nil
	}
	return []aisdk.Delta{aisdk.ContentDelta{Text: string(carry)}}
}

func (r *TagReader) decode(name string, payload []byte) aisdk.Delta {
	switch name {
	case "thinking", "summary_text":
		if len(payload) == 0 {
			return nil
		}
		return aisdk.ReasoningDelta{Text: string(payload)}
	case "image", "image_partial":
		if len(payload) == 0 {
			return nil
		}
		return aisdk.ImageDelta{URL: string(payload), Partial: name == "image_partial"}
	case "response_id":
		return aisdk.MetaDelta{Key: aisdk.MetaResponseID, Value: string(payload)}
	case "incomplete":
		return aisdk.MetaDelta{Key: aisdk.MetaIncomplete, Value: string(payload)}
	case "container_id":
		if len(payload) == 0 {
			return nil
		}
		return aisdk.ContainerIDDelta{ID: string(payload)}
	case "citation":
		c, err := aisdk.DecodeCitation(payload)
		if err != nil {
			r.logger.Debug("dropping malformed citation", "error", err)
			return nil
		}
		return aisdk.CitationDelta{Citation: c}
	case "tool_use":
		var w aisdk.ToolUse
		if err := json.Unmarshal(payload, &w); err != nil {
			r.logger.Debug("dropping malformed tool event", "error", err)
			return nil
		}
		ev, err := w.ToolEvent()
		if err != nil {
			r.logger.Debug("dropping malformed tool event", "error", err)
			return nil
		}
		return aisdk.ToolEventDelta{Event: ev}
	case "tool_call":
		var call struct {
			ID     string          `json:"id"`
			Name   string          `json:"name"`
			Input  json.RawMessage `json:"input"`
			Caller aisdk.Caller    `json:"caller"`
		}
		if err := json.Unmarshal(payload, &call); err != nil || call.Name == "" {
			r.logger.Debug("dropping malformed tool call", "error", err)
			return nil
		}
		d := aisdk.ToolCallDelta{
			Index:     r.callIndex,
			ID:        call.ID,
			Name:      call.Name,
			Arguments: string(call.Input),
			Caller:    call.Caller,
		}
		r.callIndex++
		return d
	}
	return nil
}

// matchOpener reports whether b starts with a known opener, or is itself a
// proper prefix of one.
func matchOpener(b []byte) (string, tagKind, openerMatch) {
	partial := false
	for name, kind := range tagKinds {
		if bytes.HasPrefix(b, kind.opener) {
			return name, kind, openerFull
		}
		if len(b) < len(kind.opener) && bytes.HasPrefix(kind.opener, b) {
			partial = true
		}
	}
	if partial {
		return "", tagKind{}, openerPartial
	}
	return "", tagKind{}, openerNone
}

// closeScanner finds the closing '>' of a payload that may arrive in
// pieces. JSON payloads close only outside strings at nesting depth zero.
type closeScanner struct {
	json     bool
	depth    int
	inString bool
	escaped  bool
}

// scan returns the index of the closing '>' in b or -1, keeping its state
// for the next piece.
func (s *closeScanner) scan(b []byte) int {
	if !s.json {
		return bytes.IndexByte(b, '>')
	}
	for i, c := range b {
		if s.inString {
			switch {
			case s.escaped:
				s.escaped = false
			case c == '\\':
				s.escaped = true
			case c == '"':
				s.inString = false
			}
			continue
		}
		switch c {
		case '"':
			s.inString = true
		case '{', '[':
			s.depth++
		case '}', ']':
			if s.depth > 0 {
				s.depth--
			}
		case '>':
			if s.depth == 0 {
				return i
			}
		}
	}
	return -1
}

// incompleteRuneSuffix returns how many trailing bytes of b start a UTF-8
// sequence that is not complete yet.
func incompleteRuneSuffix(b []byte) int {
	for k := 1; k <= utf8.UTFMax-1 && k <= len(b); k++ {
		if utf8.RuneStart(b[len(b)-k]) {
			if utf8.FullRune(b[len(b)-k:]) {
				return 0
			}
			return k
		}
	}
	return 0
}

type tagEncoder struct{}

func (tagEncoder) EncodeToolEvent(ev aisdk.ToolEvent) ([]byte, error) {
	w, err := ev.ToWire()
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+len("<tool_use:>"))
	out = append(out, "<tool_use:"...)
	out = append(out, body...)
	return append(out, '>'), nil
}
