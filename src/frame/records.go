package frame

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/elee1766/turnkit/src/aisdk"
)

const doneSentinel = "[DONE]"

// RecordReader decodes newline-delimited JSON records. Lines that do not
// carry the configured prefix are ignored.
type RecordReader struct {
	prefix []byte
	carry  []byte
	logger *slog.Logger
}

// NewRecordReader creates a reader for prefixed JSON lines. Trailing spaces
// of prefix are optional on the wire.
func NewRecordReader(prefix string, logger *slog.Logger) *RecordReader {
	return &RecordReader{
		prefix: []byte(strings.TrimRight(prefix, " ")),
		logger: logger,
	}
}

func (r *RecordReader) Feed(chunk []byte) []aisdk.Delta {
	data := make([]byte, 0, len(r.carry)+len(chunk))
	data = append(data, r.carry...)
	data = append(data, chunk...)
	r.carry = nil

	var out []aisdk.Delta
	for {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := bytes.TrimSuffix(data[:idx], []byte{'\r'})
		data = data[idx+1:]
		out = append(out, r.decodeLine(line)...)
	}
	if len(data) > 0 {
		r.carry = append([]byte(nil), data...)
	}
	return out
}

// Flush discards a final line that was never terminated.
func (r *RecordReader) Flush() []aisdk.Delta {
	if len(r.carry) > 0 {
		r.logger.Debug("discarding unterminated record at end of stream", "bytes", len(r.carry))
	}
	r.carry = nil
	return nil
}

func (r *RecordReader) decodeLine(line []byte) []aisdk.Delta {
	if !bytes.HasPrefix(line, r.prefix) {
		return nil
	}
	payload := bytes.TrimSpace(line[len(r.prefix):])
	if len(payload) == 0 || string(payload) == doneSentinel {
		return nil
	}

	var rec aisdk.StreamChunk
	if err := json.Unmarshal(payload, &rec); err != nil {
		r.logger.Debug("dropping malformed record", "error", err)
		return nil
	}
	return r.recordDeltas(&rec)
}

func (r *RecordReader) recordDeltas(rec *aisdk.StreamChunk) []aisdk.Delta {
	var out []aisdk.Delta

	// containerId is side-channel data and is handled before the choices.
	if rec.ContainerID != "" {
		out = append(out, aisdk.ContainerIDDelta{ID: rec.ContainerID})
	}
	if rec.Error != nil && rec.Error.Message != "" {
		out = append(out, aisdk.MetaDelta{Key: aisdk.MetaError, Value: rec.Error.Message})
	}
	if len(rec.Choices) == 0 {
		return out
	}

	choice := rec.Choices[0]
	if d := choice.Delta; d != nil {
		if d.Reasoning != "" {
			out = append(out, aisdk.ReasoningDelta{Text: d.Reasoning})
		} else {
			for _, detail := range d.ReasoningDetails {
				switch detail.Type {
				case "reasoning.text":
					if detail.Text != "" {
						out = append(out, aisdk.ReasoningDelta{Text: detail.Text})
					}
				case "reasoning.summary":
					if detail.Summary != "" {
						out = append(out, aisdk.ReasoningDelta{Text: detail.Summary})
					}
				}
			}
		}

		if d.Content != "" {
			out = append(out, aisdk.ContentDelta{Text: d.Content})
		}

		for _, img := range d.Images {
			if img.ImageURL.URL == "" {
				continue
			}
			out = append(out, aisdk.ImageDelta{URL: img.ImageURL.URL, Partial: img.Partial})
		}

		if d.ToolUse != nil {
			if ev, err := d.ToolUse.ToolEvent(); err != nil {
				r.logger.Debug("dropping malformed tool event", "error", err)
			} else {
				out = append(out, aisdk.ToolEventDelta{Event: ev})
			}
		}

		for _, tc := range d.ToolCalls {
			out = append(out, aisdk.ToolCallDelta{
				Index:     tc.Index,
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
				Caller:    tc.Caller,
			})
		}

		for _, raw := range d.Citations {
			c, err := aisdk.DecodeCitation(raw)
			if err != nil {
				r.logger.Debug("dropping malformed citation", "error", err)
				continue
			}
			out = append(out, aisdk.CitationDelta{Citation: c})
		}
	}

	if choice.FinishReason != "" {
		out = append(out, aisdk.MetaDelta{Key: aisdk.MetaFinishReason, Value: choice.FinishReason})
	}
	return out
}

type recordEncoder struct {
	prefix string
}

func (e recordEncoder) EncodeToolEvent(ev aisdk.ToolEvent) ([]byte, error) {
	w, err := ev.ToWire()
	if err != nil {
		return nil, err
	}
	rec := aisdk.StreamChunk{
		Choices: []aisdk.Choice{{Delta: &aisdk.ChunkDelta{ToolUse: w}}},
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(e.prefix)+len(body)+1)
	out = append(out, e.prefix...)
	out = append(out, body...)
	return append(out, '\n'), nil
}
