// Package frame turns raw provider stream chunks into typed deltas.
//
// A Reader owns the bytes it could not consume yet, so one Reader serves one
// in-flight turn. Feed may be called with arbitrarily split chunks; Flush
// discards whatever never terminated.
package frame

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/elee1766/turnkit/src/aisdk"
)

// Format selects the wire variant a provider speaks.
type Format string

const (
	// FormatTags is free text with embedded <kind:payload> tokens.
	FormatTags Format = "tags"
	// FormatRecords is newline-delimited JSON records behind a line prefix.
	FormatRecords Format = "records"
)

// DefaultRecordPrefix is the server-sent-events data prefix.
const DefaultRecordPrefix = "data: "

var ErrUnknownFormat = errors.New("unknown stream format")

// Reader reassembles protocol tokens from transport chunks.
type Reader interface {
	// Feed consumes one chunk and returns the deltas completed by it.
	Feed(chunk []byte) []aisdk.Delta
	// Flush ends the stream. Unterminated tokens are discarded.
	Flush() []aisdk.Delta
}

// Encoder writes tool lifecycle events in a reader's wire format so they can
// be merged into the stream the reader consumes.
type Encoder interface {
	EncodeToolEvent(ev aisdk.ToolEvent) ([]byte, error)
}

// Config configures a Reader or Encoder.
type Config struct {
	Format       Format
	RecordPrefix string
	Logger       *slog.Logger
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c.Logger.With("component", "frame", "format", string(c.Format))
}

// New returns the reader for cfg.Format.
func New(cfg Config) (Reader, error) {
	switch cfg.Format {
	case FormatTags:
		return NewTagReader(cfg.logger()), nil
	case FormatRecords:
		prefix := cfg.RecordPrefix
		if prefix == "" {
			prefix = DefaultRecordPrefix
		}
		return NewRecordReader(prefix, cfg.logger()), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, cfg.Format)
	}
}

// NewEncoder returns the encoder for cfg.Format.
func NewEncoder(cfg Config) (Encoder, error) {
	switch cfg.Format {
	case FormatTags:
		return tagEncoder{}, nil
	case FormatRecords:
		prefix := cfg.RecordPrefix
		if prefix == "" {
			prefix = DefaultRecordPrefix
		}
		return recordEncoder{prefix: prefix}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, cfg.Format)
	}
}
