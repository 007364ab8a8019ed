package toolsutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"
)

// UserAgent is sent by every HTTP-backed tool.
const UserAgent = "turnkit/1.0"

// Package-level logger for tools
var logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
	Level: slog.LevelError, // Default to only showing errors
}))

// SetLogger allows setting a custom logger for the tools package
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// GetLogger returns the package logger
func GetLogger() *slog.Logger {
	return logger
}

var (
	ErrCancelled     = errors.New("operation cancelled")
	ErrInvalidParams = errors.New("invalid parameters")
	ErrResponseSize  = errors.New("response too large")
)

// CheckContext returns ErrCancelled once ctx is done.
func CheckContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	default:
		return nil
	}
}

// NewHTTPClient returns a client with a timeout and a redirect limit.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
}

// ReadLimited reads at most limit bytes of r. Longer bodies are an error.
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: exceeds %s", ErrResponseSize, FormatBytes(limit))
	}
	return body, nil
}

// IsTextFile checks if content appears to be text
func IsTextFile(content []byte) bool {
	if len(content) == 0 {
		return true // Empty file is considered text
	}

	// Check for null bytes (binary files often contain them)
	for i := 0; i < len(content) && i < 8192; i++ {
		if content[i] == 0 {
			return false
		}
	}

	sample := content
	if len(sample) > 8192 {
		sample = sample[:8192]
		// Do not judge a rune cut by the sample boundary.
		for len(sample) > 0 && !utf8.Valid(sample) {
			sample = sample[:len(sample)-1]
		}
	}
	return utf8.Valid(sample)
}

// FormatBytes formats byte count as human-readable string
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
