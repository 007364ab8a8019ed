package orclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/elee1766/turnkit/src/aisdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	return NewClient(Config{
		APIKey:     "sk-test",
		BaseURL:    srv.URL + "/",
		RetryCount: 3,
		RetryDelay: time.Millisecond,
		SiteName:   "turnkit",
		HTTPClient: srv.Client(),
	}), &attempts
}

func openTest(t *testing.T, c *Client, ctx context.Context) (io.ReadCloser, error) {
	t.Helper()
	mc, err := c.Model(ctx, "anthropic/claude-sonnet")
	require.NoError(t, err)
	return mc.OpenStream(ctx, &aisdk.ChatCompletionRequest{
		Model: "ignored",
		Messages: []*aisdk.Message{
			{Role: "user", Content: "hi"},
			{Role: "assistant", ToolCalls: []aisdk.ToolCall{{ID: "call_1", Function: aisdk.FunctionCall{Name: "echo"}}}},
			{Role: "tool", ToolCallID: "call_1", Content: "ok"},
		},
	})
}

func TestOpenStream(t *testing.T) {
	stream := "data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\ndata: [DONE]\n\n"
	c, attempts := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		assert.Equal(t, "turnkit", r.Header.Get("X-Title"))

		var body struct {
			Model    string `json:"model"`
			Stream   bool   `json:"stream"`
			Messages []struct {
				ToolCalls []struct {
					Type     string `json:"type"`
					Function struct {
						Arguments string `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "anthropic/claude-sonnet", body.Model)
		assert.True(t, body.Stream)
		if assert.Len(t, body.Messages, 3) && assert.Len(t, body.Messages[1].ToolCalls, 1) {
			assert.Equal(t, "function", body.Messages[1].ToolCalls[0].Type)
			assert.Equal(t, "{}", body.Messages[1].ToolCalls[0].Function.Arguments)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, stream)
	})

	body, err := openTest(t, c, context.Background())
	require.NoError(t, err)
	defer body.Close()

	got, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, stream, string(got))
	assert.Equal(t, int32(1), attempts.Load())
}

func TestOpenStreamErrors(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		attempts int32
		status   int
		check    func(t *testing.T, err error)
	}{
		{
			name: "auth error is not retried",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-Request-ID", "req_1")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"error":{"message":"No auth credentials found","code":"invalid_api_key"}}`)
			},
			attempts: 1,
			status:   http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.True(t, apiErr.IsAuthError())
				assert.Equal(t, "req_1", apiErr.RequestID)
				assert.Equal(t, "No auth credentials found", apiErr.Message)
			},
		},
		{
			name: "server errors exhaust retries",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = io.WriteString(w, "upstream down")
			},
			attempts: 3,
			status:   http.StatusBadGateway,
			check: func(t *testing.T, err error) {
				var retryErr *RetryableError
				require.ErrorAs(t, err, &retryErr)
				assert.False(t, retryErr.ShouldRetry())
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, "upstream down", apiErr.Message)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, attempts := newTestClient(t, tt.handler)
			_, err := openTest(t, c, context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.attempts, attempts.Load())
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			tt.check(t, err)
		})
	}
}

func TestOpenStreamRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	c, attempts := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusInternalServerError)
		case 2:
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error":{"message":"slow down","code":"rate_limit_exceeded"}}`)
		default:
			_, _ = io.WriteString(w, "data: [DONE]\n")
		}
	})

	body, err := openTest(t, c, context.Background())
	require.NoError(t, err)
	body.Close()
	assert.Equal(t, int32(3), attempts.Load())
}

func TestOpenStreamCancelledWhileWaiting(t *testing.T) {
	c, attempts := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c.config.RetryDelay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := openTest(t, c, ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestOpenStreamValidation(t *testing.T) {
	c := NewClient(Config{})
	_, err := c.Model(context.Background(), " ")
	assert.ErrorIs(t, err, ErrInvalidModel)

	mc, err := c.Model(context.Background(), "openai/gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o", mc.ModelID())
	_, err = mc.OpenStream(context.Background(), &aisdk.ChatCompletionRequest{})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }
func (brokenReader) Close() error             { return nil }

func TestStreamBodyWrapsReadErrors(t *testing.T) {
	body := &streamBody{body: brokenReader{}, model: "openai/gpt-4o"}
	_, err := body.Read(make([]byte, 8))

	var streamErr *StreamError
	require.True(t, errors.As(err, &streamErr))
	assert.Equal(t, "openai/gpt-4o", streamErr.Model)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
