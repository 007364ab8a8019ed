package orclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/elee1766/turnkit/src/aisdk"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultTimeout = 30 * time.Second
)

var _ aisdk.Provider = (*Client)(nil)

// Client is the chat completions API client.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new API client.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.RetryCount == 0 {
		config.RetryCount = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		// Streams stay open for as long as the model writes, so only the
		// wait for response headers is bounded.
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = config.Timeout
		httpClient = &http.Client{Transport: transport}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     logger.With("component", "openrouter_client"),
	}
}

// Model binds the client to modelName.
func (c *Client) Model(_ context.Context, modelName string) (aisdk.ModelClient, error) {
	if strings.TrimSpace(modelName) == "" {
		return nil, ErrInvalidModel
	}
	return &ModelClient{client: c, model: modelName}, nil
}

// openStream posts req with streaming enabled and returns the response body
// once the server has accepted it.
func (c *Client) openStream(ctx context.Context, req *aisdk.ChatCompletionRequest) (io.ReadCloser, error) {
	if c.config.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	logger := c.logger.With("method", "OpenStream", "model", req.Model)

	body, err := json.Marshal(formatRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	if c.logger.Enabled(ctx, slog.LevelDebug) {
		logger.Debug("sending chat completion request", "messages", len(req.Messages), "tools", len(req.Tools), "bytes", len(body))
	}

	resp, err := c.doRequestWithRetry(ctx, "/chat/completions", body)
	if err != nil {
		logger.Error("request failed", "error", err)
		return nil, err
	}
	return &streamBody{body: resp.Body, model: req.Model}, nil
}

// newRequest creates a new HTTP request with the appropriate headers.
func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	// Optional headers for ranking
	if c.config.SiteURL != "" {
		req.Header.Set("HTTP-Referer", c.config.SiteURL)
	}
	if c.config.SiteName != "" {
		req.Header.Set("X-Title", c.config.SiteName)
	}
	return req, nil
}

// doRequestWithRetry posts body until the server answers with a non
// retryable status. The returned response always has status 200.
func (c *Client) doRequestWithRetry(ctx context.Context, path string, body []byte) (*http.Response, error) {
	logger := c.logger.With("method", "doRequestWithRetry", "path", path)

	var lastErr error
	for attempt := 1; attempt <= c.config.RetryCount; attempt++ {
		req, err := c.newRequest(ctx, http.MethodPost, path, body)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("request cancelled: %w", ctxErr)
			}
			lastErr = err
		case resp.StatusCode == http.StatusOK:
			return resp, nil
		default:
			apiErr := c.handleError(resp)
			resp.Body.Close()
			if !IsRetryable(apiErr) {
				return nil, apiErr
			}
			lastErr = apiErr
		}

		if attempt == c.config.RetryCount {
			break
		}
		delay := GetRetryDelay(lastErr, attempt, c.config.RetryDelay)
		logger.Debug("request attempt failed, retrying", "attempt", attempt, "delay", delay, "error", lastErr)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	logger.Error("request failed after all retries", "retry_count", c.config.RetryCount, "error", lastErr)
	return nil, &RetryableError{Err: lastErr, AttemptNum: c.config.RetryCount, MaxAttempts: c.config.RetryCount}
}

// handleError processes error responses from the API.
func (c *Client) handleError(resp *http.Response) *APIError {
	requestID := resp.Header.Get("X-Request-ID")
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read error response: %v", err), RequestID: requestID}
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			RequestID:  requestID,
		}
	}

	apiErr := errResp.Error
	apiErr.StatusCode = resp.StatusCode
	apiErr.RequestID = requestID

	if resp.StatusCode == http.StatusTooManyRequests {
		if secs, err := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64); err == nil {
			if apiErr.Details == nil {
				apiErr.Details = make(map[string]any)
			}
			apiErr.Details["retry_after"] = secs
		}
	}
	return &apiErr
}

// formatRequest forces streaming and fills the defaults some providers
// reject when absent.
func formatRequest(req *aisdk.ChatCompletionRequest) *aisdk.ChatCompletionRequest {
	out := *req
	out.Stream = true
	out.Messages = make([]*aisdk.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		if msg == nil {
			continue
		}
		if len(msg.ToolCalls) == 0 {
			out.Messages = append(out.Messages, msg)
			continue
		}
		m := *msg
		m.ToolCalls = make([]aisdk.ToolCall, len(msg.ToolCalls))
		for i, tc := range msg.ToolCalls {
			if tc.Type == "" {
				tc.Type = "function"
			}
			if len(tc.Function.Arguments) == 0 {
				tc.Function.Arguments = json.RawMessage("{}")
			}
			m.ToolCalls[i] = tc
		}
		out.Messages = append(out.Messages, &m)
	}
	return &out
}

// streamBody tags read failures with the model they came from.
type streamBody struct {
	body  io.ReadCloser
	model string
}

func (s *streamBody) Read(p []byte) (int, error) {
	n, err := s.body.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = &StreamError{Model: s.model, Err: err}
	}
	return n, err
}

func (s *streamBody) Close() error {
	return s.body.Close()
}
