package orclient

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Common error variables
var (
	// ErrInvalidModel indicates an invalid model was specified
	ErrInvalidModel = errors.New("invalid model specified")

	// ErrNoAPIKey indicates the API key is missing
	ErrNoAPIKey = errors.New("API key is required")
)

// ErrorResponse represents a standard error response from the API
// This matches the OpenRouter error format: {"error":{"message":"...","code":"..."}}
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int            `json:"-"`
	Type       string         `json:"type,omitempty"`
	Message    string         `json:"message"`
	Code       string         `json:"code,omitempty"`
	Param      string         `json:"param,omitempty"`
	Details    map[string]any `json:"metadata,omitempty"`
	RequestID  string         `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error is retryable.
func (e *APIError) IsRetryable() bool {
	// 5xx errors are generally retryable
	if e.StatusCode >= 500 && e.StatusCode < 600 {
		return true
	}

	// Rate limit errors are retryable after a delay
	if e.StatusCode == http.StatusTooManyRequests {
		return true
	}

	switch e.Code {
	case "timeout", "connection_error", "server_error":
		return true
	}
	return false
}

// IsRateLimit returns true if this is a rate limit error.
func (e *APIError) IsRateLimit() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.Code == "rate_limit_exceeded"
}

// IsAuthError returns true if this is an authentication error.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.Code == "invalid_api_key"
}

// StreamError is a failure while reading an accepted response stream.
type StreamError struct {
	Model string
	Err   error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	return fmt.Sprintf("stream from %s interrupted: %v", e.Model, e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// RetryableError wraps an error with retry information.
type RetryableError struct {
	Err         error
	RetryAfter  time.Duration
	AttemptNum  int
	MaxAttempts int
}

// Error implements the error interface.
func (e *RetryableError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("attempt %d/%d failed: %v (retry after %v)",
			e.AttemptNum, e.MaxAttempts, e.Err, e.RetryAfter)
	}
	return fmt.Sprintf("attempt %d/%d failed: %v", e.AttemptNum, e.MaxAttempts, e.Err)
}

// Unwrap returns the underlying error.
func (e *RetryableError) Unwrap() error {
	return e.Err
}

// ShouldRetry returns true if the operation should be retried.
func (e *RetryableError) ShouldRetry() bool {
	return e.AttemptNum < e.MaxAttempts
}

// IsRetryable checks if an error is retryable. Transport errors without an
// API status are retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryErr *RetryableError
	if errors.As(err, &retryErr) {
		return retryErr.ShouldRetry()
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	return true
}

// GetRetryDelay returns the delay before the next attempt: the server's
// Retry-After for rate limits, otherwise base doubled per attempt, capped
// at one minute.
func GetRetryDelay(err error, attempt int, base time.Duration) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.IsRateLimit() {
		if retryAfter, ok := apiErr.Details["retry_after"].(float64); ok {
			return time.Duration(retryAfter * float64(time.Second))
		}
	}

	if base <= 0 {
		base = time.Second
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := base * time.Duration(1<<uint(min(attempt-1, 16)))
	maxDelay := time.Minute
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}
