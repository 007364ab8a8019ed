package orclient

import (
	"log/slog"
	"net/http"
	"time"
)

// Config holds configuration for the API client
type Config struct {
	APIKey     string        // API key sent as a bearer token
	BaseURL    string        // Base URL of the chat completions API
	Logger     *slog.Logger  // Logger for debugging
	Timeout    time.Duration // Wait for response headers
	RetryCount int           // Attempts per request
	RetryDelay time.Duration // Base delay between attempts
	SiteURL    string        // Site URL for ranking
	SiteName   string        // Site name for ranking
	// HTTPClient replaces the default client, mainly for tests.
	HTTPClient *http.Client
}
