package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/elee1766/turnkit/src/config"
	"github.com/elee1766/turnkit/src/executor"
	"github.com/elee1766/turnkit/src/memory"
	"github.com/elee1766/turnkit/src/orclient"
)

// Exit codes following standard conventions
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error
	ExitUsage       = 2 // Usage error
	ExitConfig      = 3 // Configuration error
	ExitAuth        = 4 // Authentication error
	ExitNetwork     = 6 // Network error
	ExitTimeout     = 7 // Timeout error
	ExitInterrupted = 8 // Interrupted by user
)

var errUsage = errors.New("usage error")

// handleError prints err and returns the exit code for it.
func handleError(w io.Writer, err error) int {
	if err == nil {
		return ExitSuccess
	}
	fmt.Fprintf(w, "Error: %v\n", err)
	return exitCode(err)
}

// exitCode determines the appropriate exit code for an error
func exitCode(err error) int {
	var (
		verr   config.ValidationError
		apiErr *orclient.APIError
		netErr net.Error
	)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeout
	case errors.As(err, &verr):
		return ExitConfig
	case errors.Is(err, orclient.ErrNoAPIKey):
		return ExitAuth
	case errors.As(err, &apiErr) && apiErr.IsAuthError():
		return ExitAuth
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return ExitTimeout
		}
		return ExitNetwork
	case errors.As(err, new(*orclient.StreamError)),
		errors.As(err, new(*orclient.RetryableError)):
		return ExitNetwork
	case errors.Is(err, orclient.ErrInvalidModel),
		errors.Is(err, memory.ErrPathTraversal),
		errors.Is(err, memory.ErrInvalidCommand),
		errors.Is(err, executor.ErrNilConversation),
		errors.Is(err, errUsage):
		return ExitUsage
	default:
		return ExitError
	}
}
