package executor

import "errors"

var (
	// Config validation errors
	ErrAgentRequired      = errors.New("agent with a model client is required")
	ErrDispatcherRequired = errors.New("dispatcher is required")
	ErrToolboxRequired    = errors.New("toolbox is required")

	// Turn errors
	ErrTurnInProgress  = errors.New("a turn is already streaming for this conversation")
	ErrNilConversation = errors.New("conversation is required")
	ErrProviderError   = errors.New("provider reported an error")

	// Dispatch errors
	ErrToolTimeout = errors.New("tool timed out")
	ErrToolPanic   = errors.New("tool panicked")
)
