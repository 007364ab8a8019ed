package agent

import (
	"context"

	"github.com/elee1766/turnkit/src/aisdk"
	jsonschema "github.com/swaggest/jsonschema-go"
)

// Provider names used for error attribution.
const (
	ProviderBuiltin = "builtin"
	ProviderWeb     = "web"
)

// Tool is the interface that all tools must implement
type Tool interface {
	// GetType returns the tool type (always "function" for now)
	GetType() string

	// GetName returns the tool's name
	GetName() string

	// GetDescription returns the tool's description
	GetDescription() string

	// GetParameters returns the JSON schema for the tool's parameters
	GetParameters() *jsonschema.Schema

	// IsEager reports whether the tool is advertised with its full schema.
	// Deferred tools are only named and loaded by the provider on demand.
	IsEager() bool

	// Provider names the backend a failure is attributed to.
	Provider() string

	// Execute runs the tool with the given parameters
	Execute(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error)
}
