package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/elee1766/turnkit/src/aisdk"
	"github.com/swaggest/jsonschema-go"
)

// GenericToolHandler is a type-safe handler function
type GenericToolHandler[TInput any, TOutput any] func(ctx context.Context, input TInput) (TOutput, error)

// PayloadCarrier is implemented by tool outputs that carry a specialized
// payload for the tool's end event.
type PayloadCarrier interface {
	ToolPayload() aisdk.ToolPayload
}

// ToolOption configures tool metadata shared by every tool kind.
type ToolOption func(*toolMeta)

type toolMeta struct {
	eager    bool
	provider string
}

// Deferred marks the tool as lazily loaded by the provider.
func Deferred() ToolOption {
	return func(m *toolMeta) { m.eager = false }
}

// WithProvider sets the name failures are attributed to.
func WithProvider(name string) ToolOption {
	return func(m *toolMeta) { m.provider = name }
}

func newToolMeta(opts []ToolOption) toolMeta {
	m := toolMeta{eager: true, provider: ProviderBuiltin}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// GenericTool is a type-safe tool whose schema is reflected from TInput.
type GenericTool[TInput any, TOutput any] struct {
	Type        string
	Name        string
	Description string
	Schema      *jsonschema.Schema
	Handler     GenericToolHandler[TInput, TOutput]

	meta toolMeta
}

func (gt *GenericTool[TInput, TOutput]) GetType() string {
	return gt.Type
}

func (gt *GenericTool[TInput, TOutput]) GetName() string {
	return gt.Name
}

func (gt *GenericTool[TInput, TOutput]) GetDescription() string {
	return gt.Description
}

func (gt *GenericTool[TInput, TOutput]) GetParameters() *jsonschema.Schema {
	return gt.Schema
}

func (gt *GenericTool[TInput, TOutput]) IsEager() bool {
	return gt.meta.eager
}

func (gt *GenericTool[TInput, TOutput]) Provider() string {
	return gt.meta.provider
}

// Execute decodes the arguments, runs the handler and encodes its output as
// JSON. Decode and handler errors are returned as errors; the dispatcher
// turns them into results.
func (gt *GenericTool[TInput, TOutput]) Execute(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
	var input TInput
	args := call.Function.Arguments
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("failed to parse input: %w", err)
	}

	output, err := gt.Handler(ctx, input)
	if err != nil {
		return nil, err
	}

	content, err := json.Marshal(output)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	resp := &aisdk.ToolResponse{Content: string(content)}
	if pc, ok := any(output).(PayloadCarrier); ok {
		resp.Payload = pc.ToolPayload()
	}
	return resp, nil
}

// NewGenericTool creates a new generic tool with automatic schema generation
func NewGenericTool[TInput any, TOutput any](name, description string, handler GenericToolHandler[TInput, TOutput], opts ...ToolOption) (*GenericTool[TInput, TOutput], error) {
	var input TInput
	inputType := reflect.TypeOf(input)

	// Ensure input type is a struct
	if inputType.Kind() == reflect.Ptr {
		if inputType.Elem().Kind() != reflect.Struct {
			return nil, fmt.Errorf("tool input type must be a struct, got %s", inputType.Elem().Kind())
		}
	} else if inputType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("tool input type must be a struct, got %s", inputType.Kind())
	}

	reflector := jsonschema.Reflector{}
	schema, err := reflector.Reflect(input)
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema: %w", err)
	}

	return &GenericTool[TInput, TOutput]{
		Type:        "function",
		Name:        name,
		Description: description,
		Schema:      &schema,
		Handler:     handler,
		meta:        newToolMeta(opts),
	}, nil
}

// MustNewGenericTool creates a new generic tool and panics on error
func MustNewGenericTool[TInput any, TOutput any](name, description string, handler GenericToolHandler[TInput, TOutput], opts ...ToolOption) *GenericTool[TInput, TOutput] {
	tool, err := NewGenericTool(name, description, handler, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create generic tool: %v", err))
	}
	return tool
}

// Ensure GenericTool implements the Tool interface
var _ Tool = (*GenericTool[struct{}, struct{}])(nil)
