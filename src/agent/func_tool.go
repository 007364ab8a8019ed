package agent

import (
	"context"
	"fmt"

	"github.com/elee1766/turnkit/src/aisdk"
	jsonschema "github.com/swaggest/jsonschema-go"
)

// FuncTool is a tool with a hand-written schema and an untyped executor.
type FuncTool struct {
	Function aisdk.ChatToolFunction
	Executor ToolExecutor

	meta toolMeta
}

// NewFuncTool wraps fn as a tool. A nil schema accepts any object.
func NewFuncTool(name, description string, schema *jsonschema.Schema, fn ToolExecutor, opts ...ToolOption) *FuncTool {
	if schema == nil {
		schema = &jsonschema.Schema{}
		schema.WithType(jsonschema.Object.Type())
	}
	return &FuncTool{
		Function: aisdk.ChatToolFunction{
			Name:        name,
			Description: description,
			Parameters:  schema,
		},
		Executor: fn,
		meta:     newToolMeta(opts),
	}
}

func (t *FuncTool) GetType() string {
	return "function"
}

func (t *FuncTool) GetName() string {
	return t.Function.Name
}

func (t *FuncTool) GetDescription() string {
	return t.Function.Description
}

func (t *FuncTool) GetParameters() *jsonschema.Schema {
	return t.Function.Parameters
}

func (t *FuncTool) IsEager() bool {
	return t.meta.eager
}

func (t *FuncTool) Provider() string {
	return t.meta.provider
}

func (t *FuncTool) Execute(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
	if t.Executor == nil {
		return nil, fmt.Errorf("tool %s has no executor", t.GetName())
	}
	return t.Executor(ctx, call)
}

// Ensure FuncTool implements the Tool interface
var _ Tool = (*FuncTool)(nil)
