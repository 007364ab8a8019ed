package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

var ErrInvalidInput = errors.New("invalid tool input")

// Validator checks call arguments against each tool's parameter schema.
// Compiled schemas are cached by tool name.
type Validator struct {
	mu      sync.Mutex
	schemas map[string]*gojsonschema.Schema
}

func NewValidator() *Validator {
	return &Validator{schemas: make(map[string]*gojsonschema.Schema)}
}

// Validate returns an ErrInvalidInput error listing every violation.
func (v *Validator) Validate(tool Tool, args json.RawMessage) error {
	schema, err := v.schema(tool)
	if err != nil {
		return err
	}
	if schema == nil {
		return nil
	}
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
}

func (v *Validator) schema(tool Tool) (*gojsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if s, ok := v.schemas[tool.GetName()]; ok {
		return s, nil
	}
	params := tool.GetParameters()
	if params == nil {
		v.schemas[tool.GetName()] = nil
		return nil, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema for %s: %w", tool.GetName(), err)
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema for %s: %w", tool.GetName(), err)
	}
	v.schemas[tool.GetName()] = s
	return s, nil
}
