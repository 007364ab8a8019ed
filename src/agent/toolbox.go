package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/elee1766/turnkit/src/aisdk"
)

var (
	ErrToolNotFound  = errors.New("tool not found")
	ErrDuplicateTool = errors.New("tool is already registered")
	ErrEmptyToolName = errors.New("tool name cannot be empty")
)

// ToolExecutor is a function type for tool execution
type ToolExecutor func(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error)

// DefaultToolbox holds tools behind the Tool interface.
type DefaultToolbox = Toolbox[Tool]

// Toolbox is the tool registry. It is safe for concurrent use.
type Toolbox[T Tool] struct {
	mu         sync.RWMutex
	tools      map[string]T
	middleware []ToolMiddleware
}

// ToolMiddleware is a function that wraps a ToolExecutor to add functionality.
type ToolMiddleware func(next ToolExecutor) ToolExecutor

// NewToolbox creates a new tool registry.
func NewToolbox[T Tool]() *Toolbox[T] {
	return &Toolbox[T]{
		tools: make(map[string]T),
	}
}

// RegisterTool registers a tool.
func (tm *Toolbox[T]) RegisterTool(tool T) error {
	name := tool.GetName()
	if name == "" {
		return ErrEmptyToolName
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()
	if _, exists := tm.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	tm.tools[name] = tool
	return nil
}

// RegisterMiddleware registers middleware that will be applied to all tool executions.
// Middleware is applied in the order it's registered (first registered = outermost layer).
func (tm *Toolbox[T]) RegisterMiddleware(middleware ToolMiddleware) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.middleware = append(tm.middleware, middleware)
}

// Tools returns every tool sorted by name.
func (tm *Toolbox[T]) Tools() []T {
	return tm.filter(func(T) bool { return true })
}

// Eager returns the tools advertised with their full schema.
func (tm *Toolbox[T]) Eager() []T {
	return tm.filter(func(t T) bool { return t.IsEager() })
}

// Deferred returns the tools the provider loads on demand.
func (tm *Toolbox[T]) Deferred() []T {
	return tm.filter(func(t T) bool { return !t.IsEager() })
}

func (tm *Toolbox[T]) filter(keep func(T) bool) []T {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	out := make([]T, 0, len(tm.tools))
	for _, tool := range tm.tools {
		if keep(tool) {
			out = append(out, tool)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GetName() < out[j].GetName() })
	return out
}

// ExecuteTool executes a tool call with middleware applied.
func (tm *Toolbox[T]) ExecuteTool(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
	tm.mu.RLock()
	tool, exists := tm.tools[call.Function.Name]
	middleware := tm.middleware
	tm.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, call.Function.Name)
	}

	finalExecutor := ToolExecutor(tool.Execute)
	for i := len(middleware) - 1; i >= 0; i-- {
		finalExecutor = middleware[i](finalExecutor)
	}
	return finalExecutor(ctx, call)
}

// GetTool returns a specific tool by name.
func (tm *Toolbox[T]) GetTool(name string) (T, bool) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	tool, exists := tm.tools[name]
	return tool, exists
}

// HasTool checks if a tool is available.
func (tm *Toolbox[T]) HasTool(name string) bool {
	_, exists := tm.GetTool(name)
	return exists
}

// LoggingMiddleware logs tool execution details.
func LoggingMiddleware(logger *slog.Logger) ToolMiddleware {
	return func(next ToolExecutor) ToolExecutor {
		return func(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
			log := logger.With("tool", call.Function.Name, "call_id", call.ID, "caller", call.Caller.String())
			log.Debug("executing tool", "params", string(call.Function.Arguments))
			start := time.Now()
			result, err := next(ctx, call)
			if err != nil {
				log.Warn("tool execution failed", "error", err, "duration", time.Since(start))
			} else {
				log.Info("tool execution completed", "duration", time.Since(start))
			}
			return result, err
		}
	}
}
