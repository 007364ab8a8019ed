package executor

import (
	"github.com/elee1766/turnkit/src/aisdk"
)

// StepState is the outcome of one model step.
type StepState int

const (
	// StateTextResponse means the model answered with no tool calls
	StateTextResponse StepState = iota
	// StateToolCallsNeeded means the model asked for local tool calls
	StateToolCallsNeeded
	// StateStepLimit means tool calls were requested after the last allowed step
	StateStepLimit
)

func (s StepState) String() string {
	switch s {
	case StateTextResponse:
		return "text_response"
	case StateToolCallsNeeded:
		return "tool_calls_needed"
	case StateStepLimit:
		return "step_limit"
	}
	return "unknown"
}

// stepResult is what one streamed step leaves behind.
type stepResult struct {
	State StepState
	// Text is the content produced by this step alone.
	Text string
	// ToolCalls are the assembled function calls, in index order.
	ToolCalls []aisdk.ToolCall
}
