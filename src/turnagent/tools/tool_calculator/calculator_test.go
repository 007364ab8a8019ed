package tool_calculator

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/elee1766/turnkit/src/agent"
	"github.com/elee1766/turnkit/src/aisdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"1 + 2", 3},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"2 * 3 ^ 2", 18},
		{"2 ^ 3 ^ 2", 512},
		{"-2 ^ 2", -4},
		{"2 ^ -1", 0.5},
		{"10 % 4", 2},
		{"7 / 2", 3.5},
		{"1_000 + 0.5", 1000.5},
		{"2.5e2", 250},
		{"sqrt(16) + abs(-3)", 7},
		{"floor(2.7) + ceil(2.1) + round(2.5)", 8},
		{"log(1000)", 3},
		{"ln(e)", 1},
		{"pow(2, 10)", 1024},
		{"min(3, 1, 2) + max(3, 1, 2)", 4},
		{"cos(PI)", -1},
		{"- -3", 3},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Evaluate(tt.expr)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr string
	}{
		{"1 +", "syntax error"},
		{"(1 + 2", "expected )"},
		{"1 2", "unexpected"},
		{"1 / 0", "division by zero"},
		{"5 % 0", "modulo by zero"},
		{"foo(1)", "unknown function"},
		{"tau", "unknown constant"},
		{"sqrt(1, 2)", "takes 1 argument"},
		{"pow(2)", "takes 2 arguments"},
		{"max()", "at least 1 argument"},
		{"sqrt(-1)", "not a finite number"},
		{"1 $ 2", "syntax error"},
		{"1 // 2", "unexpected"},
		{`"1"`, "unexpected"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := Evaluate(tt.expr)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCalculatorTool(t *testing.T) {
	tool, err := Tool()
	require.NoError(t, err)
	assert.Equal(t, agent.ProviderBuiltin, tool.Provider())
	assert.True(t, tool.IsEager())

	resp, err := tool.Execute(context.Background(), &aisdk.ToolCall{
		Function: aisdk.FunctionCall{Name: Name, Arguments: json.RawMessage(`{"expression":"(1 + 2) / 4"}`)},
	})
	require.NoError(t, err)
	assert.Nil(t, resp.Payload)

	var out CalculatorOutput
	require.NoError(t, json.Unmarshal([]byte(resp.Content), &out))
	assert.Equal(t, 0.75, out.Result)
	assert.Equal(t, "0.75", out.Formatted)

	_, err = tool.Execute(context.Background(), &aisdk.ToolCall{
		Function: aisdk.FunctionCall{Name: Name, Arguments: json.RawMessage(`{"expression":"  "}`)},
	})
	assert.Error(t, err)

	assert.False(t, math.IsNaN(out.Result))
}
