package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/elee1766/turnkit/src/aisdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addInput struct {
	A int `json:"a" required:"true" minimum:"0" description:"First addend"`
	B int `json:"b" required:"true" description:"Second addend"`
}

type addOutput struct {
	Sum int `json:"sum"`
}

type fetchOutput struct {
	Body string `json:"body"`
}

func (o fetchOutput) ToolPayload() aisdk.ToolPayload {
	return aisdk.WebFetchPayload{URL: "https://example.com", StatusCode: 200, Bytes: len(o.Body)}
}

func addTool(t *testing.T, opts ...ToolOption) *GenericTool[addInput, addOutput] {
	t.Helper()
	tool, err := NewGenericTool("add", "Adds two numbers", func(ctx context.Context, in addInput) (addOutput, error) {
		return addOutput{Sum: in.A + in.B}, nil
	}, opts...)
	require.NoError(t, err)
	return tool
}

func call(name, args string) *aisdk.ToolCall {
	return &aisdk.ToolCall{ID: "call_1", Function: aisdk.FunctionCall{Name: name, Arguments: json.RawMessage(args)}}
}

func TestGenericToolExecute(t *testing.T) {
	tool := addTool(t)
	assert.True(t, tool.IsEager())
	assert.Equal(t, ProviderBuiltin, tool.Provider())
	require.NotNil(t, tool.GetParameters())
	assert.ElementsMatch(t, []string{"a", "b"}, tool.GetParameters().Required)

	resp, err := tool.Execute(context.Background(), call("add", `{"a":2,"b":3}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"sum":5}`, resp.Content)
	assert.Nil(t, resp.Payload)

	_, err = tool.Execute(context.Background(), call("add", `{"a":`))
	assert.Error(t, err)
}

func TestGenericToolPayload(t *testing.T) {
	tool := MustNewGenericTool("fetch", "Fetch", func(ctx context.Context, in struct{}) (fetchOutput, error) {
		return fetchOutput{Body: "abc"}, nil
	}, Deferred(), WithProvider(ProviderWeb))
	assert.False(t, tool.IsEager())
	assert.Equal(t, ProviderWeb, tool.Provider())

	resp, err := tool.Execute(context.Background(), call("fetch", ""))
	require.NoError(t, err)
	assert.Equal(t, aisdk.WebFetchPayload{URL: "https://example.com", StatusCode: 200, Bytes: 3}, resp.Payload)
}

func TestNewGenericToolRejectsNonStruct(t *testing.T) {
	_, err := NewGenericTool("bad", "", func(ctx context.Context, in string) (addOutput, error) {
		return addOutput{}, nil
	})
	assert.Error(t, err)
}

func TestToolboxRegistration(t *testing.T) {
	tb := NewToolbox[Tool]()
	require.NoError(t, tb.RegisterTool(addTool(t)))
	assert.ErrorIs(t, tb.RegisterTool(addTool(t)), ErrDuplicateTool)
	assert.ErrorIs(t, tb.RegisterTool(NewFuncTool("", "", nil, nil)), ErrEmptyToolName)

	require.NoError(t, tb.RegisterTool(NewFuncTool("zeta", "late", nil, nil, Deferred())))
	require.NoError(t, tb.RegisterTool(NewFuncTool("beta", "early", nil, nil)))

	names := func(tools []Tool) []string {
		var out []string
		for _, tool := range tools {
			out = append(out, tool.GetName())
		}
		return out
	}
	assert.Equal(t, []string{"add", "beta", "zeta"}, names(tb.Tools()))
	assert.Equal(t, []string{"add", "beta"}, names(tb.Eager()))
	assert.Equal(t, []string{"zeta"}, names(tb.Deferred()))
	assert.True(t, tb.HasTool("zeta"))
	assert.False(t, tb.HasTool("nope"))
}

func TestToolboxMiddlewareOrder(t *testing.T) {
	tb := NewToolbox[Tool]()
	require.NoError(t, tb.RegisterTool(addTool(t)))

	var mu sync.Mutex
	var order []string
	mark := func(name string) ToolMiddleware {
		return func(next ToolExecutor) ToolExecutor {
			return func(ctx context.Context, c *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
				return next(ctx, c)
			}
		}
	}
	tb.RegisterMiddleware(mark("outer"))
	tb.RegisterMiddleware(mark("inner"))

	resp, err := tb.ExecuteTool(context.Background(), call("add", `{"a":1,"b":1}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"sum":2}`, resp.Content)
	assert.Equal(t, []string{"outer", "inner"}, order)

	_, err = tb.ExecuteTool(context.Background(), call("missing", `{}`))
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestValidator(t *testing.T) {
	v := NewValidator()
	tool := addTool(t)

	tests := []struct {
		name    string
		args    string
		wantErr string
	}{
		{name: "valid", args: `{"a":1,"b":2}`},
		{name: "missing field", args: `{"a":1}`, wantErr: "b"},
		{name: "wrong type", args: `{"a":"x","b":2}`, wantErr: "a"},
		{name: "below minimum", args: `{"a":-1,"b":2}`, wantErr: "a"},
		{name: "not json", args: `{`, wantErr: "invalid tool input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tool, json.RawMessage(tt.args))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	assert.NoError(t, v.Validate(NewFuncTool("free", "", nil, nil), nil))
}

func TestToChatTools(t *testing.T) {
	tools := []Tool{addTool(t), NewFuncTool("lazy", "Loaded later", nil, nil, Deferred())}
	chat := ToChatTools(tools)
	require.Len(t, chat, 2)

	assert.False(t, chat[0].DeferLoading)
	assert.NotNil(t, chat[0].Function.Parameters)

	assert.True(t, chat[1].DeferLoading)
	assert.Nil(t, chat[1].Function.Parameters)
	raw, err := json.Marshal(chat[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"function","function":{"name":"lazy","description":"Loaded later"},"defer_loading":true}`, string(raw))
}

type stubModel struct {
	req *aisdk.ChatCompletionRequest
	err error
}

func (m *stubModel) ModelID() string { return "test/model" }

func (m *stubModel) OpenStream(ctx context.Context, req *aisdk.ChatCompletionRequest) (io.ReadCloser, error) {
	m.req = req
	if m.err != nil {
		return nil, m.err
	}
	return io.NopCloser(strings.NewReader("")), nil
}

func TestAgentOpenStep(t *testing.T) {
	tb := NewToolbox[Tool]()
	require.NoError(t, tb.RegisterTool(addTool(t)))
	model := &stubModel{}
	a := &Agent{Model: model, Toolbox: tb}

	conv := aisdk.NewConversation("c1", "be brief")
	conv.Append(&aisdk.Message{Role: "user", Content: "hi"})
	conv.SetContainerID("cntr_9")

	body, err := a.OpenStep(context.Background(), conv)
	require.NoError(t, err)
	body.Close()

	require.NotNil(t, model.req)
	assert.True(t, model.req.Stream)
	assert.Equal(t, "test/model", model.req.Model)
	assert.Equal(t, "cntr_9", model.req.ContainerID)
	assert.Equal(t, "auto", model.req.ToolChoice)
	require.Len(t, model.req.Messages, 2)
	assert.Equal(t, "system", model.req.Messages[0].Role)

	model.err = errors.New("boom")
	_, err = a.OpenStep(context.Background(), conv)
	assert.EqualError(t, err, "boom")
}
