package executor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/elee1766/turnkit/src/agent"
	"github.com/elee1766/turnkit/src/aisdk"
	"github.com/elee1766/turnkit/src/metrics"
	"github.com/elee1766/turnkit/src/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoInput struct {
	Text string `json:"text" required:"true"`
}

type echoOutput struct {
	Text string `json:"text"`
}

func (o echoOutput) ToolPayload() aisdk.ToolPayload {
	return aisdk.WebSearchPayload{Query: o.Text}
}

func testToolbox(t *testing.T) *agent.DefaultToolbox {
	t.Helper()
	tb := agent.NewToolbox[agent.Tool]()

	echo, err := agent.NewGenericTool("echo", "Echo text", func(_ context.Context, in echoInput) (echoOutput, error) {
		return echoOutput{Text: in.Text}, nil
	})
	require.NoError(t, err)
	require.NoError(t, tb.RegisterTool(echo))

	fail := agent.NewFuncTool("fail", "Always fails", nil, func(context.Context, *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
		return nil, errors.New("upstream unavailable")
	}, agent.WithProvider(agent.ProviderWeb))
	require.NoError(t, tb.RegisterTool(fail))

	soft := agent.NewFuncTool("soft", "Reports an error result", nil, func(context.Context, *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
		return &aisdk.ToolResponse{Content: "quota exceeded", IsError: true}, nil
	})
	require.NoError(t, tb.RegisterTool(soft))

	boom := agent.NewFuncTool("boom", "Panics", nil, func(context.Context, *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
		panic("kaboom")
	})
	require.NoError(t, tb.RegisterTool(boom))

	stuck := agent.NewFuncTool("stuck", "Ignores its context", nil, func(context.Context, *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
		time.Sleep(500 * time.Millisecond)
		return &aisdk.ToolResponse{Content: "late"}, nil
	})
	require.NoError(t, tb.RegisterTool(stuck))
	return tb
}

type recordedExecutions struct {
	mu   sync.Mutex
	rows []*storage.ToolExecution
}

func (r *recordedExecutions) RecordToolExecution(_ context.Context, exec *storage.ToolExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, exec)
	return nil
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		content string
		isError bool
		outcome string
		payload aisdk.ToolPayload
	}{
		{
			name:    "success with payload",
			req:     Request{ID: "c1", Name: "echo", Input: json.RawMessage(`{"text":"hi"}`)},
			content: `{"text":"hi"}`,
			outcome: OutcomeOK,
			payload: aisdk.WebSearchPayload{Query: "hi"},
		},
		{
			name:    "unknown tool",
			req:     Request{ID: "c2", Name: "nope", Input: json.RawMessage(`{}`)},
			content: "nope error: tool not found",
			isError: true,
			outcome: OutcomeNotFound,
		},
		{
			name:    "schema violation",
			req:     Request{ID: "c3", Name: "echo", Input: json.RawMessage(`{}`)},
			content: "builtin error: invalid tool input",
			isError: true,
			outcome: OutcomeInvalid,
		},
		{
			name:    "tool error uses provider",
			req:     Request{ID: "c4", Name: "fail"},
			content: "web error: upstream unavailable",
			isError: true,
			outcome: OutcomeError,
		},
		{
			name:    "error response",
			req:     Request{ID: "c5", Name: "soft"},
			content: "builtin error: quota exceeded",
			isError: true,
			outcome: OutcomeError,
		},
		{
			name:    "panic is contained",
			req:     Request{ID: "c6", Name: "boom"},
			content: "builtin error: tool panicked: kaboom",
			isError: true,
			outcome: OutcomePanic,
		},
		{
			name:    "timeout",
			req:     Request{ID: "c7", Name: "stuck"},
			content: "builtin error: tool timed out after 20ms",
			isError: true,
			outcome: OutcomeTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			m := metrics.New(reg)
			rec := &recordedExecutions{}
			d, err := NewDispatcher(DispatcherConfig{
				Toolbox:  testToolbox(t),
				Timeout:  20 * time.Millisecond,
				Metrics:  m,
				Recorder: rec,
			})
			require.NoError(t, err)

			var events []DispatchEvent
			req := tt.req
			req.Caller = aisdk.Programmatic("srv_1")
			res := d.Dispatch(context.Background(), req, func(ev DispatchEvent) {
				events = append(events, ev)
			})

			assert.Contains(t, res.Content, tt.content)
			assert.Equal(t, tt.isError, res.IsError)
			assert.Equal(t, tt.outcome, res.Outcome)
			assert.Equal(t, tt.payload, res.Payload)
			assert.Equal(t, req.ID, res.Message().ToolCallID)

			require.Len(t, events, 2)
			assert.Equal(t, aisdk.ToolStatusStart, events[0].Status)
			assert.Nil(t, events[0].Result)
			assert.Equal(t, aisdk.ToolStatusEnd, events[1].Status)
			require.NotNil(t, events[1].Result)
			assert.Equal(t, res.Content, *events[1].Result)
			assert.Equal(t, tt.isError, events[1].Failed)
			for _, ev := range events {
				assert.Equal(t, req.ID, ev.ID)
				assert.Equal(t, req.Name, ev.Name)
				assert.Equal(t, aisdk.Programmatic("srv_1"), ev.Caller)
			}

			assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues(req.Name, tt.outcome)))
			require.Len(t, rec.rows, 1)
			assert.Equal(t, req.ID, rec.rows[0].CallID)
			assert.Equal(t, "programmatic(srv_1)", rec.rows[0].Caller)
			if tt.isError {
				assert.Equal(t, res.Content, rec.rows[0].Error)
			}
		})
	}
}

func TestDispatchInputOnEvents(t *testing.T) {
	d, err := NewDispatcher(DispatcherConfig{Toolbox: testToolbox(t)})
	require.NoError(t, err)

	var events []DispatchEvent
	d.Dispatch(context.Background(), Request{ID: "c1", Name: "echo", Input: json.RawMessage(`{"text":"hi"}`)}, func(ev DispatchEvent) {
		events = append(events, ev)
	})
	require.Len(t, events, 2)
	assert.Equal(t, map[string]any{"text": "hi"}, events[0].Input)
	assert.Equal(t, map[string]any{"text": "hi"}, events[1].Input)
	assert.Equal(t, aisdk.WebSearchPayload{Query: "hi"}, events[1].Payload)
	assert.Equal(t, aisdk.Direct(), events[0].Caller)
}

func TestDispatchAllOrdering(t *testing.T) {
	tb := agent.NewToolbox[agent.Tool]()
	release := make(chan struct{})
	require.NoError(t, tb.RegisterTool(agent.NewFuncTool("slow", "", nil, func(ctx context.Context, _ *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
		<-release
		return &aisdk.ToolResponse{Content: "slow"}, nil
	})))
	require.NoError(t, tb.RegisterTool(agent.NewFuncTool("fast", "", nil, func(context.Context, *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
		return &aisdk.ToolResponse{Content: "fast"}, nil
	})))

	d, err := NewDispatcher(DispatcherConfig{Toolbox: tb, Concurrency: 2})
	require.NoError(t, err)

	var ends []string
	results := d.DispatchAll(context.Background(), []Request{
		{ID: "1", Name: "slow"},
		{ID: "2", Name: "fast"},
	}, func(ev DispatchEvent) {
		if ev.Status == aisdk.ToolStatusEnd {
			ends = append(ends, ev.ID)
			if ev.ID == "2" {
				close(release)
			}
		}
	})

	require.Len(t, results, 2)
	assert.Equal(t, "slow", results[0].Content)
	assert.Equal(t, "fast", results[1].Content)
	assert.Equal(t, []string{"2", "1"}, ends)
}

func TestDispatchAllConcurrencyLimit(t *testing.T) {
	tb := agent.NewToolbox[agent.Tool]()
	var running, peak atomic.Int32
	require.NoError(t, tb.RegisterTool(agent.NewFuncTool("work", "", nil, func(context.Context, *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return &aisdk.ToolResponse{Content: "done"}, nil
	})))

	d, err := NewDispatcher(DispatcherConfig{Toolbox: tb, Concurrency: 2})
	require.NoError(t, err)

	reqs := make([]Request, 6)
	for i := range reqs {
		reqs[i] = Request{ID: string(rune('a' + i)), Name: "work"}
	}
	var events atomic.Int32
	results := d.DispatchAll(context.Background(), reqs, func(DispatchEvent) { events.Add(1) })

	assert.Len(t, results, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, int32(12), events.Load())
}

func TestDispatchAllCancelled(t *testing.T) {
	d, err := NewDispatcher(DispatcherConfig{Toolbox: testToolbox(t)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := d.DispatchAll(ctx, []Request{{ID: "1", Name: "fail"}}, nil)
	require.Len(t, results, 1)
	assert.True(t, results[0].IsError)
	assert.Contains(t, results[0].Content, "web error: context canceled")
}

func TestNewDispatcherRequiresToolbox(t *testing.T) {
	_, err := NewDispatcher(DispatcherConfig{})
	assert.ErrorIs(t, err, ErrToolboxRequired)
}
