package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/elee1766/turnkit/src/agent"
	"github.com/elee1766/turnkit/src/aisdk"
	"github.com/elee1766/turnkit/src/metrics"
	"github.com/elee1766/turnkit/src/storage"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultConcurrency = 4
	DefaultToolTimeout = 30 * time.Second
)

// Outcome labels recorded for each dispatch.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid_input"
	OutcomeTimeout  = "timeout"
	OutcomePanic    = "panic"
	OutcomeCanceled = "canceled"
)

// ExecutionRecorder persists one row per dispatched call.
type ExecutionRecorder interface {
	RecordToolExecution(ctx context.Context, execution *storage.ToolExecution) error
}

// DispatcherConfig configures a Dispatcher. Zero values get defaults.
type DispatcherConfig struct {
	Toolbox     *agent.DefaultToolbox
	Concurrency int
	Timeout     time.Duration
	Validator   *agent.Validator
	Metrics     *metrics.Metrics
	Recorder    ExecutionRecorder
	Logger      *slog.Logger
}

// Dispatcher runs tool calls against a toolbox. Failures of any kind become
// result text; nothing a tool does escapes as an error or a panic.
type Dispatcher struct {
	toolbox     *agent.DefaultToolbox
	concurrency int
	timeout     time.Duration
	validator   *agent.Validator
	metrics     *metrics.Metrics
	recorder    ExecutionRecorder
	logger      *slog.Logger
}

// Request is one call to dispatch.
type Request struct {
	ID     string
	Name   string
	Input  json.RawMessage
	Caller aisdk.Caller

	// TurnID and ConversationID are only used for execution records.
	TurnID         string
	ConversationID string
}

// RequestFromCall converts an assembled function call.
func RequestFromCall(call aisdk.ToolCall) Request {
	return Request{
		ID:     call.ID,
		Name:   call.Function.Name,
		Input:  call.Function.Arguments,
		Caller: call.Caller,
	}
}

// Result is the outcome of one dispatched call.
type Result struct {
	Request  Request
	Content  string
	Payload  aisdk.ToolPayload
	IsError  bool
	Outcome  string
	Duration time.Duration
}

// Message returns the tool message answering the call.
func (r Result) Message() *aisdk.Message {
	return &aisdk.Message{
		Role:       "tool",
		Content:    r.Content,
		Name:       r.Request.Name,
		ToolCallID: r.Request.ID,
	}
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Toolbox == nil {
		return nil, ErrToolboxRequired
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultToolTimeout
	}
	if cfg.Validator == nil {
		cfg.Validator = agent.NewValidator()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{
		toolbox:     cfg.Toolbox,
		concurrency: cfg.Concurrency,
		timeout:     cfg.Timeout,
		validator:   cfg.Validator,
		metrics:     cfg.Metrics,
		recorder:    cfg.Recorder,
		logger:      cfg.Logger.With("component", "dispatcher"),
	}, nil
}

// Dispatch runs one call. A start event is emitted before execution and an
// end event after it, including for unknown tools.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request, emit EmitFunc) Result {
	return d.dispatch(ctx, req, emit.serialize())
}

// DispatchAll runs calls concurrently, at most Concurrency at a time.
// Events are emitted in completion order; results come back in request
// order.
func (d *Dispatcher) DispatchAll(ctx context.Context, reqs []Request, emit EmitFunc) []Result {
	emit = emit.serialize()
	results := make([]Result, len(reqs))
	sem := semaphore.NewWeighted(int64(d.concurrency))

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(idx int, req Request) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				results[idx] = d.canceled(req, emit, err)
				return
			}
			defer sem.Release(1)
			results[idx] = d.dispatch(ctx, req, emit)
		}(i, req)
	}
	wg.Wait()
	return results
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request, emit EmitFunc) Result {
	input := decodeInput(req.Input)
	caller := req.Caller
	if caller.Kind == "" {
		caller = aisdk.Direct()
	}
	log := d.logger.With("tool", req.Name, "call_id", req.ID, "caller", caller.String())

	emit(DispatchEvent{ToolEvent: aisdk.ToolEvent{
		ID:     req.ID,
		Name:   req.Name,
		Status: aisdk.ToolStatusStart,
		Input:  input,
		Caller: caller,
	}})

	start := time.Now()
	res := d.execute(ctx, req, log)
	res.Duration = time.Since(start)
	res.Request = req

	emit(DispatchEvent{
		ToolEvent: aisdk.ToolEvent{
			ID:      req.ID,
			Name:    req.Name,
			Status:  aisdk.ToolStatusEnd,
			Input:   input,
			Result:  &res.Content,
			Caller:  caller,
			Payload: res.Payload,
		},
		Duration: res.Duration,
		Failed:   res.IsError,
	})

	d.metrics.RecordTool(req.Name, res.Outcome, res.Duration)
	d.record(ctx, req, caller, res, log)
	return res
}

func (d *Dispatcher) execute(ctx context.Context, req Request, log *slog.Logger) Result {
	tool, ok := d.toolbox.GetTool(req.Name)
	if !ok {
		log.Warn("tool not found")
		return failure(req.Name, agent.ErrToolNotFound, OutcomeNotFound)
	}
	provider := tool.Provider()

	if err := d.validator.Validate(tool, req.Input); err != nil {
		log.Debug("rejected tool input", "error", err)
		return failure(provider, err, OutcomeInvalid)
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	call := &aisdk.ToolCall{
		ID:       req.ID,
		Type:     "function",
		Function: aisdk.FunctionCall{Name: req.Name, Arguments: req.Input},
		Caller:   req.Caller,
	}

	type outcome struct {
		resp *aisdk.ToolResponse
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("tool panicked", "panic", r)
				done <- outcome{err: fmt.Errorf("%w: %v", ErrToolPanic, r)}
			}
		}()
		resp, err := d.toolbox.ExecuteTool(callCtx, call)
		done <- outcome{resp: resp, err: err}
	}()

	select {
	case out := <-done:
		switch {
		case errors.Is(out.err, ErrToolPanic):
			return failure(provider, out.err, OutcomePanic)
		case out.err != nil && callCtx.Err() != nil && ctx.Err() == nil:
			return failure(provider, fmt.Errorf("%w after %s", ErrToolTimeout, d.timeout), OutcomeTimeout)
		case out.err != nil:
			return failure(provider, out.err, OutcomeError)
		case out.resp == nil:
			return Result{Outcome: OutcomeOK}
		case out.resp.IsError:
			return Result{
				Content: fmt.Sprintf("%s error: %s", provider, out.resp.Content),
				Payload: out.resp.Payload,
				IsError: true,
				Outcome: OutcomeError,
			}
		}
		return Result{Content: out.resp.Content, Payload: out.resp.Payload, Outcome: OutcomeOK}
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return failure(provider, ctx.Err(), OutcomeCanceled)
		}
		log.Warn("tool timed out", "timeout", d.timeout)
		return failure(provider, fmt.Errorf("%w after %s", ErrToolTimeout, d.timeout), OutcomeTimeout)
	}
}

// canceled builds the result for a call that never acquired a slot.
func (d *Dispatcher) canceled(req Request, emit EmitFunc, err error) Result {
	provider := agent.ProviderBuiltin
	if tool, ok := d.toolbox.GetTool(req.Name); ok {
		provider = tool.Provider()
	}
	res := failure(provider, err, OutcomeCanceled)
	res.Request = req
	input := decodeInput(req.Input)
	caller := req.Caller
	if caller.Kind == "" {
		caller = aisdk.Direct()
	}
	for _, status := range []aisdk.ToolStatus{aisdk.ToolStatusStart, aisdk.ToolStatusEnd} {
		ev := aisdk.ToolEvent{ID: req.ID, Name: req.Name, Status: status, Input: input, Caller: caller}
		if status == aisdk.ToolStatusEnd {
			ev.Result = &res.Content
		}
		emit(DispatchEvent{ToolEvent: ev, Failed: status == aisdk.ToolStatusEnd})
	}
	d.metrics.RecordTool(req.Name, res.Outcome, 0)
	return res
}

func (d *Dispatcher) record(ctx context.Context, req Request, caller aisdk.Caller, res Result, log *slog.Logger) {
	if d.recorder == nil {
		return
	}
	exec := &storage.ToolExecution{
		TurnID:         req.TurnID,
		ConversationID: req.ConversationID,
		CallID:         req.ID,
		ToolName:       req.Name,
		Caller:         caller.String(),
		Input:          string(req.Input),
		Output:         res.Content,
		DurationMs:     res.Duration.Milliseconds(),
	}
	if tool, ok := d.toolbox.GetTool(req.Name); ok {
		exec.Provider = tool.Provider()
	}
	if res.IsError {
		exec.Error = res.Content
	}
	// Recorded even when the turn was cancelled.
	if err := d.recorder.RecordToolExecution(context.WithoutCancel(ctx), exec); err != nil {
		log.Error("failed to save tool execution", "error", err)
	}
}

func failure(provider string, err error, outcome string) Result {
	return Result{
		Content: fmt.Sprintf("%s error: %s", provider, err.Error()),
		IsError: true,
		Outcome: outcome,
	}
}

// decodeInput parses call arguments for display in events. Arguments that
// are not a JSON object yield nil.
func decodeInput(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
