package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/elee1766/turnkit/src/agent"
	"github.com/elee1766/turnkit/src/aisdk"
	"github.com/elee1766/turnkit/src/frame"
	"github.com/elee1766/turnkit/src/metrics"
	"github.com/elee1766/turnkit/src/turn"
	"github.com/google/uuid"
)

const DefaultMaxSteps = 8

// Persister stores finished turns and recalls the container of earlier
// ones. storage.DB implements it.
type Persister interface {
	SaveTurn(ctx context.Context, t *turn.Turn) error
	LastContainerID(ctx context.Context, conversationID string) (string, error)
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Agent      *agent.Agent
	Dispatcher *Dispatcher
	Frame      frame.Config

	// MaxSteps bounds the model requests of one turn.
	MaxSteps  int
	ChunkSize int

	Persister Persister
	Sink      EventSink
	Metrics   *metrics.Metrics

	// Capture receives every stream chunk and every locally encoded tool
	// event, in the order the reader consumed them.
	Capture io.Writer

	Logger *slog.Logger
	Clock  func() time.Time
	NewID  func() string
	// TurnOptions are passed to each turn's accumulator.
	TurnOptions []turn.Option
}

// Runner drives turns: it streams each step through a frame reader into the
// turn, runs requested tool calls and loops until the model answers.
type Runner struct {
	agent      *agent.Agent
	dispatcher *Dispatcher
	frameCfg   frame.Config
	encoder    frame.Encoder
	maxSteps   int
	chunkSize  int
	persister  Persister
	sink       EventSink
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
	turnOpts   []turn.Option

	captureMu sync.Mutex
	capture   io.Writer

	mu     sync.Mutex
	active map[string]struct{}
}

// NewRunner validates cfg and creates a runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Agent == nil || cfg.Agent.Model == nil {
		return nil, ErrAgentRequired
	}
	if cfg.Dispatcher == nil {
		return nil, ErrDispatcherRequired
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Frame.Logger == nil {
		cfg.Frame.Logger = cfg.Logger
	}
	if _, err := frame.New(cfg.Frame); err != nil {
		return nil, err
	}
	encoder, err := frame.NewEncoder(cfg.Frame)
	if err != nil {
		return nil, err
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.New().String() }
	}
	return &Runner{
		agent:      cfg.Agent,
		dispatcher: cfg.Dispatcher,
		frameCfg:   cfg.Frame,
		encoder:    encoder,
		maxSteps:   cfg.MaxSteps,
		chunkSize:  cfg.ChunkSize,
		persister:  cfg.Persister,
		sink:       cfg.Sink,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger.With("component", "runner"),
		now:        cfg.Clock,
		newID:      cfg.NewID,
		turnOpts:   cfg.TurnOptions,
		capture:    cfg.Capture,
		active:     make(map[string]struct{}),
	}, nil
}

// RunTurn submits user to conv and streams the answer.
//
// On success the user message, any tool round trips and the final assistant
// message are appended to conv. On a transport failure the turn ends in
// error, one synthetic assistant message is appended and the error is
// returned. When ctx is cancelled the turn is left streaming, conv is not
// modified and ctx's error is returned.
func (r *Runner) RunTurn(ctx context.Context, conv *aisdk.Conversation, user *aisdk.Message) (*turn.Turn, error) {
	if conv == nil {
		return nil, ErrNilConversation
	}
	if !r.acquire(conv.ID) {
		return nil, fmt.Errorf("%w: %s", ErrTurnInProgress, conv.ID)
	}
	defer r.release(conv.ID)

	log := r.logger.With("conversation_id", conv.ID)
	if conv.Container() == "" && r.persister != nil {
		id, err := r.persister.LastContainerID(ctx, conv.ID)
		if err != nil {
			log.Warn("failed to load container id", "error", err)
		}
		conv.SetContainerID(id)
	}

	work := conv.Fork()
	base := work.Len()
	if user != nil {
		work.Append(user)
	}

	t := turn.New(r.newID(), conv.ID, nil, user, r.turnOpts...)
	if err := t.Start(r.now()); err != nil {
		return nil, err
	}
	log = log.With("turn_id", t.ID)
	emitter := NewEventEmitter(r.sink, conv.ID, t.ID, r.now)
	log.Debug("turn started")

	steps, err := r.loop(ctx, work, t, emitter, log)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			log.Info("turn cancelled", "steps", steps)
			emitter.EmitError(err, true, "stream")
			r.metrics.RecordTurn("cancelled")
			return t, err
		}
		log.Error("turn failed", "error", err, "steps", steps)
		if failErr := t.Fail(r.now(), err); failErr != nil {
			return t, errors.Join(err, failErr)
		}
		msgs := t.Messages()
		work.Append(msgs[len(msgs)-1])
		conv.Append(work.Since(base)...)
		r.persist(ctx, t, log)
		emitter.EmitError(err, false, "stream")
		r.metrics.RecordTurn(string(turn.StatusError))
		return t, err
	}

	final, err := t.Complete(r.now())
	if err != nil {
		return t, err
	}
	work.Append(final.Message)
	conv.Append(work.Since(base)...)
	conv.SetContainerID(final.Snapshot.ContainerID)
	r.persist(ctx, t, log)
	emitter.EmitTurnComplete(final, steps)
	r.metrics.RecordTurn(string(turn.StatusComplete))
	log.Info("turn complete", "steps", steps, "tool_events", len(final.Snapshot.ToolEvents))
	return t, nil
}

func (r *Runner) loop(ctx context.Context, work *aisdk.Conversation, t *turn.Turn, emitter *EventEmitter, log *slog.Logger) (int, error) {
	for step := 1; ; step++ {
		emitter.SetStep(step)
		res, err := r.step(ctx, work, t, emitter, step)
		if err != nil {
			return step, err
		}
		switch res.State {
		case StateTextResponse:
			return step, nil
		case StateStepLimit:
			log.Warn("step limit reached with pending tool calls", "max_steps", r.maxSteps, "calls", len(res.ToolCalls))
			return step, nil
		}

		work.Append(&aisdk.Message{Role: "assistant", Content: res.Text, ToolCalls: res.ToolCalls})
		for _, result := range r.dispatchCalls(ctx, work.ID, t, emitter, res.ToolCalls, log) {
			work.Append(result.Message())
		}
		if err := ctx.Err(); err != nil {
			return step, err
		}
	}
}

// step streams one model response into t.
func (r *Runner) step(ctx context.Context, work *aisdk.Conversation, t *turn.Turn, emitter *EventEmitter, step int) (*stepResult, error) {
	reader, err := frame.New(r.frameCfg)
	if err != nil {
		return nil, err
	}
	emitter.EmitStepStart(r.agent.Model.ModelID())

	body, err := r.agent.OpenStep(ctx, work)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	before := len(t.Snapshot().Content)
	calls := aisdk.NewToolCallAggregator()
	apply := func(deltas []aisdk.Delta) error {
		for _, d := range deltas {
			if call, ok := d.(aisdk.ToolCallDelta); ok {
				calls.Add(call)
			}
			if _, err := t.Apply(d); err != nil {
				return err
			}
			r.metrics.RecordDelta(deltaKind(d))
			emitter.EmitDelta(d)
		}
		return nil
	}

	err = aisdk.ReadChunks(ctx, body, r.chunkSize, func(chunk []byte) error {
		r.write(chunk)
		return apply(reader.Feed(chunk))
	})
	if err != nil {
		// Buffered partial tokens are dropped, not flushed.
		return nil, err
	}
	if err := apply(reader.Flush()); err != nil {
		return nil, err
	}

	snap := t.Snapshot()
	if msg, ok := snap.Meta[aisdk.MetaError]; ok && msg != "" {
		return nil, fmt.Errorf("%w: %s", ErrProviderError, msg)
	}
	// The next step of this turn runs in the container this one reported.
	work.SetContainerID(snap.ContainerID)

	res := &stepResult{State: StateTextResponse, ToolCalls: calls.Calls()}
	if len(snap.Content) > before {
		res.Text = snap.Content[before:]
	}
	if len(res.ToolCalls) == 0 {
		return res, nil
	}
	for i := range res.ToolCalls {
		if res.ToolCalls[i].ID == "" {
			res.ToolCalls[i].ID = "call_" + r.newID()
		}
	}
	res.State = StateToolCallsNeeded
	if step >= r.maxSteps {
		res.State = StateStepLimit
	}
	return res, nil
}

// dispatchCalls runs the calls of one step. Their lifecycle events are
// encoded in the stream's wire format and fed back through a reader so
// they reach the turn the same way provider-side tool events do.
func (r *Runner) dispatchCalls(ctx context.Context, conversationID string, t *turn.Turn, emitter *EventEmitter, calls []aisdk.ToolCall, log *slog.Logger) []Result {
	reqs := make([]Request, len(calls))
	for i, call := range calls {
		req := RequestFromCall(call)
		req.TurnID = t.ID
		req.ConversationID = conversationID
		reqs[i] = req
	}

	reader, err := frame.New(r.frameCfg)
	if err != nil {
		log.Error("failed to create reader for tool events", "error", err)
	}
	return r.dispatcher.DispatchAll(ctx, reqs, func(ev DispatchEvent) {
		emitter.EmitToolEvent(ev, true)
		if reader == nil {
			return
		}
		raw, err := r.encoder.EncodeToolEvent(ev.ToolEvent)
		if err != nil {
			log.Warn("failed to encode tool event", "tool", ev.Name, "error", err)
			return
		}
		r.write(raw)
		for _, d := range reader.Feed(raw) {
			if _, err := t.Apply(d); err != nil {
				log.Warn("failed to apply tool event", "tool", ev.Name, "error", err)
				continue
			}
			r.metrics.RecordDelta(deltaKind(d))
		}
	})
}

func (r *Runner) persist(ctx context.Context, t *turn.Turn, log *slog.Logger) {
	if r.persister == nil {
		return
	}
	if err := r.persister.SaveTurn(context.WithoutCancel(ctx), t); err != nil {
		log.Error("failed to save turn", "error", err)
	}
}

func (r *Runner) write(b []byte) {
	if r.capture == nil {
		return
	}
	r.captureMu.Lock()
	defer r.captureMu.Unlock()
	if _, err := r.capture.Write(b); err != nil {
		r.logger.Warn("failed to write capture, disabling it", "error", err)
		r.capture = nil
	}
}

func (r *Runner) acquire(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.active[conversationID]; busy {
		return false
	}
	r.active[conversationID] = struct{}{}
	return true
}

func (r *Runner) release(conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, conversationID)
}

// deltaKind labels a delta for metrics.
func deltaKind(d aisdk.Delta) string {
	switch d.(type) {
	case aisdk.ContentDelta:
		return "content"
	case aisdk.ReasoningDelta:
		return "reasoning"
	case aisdk.ImageDelta:
		return "image"
	case aisdk.CitationDelta:
		return "citation"
	case aisdk.ToolEventDelta:
		return "tool_event"
	case aisdk.ContainerIDDelta:
		return "container_id"
	case aisdk.MetaDelta:
		return "meta"
	case aisdk.ToolCallDelta:
		return "tool_call"
	}
	return "unknown"
}
