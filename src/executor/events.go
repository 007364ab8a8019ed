package executor

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/elee1766/turnkit/src/aisdk"
	"github.com/elee1766/turnkit/src/turn"
)

// EventType represents the type of turn event
type EventType string

const (
	EventStepStart    EventType = "step_start"
	EventDelta        EventType = "delta"
	EventToolStart    EventType = "tool_start"
	EventToolEnd      EventType = "tool_end"
	EventTurnComplete EventType = "turn_complete"
	EventTurnError    EventType = "turn_error"
)

var ErrSinkClosed = errors.New("event sink is closed")

// TurnEvent is the base interface for all turn events
type TurnEvent interface {
	GetType() EventType
	GetTimestamp() time.Time
	GetConversationID() string
	GetTurnID() string
}

// BaseEvent contains common fields for all events
type BaseEvent struct {
	Type           EventType `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	ConversationID string    `json:"conversation_id"`
	TurnID         string    `json:"turn_id"`
	Step           int       `json:"step"`
}

func (e BaseEvent) GetType() EventType        { return e.Type }
func (e BaseEvent) GetTimestamp() time.Time   { return e.Timestamp }
func (e BaseEvent) GetConversationID() string { return e.ConversationID }
func (e BaseEvent) GetTurnID() string         { return e.TurnID }

// StepStartEvent is sent before each model request of a turn.
type StepStartEvent struct {
	BaseEvent
	Model string `json:"model"`
}

// DeltaEvent carries one decoded stream delta.
type DeltaEvent struct {
	BaseEvent
	Delta aisdk.Delta `json:"-"`
}

// ToolEvent carries a tool lifecycle event from the stream or from local
// dispatch.
type ToolEvent struct {
	BaseEvent
	Event    aisdk.ToolEvent `json:"-"`
	Local    bool            `json:"local"`
	Duration time.Duration   `json:"duration"`
	Failed   bool            `json:"failed"`
}

// TurnCompleteEvent is sent once a turn completes.
type TurnCompleteEvent struct {
	BaseEvent
	Final *turn.Final `json:"-"`
	Steps int         `json:"steps"`
}

// ErrorEvent is sent when a turn fails or is cancelled.
type ErrorEvent struct {
	BaseEvent
	Error     error  `json:"-"`
	Cancelled bool   `json:"cancelled"`
	Context   string `json:"context"`
}

// EventSink is the interface for handling turn events
type EventSink interface {
	// Send sends an event to the sink
	Send(event TurnEvent) error

	// Close closes the event sink
	Close() error
}

// EventProcessor processes turn events
type EventProcessor interface {
	// Process handles a single event
	Process(event TurnEvent) error

	// Close cleans up any resources
	Close() error
}

// ChannelEventSink delivers events to processors on a single goroutine, in
// the order they were sent.
type ChannelEventSink struct {
	events     chan TurnEvent
	processors []EventProcessor
	done       chan struct{}
	logger     *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewChannelEventSink creates a new channel-based event sink
func NewChannelEventSink(bufferSize int, logger *slog.Logger, processors ...EventProcessor) *ChannelEventSink {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	sink := &ChannelEventSink{
		events:     make(chan TurnEvent, bufferSize),
		processors: processors,
		done:       make(chan struct{}),
		logger:     logger.With("component", "event_sink"),
	}

	go sink.processEvents()

	return sink
}

// Send sends an event to the sink. It blocks while the buffer is full.
func (s *ChannelEventSink) Send(event TurnEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	s.events <- event
	return nil
}

// Close drains pending events and closes every processor.
func (s *ChannelEventSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.events)
	s.mu.Unlock()
	<-s.done

	var errs []error
	for _, p := range s.processors {
		if err := p.Close(); err != nil {
			s.logger.Warn("failed to close processor", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *ChannelEventSink) processEvents() {
	defer close(s.done)

	for event := range s.events {
		for _, processor := range s.processors {
			if err := processor.Process(event); err != nil {
				s.logger.Warn("failed to process event", "type", event.GetType(), "error", err)
			}
		}
	}
}
