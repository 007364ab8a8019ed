package executor

import (
	"time"

	"github.com/elee1766/turnkit/src/aisdk"
	"github.com/elee1766/turnkit/src/turn"
)

// EventEmitter helps emit events with common fields. A nil sink drops
// everything.
type EventEmitter struct {
	sink           EventSink
	conversationID string
	turnID         string
	step           int
	now            func() time.Time
}

// NewEventEmitter creates a new event emitter
func NewEventEmitter(sink EventSink, conversationID, turnID string, now func() time.Time) *EventEmitter {
	if now == nil {
		now = time.Now
	}
	return &EventEmitter{
		sink:           sink,
		conversationID: conversationID,
		turnID:         turnID,
		now:            now,
	}
}

// SetStep sets the step number stamped on later events.
func (e *EventEmitter) SetStep(step int) {
	e.step = step
}

func (e *EventEmitter) createBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		Type:           eventType,
		Timestamp:      e.now(),
		ConversationID: e.conversationID,
		TurnID:         e.turnID,
		Step:           e.step,
	}
}

func (e *EventEmitter) send(event TurnEvent) error {
	if e.sink == nil {
		return nil
	}
	return e.sink.Send(event)
}

// EmitStepStart emits the start of a model request
func (e *EventEmitter) EmitStepStart(model string) error {
	return e.send(&StepStartEvent{
		BaseEvent: e.createBaseEvent(EventStepStart),
		Model:     model,
	})
}

// EmitDelta emits one decoded delta. Tool lifecycle deltas are emitted as
// tool events instead.
func (e *EventEmitter) EmitDelta(d aisdk.Delta) error {
	if ev, ok := d.(aisdk.ToolEventDelta); ok {
		return e.EmitToolEvent(DispatchEvent{ToolEvent: ev.Event}, false)
	}
	return e.send(&DeltaEvent{
		BaseEvent: e.createBaseEvent(EventDelta),
		Delta:     d,
	})
}

// EmitToolEvent emits a tool start or end event.
func (e *EventEmitter) EmitToolEvent(ev DispatchEvent, local bool) error {
	eventType := EventToolStart
	if ev.Status == aisdk.ToolStatusEnd {
		eventType = EventToolEnd
	}
	return e.send(&ToolEvent{
		BaseEvent: e.createBaseEvent(eventType),
		Event:     ev.ToolEvent.Clone(),
		Local:     local,
		Duration:  ev.Duration,
		Failed:    ev.Failed,
	})
}

// EmitTurnComplete emits the completed turn
func (e *EventEmitter) EmitTurnComplete(final *turn.Final, steps int) error {
	return e.send(&TurnCompleteEvent{
		BaseEvent: e.createBaseEvent(EventTurnComplete),
		Final:     final,
		Steps:     steps,
	})
}

// EmitError emits a failed or cancelled turn
func (e *EventEmitter) EmitError(err error, cancelled bool, context string) error {
	return e.send(&ErrorEvent{
		BaseEvent: e.createBaseEvent(EventTurnError),
		Error:     err,
		Cancelled: cancelled,
		Context:   context,
	})
}
