package executor

import (
	"errors"
	"testing"
	"time"

	"github.com/elee1766/turnkit/src/aisdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingProcessor struct{ closeErr error }

func (failingProcessor) Process(TurnEvent) error { return errors.New("render failed") }
func (f failingProcessor) Close() error         { return f.closeErr }

func TestChannelEventSinkOrder(t *testing.T) {
	proc := &collectingProcessor{}
	sink := NewChannelEventSink(1, nil, proc, failingProcessor{})

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	em := NewEventEmitter(sink, "conv-1", "turn-1", func() time.Time { return now })
	em.SetStep(2)
	require.NoError(t, em.EmitStepStart("test/model"))
	require.NoError(t, em.EmitDelta(aisdk.ContentDelta{Text: "hi"}))
	require.NoError(t, em.EmitDelta(aisdk.ToolEventDelta{Event: aisdk.ToolEvent{Name: "web_search", Status: aisdk.ToolStatusStart}}))
	require.NoError(t, em.EmitError(errors.New("boom"), false, "stream"))
	require.NoError(t, sink.Close())

	assert.Equal(t, []EventType{EventStepStart, EventDelta, EventToolStart, EventTurnError}, proc.types())
	for _, e := range proc.events {
		assert.Equal(t, "conv-1", e.GetConversationID())
		assert.Equal(t, "turn-1", e.GetTurnID())
		assert.Equal(t, now, e.GetTimestamp())
	}
	te := proc.events[2].(*ToolEvent)
	assert.False(t, te.Local)
	assert.Equal(t, 2, te.Step)
}

func TestChannelEventSinkClosed(t *testing.T) {
	closeErr := errors.New("flush failed")
	sink := NewChannelEventSink(4, nil, failingProcessor{closeErr: closeErr})

	assert.ErrorIs(t, sink.Close(), closeErr)
	assert.NoError(t, sink.Close())
	assert.ErrorIs(t, sink.Send(&DeltaEvent{}), ErrSinkClosed)

	em := NewEventEmitter(sink, "c", "t", nil)
	assert.ErrorIs(t, em.EmitStepStart("m"), ErrSinkClosed)
}

func TestEventEmitterNilSink(t *testing.T) {
	em := NewEventEmitter(nil, "c", "t", nil)
	assert.NoError(t, em.EmitDelta(aisdk.ContentDelta{Text: "x"}))
	assert.NoError(t, em.EmitTurnComplete(nil, 1))
}
