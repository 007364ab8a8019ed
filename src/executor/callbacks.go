package executor

import (
	"sync"
	"time"

	"github.com/elee1766/turnkit/src/aisdk"
)

// DispatchEvent is one tool lifecycle event observed during dispatch.
// Duration and Failed are only set on end events.
type DispatchEvent struct {
	aisdk.ToolEvent
	Duration time.Duration
	Failed   bool
}

// EmitFunc receives dispatch events. The dispatcher never calls it
// concurrently.
type EmitFunc func(ev DispatchEvent)

// serialize wraps fn so concurrent callers take turns. A nil fn is a no-op.
func (fn EmitFunc) serialize() EmitFunc {
	if fn == nil {
		return func(DispatchEvent) {}
	}
	var mu sync.Mutex
	return func(ev DispatchEvent) {
		mu.Lock()
		defer mu.Unlock()
		fn(ev)
	}
}
