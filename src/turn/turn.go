package turn

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/elee1766/turnkit/src/aisdk"
)

// Status is the lifecycle phase of a turn.
type Status string

const (
	StatusPending   Status = "pending"
	StatusStreaming Status = "streaming"
	StatusComplete  Status = "complete"
	StatusError     Status = "error"
)

// SuggestionsMarker separates the answer from follow-up suggestions.
const SuggestionsMarker = "<suggestions>"

var (
	ErrNotStreaming      = errors.New("turn is not streaming")
	ErrInvalidTransition = errors.New("invalid turn status transition")
)

// Final is the message a finished turn hands to persistence.
type Final struct {
	Message     *aisdk.Message
	Suggestions []string
	Snapshot    Snapshot
}

// Turn is one user-submission-to-final-message cycle.
type Turn struct {
	ID             string
	ConversationID string
	StartedAt      time.Time
	FinishedAt     time.Time

	mu       sync.Mutex
	status   Status
	messages []*aisdk.Message
	acc      *Accumulator
	final    *Final
	failure  error
	opts     []Option
}

// New creates a pending turn. history is copied; user is appended to it.
func New(id, conversationID string, history []*aisdk.Message, user *aisdk.Message, opts ...Option) *Turn {
	msgs := make([]*aisdk.Message, 0, len(history)+2)
	msgs = append(msgs, history...)
	if user != nil {
		msgs = append(msgs, user)
	}
	return &Turn{
		ID:             id,
		ConversationID: conversationID,
		status:         StatusPending,
		messages:       msgs,
		opts:           opts,
	}
}

// Status returns the current status.
func (t *Turn) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Messages returns the message list, including any appended assistant
// message.
func (t *Turn) Messages() []*aisdk.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*aisdk.Message(nil), t.messages...)
}

// Err returns the failure recorded by Fail.
func (t *Turn) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failure
}

// Final returns the completed message, or nil before Complete.
func (t *Turn) Final() *Final {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.final
}

// Start moves a pending turn to streaming.
func (t *Turn) Start(now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.status, StatusStreaming)
	}
	t.status = StatusStreaming
	t.StartedAt = now
	t.acc = NewAccumulator(now, t.opts...)
	return nil
}

// Apply merges one delta into a streaming turn.
func (t *Turn) Apply(d aisdk.Delta) (Snapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusStreaming {
		return Snapshot{}, ErrNotStreaming
	}
	return t.acc.Apply(d), nil
}

// Snapshot returns the accumulated state. It is empty before Start.
func (t *Turn) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.acc == nil {
		return Snapshot{}
	}
	return t.acc.Snapshot()
}

// Complete ends a streaming turn successfully and appends the assistant
// message built from the accumulated state.
func (t *Turn) Complete(now time.Time) (*Final, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusStreaming {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.status, StatusComplete)
	}
	snap := t.acc.Snapshot()
	display, suggestions := SplitSuggestions(snap.Content)
	msg := &aisdk.Message{
		Role:      "assistant",
		Content:   display,
		CreatedAt: now,
	}
	t.messages = append(t.messages, msg)
	t.final = &Final{Message: msg, Suggestions: suggestions, Snapshot: snap}
	t.status = StatusComplete
	t.FinishedAt = now
	return t.final, nil
}

// Fail ends the turn with a transport failure. Exactly one synthetic
// assistant message describing err is appended; accumulated state is kept.
func (t *Turn) Fail(now time.Time, err error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusComplete || t.status == StatusError {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.status, StatusError)
	}
	t.failure = err
	t.messages = append(t.messages, &aisdk.Message{
		Role:      "assistant",
		Content:   fmt.Sprintf("The response could not be completed: %v", err),
		Synthetic: true,
		CreatedAt: now,
	})
	t.status = StatusError
	t.FinishedAt = now
	return nil
}

// SplitSuggestions separates display content from the bullet list that
// follows SuggestionsMarker. Non-bullet lines after the marker are ignored.
func SplitSuggestions(content string) (string, []string) {
	idx := strings.Index(content, SuggestionsMarker)
	if idx < 0 {
		return content, nil
	}
	display := strings.TrimSpace(content[:idx])
	rest := content[idx+len(SuggestionsMarker):]

	var suggestions []string
	for _, line := range strings.Split(rest, "\n") {
		line = strings.TrimSpace(line)
		for _, bullet := range []string{"- ", "* ", "• "} {
			if strings.HasPrefix(line, bullet) {
				if s := strings.TrimSpace(line[len(bullet):]); s != "" {
					suggestions = append(suggestions, s)
				}
				break
			}
		}
	}
	return display, suggestions
}
