package aisdk

import (
	"sync"
	"time"
)

// Conversation represents an ongoing conversation with an AI agent.
type Conversation struct {
	ID            string
	Messages      []*Message
	SystemPrompt  string
	ContainerID   string
	CreatedAt     time.Time
	LastMessageAt time.Time
	mu            sync.Mutex
}

// NewConversation creates an empty conversation.
func NewConversation(id, systemPrompt string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:            id,
		SystemPrompt:  systemPrompt,
		CreatedAt:     now,
		LastMessageAt: now,
	}
}

// Append adds messages to the history.
func (c *Conversation) Append(msgs ...*Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Messages = append(c.Messages, msgs...)
	c.LastMessageAt = time.Now()
}

// History returns a copy of the message list prefixed with the system prompt.
func (c *Conversation) History() []*Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Message, 0, len(c.Messages)+1)
	if c.SystemPrompt != "" {
		out = append(out, &Message{Role: "system", Content: c.SystemPrompt})
	}
	return append(out, c.Messages...)
}

// Fork returns an independent copy. Messages appended to the copy are not
// visible in c until the caller appends them.
func (c *Conversation) Fork() *Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &Conversation{
		ID:            c.ID,
		Messages:      append([]*Message(nil), c.Messages...),
		SystemPrompt:  c.SystemPrompt,
		ContainerID:   c.ContainerID,
		CreatedAt:     c.CreatedAt,
		LastMessageAt: c.LastMessageAt,
	}
}

// Len returns the number of messages, excluding the system prompt.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Messages)
}

// Since returns the messages appended after the first n.
func (c *Conversation) Since(n int) []*Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n >= len(c.Messages) {
		return nil
	}
	return append([]*Message(nil), c.Messages[n:]...)
}

// SetContainerID records the execution container a later turn should reuse.
func (c *Conversation) SetContainerID(id string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	c.ContainerID = id
	c.mu.Unlock()
}

// Container returns the last recorded execution container id.
func (c *Conversation) Container() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ContainerID
}
