package aisdk

import (
	"sync"
	"time"
)

// Conversation is the in-flight message list for one chat turn. The system
// prompt is kept apart from Messages and prepended by providers.
type Conversation struct {
	ID           string
	Messages     []*Message
	SystemPrompt string
	CreatedAt    time.Time
	mu           sync.Mutex
}

// NewConversation copies msgs so appends never alias the caller's slice.
func NewConversation(id, systemPrompt string, msgs []*Message) *Conversation {
	out := make([]*Message, len(msgs))
	copy(out, msgs)
	return &Conversation{
		ID:           id,
		Messages:     out,
		SystemPrompt: systemPrompt,
		CreatedAt:    time.Now(),
	}
}

// Append adds messages to the conversation.
func (c *Conversation) Append(msgs ...*Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Messages = append(c.Messages, msgs...)
}

// Snapshot returns a copy of the current message list.
func (c *Conversation) Snapshot() []*Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Message, len(c.Messages))
	copy(out, c.Messages)
	return out
}
