package orchestrator

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// EventType names an event. Event JSON is the frame sent to the UI.
type EventType string

const (
	EventChatResponse        EventType = "chat_response"
	EventConversationDeleted EventType = "conversation_deleted"
	EventToolCall            EventType = "tool_call"
	EventToolResult          EventType = "tool_result"
)

// Event is implemented by every orchestrator event.
type Event interface {
	GetType() EventType
	GetConversationID() string
}

// BaseEvent contains common fields for all events
type BaseEvent struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversationId"`
}

func (e BaseEvent) GetType() EventType        { return e.Type }
func (e BaseEvent) GetConversationID() string { return e.ConversationID }

// ChatResponseEvent carries the persisted assistant reply of a turn.
type ChatResponseEvent struct {
	BaseEvent
	Content   string `json:"content"`
	Role      string `json:"role"`
	Timestamp int64  `json:"timestamp"`
	Error     bool   `json:"error,omitempty"`
}

type ConversationDeletedEvent struct {
	BaseEvent
	Success bool `json:"success"`
}

// ToolCallEvent is emitted before a tool runs.
type ToolCallEvent struct {
	BaseEvent
	Tool      string          `json:"tool"`
	CallID    string          `json:"callId"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Step      int             `json:"step"`
}

// ToolResultEvent is emitted after a tool returns.
type ToolResultEvent struct {
	BaseEvent
	Tool       string `json:"tool"`
	CallID     string `json:"callId"`
	Content    string `json:"content"`
	IsError    bool   `json:"isError,omitempty"`
	DurationMs int64  `json:"durationMs"`
}

// EventSink is the interface for handling conversation events
type EventSink interface {
	// Send delivers an event. It must not block for long.
	Send(event Event) error

	Close() error
}

// EventProcessor processes conversation events
type EventProcessor interface {
	Process(event Event) error
	Close() error
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(Event) error

func (f SinkFunc) Send(event Event) error { return f(event) }
func (f SinkFunc) Close() error           { return nil }

// ChannelEventSink fans events out to processors on its own goroutine.
type ChannelEventSink struct {
	events     chan Event
	processors []EventProcessor
	done       chan struct{}
	logger     *slog.Logger
}

// NewChannelEventSink creates a new channel-based event sink
func NewChannelEventSink(bufferSize int, logger *slog.Logger, processors ...EventProcessor) *ChannelEventSink {
	if logger == nil {
		logger = slog.Default()
	}
	sink := &ChannelEventSink{
		events:     make(chan Event, bufferSize),
		processors: processors,
		done:       make(chan struct{}),
		logger:     logger,
	}
	go sink.processEvents()
	return sink
}

// Send sends an event to the sink
func (s *ChannelEventSink) Send(event Event) error {
	select {
	case <-s.done:
		return fmt.Errorf("event sink is closed")
	default:
	}
	select {
	case s.events <- event:
		return nil
	case <-s.done:
		return fmt.Errorf("event sink is closed")
	}
}

// Close drains pending events and closes the processors.
func (s *ChannelEventSink) Close() error {
	close(s.events)
	<-s.done

	for _, p := range s.processors {
		if err := p.Close(); err != nil {
			s.logger.Warn("failed to close event processor", "error", err)
		}
	}
	return nil
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
