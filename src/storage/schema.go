package storage

import "time"

// Role is the closed set of message authors persisted in the messages table.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleFunction  Role = "function"
)

// Valid reports whether r is one of the persisted roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleFunction:
		return true
	}
	return false
}

// Message is an append-only chat entry. Timestamp is unix milliseconds from
// NextTimestamp, so ordering by (conversation_id, timestamp) is stable.
type Message struct {
	ID             string        `json:"id" db:"id"`
	ConversationID string        `json:"conversationId" db:"conversation_id"`
	Timestamp      int64         `json:"timestamp" db:"timestamp"`
	Role           Role          `json:"role" db:"role"`
	Content        string        `json:"content" db:"content"`
	Name           *string       `json:"name,omitempty" db:"name"`
	FunctionCall   *FunctionCall `json:"function_call,omitempty" db:"function_call"`
}

// Conversation is derived from the latest message of each conversation id.
// It is never stored.
type Conversation struct {
	ID            string `json:"id" db:"conversation_id"`
	Preview       string `json:"preview" db:"preview"`
	LastMessageAt int64  `json:"lastMessageAt" db:"last_message_at"`
}

// SettingType names a single-row setting.
type SettingType string

const (
	SettingAPIKey SettingType = "apiKey"
	SettingModel  SettingType = "model"
)

// Valid reports whether t is a known setting type.
func (t SettingType) Valid() bool {
	return t == SettingAPIKey || t == SettingModel
}

type Setting struct {
	Type      SettingType `json:"type" db:"type"`
	Value     string      `json:"value" db:"value"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// EpisodicMemory is a reflection on one conversation. Embedding is the
// vector of Context.
type EpisodicMemory struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"conversationId" db:"conversation_id"`
	Context        string    `json:"context" db:"context"`
	Good           string    `json:"good" db:"good"`
	ToBeImproved   string    `json:"toBeImproved" db:"to_be_improved"`
	Embedding      Embedding `json:"-" db:"embedding"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
