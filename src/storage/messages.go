package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"
)

const messageColumns = `id, conversation_id, timestamp, role, content, name, function_call`

// CreateMessage appends a message. ID and Timestamp are filled when empty.
func CreateMessage(ctx context.Context, db Execer, msg *Message) error {
	if msg.ConversationID == "" {
		return fmt.Errorf("conversation id is required")
	}
	if !msg.Role.Valid() {
		return fmt.Errorf("invalid message role %q", msg.Role)
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = NextTimestamp()
	}

	query := `INSERT INTO messages (` + messageColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		msg.ID, msg.ConversationID, msg.Timestamp, string(msg.Role), msg.Content, msg.Name, msg.FunctionCall)
	return err
}

// GetMessagesByConversationID returns every message of a conversation,
// oldest first.
func GetMessagesByConversationID(ctx context.Context, db sqlscan.Querier, conversationID string) ([]Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = ? ORDER BY timestamp ASC, id ASC`
	var messages []Message
	if err := sqlscan.Select(ctx, db, &messages, query, conversationID); err != nil {
		return nil, err
	}
	return messages, nil
}

// GetRecentMessages returns up to limit of the newest messages of a
// conversation, still ordered oldest first.
func GetRecentMessages(ctx context.Context, db sqlscan.Querier, conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		return GetMessagesByConversationID(ctx, db, conversationID)
	}
	query := `SELECT ` + messageColumns + ` FROM (
		SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?
	) ORDER BY timestamp ASC, id ASC`
	var messages []Message
	if err := sqlscan.Select(ctx, db, &messages, query, conversationID, limit); err != nil {
		return nil, err
	}
	return messages, nil
}

// CountMessages returns how many messages a conversation holds.
func CountMessages(ctx context.Context, db sqlscan.Querier, conversationID string) (int, error) {
	var n int
	err := sqlscan.Get(ctx, db, &n, `SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conversationID)
	return n, err
}

// ListConversations derives one entry per conversation from its latest
// message, most recently active first.
func ListConversations(ctx context.Context, db sqlscan.Querier) ([]Conversation, error) {
	query := `
	SELECT m.conversation_id, m.content AS preview, m.timestamp AS last_message_at
	FROM messages m
	JOIN (
		SELECT conversation_id, MAX(timestamp) AS ts FROM messages GROUP BY conversation_id
	) latest ON latest.conversation_id = m.conversation_id AND latest.ts = m.timestamp
	ORDER BY m.timestamp DESC`
	var conversations []Conversation
	if err := sqlscan.Select(ctx, db, &conversations, query); err != nil {
		return nil, err
	}
	return conversations, nil
}

// GetLatestConversationID returns the conversation holding the newest
// message, or "" when there are no messages.
func GetLatestConversationID(ctx context.Context, db sqlscan.Querier) (string, error) {
	var id string
	err := sqlscan.Get(ctx, db, &id, `SELECT conversation_id FROM messages ORDER BY timestamp DESC LIMIT 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return id, nil
}

// DeleteMessagesByConversationID removes all messages of one conversation
// and returns how many were deleted.
func DeleteMessagesByConversationID(ctx context.Context, db Execer, conversationID string) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
