package orchestrator

import (
	"context"
	"fmt"

	"github.com/elee1766/pagepilot/src/storage"
)

// DeleteConversation removes every message of id and emits
// conversation_deleted. Deleting a conversation with no messages succeeds.
func (o *Orchestrator) DeleteConversation(ctx context.Context, id string, sink EventSink) (bool, error) {
	unlock := o.locks.Lock(id)
	defer unlock()

	n, err := storage.DeleteMessagesByConversationID(ctx, o.db.DB(), id)
	success := err == nil
	o.emit(o.logger, sink, &ConversationDeletedEvent{
		BaseEvent: BaseEvent{Type: EventConversationDeleted, ConversationID: id},
		Success:   success,
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete conversation %s: %w", id, err)
	}
	o.metrics.ConversationsDeleted.Inc()
	o.logger.Info("conversation deleted", "conversation_id", id, "messages", n)
	return success, nil
}

// ListConversations returns conversations, most recently active first.
func (o *Orchestrator) ListConversations(ctx context.Context) ([]storage.Conversation, error) {
	return storage.ListConversations(ctx, o.db.DB())
}

// LoadConversation returns the messages of id, oldest first.
func (o *Orchestrator) LoadConversation(ctx context.Context, id string) ([]storage.Message, error) {
	return storage.GetMessagesByConversationID(ctx, o.db.DB(), id)
}

// LatestConversation returns the id of the most recently active
// conversation, or "" when there is none.
func (o *Orchestrator) LatestConversation(ctx context.Context) (string, error) {
	return storage.GetLatestConversationID(ctx, o.db.DB())
}
