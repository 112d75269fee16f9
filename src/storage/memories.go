package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"
)

const memoryColumns = `id, conversation_id, context, good, to_be_improved, embedding, created_at`

// CreateMemory inserts an episodic memory. ID and CreatedAt are filled when
// empty.
func CreateMemory(ctx context.Context, db Execer, mem *EpisodicMemory) error {
	if mem.ID == "" {
		mem.ID = uuid.New().String()
	}
	if mem.CreatedAt.IsZero() {
		mem.CreatedAt = time.Now()
	}
	query := `INSERT INTO episodic_memories (` + memoryColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		mem.ID, mem.ConversationID, mem.Context, mem.Good, mem.ToBeImproved, mem.Embedding, mem.CreatedAt)
	return err
}

// GetMemory returns a memory by id, or nil when absent.
func GetMemory(ctx context.Context, db sqlscan.Querier, id string) (*EpisodicMemory, error) {
	var mem EpisodicMemory
	err := sqlscan.Get(ctx, db, &mem, `SELECT `+memoryColumns+` FROM episodic_memories WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &mem, nil
}

// ListMemories returns all memories, newest first.
func ListMemories(ctx context.Context, db sqlscan.Querier) ([]EpisodicMemory, error) {
	var memories []EpisodicMemory
	if err := sqlscan.Select(ctx, db, &memories, `SELECT `+memoryColumns+` FROM episodic_memories ORDER BY created_at DESC, id`); err != nil {
		return nil, err
	}
	return memories, nil
}

// DeleteMemory removes one memory and reports whether it existed.
func DeleteMemory(ctx context.Context, db Execer, id string) (bool, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM episodic_memories WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ReplaceMemories deletes the memories in ids and inserts merged, all in
// one transaction.
func ReplaceMemories(ctx context.Context, d *DB, ids []string, merged *EpisodicMemory) error {
	return d.WithTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := DeleteMemory(ctx, tx, id); err != nil {
				return err
			}
		}
		return CreateMemory(ctx, tx, merged)
	})
}
