package storage

import (
	"context"
	"database/sql"

	"github.com/georgysavva/scany/v2/sqlscan"
)

// Execer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// ExecQuerier is used by operations that read before they write, such as
// the settings upsert and memory consolidation.
type ExecQuerier interface {
	Execer
	sqlscan.Querier
}
