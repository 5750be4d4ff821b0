// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package sqlite

import (
	"context"
	"database/sql"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/aegis-hr/aegis/internal/store"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// Compile-time interface check.
var _ store.ConversationStore = (*ConversationStore)(nil)

// ConversationStore implements store.ConversationStore backed by SQLite.
// Exchanges are ordered by rowid, which is monotonic per insert.
type ConversationStore struct {
	db *sql.DB
}

// NewConversationStore opens (or creates) a SQLite database at dbPath and
// initialises the exchanges table.
func NewConversationStore(dbPath string) (*ConversationStore, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	if err := migrateConversation(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &ConversationStore{db: db}, nil
}

func migrateConversation(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS exchanges (
	rowid        INTEGER PRIMARY KEY AUTOINCREMENT,
	id           TEXT UNIQUE NOT NULL,
	session_id   TEXT NOT NULL,
	user_message TEXT NOT NULL,
	answer       TEXT NOT NULL,
	created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_exchanges_session ON exchanges(session_id, rowid);`
	if _, err := db.Exec(ddl); err != nil {
		return aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "creating exchanges table")
	}
	return nil
}

func (s *ConversationStore) AppendExchange(ctx context.Context, ex *store.Exchange) error {
	if ex.SessionID == "" {
		return aegiserr.New(aegiserr.CodeStoreInvalidInput, "exchange session id must not be empty")
	}
	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exchanges(id, session_id, user_message, answer, created_at) VALUES (?, ?, ?, ?, ?)`,
		ex.ID, ex.SessionID, ex.UserMessage, ex.Answer, ex.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "appending exchange",
			aegiserr.FieldSessionID(ex.SessionID))
	}
	return nil
}

func (s *ConversationStore) RecentExchanges(ctx context.Context, sessionID string, limit int) ([]*store.Exchange, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, session_id, user_message, answer, created_at
FROM exchanges
WHERE session_id = ?
ORDER BY rowid DESC
LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "reading exchanges",
			aegiserr.FieldSessionID(sessionID))
	}
	defer func() { _ = rows.Close() }()

	var out []*store.Exchange
	for rows.Next() {
		var (
			ex      store.Exchange
			created string
		)
		if err := rows.Scan(&ex.ID, &ex.SessionID, &ex.UserMessage, &ex.Answer, &created); err != nil {
			return nil, aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "scanning exchange")
		}
		ex.CreatedAt = parseTime(created)
		out = append(out, &ex)
	}
	if err := rows.Err(); err != nil {
		return nil, aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "iterating exchanges")
	}

	slices.Reverse(out)
	return out, nil
}

func (s *ConversationStore) TrimExchanges(ctx context.Context, sessionID string, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	res, err := s.db.ExecContext(ctx, `
DELETE FROM exchanges
WHERE session_id = ?
  AND rowid NOT IN (
	SELECT rowid FROM exchanges WHERE session_id = ? ORDER BY rowid DESC LIMIT ?
  )`, sessionID, sessionID, keep)
	if err != nil {
		return 0, aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "trimming exchanges",
			aegiserr.FieldSessionID(sessionID))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "counting trimmed exchanges")
	}
	return n, nil
}

func (s *ConversationStore) ClearSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM exchanges WHERE session_id = ?`, sessionID); err != nil {
		return aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "clearing session",
			aegiserr.FieldSessionID(sessionID))
	}
	return nil
}

// Close closes the underlying database connection.
func (s *ConversationStore) Close() error {
	return s.db.Close()
}
