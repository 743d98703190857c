// Package checkpoint provides the durable conversation-history stores the
// agent graph reads at the start of a run and appends to at each turn
// boundary. The default backend is an embedded SQLite database; a Redis
// backend is available for deployments that already run one.
package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/schema"
	_ "modernc.org/sqlite"

	"github.com/webchat-agent/server/internal/agent/model"
	"github.com/webchat-agent/server/internal/core/errx"
	logx "github.com/webchat-agent/server/pkg/logger"
)

const checkpointSchema = `
CREATE TABLE IF NOT EXISTS checkpoints (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id TEXT NOT NULL,
    message         TEXT NOT NULL,
    created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_conversation
    ON checkpoints (conversation_id);`

// SQLiteStore persists conversation history rows in an embedded database,
// one JSON-encoded message per row, ordered by insertion.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and ensures the
// checkpoint table exists. Called once at process start from the application
// context; the returned store is shared by every compiled workflow.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	store, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore wraps an existing database handle, creating the checkpoint
// table if it does not exist.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(checkpointSchema); err != nil {
		return nil, fmt.Errorf("init checkpoint table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// DB exposes the underlying handle so collaborators (session store) can share
// one embedded database file.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) AddMessage(ctx context.Context, conversationID string, message *schema.Message) error {
	b, err := json.Marshal(message)
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to marshal message")
		return fmt.Errorf("marshal message: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (conversation_id, message) VALUES (?, ?)`,
		conversationID, string(b),
	)
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to insert checkpoint row")
		return errx.WrapStore(err)
	}
	return nil
}

func (s *SQLiteStore) LoadHistory(ctx context.Context, conversationID string) (*model.ConversationHistory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message FROM checkpoints WHERE conversation_id = ? ORDER BY id`,
		conversationID,
	)
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to load conversation history")
		return nil, errx.WrapStore(err)
	}
	defer rows.Close()

	msgs := make([]*schema.Message, 0)
	for i := 0; rows.Next(); i++ {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, errx.WrapStore(err)
		}
		var m schema.Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			logx.Error().Err(err).Str("conversation_id", conversationID).Int("index", i).Msg("failed to unmarshal message")
			return nil, fmt.Errorf("unmarshal message at index %d: %w", i, err)
		}
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapStore(err)
	}

	return &model.ConversationHistory{ConversationID: conversationID, Messages: msgs}, nil
}

func (s *SQLiteStore) ClearHistory(ctx context.Context, conversationID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM checkpoints WHERE conversation_id = ?`, conversationID,
	); err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to clear conversation history")
		return errx.WrapStore(err)
	}
	return nil
}

func (s *SQLiteStore) MessageCount(ctx context.Context, conversationID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM checkpoints WHERE conversation_id = ?`, conversationID,
	).Scan(&n)
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to count messages")
		return 0, errx.WrapStore(err)
	}
	return n, nil
}

var _ model.CheckpointRepository = (*SQLiteStore)(nil)
