// Package session implements the conversation metadata table (create, list,
// rename, delete). The chat core never requires a session row to exist: a
// conversation id used on the chat endpoint is valid on its own.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/webchat-agent/server/internal/core/errx"
	logx "github.com/webchat-agent/server/pkg/logger"
)

const sessionSchema = `
CREATE TABLE IF NOT EXISTS sessions (
    id         TEXT PRIMARY KEY,
    name       TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

// Session is one conversation's metadata record.
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Store provides CRUD over the sessions table.
type Store struct {
	db *sql.DB
}

// NewStore ensures the sessions table exists on the shared embedded database.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(sessionSchema); err != nil {
		return nil, fmt.Errorf("init session table: %w", err)
	}
	return &Store{db: db}, nil
}

// Create inserts a new session with a generated id and returns it.
func (s *Store) Create(ctx context.Context, name string) (*Session, error) {
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, name) VALUES (?, ?)`, id, name,
	); err != nil {
		logx.Error().Err(err).Str("session_id", id).Msg("failed to insert session")
		return nil, errx.WrapStore(err)
	}
	return s.Get(ctx, id)
}

// Get returns the session with the given id.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.Name, &sess.CreatedAt)
	if err != nil {
		return nil, errx.WrapStore(err)
	}
	return &sess, nil
}

// List returns all sessions, newest first.
func (s *Store) List(ctx context.Context) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM sessions ORDER BY created_at DESC, id`,
	)
	if err != nil {
		logx.Error().Err(err).Msg("failed to list sessions")
		return nil, errx.WrapStore(err)
	}
	defer rows.Close()

	sessions := make([]*Session, 0)
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Name, &sess.CreatedAt); err != nil {
			return nil, errx.WrapStore(err)
		}
		sessions = append(sessions, &sess)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapStore(err)
	}
	return sessions, nil
}

// Rename updates the session name.
func (s *Store) Rename(ctx context.Context, id, name string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET name = ? WHERE id = ?`, name, id,
	); err != nil {
		logx.Error().Err(err).Str("session_id", id).Msg("failed to rename session")
		return errx.WrapStore(err)
	}
	return nil
}

// Delete removes the session record.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = ?`, id,
	); err != nil {
		logx.Error().Err(err).Str("session_id", id).Msg("failed to delete session")
		return errx.WrapStore(err)
	}
	return nil
}
