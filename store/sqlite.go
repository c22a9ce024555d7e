/*
 * Copyright (C) 2025 Simone Pezzano
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/theirish81/chatgraph"
	_ "modernc.org/sqlite"
)

var _ chatgraph.Checkpointer = &SQLite{}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS messages (
	thread_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE(thread_id, seq)
);`

// SQLite is a Checkpointer storing one row per message in a SQLite file
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and makes sure the schema exists
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection serializes writers and keeps :memory: databases alive
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, threadID string) (chatgraph.Messages, bool, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, role, content, created_at FROM messages WHERE thread_id = ? ORDER BY seq", threadID)
	if err != nil {
		return nil, false, fmt.Errorf("query failed: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()
	messages := chatgraph.Messages{}
	for rows.Next() {
		var msg chatgraph.Message
		var role, createdAt string
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &createdAt); err != nil {
			return nil, false, fmt.Errorf("scan failed: %w", err)
		}
		msg.Role = chatgraph.Role(role)
		if msg.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, false, fmt.Errorf("invalid timestamp for message %s: %w", msg.ID, err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("rows iteration error: %w", err)
	}
	return messages, len(messages) > 0, nil
}

// Put appends the messages the store does not have yet. Rows are never updated, and a history that does not
// start with the stored messages is rejected with ErrConflict.
func (s *SQLite) Put(ctx context.Context, threadID string, messages chatgraph.Messages) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()
	storedIDs, err := s.storedIDs(ctx, tx, threadID)
	if err != nil {
		return err
	}
	newMessages, err := tail(messages, storedIDs)
	if err != nil {
		return err
	}
	stored := len(storedIDs)
	for i, msg := range newMessages {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO messages (thread_id, seq, id, role, content, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			threadID, stored+i, msg.ID, string(msg.Role), msg.Content, msg.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("insert failed: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) storedIDs(ctx context.Context, tx *sql.Tx, threadID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, "SELECT id FROM messages WHERE thread_id = ? ORDER BY seq", threadID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLite) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT thread_id FROM messages ORDER BY thread_id")
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}
