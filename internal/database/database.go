// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/ppotepa/torrent-bot/internal/search"
)

const schema = `
CREATE TABLE IF NOT EXISTS search_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	operator TEXT NOT NULL,
	query TEXT NOT NULL,
	mode TEXT NOT NULL,
	result_count INTEGER NOT NULL,
	signature TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_search_history_operator
	ON search_history (operator, created_at DESC);

CREATE TABLE IF NOT EXISTS notified_completions (
	task_id TEXT PRIMARY KEY,
	notified_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// DB wraps the sqlite store holding search history and the completion
// monitor's notified-set.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// single writer keeps modernc sqlite happy under concurrency
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL; PRAGMA foreign_keys = ON;`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply sqlite pragmas: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	log.Debug().Str("module", "database").Str("path", path).Msg("database ready")
	return &DB{conn: conn}, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

// RecordSearch persists one search's metadata. Result payloads are never
// stored.
func (d *DB) RecordSearch(ctx context.Context, entry search.HistoryEntry) error {
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO search_history (operator, query, mode, result_count, signature)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.Operator, entry.Query, entry.Mode, entry.ResultCount, entry.Signature,
	)
	if err != nil {
		return fmt.Errorf("record search: %w", err)
	}
	return nil
}

// RecentSearches returns the newest history entries, most recent first. An
// empty operator returns entries for everyone.
func (d *DB) RecentSearches(ctx context.Context, operator string, limit int) ([]search.HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT operator, query, mode, result_count, signature, created_at
		FROM search_history`
	args := []any{}
	if operator != "" {
		query += ` WHERE operator = ?`
		args = append(args, operator)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query search history: %w", err)
	}
	defer rows.Close()

	var entries []search.HistoryEntry
	for rows.Next() {
		var entry search.HistoryEntry
		var createdAt time.Time
		if err := rows.Scan(&entry.Operator, &entry.Query, &entry.Mode,
			&entry.ResultCount, &entry.Signature, &createdAt); err != nil {
			return nil, fmt.Errorf("scan search history row: %w", err)
		}
		entry.CreatedAt = createdAt
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// WasNotified reports whether a completion notification already went out for
// this task.
func (d *DB) WasNotified(ctx context.Context, taskID string) (bool, error) {
	var one int
	err := d.conn.QueryRowContext(ctx,
		`SELECT 1 FROM notified_completions WHERE task_id = ?`, taskID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup notified completion: %w", err)
	}
	return true, nil
}

// MarkNotified records that a completion notification went out. Marking the
// same task twice is a no-op.
func (d *DB) MarkNotified(ctx context.Context, taskID string) error {
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO notified_completions (task_id) VALUES (?)
		 ON CONFLICT (task_id) DO NOTHING`, taskID,
	)
	if err != nil {
		return fmt.Errorf("mark completion notified: %w", err)
	}
	return nil
}
