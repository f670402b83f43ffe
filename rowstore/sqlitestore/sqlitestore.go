// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package sqlitestore is the durable rowstore.Store backend: a single
// SQLite database file accessed through the pure-Go modernc.org/sqlite
// driver, in WAL mode for concurrent readers against a single writer.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"iter"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hsmalley/ghostwire/pkg/errors"
	"github.com/hsmalley/ghostwire/rowstore"
)

// Config configures the SQLite-backed row store.
type Config struct {
	// Path is the database file path, or ":memory:" for an ephemeral
	// in-process database (used by tests that want the SQL code paths
	// exercised without touching disk).
	Path string

	// MaxOpenConns bounds the connection pool. SQLite's single-writer
	// model means this mostly governs reader concurrency.
	MaxOpenConns int
}

// DefaultConfig returns sensible pool defaults.
func DefaultConfig() *Config {
	return &Config{
		Path:         "ghostwire.db",
		MaxOpenConns: 5,
	}
}

// Store implements rowstore.Store over a SQLite database.
type Store struct {
	db *sql.DB
}

// New opens (and migrates) the SQLite row store.
func New(config *Config) (*Store, error) {
	if config == nil {
		config = DefaultConfig()
	}

	dsn := config.Path
	if dsn != ":memory:" {
		dsn = fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", dsn)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.ErrStorageConnection.Wrap(err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.ErrStorageConnection.Wrap(err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to migrate row store schema")
	}

	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			prompt_text TEXT NOT NULL,
			answer_text TEXT NOT NULL,
			timestamp REAL NOT NULL,
			embedding BLOB,
			summary_text TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_turns_session_id ON turns(session_id);
		CREATE INDEX IF NOT EXISTS idx_turns_timestamp ON turns(timestamp);

		CREATE TABLE IF NOT EXISTS dropped_collections (
			session_id TEXT PRIMARY KEY,
			dropped_at REAL NOT NULL
		);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) Insert(ctx context.Context, sessionID, prompt, answer string, embedding []float32) (int64, error) {
	if sessionID == "" {
		return 0, errors.ErrSessionRequired
	}

	now := nowUnix()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (session_id, prompt_text, answer_text, timestamp, embedding) VALUES (?, ?, ?, ?, ?)`,
		sessionID, prompt, answer, now, encodeEmbedding(embedding))
	if err != nil {
		return 0, errors.ErrStorageConnection.Wrap(err)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM dropped_collections WHERE session_id = ?`, sessionID); err != nil {
		return 0, errors.ErrStorageConnection.Wrap(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.ErrStorageConnection.Wrap(err)
	}
	return id, nil
}

func (s *Store) BySession(ctx context.Context, sessionID string, limit int) ([]rowstore.Turn, error) {
	// limit > 0 means the most recent limit turns, so the query must
	// take the newest rows first (id DESC) before the Go side reverses
	// them back to the oldest-first order the interface promises.
	order := "ASC"
	args := []interface{}{sessionID}
	query := `SELECT id, session_id, prompt_text, answer_text, timestamp, embedding, summary_text
		FROM turns WHERE session_id = ? ORDER BY id %s`
	if limit > 0 {
		order = "DESC"
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	query = fmt.Sprintf(query, order)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.ErrStorageConnection.Wrap(err)
	}
	defer rows.Close()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}
	if limit > 0 {
		for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
			turns[i], turns[j] = turns[j], turns[i]
		}
	}
	return turns, nil
}

func (s *Store) ByIDs(ctx context.Context, ids []int64, sessionID string) ([]rowstore.Turn, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]byte, 0, len(ids)*2)
	args := make([]interface{}, 0, len(ids)+1)
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, id)
	}
	args = append(args, sessionID)

	query := fmt.Sprintf(`SELECT id, session_id, prompt_text, answer_text, timestamp, embedding, summary_text
		FROM turns WHERE id IN (%s) AND session_id = ?`, string(placeholders))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.ErrStorageConnection.Wrap(err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

func (s *Store) AllEmbeddings(ctx context.Context) (iter.Seq2[int64, []byte], error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM turns ORDER BY id ASC`)
	if err != nil {
		return nil, errors.ErrStorageConnection.Wrap(err)
	}

	return func(yield func(int64, []byte) bool) {
		defer rows.Close()
		for rows.Next() {
			var id int64
			var blob []byte
			if err := rows.Scan(&id, &blob); err != nil {
				return
			}
			if !yield(id, blob) {
				return
			}
		}
	}, nil
}

func (s *Store) Drop(ctx context.Context, sessionID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE session_id = ?`, sessionID)
	if err != nil {
		return false, errors.ErrStorageConnection.Wrap(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.ErrStorageConnection.Wrap(err)
	}
	if n == 0 {
		return false, nil
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dropped_collections (session_id, dropped_at) VALUES (?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET dropped_at = excluded.dropped_at`,
		sessionID, nowUnix())
	if err != nil {
		return false, errors.ErrStorageConnection.Wrap(err)
	}

	return true, nil
}

func (s *Store) SizeOf(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns WHERE session_id = ?`, sessionID).Scan(&count)
	if err != nil {
		return 0, errors.ErrStorageConnection.Wrap(err)
	}
	return count, nil
}

func (s *Store) IsDropped(ctx context.Context, sessionID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM dropped_collections WHERE session_id = ?`, sessionID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.ErrStorageConnection.Wrap(err)
	}
	return true, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func scanTurns(rows *sql.Rows) ([]rowstore.Turn, error) {
	var out []rowstore.Turn
	for rows.Next() {
		var t rowstore.Turn
		var blob []byte
		if err := rows.Scan(&t.ID, &t.SessionID, &t.PromptText, &t.AnswerText, &t.Timestamp, &blob, &t.SummaryText); err != nil {
			return nil, errors.ErrStorageConnection.Wrap(err)
		}
		t.Embedding = decodeEmbedding(blob)
		out = append(out, t)
	}
	return out, rows.Err()
}

func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	n := len(buf) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}
