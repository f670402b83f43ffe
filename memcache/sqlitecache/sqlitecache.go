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

// Package sqlitecache implements memcache.Cache over a SQLite database,
// replaying the two-table layout of the Python cache service: a
// session-scoped exact_response_cache table and a similarity-search
// cache table storing query embeddings as blobs.
package sqlitecache

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hsmalley/ghostwire/memcache"
	"github.com/hsmalley/ghostwire/pkg/errors"
	"github.com/hsmalley/ghostwire/vectorutil"
)

// Config configures the SQLite-backed cache.
type Config struct {
	// Path is the SQLite database file, or ":memory:" for an ephemeral
	// cache. Defaults to "ghostwire_cache.db".
	Path string

	// MaxScanPerSession bounds how many recent similarity-cache rows a
	// GetSimilar call will scan, mirroring the Python service's
	// LIMIT 100.
	MaxScanPerSession int
}

// DefaultConfig mirrors the Python cache service's own defaults.
func DefaultConfig() *Config {
	return &Config{Path: "ghostwire_cache.db", MaxScanPerSession: 100}
}

// Cache is the SQLite-backed memcache.Cache implementation.
type Cache struct {
	db  *sql.DB
	cfg *Config
}

// New opens (creating if necessary) the cache database and migrates its
// schema.
func New(cfg *Config) (*Cache, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxScanPerSession <= 0 {
		cfg.MaxScanPerSession = 100
	}

	dsn := cfg.Path
	if dsn != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.Path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open cache database")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to connect to cache database")
	}

	c := &Cache{db: db, cfg: cfg}
	if err := c.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS exact_response_cache (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			query TEXT NOT NULL,
			response TEXT NOT NULL,
			context TEXT,
			created_at REAL NOT NULL,
			expires_at REAL NOT NULL,
			UNIQUE(session_id, query)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_exact_query ON exact_response_cache(session_id, query)`,
		`CREATE INDEX IF NOT EXISTS idx_exact_expires_at ON exact_response_cache(expires_at)`,
		`CREATE TABLE IF NOT EXISTS cache (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			query_embedding BLOB NOT NULL,
			response TEXT NOT NULL,
			context TEXT,
			similarity_threshold REAL DEFAULT 0.9,
			created_at REAL NOT NULL,
			expires_at REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cache_session ON cache(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_cache_expires_at ON cache(expires_at)`,
	}
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to migrate cache schema")
		}
	}
	return nil
}

// Close closes the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Stats implements memcache.Cache, combining row counts from both the
// exact and similarity cache tables.
func (c *Cache) Stats(ctx context.Context) (memcache.Stats, error) {
	now := nowUnix()
	var stats memcache.Stats

	rows := []struct {
		table string
	}{{"exact_response_cache"}, {"cache"}}

	for _, t := range rows {
		var total, expired int
		if err := c.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, t.table)).Scan(&total); err != nil {
			return memcache.Stats{}, errors.Wrap(err, "failed to count cache entries")
		}
		if err := c.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE expires_at < ?`, t.table), now).Scan(&expired); err != nil {
			return memcache.Stats{}, errors.Wrap(err, "failed to count expired cache entries")
		}
		stats.TotalEntries += total
		stats.ExpiredEntries += expired
	}
	stats.ActiveEntries = stats.TotalEntries - stats.ExpiredEntries
	return stats, nil
}

func nowUnix() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// GetExact implements memcache.Cache.
func (c *Cache) GetExact(ctx context.Context, sessionID, query string) (*memcache.Entry, bool, error) {
	now := nowUnix()
	if _, err := c.db.ExecContext(ctx, `DELETE FROM exact_response_cache WHERE expires_at < ?`, now); err != nil {
		return nil, false, errors.Wrap(err, "failed to purge expired exact cache entries")
	}

	row := c.db.QueryRowContext(ctx,
		`SELECT response, context FROM exact_response_cache WHERE session_id = ? AND query = ? AND expires_at > ?`,
		sessionID, query, now)

	var response string
	var cachedContext sql.NullString
	if err := row.Scan(&response, &cachedContext); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "failed to read exact cache entry")
	}

	return &memcache.Entry{Response: response, Context: cachedContext.String, Similarity: 1.0}, true, nil
}

// PutExact implements memcache.Cache.
func (c *Cache) PutExact(ctx context.Context, sessionID, query, response, context string, ttl time.Duration) error {
	now := nowUnix()
	expiresAt := now + ttl.Seconds()

	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO exact_response_cache (session_id, query, response, context, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, query, response, context, now, expiresAt)
	if err != nil {
		return errors.ErrCacheWriteFailed.Wrap(err)
	}
	return nil
}

// GetSimilar implements memcache.Cache.
func (c *Cache) GetSimilar(ctx context.Context, sessionID, query string, queryVector []float32, minThreshold float32) (*memcache.Entry, bool, error) {
	now := nowUnix()
	if _, err := c.db.ExecContext(ctx, `DELETE FROM cache WHERE expires_at < ?`, now); err != nil {
		return nil, false, errors.Wrap(err, "failed to purge expired similarity cache entries")
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT query_embedding, response, context, similarity_threshold
		 FROM cache WHERE session_id = ? AND expires_at > ? ORDER BY created_at DESC LIMIT ?`,
		sessionID, now, c.cfg.MaxScanPerSession)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to scan similarity cache")
	}
	defer rows.Close()

	for rows.Next() {
		var blob []byte
		var response string
		var cachedContext sql.NullString
		var threshold sql.NullFloat64
		if err := rows.Scan(&blob, &response, &cachedContext, &threshold); err != nil {
			return nil, false, errors.Wrap(err, "failed to decode similarity cache row")
		}

		stored := decodeFloat32s(blob)
		similarity := float32(vectorutil.CosineSimilarity(queryVector, stored))

		want := minThreshold
		if threshold.Valid && float32(threshold.Float64) > want {
			want = float32(threshold.Float64)
		}

		if similarity >= want {
			return &memcache.Entry{Response: response, Context: cachedContext.String, Similarity: similarity}, true, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, false, errors.Wrap(err, "failed to iterate similarity cache")
	}

	return nil, false, nil
}

// PutSimilar implements memcache.Cache.
func (c *Cache) PutSimilar(ctx context.Context, sessionID, query string, queryVector []float32, response, context string, threshold float32, ttl time.Duration) error {
	now := nowUnix()
	expiresAt := now + ttl.Seconds()
	blob := encodeFloat32s(queryVector)

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO cache (session_id, query_embedding, response, context, similarity_threshold, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, blob, response, context, threshold, now, expiresAt)
	if err != nil {
		return errors.ErrCacheWriteFailed.Wrap(err)
	}
	return nil
}

func encodeFloat32s(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeFloat32s(buf []byte) []float32 {
	n := len(buf) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}
