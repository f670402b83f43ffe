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

// Package rediscache implements memcache.Cache over Redis, for
// deployments that run more than one GhostWire replica and want a
// shared cache instead of one SQLite file per process. Exact entries
// are single keys; similarity entries are tracked per session in a
// sorted set so GetSimilar can scan only that session's recent
// candidates, mirroring the SQLite backend's session-scoped scan.
package rediscache

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hsmalley/ghostwire/memcache"
	gwerrors "github.com/hsmalley/ghostwire/pkg/errors"
	"github.com/hsmalley/ghostwire/vectorutil"
)

// Config configures the Redis connection.
type Config struct {
	Address           string
	Password          string
	DB                int
	PoolSize          int
	DialTimeout       time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	MaxScanPerSession int64
}

// DefaultConfig returns sane defaults for a local Redis instance.
func DefaultConfig() *Config {
	return &Config{
		Address:           "localhost:6379",
		DB:                0,
		PoolSize:          10,
		DialTimeout:       5 * time.Second,
		ReadTimeout:       3 * time.Second,
		WriteTimeout:      3 * time.Second,
		MaxScanPerSession: 100,
	}
}

// Cache is the Redis-backed memcache.Cache implementation.
type Cache struct {
	client *redis.Client
	cfg    *Config
}

// New connects to Redis and returns a ready-to-use Cache.
func New(cfg *Config) (*Cache, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxScanPerSession <= 0 {
		cfg.MaxScanPerSession = 100
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, gwerrors.Wrap(err, "failed to connect to Redis cache")
	}

	return &Cache{client: client, cfg: cfg}, nil
}

// Close closes the underlying Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

func exactKey(sessionID, query string) string {
	return fmt.Sprintf("ghostwire:exact:%s:%s", sessionID, query)
}

func similarSetKey(sessionID string) string {
	return fmt.Sprintf("ghostwire:similar-set:%s", sessionID)
}

func similarEntryKey(sessionID, id string) string {
	return fmt.Sprintf("ghostwire:similar:%s:%s", sessionID, id)
}

type similarPayload struct {
	Embedding []byte
	Response  string
	Context   string
	Threshold float32
}

// GetExact implements memcache.Cache.
func (c *Cache) GetExact(ctx context.Context, sessionID, query string) (*memcache.Entry, bool, error) {
	data, err := c.client.Get(ctx, exactKey(sessionID, query)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, gwerrors.Wrap(err, "failed to read exact cache entry")
	}

	var e memcache.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false, gwerrors.Wrap(err, "failed to decode exact cache entry")
	}
	e.Similarity = 1.0
	return &e, true, nil
}

// PutExact implements memcache.Cache.
func (c *Cache) PutExact(ctx context.Context, sessionID, query, response, context string, ttl time.Duration) error {
	data, err := json.Marshal(memcache.Entry{Response: response, Context: context})
	if err != nil {
		return gwerrors.ErrCacheWriteFailed.Wrap(err)
	}
	if err := c.client.Set(ctx, exactKey(sessionID, query), data, ttl).Err(); err != nil {
		return gwerrors.ErrCacheWriteFailed.Wrap(err)
	}
	return nil
}

// GetSimilar implements memcache.Cache.
//
// Redis has no native vector search in the client this package depends
// on, so candidates are fetched by session and scored with
// vectorutil.CosineSimilarity in-process, exactly as the SQLite backend
// does — the sorted set only bounds how many candidates are fetched per
// lookup.
func (c *Cache) GetSimilar(ctx context.Context, sessionID, query string, queryVector []float32, minThreshold float32) (*memcache.Entry, bool, error) {
	ids, err := c.client.ZRevRangeByScore(ctx, similarSetKey(sessionID), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "+inf",
		Count: c.cfg.MaxScanPerSession,
	}).Result()
	if err != nil {
		return nil, false, gwerrors.Wrap(err, "failed to list similarity cache candidates")
	}

	for _, id := range ids {
		data, err := c.client.Get(ctx, similarEntryKey(sessionID, id)).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // expired between the set scan and the fetch
			}
			return nil, false, gwerrors.Wrap(err, "failed to read similarity cache candidate")
		}

		var p similarPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, false, gwerrors.Wrap(err, "failed to decode similarity cache candidate")
		}

		stored := decodeFloat32s(p.Embedding)
		similarity := float32(vectorutil.CosineSimilarity(queryVector, stored))

		want := minThreshold
		if p.Threshold > want {
			want = p.Threshold
		}

		if similarity >= want {
			return &memcache.Entry{Response: p.Response, Context: p.Context, Similarity: similarity}, true, nil
		}
	}

	return nil, false, nil
}

// PutSimilar implements memcache.Cache.
func (c *Cache) PutSimilar(ctx context.Context, sessionID, query string, queryVector []float32, response, context string, threshold float32, ttl time.Duration) error {
	id := fmt.Sprintf("%d", time.Now().UnixNano())
	data, err := json.Marshal(similarPayload{
		Embedding: encodeFloat32s(queryVector),
		Response:  response,
		Context:   context,
		Threshold: threshold,
	})
	if err != nil {
		return gwerrors.ErrCacheWriteFailed.Wrap(err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, similarEntryKey(sessionID, id), data, ttl)
	pipe.ZAdd(ctx, similarSetKey(sessionID), redis.Z{Score: float64(time.Now().UnixNano()), Member: id})
	pipe.Expire(ctx, similarSetKey(sessionID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return gwerrors.ErrCacheWriteFailed.Wrap(err)
	}
	return nil
}

// Stats implements memcache.Cache. Redis expires keys on its own, so
// every key a SCAN turns up is by definition still active; ExpiredEntries
// is always zero here, unlike the SQLite backend's lazy-purge-on-lookup.
func (c *Cache) Stats(ctx context.Context) (memcache.Stats, error) {
	var total int
	for _, pattern := range []string{"ghostwire:exact:*", "ghostwire:similar:*"} {
		n, err := c.countKeys(ctx, pattern)
		if err != nil {
			return memcache.Stats{}, err
		}
		total += n
	}
	return memcache.Stats{TotalEntries: total, ActiveEntries: total}, nil
}

func (c *Cache) countKeys(ctx context.Context, pattern string) (int, error) {
	var cursor uint64
	var count int
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return 0, gwerrors.Wrap(err, "failed to scan cache keys")
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return count, nil
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
