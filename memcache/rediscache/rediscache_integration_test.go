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

//go:build integration
// +build integration

package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsmalley/ghostwire/memcache"
)

// Run Redis container before tests:
// docker run -d -p 6381:6379 --name ghostwire-redis redis:7-alpine

func getTestConfig() *Config {
	cfg := DefaultConfig()
	cfg.Address = "localhost:6381"
	return cfg
}

func TestRedisCache_Integration(t *testing.T) {
	c, err := New(getTestConfig())
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()

	err = c.PutExact(ctx, "sess-int", "hello", "hi there", "ctx", memcache.DefaultExactTTL)
	assert.NoError(t, err)

	entry, hit, err := c.GetExact(ctx, "sess-int", "hello")
	assert.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "hi there", entry.Response)

	vec := []float32{1, 0, 0, 0}
	err = c.PutSimilar(ctx, "sess-int", "what is go", vec, "go is a language", "", 0.9, time.Minute)
	assert.NoError(t, err)

	nearVec := []float32{0.99, 0.01, 0, 0}
	entry, hit, err = c.GetSimilar(ctx, "sess-int", "what's go", nearVec, 0.9)
	assert.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "go is a language", entry.Response)

	stats, err := c.Stats(ctx)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, stats.TotalEntries, 2)
	assert.Equal(t, stats.TotalEntries, stats.ActiveEntries)

	// A caller-specified threshold above the entry's stored threshold
	// must win: max(caller, stored), not stored overriding caller.
	permissiveVec := []float32{1, 0}
	err = c.PutSimilar(ctx, "sess-int", "permissive entry", permissiveVec, "permissive reply", "", 0.5, time.Minute)
	assert.NoError(t, err)

	partialMatch := []float32{0.8, 0.6}
	_, hit, err = c.GetSimilar(ctx, "sess-int", "permissive query", partialMatch, 0.9)
	assert.NoError(t, err)
	assert.False(t, hit, "caller's higher 0.9 threshold should override the stored 0.5")
}
