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

// Package memstore is an in-memory rowstore.Store implementation,
// suitable for tests and single-process deployments where durability
// across restarts is not required.
package memstore

import (
	"context"
	"encoding/binary"
	"iter"
	"math"
	"sort"
	"sync"

	"github.com/hsmalley/ghostwire/pkg/errors"
	"github.com/hsmalley/ghostwire/rowstore"
)

// Store is a thread-safe, map-backed rowstore.Store.
type Store struct {
	mu       sync.RWMutex
	turns    map[int64]rowstore.Turn
	bySess   map[string][]int64 // session -> ordered turn ids (insertion order)
	dropped  map[string]bool
	nextID   int64
}

// New creates an empty in-memory row store.
func New() *Store {
	return &Store{
		turns:   make(map[int64]rowstore.Turn),
		bySess:  make(map[string][]int64),
		dropped: make(map[string]bool),
	}
}

func (s *Store) Insert(ctx context.Context, sessionID, prompt, answer string, embedding []float32) (int64, error) {
	if sessionID == "" {
		return 0, errors.ErrSessionRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID

	s.turns[id] = rowstore.Turn{
		ID:         id,
		SessionID:  sessionID,
		PromptText: prompt,
		AnswerText: answer,
		Embedding:  embedding,
	}
	s.bySess[sessionID] = append(s.bySess[sessionID], id)
	delete(s.dropped, sessionID)

	return id, nil
}

func (s *Store) BySession(ctx context.Context, sessionID string, limit int) ([]rowstore.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.bySess[sessionID]
	if limit > 0 && len(ids) > limit {
		ids = ids[len(ids)-limit:]
	}

	out := make([]rowstore.Turn, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.turns[id])
	}
	return out, nil
}

func (s *Store) ByIDs(ctx context.Context, ids []int64, sessionID string) ([]rowstore.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]rowstore.Turn, 0, len(ids))
	for _, id := range ids {
		t, ok := s.turns[id]
		if !ok || t.SessionID != sessionID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) AllEmbeddings(ctx context.Context) (iter.Seq2[int64, []byte], error) {
	s.mu.RLock()
	ids := make([]int64, 0, len(s.turns))
	for id := range s.turns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	s.mu.RUnlock()

	return func(yield func(int64, []byte) bool) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		for _, id := range ids {
			t, ok := s.turns[id]
			if !ok {
				continue
			}
			if !yield(id, encodeEmbedding(t.Embedding)) {
				return
			}
		}
	}, nil
}

func (s *Store) Drop(ctx context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, ok := s.bySess[sessionID]
	if !ok || len(ids) == 0 {
		return false, nil
	}

	for _, id := range ids {
		delete(s.turns, id)
	}
	delete(s.bySess, sessionID)
	s.dropped[sessionID] = true
	return true, nil
}

func (s *Store) SizeOf(ctx context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bySess[sessionID]), nil
}

func (s *Store) IsDropped(ctx context.Context, sessionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped[sessionID], nil
}

func (s *Store) Close() error {
	return nil
}

// encodeEmbedding mirrors the little-endian float32 blob layout used by
// the SQLite-backed store so AllEmbeddings callers (the ANN warm
// rebuild path) don't need to special-case the in-memory backend.
func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
