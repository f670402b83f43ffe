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

// Package rowstore defines the source-of-truth storage contract for
// conversational turns: the row store is the durable record from which
// the approximate-nearest-neighbor index can always be rebuilt.
package rowstore

import (
	"context"
	"iter"
)

// Turn is a single prompt/answer exchange persisted for a session.
type Turn struct {
	ID          int64
	SessionID   string
	PromptText  string
	AnswerText  string
	Timestamp   float64 // unix seconds, wall clock
	Embedding   []float32
	SummaryText string
}

// Store is the source of truth for turns. Every implementation must
// make Drop and IsDropped consistent: once a session is dropped, new
// inserts under the same session id are treated as a fresh collection
// (the Python original's lazy-collection semantics), but stale ANN
// entries referencing the dropped session must still be filtered out
// by callers until the index itself is rebuilt or pruned.
type Store interface {
	// Insert appends a turn and returns its row id.
	Insert(ctx context.Context, sessionID, prompt, answer string, embedding []float32) (int64, error)

	// BySession returns up to limit most recent turns for a session,
	// ordered oldest first. limit <= 0 means no limit.
	BySession(ctx context.Context, sessionID string, limit int) ([]Turn, error)

	// ByIDs returns the turns matching ids that also belong to
	// sessionID, in no particular order. IDs that don't exist or
	// belong to a different session are silently omitted — this is
	// the mandatory post-filter that keeps a dropped/foreign session's
	// orphaned ANN entries from leaking into another session's results.
	ByIDs(ctx context.Context, ids []int64, sessionID string) ([]Turn, error)

	// AllEmbeddings iterates every stored (id, embedding-bytes) pair,
	// for warm-rebuilding the ANN index at startup.
	AllEmbeddings(ctx context.Context) (iter.Seq2[int64, []byte], error)

	// Drop marks a session's turns as removed and records it in the
	// dropped-collection marker table. Returns false if the session
	// had no turns to begin with. The ANN index is never pruned by
	// Drop; callers must rely on the session-id post-filter.
	Drop(ctx context.Context, sessionID string) (bool, error)

	// SizeOf returns the number of turns currently stored for a session.
	SizeOf(ctx context.Context, sessionID string) (int, error)

	// IsDropped reports whether a session currently carries a
	// dropped-collection marker with no turns re-inserted since.
	IsDropped(ctx context.Context, sessionID string) (bool, error)

	Close() error
}
