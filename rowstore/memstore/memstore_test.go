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

package memstore

import (
	"context"
	"testing"
)

func TestInsertAndBySession(t *testing.T) {
	s := New()
	ctx := context.Background()

	id, err := s.Insert(ctx, "sess-1", "hello", "hi there", []float32{1, 0})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	turns, err := s.BySession(ctx, "sess-1", 0)
	if err != nil {
		t.Fatalf("BySession failed: %v", err)
	}
	if len(turns) != 1 || turns[0].PromptText != "hello" {
		t.Fatalf("unexpected turns: %+v", turns)
	}
}

func TestInsertRequiresSessionID(t *testing.T) {
	s := New()
	if _, err := s.Insert(context.Background(), "", "x", "y", nil); err == nil {
		t.Fatal("expected error for empty session id")
	}
}

func TestByIDsFiltersForeignSession(t *testing.T) {
	s := New()
	ctx := context.Background()

	idA, _ := s.Insert(ctx, "sess-a", "a", "a-answer", []float32{1})
	idB, _ := s.Insert(ctx, "sess-b", "b", "b-answer", []float32{1})

	turns, err := s.ByIDs(ctx, []int64{idA, idB}, "sess-a")
	if err != nil {
		t.Fatalf("ByIDs failed: %v", err)
	}
	if len(turns) != 1 || turns[0].SessionID != "sess-a" {
		t.Fatalf("expected only sess-a turns, got %+v", turns)
	}
}

func TestDropAndSizeOf(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.Insert(ctx, "sess-1", "a", "b", nil)
	s.Insert(ctx, "sess-1", "c", "d", nil)

	ok, err := s.Drop(ctx, "sess-1")
	if err != nil || !ok {
		t.Fatalf("expected drop to succeed, got ok=%v err=%v", ok, err)
	}

	size, _ := s.SizeOf(ctx, "sess-1")
	if size != 0 {
		t.Fatalf("expected size 0 after drop, got %d", size)
	}

	dropped, _ := s.IsDropped(ctx, "sess-1")
	if !dropped {
		t.Fatal("expected session to be marked dropped")
	}
}

func TestDropEmptySessionReturnsFalse(t *testing.T) {
	s := New()
	ok, err := s.Drop(context.Background(), "never-existed")
	if err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if ok {
		t.Fatal("expected false for dropping a session with no turns")
	}
}

func TestInsertAfterDropClearsMarker(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.Insert(ctx, "sess-1", "a", "b", nil)
	s.Drop(ctx, "sess-1")
	s.Insert(ctx, "sess-1", "fresh", "start", nil)

	dropped, _ := s.IsDropped(ctx, "sess-1")
	if dropped {
		t.Fatal("expected dropped marker cleared after re-insert")
	}
}

func TestAllEmbeddingsIterates(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.Insert(ctx, "sess-1", "a", "b", []float32{1, 2})
	s.Insert(ctx, "sess-2", "c", "d", []float32{3, 4})

	seq, err := s.AllEmbeddings(ctx)
	if err != nil {
		t.Fatalf("AllEmbeddings failed: %v", err)
	}

	count := 0
	for id, blob := range seq {
		if id == 0 || len(blob) == 0 {
			t.Fatalf("unexpected entry id=%d blob=%v", id, blob)
		}
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 embeddings, got %d", count)
	}
}
