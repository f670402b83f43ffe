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

package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestEmbedEmptyTextReturnsEpsilonVector(t *testing.T) {
	o := New(&Config{Dim: 4, Models: []string{"m"}, LocalURL: "http://unused"})
	vec, err := o.Embed(context.Background(), "")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 4 {
		t.Fatalf("expected dim 4, got %d", len(vec))
	}
	for _, f := range vec {
		if f == 0 {
			t.Fatalf("expected no zero components in the epsilon fallback: %v", vec)
		}
	}
}

func TestEmbedSucceedsOnFirstModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{1, 2, 3}})
	}))
	defer srv.Close()

	o := New(&Config{Dim: 3, Models: []string{"nomic"}, LocalURL: srv.URL})
	vec, err := o.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected dim 3, got %d", len(vec))
	}
}

func TestEmbedFallsThroughToSecondModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "works" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{1, 0}})
	}))
	defer srv.Close()

	o := New(&Config{Dim: 2, Models: []string{"broken", "works"}, LocalURL: srv.URL})
	vec, err := o.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 2 {
		t.Fatalf("expected dim 2, got %d", len(vec))
	}
}

func TestEmbedRemembersStickyModel(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		json.NewDecoder(r.Body).Decode(&req)
		calls = append(calls, req.Model)
		if req.Model != "good" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{1, 0}})
	}))
	defer srv.Close()

	o := New(&Config{Dim: 2, Models: []string{"bad", "good"}, LocalURL: srv.URL})
	if _, err := o.Embed(context.Background(), "first"); err != nil {
		t.Fatalf("first Embed failed: %v", err)
	}
	firstCallCount := len(calls)
	if _, err := o.Embed(context.Background(), "second"); err != nil {
		t.Fatalf("second Embed failed: %v", err)
	}

	// After the first call sticks to "good", the second call should try
	// "good" before falling back to "bad".
	if calls[firstCallCount] != "good" {
		t.Fatalf("expected the sticky model to be tried, calls: %v", calls)
	}
}

func TestEmbedBoundsConcurrentUpstreamCalls(t *testing.T) {
	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		<-release

		mu.Lock()
		inFlight--
		mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{1, 0}})
	}))
	defer srv.Close()

	o := New(&Config{Dim: 2, Models: []string{"m"}, LocalURL: srv.URL, MaxConcurrentEmbeds: 1})

	var wg sync.WaitGroup
	for _, text := range []string{"alpha", "beta", "gamma"} {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			o.Embed(context.Background(), text)
		}(text)
	}

	// Give every goroutine a chance to reach the server before releasing
	// any of them, so a bulkhead leak would show up as maxInFlight > 1.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if maxInFlight != 1 {
		t.Fatalf("expected at most 1 concurrent upstream call, observed %d", maxInFlight)
	}
}

func TestParseEmbeddingResponseAllShapes(t *testing.T) {
	cases := []string{
		`{"embedding": [1,2]}`,
		`{"data": [{"embedding": [1,2]}]}`,
		`{"embeddings": [[1,2]]}`,
	}
	for _, body := range cases {
		vec, err := parseEmbeddingResponse(strings.NewReader(body))
		if err != nil {
			t.Fatalf("parse failed for %q: %v", body, err)
		}
		if len(vec) != 2 {
			t.Fatalf("expected 2 components for %q, got %v", body, vec)
		}
	}
}
