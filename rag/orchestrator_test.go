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

package rag

import (
	"context"
	"errors"
	"iter"
	"sort"
	"testing"
	"time"

	"github.com/hsmalley/ghostwire/memcache"
	"github.com/hsmalley/ghostwire/rowstore"
)

// fakeStore is an in-memory rowstore.Store stand-in.
type fakeStore struct {
	turns  []rowstore.Turn
	nextID int64
}

func (s *fakeStore) Insert(ctx context.Context, sessionID, prompt, answer string, embedding []float32) (int64, error) {
	s.nextID++
	s.turns = append(s.turns, rowstore.Turn{
		ID: s.nextID, SessionID: sessionID, PromptText: prompt, AnswerText: answer, Embedding: embedding,
	})
	return s.nextID, nil
}

func (s *fakeStore) BySession(ctx context.Context, sessionID string, limit int) ([]rowstore.Turn, error) {
	var out []rowstore.Turn
	for _, t := range s.turns {
		if t.SessionID == sessionID {
			out = append(out, t)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *fakeStore) ByIDs(ctx context.Context, ids []int64, sessionID string) ([]rowstore.Turn, error) {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []rowstore.Turn
	for _, t := range s.turns {
		if want[t.ID] && t.SessionID == sessionID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeStore) AllEmbeddings(ctx context.Context) (iter.Seq2[int64, []byte], error) {
	return func(yield func(int64, []byte) bool) {}, nil
}

func (s *fakeStore) Drop(ctx context.Context, sessionID string) (bool, error) { return true, nil }
func (s *fakeStore) SizeOf(ctx context.Context, sessionID string) (int, error) {
	n := 0
	for _, t := range s.turns {
		if t.SessionID == sessionID {
			n++
		}
	}
	return n, nil
}
func (s *fakeStore) IsDropped(ctx context.Context, sessionID string) (bool, error) { return false, nil }
func (s *fakeStore) Close() error                                                  { return nil }

// fakeIndex is a trivial brute-force annindex.Index stand-in.
type fakeIndex struct {
	dim     int
	ids     []int64
	vectors [][]float32
	failAdd bool
}

func (idx *fakeIndex) Dim() int { return idx.dim }

func (idx *fakeIndex) Add(vector []float32, id int64) error {
	if idx.failAdd {
		return errors.New("boom")
	}
	idx.ids = append(idx.ids, id)
	idx.vectors = append(idx.vectors, vector)
	return nil
}

func (idx *fakeIndex) Query(vector []float32, k int) ([]int64, []float32, error) {
	type scored struct {
		id  int64
		sim float32
	}
	var candidates []scored
	for i, v := range idx.vectors {
		candidates = append(candidates, scored{id: idx.ids[i], sim: cosine(vector, v)})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].sim > candidates[j].sim })
	if k > len(candidates) {
		k = len(candidates)
	}
	ids := make([]int64, k)
	sims := make([]float32, k)
	for i := 0; i < k; i++ {
		ids[i] = candidates[i].id
		sims[i] = candidates[i].sim
	}
	return ids, sims, nil
}

func (idx *fakeIndex) Snapshot(path string) error { return nil }
func (idx *fakeIndex) Restore(path string) error  { return nil }
func (idx *fakeIndex) Size() int                  { return len(idx.ids) }

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (sqrt(na) * sqrt(nb)))
}

func sqrt(f float64) float64 {
	x := f
	for i := 0; i < 20; i++ {
		x = 0.5 * (x + f/x)
	}
	return x
}

// fakeCache is an in-memory memcache.Cache stand-in.
type fakeCache struct {
	exact   map[string]memcache.Entry
	similar map[string]struct {
		entry  memcache.Entry
		vector []float32
	}
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		exact: map[string]memcache.Entry{},
		similar: map[string]struct {
			entry  memcache.Entry
			vector []float32
		}{},
	}
}

func (c *fakeCache) GetExact(ctx context.Context, sessionID, query string) (*memcache.Entry, bool, error) {
	e, ok := c.exact[sessionID+"|"+query]
	if !ok {
		return nil, false, nil
	}
	return &e, true, nil
}

func (c *fakeCache) GetSimilar(ctx context.Context, sessionID, query string, queryVector []float32, minThreshold float32) (*memcache.Entry, bool, error) {
	for k, v := range c.similar {
		_ = k
		if cosine(queryVector, v.vector) >= minThreshold {
			e := v.entry
			e.Similarity = cosine(queryVector, v.vector)
			return &e, true, nil
		}
	}
	return nil, false, nil
}

func (c *fakeCache) PutExact(ctx context.Context, sessionID, query, response, context string, ttl time.Duration) error {
	c.exact[sessionID+"|"+query] = memcache.Entry{Response: response, Context: context, Similarity: 1}
	return nil
}

func (c *fakeCache) PutSimilar(ctx context.Context, sessionID, query string, queryVector []float32, response, context string, threshold float32, ttl time.Duration) error {
	c.similar[sessionID+"|"+query] = struct {
		entry  memcache.Entry
		vector []float32
	}{entry: memcache.Entry{Response: response, Context: context}, vector: queryVector}
	return nil
}

func (c *fakeCache) Stats(ctx context.Context) (memcache.Stats, error) {
	n := len(c.exact) + len(c.similar)
	return memcache.Stats{TotalEntries: n, ActiveEntries: n}, nil
}

// fakeEmbedder returns a fixed vector regardless of text.
type fakeEmbedder struct{ vector []float32 }

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vector, nil
}

// fakeGenerator streams a fixed set of chunks.
type fakeGenerator struct{ chunks []string }

func (g fakeGenerator) Stream(ctx context.Context, prompt, model string) (iter.Seq[string], error) {
	return func(yield func(string) bool) {
		for _, c := range g.chunks {
			if ctx.Err() != nil {
				return
			}
			if !yield(c) {
				return
			}
		}
	}, nil
}

func drain(seq iter.Seq[string]) string {
	var out string
	for s := range seq {
		out += s
	}
	return out
}

func TestRunExactCacheHitShortCircuitsGeneration(t *testing.T) {
	cache := newFakeCache()
	cache.exact["s1|hi"] = memcache.Entry{Response: "cached reply", Similarity: 1}

	gen := fakeGenerator{chunks: []string{"should", "not", "run"}}
	o := &Orchestrator{
		Store:     &fakeStore{},
		Index:     &fakeIndex{dim: 3},
		Cache:     cache,
		Embedder:  fakeEmbedder{vector: []float32{1, 0, 0}},
		Generator: gen,
		Cfg:       DefaultConfig(),
	}

	seq, err := o.Run(context.Background(), Request{SessionID: "s1", Text: "hi"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := drain(seq); got != "cached reply" {
		t.Fatalf("expected cached reply, got %q", got)
	}
}

func TestRunFullPipelineRetrievesAndPersists(t *testing.T) {
	store := &fakeStore{}
	store.Insert(context.Background(), "s1", "earlier question", "earlier answer", []float32{1, 0, 0})

	idx := &fakeIndex{dim: 3}
	idx.Add([]float32{1, 0, 0}, 1)

	o := &Orchestrator{
		Store:     store,
		Index:     idx,
		Cache:     newFakeCache(),
		Embedder:  fakeEmbedder{vector: []float32{1, 0, 0}},
		Generator: fakeGenerator{chunks: []string{"hello ", "world"}},
		Cfg:       DefaultConfig(),
	}

	seq, err := o.Run(context.Background(), Request{SessionID: "s1", Text: "new question"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := drain(seq); got != "hello world" {
		t.Fatalf("expected generated reply, got %q", got)
	}

	if len(store.turns) != 2 {
		t.Fatalf("expected the new turn to be persisted, got %d turns", len(store.turns))
	}
	if idx.Size() != 2 {
		t.Fatalf("expected the new embedding added to the index, got size %d", idx.Size())
	}
}

// recordingEmbedder captures the text it was asked to embed.
type recordingEmbedder struct {
	vector []float32
	got    string
}

func (f *recordingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.got = text
	return f.vector, nil
}

func TestRunMergesContextOverrideBeforeEmbeddingAndCache(t *testing.T) {
	cache := newFakeCache()
	embedder := &recordingEmbedder{vector: []float32{1, 0, 0}}

	o := &Orchestrator{
		Store:     &fakeStore{},
		Index:     &fakeIndex{dim: 3},
		Cache:     cache,
		Embedder:  embedder,
		Generator: fakeGenerator{chunks: []string{"answer"}},
		Cfg:       DefaultConfig(),
	}

	req := Request{SessionID: "s1", Text: "what's next", ContextOverride: "prior notes"}
	merged := "prior notes\n\nQuestion: what's next"

	seq, err := o.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	drain(seq)

	if embedder.got != merged {
		t.Fatalf("expected embedding on merged text %q, got %q", merged, embedder.got)
	}
	if _, ok := cache.exact["s1|"+merged]; !ok {
		t.Fatalf("expected exact cache write keyed on merged text %q, got keys %v", merged, cache.exact)
	}
	if _, ok := cache.similar["s1|"+merged]; !ok {
		t.Fatalf("expected similar cache write keyed on merged text %q, got keys %v", merged, cache.similar)
	}

	// A second call with the same override and text must now hit the
	// exact cache instead of generating again.
	gen2 := fakeGenerator{chunks: []string{"should", "not", "run"}}
	o.Generator = gen2
	seq2, err := o.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if got := drain(seq2); got != "answer" {
		t.Fatalf("expected the merged-text cache hit to short-circuit generation, got %q", got)
	}
}

func TestRunFallsBackToCosineScanWhenIndexEmpty(t *testing.T) {
	store := &fakeStore{}
	store.Insert(context.Background(), "s1", "the sky is blue", "yes it is", []float32{1, 0, 0})

	o := &Orchestrator{
		Store:     store,
		Index:     &fakeIndex{dim: 3}, // empty, Size()==0
		Cache:     newFakeCache(),
		Embedder:  fakeEmbedder{vector: []float32{1, 0, 0}},
		Generator: fakeGenerator{chunks: []string{"ok"}},
		Cfg:       DefaultConfig(),
	}

	seq, err := o.Run(context.Background(), Request{SessionID: "s1", Text: "what color is the sky"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := drain(seq); got != "ok" {
		t.Fatalf("expected generated reply, got %q", got)
	}
}

func TestRunCancellationSkipsPersistence(t *testing.T) {
	store := &fakeStore{}
	ctx, cancel := context.WithCancel(context.Background())

	gen := fakeGenerator{chunks: []string{"partial"}}
	o := &Orchestrator{
		Store:     store,
		Index:     &fakeIndex{dim: 3},
		Cache:     newFakeCache(),
		Embedder:  fakeEmbedder{vector: []float32{1, 0, 0}},
		Generator: gen,
		Cfg:       DefaultConfig(),
	}

	seq, err := o.Run(ctx, Request{SessionID: "s1", Text: "hi"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	cancel() // simulate the client disconnecting before the stream finishes
	for range seq {
	}

	if len(store.turns) != 0 {
		t.Fatalf("expected no persistence after cancellation, got %d turns", len(store.turns))
	}
}

func TestRetrieveReturnsTopKWithoutGenerating(t *testing.T) {
	store := &fakeStore{}
	store.Insert(context.Background(), "s1", "the sky is blue", "yes it is", []float32{1, 0, 0})

	o := &Orchestrator{
		Store:    store,
		Index:    &fakeIndex{dim: 3},
		Embedder: fakeEmbedder{vector: []float32{1, 0, 0}},
		Cfg:      DefaultConfig(),
	}

	contexts, err := o.Retrieve(context.Background(), "s1", "what color is the sky")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(contexts) != 1 || contexts[0] != "the sky is blue" {
		t.Fatalf("expected the one stored prompt, got %v", contexts)
	}
}

func TestRetrieveRejectsMissingSessionID(t *testing.T) {
	o := &Orchestrator{Store: &fakeStore{}, Cfg: DefaultConfig()}
	if _, err := o.Retrieve(context.Background(), "", "hi"); err == nil {
		t.Fatalf("expected an error for missing session id")
	}
}

func TestRunRejectsEmptyText(t *testing.T) {
	o := &Orchestrator{Store: &fakeStore{}, Cfg: DefaultConfig()}
	if _, err := o.Run(context.Background(), Request{SessionID: "s1", Text: ""}); err == nil {
		t.Fatalf("expected an error for empty text")
	}
}

func TestRunRejectsMissingSessionID(t *testing.T) {
	o := &Orchestrator{Store: &fakeStore{}, Cfg: DefaultConfig()}
	if _, err := o.Run(context.Background(), Request{SessionID: "", Text: "hi"}); err == nil {
		t.Fatalf("expected an error for missing session id")
	}
}

func TestMemoryWriterRejectsNonFiniteEmbedding(t *testing.T) {
	w := MemoryWriter{Store: &fakeStore{}}
	nan := float32(0)
	nan = nan / nan

	if _, err := w.Write(context.Background(), "s1", "q", "a", []float32{nan, 0, 0}); err == nil {
		t.Fatalf("expected an error for a non-finite embedding")
	}
}

func TestMemoryWriterNormalizesAndIndexesEmbedding(t *testing.T) {
	store := &fakeStore{}
	idx := &fakeIndex{dim: 3}
	w := MemoryWriter{Store: store, Index: idx}

	id, err := w.Write(context.Background(), "s1", "q", "a", []float32{3, 4, 0})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected the first inserted id to be 1, got %d", id)
	}
	if idx.Size() != 1 {
		t.Fatalf("expected the embedding to be added to the index")
	}

	stored := store.turns[0].Embedding
	var mag float64
	for _, f := range stored {
		mag += float64(f) * float64(f)
	}
	if mag < 0.99 || mag > 1.01 {
		t.Fatalf("expected a normalized (unit-length) embedding, got squared magnitude %v", mag)
	}
}

func TestMemoryWriterSurvivesIndexAddFailure(t *testing.T) {
	store := &fakeStore{}
	idx := &fakeIndex{dim: 3, failAdd: true}
	w := MemoryWriter{Store: store, Index: idx}

	if _, err := w.Write(context.Background(), "s1", "q", "a", []float32{1, 0, 0}); err != nil {
		t.Fatalf("expected Write to succeed despite the index add failure, got %v", err)
	}
	if len(store.turns) != 1 {
		t.Fatalf("expected the row store write to still land")
	}
}
