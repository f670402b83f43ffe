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

// Package rag wires the row store, ANN index, cache, embedder and
// generator gateways into the end-to-end turn: validate, check cache,
// retrieve, compose context, stream a generation, then persist and
// cache the result.
package rag

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"time"

	"github.com/hsmalley/ghostwire/annindex"
	"github.com/hsmalley/ghostwire/composer"
	"github.com/hsmalley/ghostwire/embedder"
	"github.com/hsmalley/ghostwire/generator"
	"github.com/hsmalley/ghostwire/memcache"
	"github.com/hsmalley/ghostwire/observability/logging"
	"github.com/hsmalley/ghostwire/observability/metrics"
	"github.com/hsmalley/ghostwire/pkg/errors"
	"github.com/hsmalley/ghostwire/rowstore"
	"github.com/hsmalley/ghostwire/vectorutil"
)

// Config parameterizes a turn end to end.
type Config struct {
	TopK            int
	ChunkSize       int
	CacheThreshold  float32
	CacheExactTTL   time.Duration
	CacheSimilarTTL time.Duration
	DefaultModel    string
	Composer        composer.Config
}

// DefaultConfig mirrors rag_service.py's rag_query defaults.
func DefaultConfig() Config {
	return Config{
		TopK:            5,
		ChunkSize:       10,
		CacheThreshold:  memcache.DefaultSimilarityThreshold,
		CacheExactTTL:   memcache.DefaultExactTTL,
		CacheSimilarTTL: memcache.DefaultSimilarTTL,
		DefaultModel:    "llama3.2",
		Composer:        composer.DefaultConfig(),
	}
}

// Orchestrator is the control plane wiring every collaborator for one
// streaming RAG turn.
type Orchestrator struct {
	Store     rowstore.Store
	Index     annindex.Index
	Cache     memcache.Cache
	Embedder  embedder.Gateway
	Generator generator.Gateway
	Logger    logging.Logger
	Cfg       Config

	// Metrics is optional; when nil, instrumentation is a no-op.
	Metrics *metrics.SessionMetrics
}

// Request is one inbound turn.
type Request struct {
	SessionID       string
	Text            string
	Embedding       []float32 // optional, caller-supplied
	ContextOverride string
	Model           string
}

// Validate enforces the Orchestrator's input contract, returning a
// *errors.Error with CategoryValidation on failure, or with
// CategoryIndex when a supplied embedding's length does not match dim.
func (r Request) Validate(dim int) error {
	if r.SessionID == "" {
		return errors.ErrSessionRequired
	}
	if r.Text == "" {
		return errors.ErrInvalidInput.WithMessage("text must not be empty")
	}
	if r.Embedding != nil {
		if len(r.Embedding) != dim {
			return errors.ErrIndexDimensionMismatch.WithDetail("expected", dim).WithDetail("got", len(r.Embedding))
		}
		for _, f := range r.Embedding {
			if f != f { // NaN check without importing math for one use
				return errors.ErrInvalidInput.WithMessage("embedding must be finite")
			}
		}
	}
	return nil
}

// Run performs steps 1-9 of the streaming turn and returns a sequence
// of text fragments the caller forwards to its client as they arrive.
// Persistence and cache write-through happen as a side effect of fully
// draining the returned sequence; if the caller's context is canceled
// before the underlying generator reaches its done frame, persistence
// is skipped and the partial reply is discarded.
func (o *Orchestrator) Run(ctx context.Context, req Request) (iter.Seq[string], error) {
	dim := o.indexDim()
	if err := req.Validate(dim); err != nil {
		return nil, err
	}

	// Step 1 (merge): a context override is folded into the turn's text
	// before embedding and cache lookups, not just the final prompt —
	// matching the original's chat_embedding route, which merges
	// request.context into text before it ever reaches rag_query.
	text := req.Text
	if req.ContextOverride != "" {
		text = req.ContextOverride + "\n\nQuestion: " + req.Text
	}

	embedding, err := o.acquireEmbedding(ctx, req, text, dim)
	if err != nil {
		return nil, err
	}

	// Step 2: exact cache.
	if o.Cache != nil {
		if entry, hit, err := o.Cache.GetExact(ctx, req.SessionID, text); err == nil && hit {
			o.logf(ctx, "cache HIT (exact) for session %s", req.SessionID)
			o.recordCacheResult(req.SessionID, true)
			return chunked(entry.Response, o.chunkSize()), nil
		}
	}

	// Step 3: approximate cache.
	if o.Cache != nil {
		if entry, hit, err := o.Cache.GetSimilar(ctx, req.SessionID, text, embedding, o.Cfg.CacheThreshold); err == nil && hit {
			o.logf(ctx, "cache HIT (similar, %.3f) for session %s", entry.Similarity, req.SessionID)
			o.recordCacheResult(req.SessionID, true)
			return chunked(entry.Response, o.chunkSize()), nil
		}
	}
	o.recordCacheResult(req.SessionID, false)

	// Step 4: retrieval.
	retrievalStart := time.Now()
	contexts, err := o.retrieve(ctx, req.SessionID, embedding)
	if err != nil {
		return nil, err
	}
	if o.Metrics != nil {
		o.Metrics.RecordRetrieval(req.SessionID, time.Since(retrievalStart).Seconds())
	}

	// Step 5: context composition.
	optimized := composer.Optimize(contexts, o.Cfg.Composer)
	contextText := composer.Format(optimized)

	// Step 6: prompt assembly.
	prompt := contextText + "User: " + text + "\n\nAssistant:"

	model := req.Model
	if model == "" {
		model = o.Cfg.DefaultModel
	}

	// Step 7: generation + tee.
	genStart := time.Now()
	genSeq, err := o.Generator.Stream(ctx, prompt, model)
	if err != nil {
		return nil, errors.ErrGeneratorUnavailable.Wrap(err)
	}

	return o.teeAndPersist(ctx, req, text, embedding, contextText, model, genStart, genSeq), nil
}

// Retrieve answers the read-only `/retrieve` surface: embed text (best
// effort, no caller-supplied embedding path since this isn't a turn)
// and return up to TopK candidate prompts for the session, without any
// context composition, generation, or persistence.
func (o *Orchestrator) Retrieve(ctx context.Context, sessionID, text string) ([]string, error) {
	if sessionID == "" {
		return nil, errors.ErrSessionRequired
	}
	embedding, err := o.acquireEmbedding(ctx, Request{SessionID: sessionID, Text: text}, text, o.indexDim())
	if err != nil {
		return nil, err
	}
	return o.retrieve(ctx, sessionID, embedding)
}

func (o *Orchestrator) indexDim() int {
	if o.Index == nil {
		return 0
	}
	type dimmed interface{ Dim() int }
	if d, ok := o.Index.(dimmed); ok {
		return d.Dim()
	}
	return 0
}

// acquireEmbedding implements step 1: use the caller-supplied embedding
// if present (normalized), otherwise call the Embedder Gateway against
// text (the context-override-merged turn text, not necessarily
// req.Text), falling back to an epsilon vector on total failure so
// retrieval and caching degrade to best-effort instead of failing the
// whole turn.
func (o *Orchestrator) acquireEmbedding(ctx context.Context, req Request, text string, dim int) ([]float32, error) {
	if req.Embedding != nil {
		return vectorutil.Normalize(req.Embedding), nil
	}
	if o.Embedder == nil {
		return vectorutil.Sanitize(make([]float32, dim)), nil
	}

	vec, err := o.Embedder.Embed(ctx, text)
	if err != nil {
		o.logf(ctx, "embedding acquisition failed for session %s, proceeding best-effort: %v", req.SessionID, err)
		return vectorutil.Sanitize(make([]float32, dim)), nil
	}
	return vectorutil.Normalize(vec), nil
}

// retrieve implements step 4: an ANN k-NN query filtered by session id,
// falling back to an in-process cosine scan of the whole session when
// the index is empty, errors, or yields nothing after the filter.
func (o *Orchestrator) retrieve(ctx context.Context, sessionID string, embedding []float32) ([]string, error) {
	if o.Index != nil && o.Index.Size() > 0 {
		k := o.Cfg.TopK
		if sz := o.Index.Size(); k > sz {
			k = sz
		}

		ids, _, err := o.Index.Query(embedding, k)
		if err == nil && len(ids) > 0 {
			turns, err := o.Store.ByIDs(ctx, ids, sessionID)
			if err == nil && len(turns) > 0 {
				return promptsInRankOrder(ids, turns), nil
			}
		}
	}

	return o.cosineFallback(ctx, sessionID, embedding)
}

func promptsInRankOrder(ids []int64, turns []rowstore.Turn) []string {
	bySessionTurn := make(map[int64]rowstore.Turn, len(turns))
	for _, t := range turns {
		bySessionTurn[t.ID] = t
	}

	out := make([]string, 0, len(turns))
	for _, id := range ids {
		if t, ok := bySessionTurn[id]; ok {
			out = append(out, t.PromptText)
		}
	}
	return out
}

// cosineFallback scans every turn in the session and returns the
// TopK most similar prompts by cosine similarity, skipping stored
// embeddings that are empty, all-zero, or of a different length than
// embedding.
func (o *Orchestrator) cosineFallback(ctx context.Context, sessionID string, embedding []float32) ([]string, error) {
	turns, err := o.Store.BySession(ctx, sessionID, 0)
	if err != nil {
		return nil, errors.ErrStorageConnection.Wrap(err)
	}

	type scored struct {
		prompt string
		sim    float64
	}
	candidates := make([]scored, 0, len(turns))
	for _, t := range turns {
		if len(t.Embedding) == 0 || len(t.Embedding) != len(embedding) {
			continue
		}
		zero := true
		for _, f := range t.Embedding {
			if f != 0 {
				zero = false
				break
			}
		}
		if zero {
			continue
		}
		candidates = append(candidates, scored{prompt: t.PromptText, sim: vectorutil.CosineSimilarity(embedding, t.Embedding)})
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].sim > candidates[j].sim })

	k := o.Cfg.TopK
	if k > len(candidates) {
		k = len(candidates)
	}

	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = candidates[i].prompt
	}
	return out, nil
}

// teeAndPersist drains genSeq, forwarding each fragment to the caller
// while accumulating the full reply, then — unless ctx was canceled
// before the generator finished — persists the turn and writes through
// both caches.
func (o *Orchestrator) teeAndPersist(ctx context.Context, req Request, text string, embedding []float32, contextText, model string, genStart time.Time, genSeq iter.Seq[string]) iter.Seq[string] {
	return func(yield func(string) bool) {
		var accumulator []byte
		var sawFragment bool

		for fragment := range genSeq {
			sawFragment = true
			accumulator = append(accumulator, fragment...)
			if !yield(fragment) {
				return
			}
		}

		if o.Metrics != nil {
			o.Metrics.RecordGeneration(req.SessionID, model, time.Since(genStart).Seconds())
		}

		// Persist iff the client observed at least one fragment and the
		// context wasn't canceled before the generator's done frame —
		// an empty generation or a canceled stream both discard.
		if !sawFragment || ctx.Err() != nil {
			return
		}

		ingestStart := time.Now()
		reply := string(accumulator)
		writer := MemoryWriter{Store: o.Store, Index: o.Index, Logger: o.Logger}
		if _, err := writer.Write(ctx, req.SessionID, text, reply, embedding); err != nil {
			o.logf(ctx, "persistence failed for session %s: %v", req.SessionID, err)
			if o.Metrics != nil {
				o.Metrics.RecordIngestError(req.SessionID, "write")
			}
		} else if o.Metrics != nil {
			o.Metrics.RecordIngest(req.SessionID, time.Since(ingestStart).Seconds())
		}

		if o.Cache != nil {
			if err := o.Cache.PutExact(ctx, req.SessionID, text, reply, contextText, o.Cfg.CacheExactTTL); err != nil {
				o.logf(ctx, "exact cache write failed for session %s: %v", req.SessionID, err)
			}
			if err := o.Cache.PutSimilar(ctx, req.SessionID, text, embedding, reply, contextText, o.Cfg.CacheThreshold, o.Cfg.CacheSimilarTTL); err != nil {
				o.logf(ctx, "similar cache write failed for session %s: %v", req.SessionID, err)
			}
		}
	}
}

// chunkSize returns the configured chunk size for replaying a cached
// response, defaulting to 10 characters as rag_service.py's cache
// replay loop does (`response[i : i + 10]`).
func (o *Orchestrator) chunkSize() int {
	if o.Cfg.ChunkSize > 0 {
		return o.Cfg.ChunkSize
	}
	return 10
}

// chunked splits text into fixed-size runes-unaware byte chunks for
// streaming a cache hit back to the client.
func chunked(text string, size int) iter.Seq[string] {
	return func(yield func(string) bool) {
		for i := 0; i < len(text); i += size {
			end := i + size
			if end > len(text) {
				end = len(text)
			}
			if !yield(text[i:end]) {
				return
			}
		}
	}
}

func (o *Orchestrator) recordCacheResult(sessionID string, hit bool) {
	if o.Metrics == nil || o.Cache == nil {
		return
	}
	if hit {
		o.Metrics.RecordCacheHit(sessionID)
	} else {
		o.Metrics.RecordCacheMiss(sessionID)
	}
}

func (o *Orchestrator) logf(ctx context.Context, format string, args ...interface{}) {
	if o.Logger == nil {
		return
	}
	o.Logger.Info(ctx, fmt.Sprintf(format, args...), logging.Field{Key: "component", Value: "rag.Orchestrator"})
}
