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

// Package annindex is a from-scratch, pure-Go approximate nearest
// neighbor index over cosine distance, structured as a layered
// Hierarchical Navigable Small World (HNSW) graph.
//
// The row store (package rowstore) is the source of truth; this index
// is a derived, rebuildable search structure over the same embeddings.
// Losing it is never a correctness problem, only a latency one: it can
// always be warm-rebuilt from rowstore.Store.AllEmbeddings.
package annindex

import (
	"container/heap"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/hsmalley/ghostwire/pkg/errors"
	"github.com/hsmalley/ghostwire/vectorutil"
)

// Index is the query/mutation contract the rag orchestrator depends on.
type Index interface {
	Add(vector []float32, id int64) error
	Query(vector []float32, k int) (ids []int64, distances []float32, err error)
	Snapshot(path string) error
	Restore(path string) error
	Size() int
}

// Config parameterizes the graph, mirroring the original HNSWIndexManager's
// M / EF_CONSTRUCTION / EF_QUERY / MAX_ELEMENTS knobs.
type Config struct {
	Dim            int
	MaxElements    int
	M              int // max neighbors per node per layer (layer 0 uses 2*M)
	EfConstruction int
	EfQuery        int
}

// DefaultConfig mirrors the Python original's hnswlib defaults.
func DefaultConfig() Config {
	return Config{
		Dim:            768,
		MaxElements:    100000,
		M:              16,
		EfConstruction: 200,
		EfQuery:        50,
	}
}

type node struct {
	id        int64 // caller-facing id (the rowstore turn id)
	vector    []float32
	neighbors [][]int64 // neighbors[level] = internal ids of neighboring nodes
}

// HNSW is the concrete Index implementation. All graph mutation
// (Add) takes the write lock; Query takes the read lock, matching the
// "adds serialized, queries concurrent" requirement.
type HNSW struct {
	mu sync.RWMutex

	cfg Config

	nodes      []*node // indexed by internal id
	idToNode   map[int64]int32
	entryPoint int32 // internal id of the current top-layer entry point, -1 if empty
	maxLevel   int

	levelMult float64
	rng       *rand.Rand
}

// New constructs an empty HNSW index.
func New(cfg Config) *HNSW {
	if cfg.M <= 0 {
		cfg.M = DefaultConfig().M
	}
	if cfg.EfConstruction <= 0 {
		cfg.EfConstruction = DefaultConfig().EfConstruction
	}
	if cfg.EfQuery <= 0 {
		cfg.EfQuery = DefaultConfig().EfQuery
	}

	return &HNSW{
		cfg:        cfg,
		idToNode:   make(map[int64]int32),
		entryPoint: -1,
		levelMult:  1.0 / math.Log(float64(cfg.M)),
		rng:        rand.New(rand.NewSource(1)),
	}
}

// Dim returns the vector dimension this index was configured for.
func (h *HNSW) Dim() int {
	return h.cfg.Dim
}

func (h *HNSW) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.nodes)
}

// dist returns cosine distance (1 - cosine similarity) so that smaller
// is "closer", matching the rest of the graph-search literature's
// convention even though the rest of GhostWire speaks in similarity.
func dist(a, b []float32) float32 {
	return float32(1 - vectorutil.CosineSimilarity(a, b))
}

func (h *HNSW) randomLevel() int {
	level := int(math.Floor(-math.Log(h.rng.Float64()) * h.levelMult))
	return level
}

// Add inserts vector under the given caller-facing id. Re-adding the
// same id creates a second graph node; callers (the row store
// warm-rebuild and the RAG orchestrator's write path) are expected not
// to re-insert, matching the Python original's no-update, append-only
// HNSW usage.
func (h *HNSW) Add(vector []float32, id int64) error {
	if len(vector) != h.cfg.Dim {
		return errors.ErrIndexDimensionMismatch.WithDetail("expected", h.cfg.Dim).WithDetail("got", len(vector))
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.nodes) >= h.cfg.MaxElements {
		return errors.ErrIndexCapacityExceeded
	}

	level := h.randomLevel()
	internalID := int32(len(h.nodes))
	n := &node{
		id:        id,
		vector:    vector,
		neighbors: make([][]int64, level+1),
	}
	h.nodes = append(h.nodes, n)
	h.idToNode[id] = internalID

	if h.entryPoint == -1 {
		h.entryPoint = internalID
		h.maxLevel = level
		return nil
	}

	curr := h.entryPoint
	// Descend from the top layer to just above the insertion level,
	// keeping only the single closest node at each layer as the next
	// layer's entry point (the standard HNSW greedy descent).
	for l := h.maxLevel; l > level; l-- {
		curr = h.greedyClosest(vector, curr, l)
	}

	// From min(level, maxLevel) downward, connect to efConstruction
	// candidates at each layer.
	for l := min(level, h.maxLevel); l >= 0; l-- {
		candidates := h.searchLayer(vector, curr, h.cfg.EfConstruction, l)
		maxNeighbors := h.cfg.M
		if l == 0 {
			maxNeighbors = h.cfg.M * 2
		}
		selected := selectNeighbors(h.nodes, vector, candidates, maxNeighbors)

		for _, nb := range selected {
			h.connect(internalID, nb, l)
			h.connect(nb, internalID, l)
			h.pruneNeighbors(nb, l, maxNeighbors)
		}
		if len(selected) > 0 {
			curr = selected[0]
		}
	}

	if level > h.maxLevel {
		h.maxLevel = level
		h.entryPoint = internalID
	}

	return nil
}

// connect adds to as a neighbor of from at level. Neighbor lists store
// internal node ids encoded as int64 so the same slice type round-trips
// through gob in Snapshot/Restore without a second representation.
func (h *HNSW) connect(from, to int32, level int) {
	n := h.nodes[from]
	n.neighbors[level] = append(n.neighbors[level], int64(to))
}

func (h *HNSW) pruneNeighbors(internalID int32, level int, maxNeighbors int) {
	n := h.nodes[internalID]
	if len(n.neighbors[level]) <= maxNeighbors {
		return
	}
	type cand struct {
		id int32
		d  float32
	}
	cands := make([]cand, 0, len(n.neighbors[level]))
	for _, raw := range n.neighbors[level] {
		id := int32(raw)
		cands = append(cands, cand{id: id, d: dist(n.vector, h.nodes[id].vector)})
	}
	// keep the maxNeighbors closest, ties broken by insertion order
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].d != cands[j].d {
			return cands[i].d < cands[j].d
		}
		return cands[i].id < cands[j].id
	})
	if len(cands) > maxNeighbors {
		cands = cands[:maxNeighbors]
	}
	kept := make([]int64, len(cands))
	for i, c := range cands {
		kept[i] = int64(c.id)
	}
	n.neighbors[level] = kept
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// greedyClosest walks from curr toward vector at layer l, returning the
// single closest node reachable by steepest descent.
func (h *HNSW) greedyClosest(vector []float32, curr int32, l int) int32 {
	best := curr
	bestDist := dist(vector, h.nodes[curr].vector)

	for {
		improved := false
		for _, raw := range neighborsAt(h.nodes[best], l) {
			nb := int32(raw)
			d := dist(vector, h.nodes[nb].vector)
			if d < bestDist {
				bestDist = d
				best = nb
				improved = true
			}
		}
		if !improved {
			return best
		}
	}
}

func neighborsAt(n *node, level int) []int64 {
	if level >= len(n.neighbors) {
		return nil
	}
	return n.neighbors[level]
}

// searchLayer performs a best-first search at layer l starting from
// entry, returning up to ef closest internal ids found.
func (h *HNSW) searchLayer(vector []float32, entry int32, ef int, l int) []int32 {
	visited := map[int32]bool{entry: true}
	candidates := &minHeap{{id: entry, d: dist(vector, h.nodes[entry].vector)}}
	heap.Init(candidates)
	results := &maxHeap{{id: entry, d: dist(vector, h.nodes[entry].vector)}}
	heap.Init(results)

	for candidates.Len() > 0 {
		c := heap.Pop(candidates).(item)
		if c.d > (*results)[0].d && results.Len() >= ef {
			break
		}

		for _, raw := range neighborsAt(h.nodes[c.id], l) {
			nb := int32(raw)
			if visited[nb] {
				continue
			}
			visited[nb] = true

			d := dist(vector, h.nodes[nb].vector)
			if results.Len() < ef || d < (*results)[0].d {
				heap.Push(candidates, item{id: nb, d: d})
				heap.Push(results, item{id: nb, d: d})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]int32, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(item).id
	}
	return out
}

// selectNeighbors picks up to maxNeighbors closest candidates to vector.
func selectNeighbors(nodes []*node, vector []float32, candidates []int32, maxNeighbors int) []int32 {
	type cand struct {
		id int32
		d  float32
	}
	cs := make([]cand, len(candidates))
	for i, id := range candidates {
		cs[i] = cand{id: id, d: dist(vector, nodes[id].vector)}
	}
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].d != cs[j].d {
			return cs[i].d < cs[j].d
		}
		return cs[i].id < cs[j].id
	})
	if len(cs) > maxNeighbors {
		cs = cs[:maxNeighbors]
	}
	out := make([]int32, len(cs))
	for i, c := range cs {
		out[i] = c.id
	}
	return out
}

// Query returns up to k closest ids (caller-facing) and their cosine
// distances, ordered closest first.
func (h *HNSW) Query(vector []float32, k int) ([]int64, []float32, error) {
	if len(vector) != h.cfg.Dim {
		return nil, nil, errors.ErrIndexDimensionMismatch.WithDetail("expected", h.cfg.Dim).WithDetail("got", len(vector))
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.entryPoint == -1 {
		return nil, nil, errors.ErrIndexEmpty
	}

	curr := h.entryPoint
	for l := h.maxLevel; l > 0; l-- {
		curr = h.greedyClosest(vector, curr, l)
	}

	ef := h.cfg.EfQuery
	if ef < k {
		ef = k
	}
	candidates := h.searchLayer(vector, curr, ef, 0)

	type cand struct {
		id       int64
		internal int32
		d        float32
	}
	cs := make([]cand, len(candidates))
	for i, internalID := range candidates {
		cs[i] = cand{id: h.nodes[internalID].id, internal: internalID, d: dist(vector, h.nodes[internalID].vector)}
	}
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].d != cs[j].d {
			return cs[i].d < cs[j].d
		}
		return cs[i].internal < cs[j].internal
	})
	if len(cs) > k {
		cs = cs[:k]
	}

	ids := make([]int64, len(cs))
	distances := make([]float32, len(cs))
	for i, c := range cs {
		ids[i] = c.id
		distances[i] = c.d
	}
	return ids, distances, nil
}
