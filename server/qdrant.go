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

package server

import (
	"io"
	"net/http"
	"sort"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/hsmalley/ghostwire/pkg/errors"
	"github.com/hsmalley/ghostwire/rag"
	"github.com/hsmalley/ghostwire/rowstore"
	"github.com/hsmalley/ghostwire/vectorutil"
)

// Collections map 1:1 onto sessions: there is no separate collection
// object to allocate, so PUT mostly acknowledges (matching qdrant.py's
// create_collection), modulo validating a given vector size against
// the index's own dimension.

type qdrantAck struct {
	Result map[string]interface{} `json:"result"`
	Status string                 `json:"status"`
}

type qdrantVectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type qdrantCreateCollectionRequest struct {
	Vectors qdrantVectorParams `json:"vectors"`
}

// handleCreateCollection implements PUT /collections/{name}. A missing
// or empty body is treated as "no vectors config given" and skips the
// size check, matching how real Qdrant clients sometimes recreate a
// collection by name alone; a body that does specify vectors.size must
// match a.Dim or the collection would silently accept vectors the rest
// of GhostWire can never query.
func (a *App) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var req qdrantCreateCollectionRequest
	if err := decodeJSON(r, &req); err != nil && err != io.EOF {
		writeError(w, wrapDecodeErr(err))
		return
	}
	if req.Vectors.Size != 0 && req.Vectors.Size != a.Dim {
		writeError(w, errors.ErrIndexDimensionMismatch.WithDetail("expected", a.Dim).WithDetail("got", req.Vectors.Size))
		return
	}

	writeJSON(w, http.StatusOK, qdrantAck{
		Result: map[string]interface{}{"acknowledged": true, "affected": 1},
		Status: "ok",
	})
}

type qdrantCollectionInfo struct {
	Status          string                 `json:"status"`
	OptimizerStatus string                 `json:"optimizer_status"`
	VectorsCount    int                    `json:"vectors_count"`
	SegmentsCount   int                    `json:"segments_count"`
	Config          map[string]interface{} `json:"config"`
}

type qdrantCollectionResponse struct {
	Result qdrantCollectionInfo `json:"result"`
	Status string               `json:"status"`
}

// handleGetCollection implements GET /collections/{name}: 404 if the
// session was dropped.
func (a *App) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	dropped, err := a.Store.IsDropped(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	if dropped {
		writeError(w, errors.ErrNotFound.WithMessage("collection "+name+" not found"))
		return
	}

	size, err := a.Store.SizeOf(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	if size == 0 {
		writeError(w, errors.ErrNotFound.WithMessage("collection "+name+" not found"))
		return
	}

	writeJSON(w, http.StatusOK, qdrantCollectionResponse{
		Status: "acknowledged",
		Result: qdrantCollectionInfo{
			Status:          "green",
			OptimizerStatus: "ok",
			VectorsCount:    size,
			SegmentsCount:   1,
			Config: map[string]interface{}{
				"params": map[string]interface{}{
					"vectors_count":         size,
					"indexed_vectors_count": size,
					"points_count":          size,
				},
			},
		},
	})
}

// handleDeleteCollection implements DELETE /collections/{name}.
func (a *App) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	ok, err := a.Store.Drop(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, errors.ErrNotFound.WithMessage("collection "+name+" not found"))
		return
	}

	writeJSON(w, http.StatusOK, qdrantAck{
		Result: map[string]interface{}{"acknowledged": true, "affected": 1},
		Status: "ok",
	})
}

type qdrantPoint struct {
	ID      interface{}            `json:"id"`
	Payload map[string]interface{} `json:"payload"`
	Vector  []float32              `json:"vector"`
}

type qdrantUpsertRequest struct {
	Points    []qdrantPoint `json:"points"`
	Summarize *bool         `json:"summarize"`
}

// handleUpsertPoints implements PUT|POST /collections/{name}/points:
// each point becomes a turn via rag.MemoryWriter, with an optional
// summarization pass over the answer text before it's stored.
func (a *App) handleUpsertPoints(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var req qdrantUpsertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, wrapDecodeErr(err))
		return
	}

	summarize := !a.DisableSummarization
	if req.Summarize != nil && !*req.Summarize {
		summarize = false
	}

	writer := rag.MemoryWriter{Store: a.Store, Index: a.Index, Logger: a.Logger}
	processedIDs := make([]interface{}, 0, len(req.Points))

	for _, p := range req.Points {
		text, _ := p.Payload["text"].(string)
		answer, _ := p.Payload["metadata"].(string)
		if summarize && a.Summarizer != nil && answer != "" {
			if summarized, err := a.Summarizer.Summarize(r.Context(), answer); err == nil {
				answer = summarized
			}
		}

		id, err := writer.Write(r.Context(), name, text, answer, p.Vector)
		if err != nil {
			writeError(w, err)
			return
		}
		processedIDs = append(processedIDs, id)
	}

	writeJSON(w, http.StatusOK, qdrantAck{
		Result: map[string]interface{}{"acknowledged": true, "processed_ids": processedIDs},
		Status: "acknowledged",
	})
}

type qdrantSearchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
	WithVectors bool      `json:"with_vectors"`
}

type qdrantScoredPoint struct {
	ID      int64                  `json:"id"`
	Version int                    `json:"version"`
	Score   float32                `json:"score"`
	Payload map[string]interface{} `json:"payload"`
	Vector  []float32              `json:"vector,omitempty"`
}

type qdrantSearchResponse struct {
	Result []qdrantScoredPoint `json:"result"`
	Status string              `json:"status"`
}

// handleSearchPoints implements POST /collections/{name}/points/search
// and, as an alias, /collections/{name}/points/query.
func (a *App) handleSearchPoints(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var req qdrantSearchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, wrapDecodeErr(err))
		return
	}
	if len(req.Vector) != a.Dim {
		writeError(w, errors.ErrIndexDimensionMismatch.WithDetail("expected", a.Dim).WithDetail("got", len(req.Vector)))
		return
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}

	turns, err := a.Store.BySession(r.Context(), name, 0)
	if err != nil {
		writeError(w, err)
		return
	}

	results := scoreAndRank(turns, req.Vector, req.Limit, req.WithPayload, req.WithVectors)
	writeJSON(w, http.StatusOK, qdrantSearchResponse{Result: results, Status: "acknowledged"})
}

// handleGetPoint implements GET /collections/{name}/points/{id}.
func (a *App) handleGetPoint(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := vars["name"]
	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		writeError(w, errors.ErrInvalidInput.WithMessage("point id must be an integer"))
		return
	}

	turns, err := a.Store.ByIDs(r.Context(), []int64{id}, name)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(turns) == 0 {
		writeError(w, errors.ErrNotFound.WithMessage("point not found"))
		return
	}

	t := turns[0]
	writeJSON(w, http.StatusOK, qdrantScoredPoint{
		ID:      t.ID,
		Score:   1,
		Payload: map[string]interface{}{"text": t.PromptText, "metadata": t.AnswerText, "summary": t.SummaryText, "timestamp": t.Timestamp},
		Vector:  t.Embedding,
	})
}

// handleDeletePoints implements POST /collections/{name}/points/delete.
// GhostWire's ANN index has no single-vector deletion and the row
// store only supports whole-collection Drop, so per-point
// delete is not representable without discarding that invariant; the
// endpoint reports the limitation rather than silently no-opping.
func (a *App) handleDeletePoints(w http.ResponseWriter, r *http.Request) {
	writeError(w, errors.ErrInvalidInput.WithMessage("point-level delete is not supported; drop the collection instead"))
}

// handleCreateIndex implements PUT /collections/{name}/index. The ANN
// index already exists and is shared across all sessions, so this is
// an acknowledgment rather than an actual build step.
func (a *App) handleCreateIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, qdrantAck{
		Result: map[string]interface{}{"acknowledged": true},
		Status: "ok",
	})
}

// scoreAndRank scores every turn against query by cosine similarity and
// returns the top-limit results — GhostWire has no standalone vector
// index keyed by raw point id, so search always scans the session's
// turns directly rather than querying the shared ANN index (which is
// keyed by row id across all sessions, not restricted to one
// collection).
func scoreAndRank(turns []rowstore.Turn, query []float32, limit int, withPayload, withVectors bool) []qdrantScoredPoint {
	type scored struct {
		turn  rowstore.Turn
		score float64
	}

	scoredTurns := make([]scored, 0, len(turns))
	for _, t := range turns {
		if len(t.Embedding) == 0 {
			continue
		}
		scoredTurns = append(scoredTurns, scored{turn: t, score: vectorutil.CosineSimilarity(query, t.Embedding)})
	}

	sort.SliceStable(scoredTurns, func(i, j int) bool { return scoredTurns[i].score > scoredTurns[j].score })

	if limit > len(scoredTurns) {
		limit = len(scoredTurns)
	}

	results := make([]qdrantScoredPoint, 0, limit)
	for _, s := range scoredTurns[:limit] {
		point := qdrantScoredPoint{ID: s.turn.ID, Score: float32(s.score)}
		if withPayload {
			point.Payload = map[string]interface{}{
				"text":      s.turn.PromptText,
				"metadata":  s.turn.AnswerText,
				"summary":   s.turn.SummaryText,
				"timestamp": s.turn.Timestamp,
			}
		}
		if withVectors {
			point.Vector = s.turn.Embedding
		}
		results = append(results, point)
	}
	return results
}
