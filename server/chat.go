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
	"fmt"
	"net/http"

	"github.com/hsmalley/ghostwire/rag"
)

type turnRequest struct {
	SessionID  string    `json:"session_id"`
	Text       string    `json:"text"`
	PromptText string    `json:"prompt_text"`
	Embedding  []float32 `json:"embedding"`
	Context    string    `json:"context"`
	Model      string    `json:"model"`
}

func (t turnRequest) text() string {
	if t.Text != "" {
		return t.Text
	}
	return t.PromptText
}

// handleChatEmbedding implements POST /chat_embedding: a full RAG turn
// streamed back as raw text/plain fragments with no JSON framing.
func (a *App) handleChatEmbedding(w http.ResponseWriter, r *http.Request) {
	a.streamTurn(w, r)
}

// handleRag implements POST /rag: identical wire shape to
// /chat_embedding, the two differ only in which fields callers
// typically populate (chat_embedding favors a caller-supplied
// embedding, rag favors model selection).
func (a *App) handleRag(w http.ResponseWriter, r *http.Request) {
	a.streamTurn(w, r)
}

func (a *App) streamTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, wrapDecodeErr(err))
		return
	}

	seq, err := a.Orchestrator.Run(r.Context(), rag.Request{
		SessionID:       req.SessionID,
		Text:            req.text(),
		Embedding:       req.Embedding,
		ContextOverride: req.Context,
		Model:           req.Model,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	for fragment := range seq {
		fmt.Fprint(w, fragment)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

type retrieveRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type retrieveResponse struct {
	Status   string   `json:"status"`
	Contexts []string `json:"contexts"`
}

// handleRetrieve implements POST /retrieve: the read-only retrieval
// step with no generation or persistence.
func (a *App) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, wrapDecodeErr(err))
		return
	}

	contexts, err := a.Orchestrator.Retrieve(r.Context(), req.SessionID, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	if contexts == nil {
		contexts = []string{}
	}

	writeJSON(w, http.StatusOK, retrieveResponse{Status: "ok", Contexts: contexts})
}
