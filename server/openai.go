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
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hsmalley/ghostwire/rag"
)

// embeddingsRequest mirrors /v1/embeddings' OpenAI-shaped body. Input
// may be a single string, a flat array of strings, or a nested array —
// all are flattened to one list of strings before embedding.
type embeddingsRequest struct {
	Input json.RawMessage `json:"input"`
	Model string          `json:"model"`
}

type embeddingDatum struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingsResponse struct {
	Object string           `json:"object"`
	Data   []embeddingDatum `json:"data"`
	Model  string           `json:"model"`
	Usage  embeddingsUsage  `json:"usage"`
}

type embeddingsUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

func flattenInput(raw json.RawMessage) ([]string, error) {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}

	var nested []interface{}
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil, fmt.Errorf("input must be a string or an array of strings: %w", err)
	}

	var out []string
	var flatten func(interface{})
	flatten = func(v interface{}) {
		switch t := v.(type) {
		case string:
			out = append(out, t)
		case []interface{}:
			for _, item := range t {
				flatten(item)
			}
		}
	}
	flatten(nested)
	return out, nil
}

// handleEmbeddings implements POST /v1/embeddings: an embedding failure
// here is contractually visible (the endpoint promises a vector), so
// unlike the RAG turn path it surfaces a 500 instead of falling back to
// an epsilon vector.
func (a *App) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req embeddingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, wrapDecodeErr(err))
		return
	}

	inputs, err := flattenInput(req.Input)
	if err != nil {
		writeError(w, wrapDecodeErr(err))
		return
	}

	data := make([]embeddingDatum, 0, len(inputs))
	totalChars := 0
	for i, text := range inputs {
		vec, err := a.Embedder.Embed(r.Context(), text)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		totalChars += len(text)
		data = append(data, embeddingDatum{Object: "embedding", Embedding: vec, Index: i})
	}

	tokens := totalChars / 4
	model := req.Model
	if model == "" {
		model = "embedding"
	}

	writeJSON(w, http.StatusOK, embeddingsResponse{
		Object: "list",
		Data:   data,
		Model:  model,
		Usage:  embeddingsUsage{PromptTokens: tokens, TotalTokens: tokens},
	})
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type completionsRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// handleChatCompletions implements POST /v1/chat/completions: routed
// through the RAG Orchestrator the same as /rag, using the last message
// (whatever its role) as the turn's text and every other message folded into the
// composed prompt via ContextOverride — an OpenAI-chat-shaped client
// still gets retrieval-augmented replies, not a bare passthrough.
func (a *App) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatCompletionsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, wrapDecodeErr(err))
		return
	}

	sessionID, text, override := splitChatMessages(req.Messages)
	a.streamOpenAIShaped(w, r, sessionID, text, override, req.Model, req.Stream)
}

// handleCompletions implements POST /v1/completions: the same
// Orchestrator turn, text taken directly from the prompt field.
func (a *App) handleCompletions(w http.ResponseWriter, r *http.Request) {
	var req completionsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, wrapDecodeErr(err))
		return
	}
	a.streamOpenAIShaped(w, r, "default", req.Prompt, "", req.Model, req.Stream)
}

// splitChatMessages takes the last message, whatever its role, as the
// turn and folds
// everything before it into a context override, since GhostWire's
// session model is a single accumulating turn stream rather than a
// client-managed message list.
func splitChatMessages(messages []chatMessage) (sessionID, text, override string) {
	sessionID = "default"
	if len(messages) == 0 {
		return
	}
	last := messages[len(messages)-1]
	text = last.Content
	for _, m := range messages[:len(messages)-1] {
		override += m.Role + ": " + m.Content + "\n"
	}
	return
}

func (a *App) streamOpenAIShaped(w http.ResponseWriter, r *http.Request, sessionID, text, override, model string, stream bool) {
	seq, err := a.Orchestrator.Run(r.Context(), rag.Request{
		SessionID:       sessionID,
		Text:            text,
		ContextOverride: override,
		Model:           model,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if !stream {
		var full string
		for fragment := range seq {
			full += fragment
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"object":  "chat.completion",
			"model":   model,
			"choices": []map[string]interface{}{{"index": 0, "message": chatMessage{Role: "assistant", Content: full}, "finish_reason": "stop"}},
		})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	for fragment := range seq {
		frame := map[string]interface{}{
			"object":  "chat.completion.chunk",
			"model":   model,
			"choices": []map[string]interface{}{{"index": 0, "delta": map[string]string{"content": fragment}}},
		}
		b, _ := json.Marshal(frame)
		fmt.Fprintf(w, "data: %s\n\n", b)
		if flusher != nil {
			flusher.Flush()
		}
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}
