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
	"io"
	"net/http"
	"time"
)

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type ollamaFrame struct {
	Model      string       `json:"model"`
	Response   string       `json:"response,omitempty"`
	Message    *chatMessage `json:"message,omitempty"`
	Done       bool         `json:"done"`
	DoneReason string       `json:"done_reason,omitempty"`
}

// handleGenerate implements POST /api/generate: streams NDJSON frames
// shaped like Ollama's own, backed by the Generator Gateway rather than
// a raw proxy so routing/retry/circuit-breaking stays centralized.
func (a *App) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req ollamaGenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, wrapDecodeErr(err))
		return
	}
	a.streamOllamaFrames(w, r, req.Model, req.Prompt)
}

// handleChat implements POST /api/chat: same NDJSON shape, prompt
// flattened from the messages array the same way /v1/chat/completions
// does.
func (a *App) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ollamaChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, wrapDecodeErr(err))
		return
	}
	_, text, override := splitChatMessages(req.Messages)
	a.streamOllamaFrames(w, r, req.Model, override+text)
}

func (a *App) streamOllamaFrames(w http.ResponseWriter, r *http.Request, model, prompt string) {
	seq, err := a.Generator.Stream(r.Context(), prompt, model)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	for fragment := range seq {
		frame := ollamaFrame{Model: model, Response: fragment, Done: false}
		b, _ := json.Marshal(frame)
		fmt.Fprintf(w, "%s\n", b)
		if flusher != nil {
			flusher.Flush()
		}
	}

	final, _ := json.Marshal(ollamaFrame{Model: model, Done: true, DoneReason: "stop"})
	fmt.Fprintf(w, "%s\n", final)
	if flusher != nil {
		flusher.Flush()
	}
}

// handlePull implements POST /api/pull: proxies straight to the local
// Ollama instance, which owns model downloads — GhostWire itself has
// no model storage of its own to manage.
func (a *App) handlePull(w http.ResponseWriter, r *http.Request) {
	a.proxyToLocal(w, r, "/api/pull")
}

// handleDelete implements POST /api/delete: same proxy shape as pull.
func (a *App) handleDelete(w http.ResponseWriter, r *http.Request) {
	a.proxyToLocal(w, r, "/api/delete")
}

func (a *App) proxyToLocal(w http.ResponseWriter, r *http.Request, path string) {
	if a.GenLocalURL == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	client := &http.Client{Timeout: 30 * time.Second}
	req, err := http.NewRequestWithContext(r.Context(), r.Method, a.GenLocalURL+path, r.Body)
	if err != nil {
		writeError(w, wrapDecodeErr(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}
