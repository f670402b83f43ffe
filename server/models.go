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
	"net/http"

	"github.com/gorilla/mux"
)

type modelEntry struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

// listModels queries the union of local+remote upstream tags. Remote
// names already carry generator.Ollama.ListModels' "remote-" prefix.
func (a *App) listModels(r *http.Request) []string {
	if a.ModelLister == nil {
		return nil
	}
	names, _ := a.ModelLister.ListModels(r.Context())
	return names
}

// handleModels implements GET /v1/models.
func (a *App) handleModels(w http.ResponseWriter, r *http.Request) {
	names := a.listModels(r)
	entries := make([]modelEntry, 0, len(names))
	for _, n := range names {
		entries = append(entries, modelEntry{ID: n, Object: "model", OwnedBy: "local"})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"object": "list", "data": entries})
}

// handleModelByID implements GET /v1/models/{id}.
func (a *App) handleModelByID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	for _, n := range a.listModels(r) {
		if n == id {
			writeJSON(w, http.StatusOK, modelEntry{ID: id, Object: "model", OwnedBy: "local"})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "model not found"})
}

type tagEntry struct {
	Name string `json:"name"`
}

// handleTags implements GET /api/tags and GET /api/list, both served
// identically as the union of local+remote tags.
func (a *App) handleTags(w http.ResponseWriter, r *http.Request) {
	names := a.listModels(r)
	tags := make([]tagEntry, 0, len(names))
	for _, n := range names {
		tags = append(tags, tagEntry{Name: n})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"models": tags})
}
