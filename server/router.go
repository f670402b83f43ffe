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
	"github.com/rs/cors"

	"github.com/hsmalley/ghostwire/observability/health"
)

// NewRouter wires every handler onto its route and wraps the whole
// surface in a permissive CORS policy — GhostWire is typically fronted
// by a local UI or another service on a different origin, not a
// same-origin browser app.
func NewRouter(a *App, healthChecker health.Checker, readinessChecker health.Checker) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", health.Handler(healthChecker)).Methods(http.MethodGet)
	if readinessChecker != nil {
		r.HandleFunc("/readyz", health.Handler(readinessChecker)).Methods(http.MethodGet)
	}

	r.HandleFunc("/chat_embedding", a.handleChatEmbedding).Methods(http.MethodPost)
	r.HandleFunc("/rag", a.handleRag).Methods(http.MethodPost)
	r.HandleFunc("/retrieve", a.handleRetrieve).Methods(http.MethodPost)

	r.HandleFunc("/v1/embeddings", a.handleEmbeddings).Methods(http.MethodPost)
	r.HandleFunc("/v1/chat/completions", a.handleChatCompletions).Methods(http.MethodPost)
	r.HandleFunc("/v1/completions", a.handleCompletions).Methods(http.MethodPost)
	r.HandleFunc("/v1/models", a.handleModels).Methods(http.MethodGet)
	r.HandleFunc("/v1/models/{id}", a.handleModelByID).Methods(http.MethodGet)

	r.HandleFunc("/api/generate", a.handleGenerate).Methods(http.MethodPost)
	r.HandleFunc("/api/chat", a.handleChat).Methods(http.MethodPost)
	r.HandleFunc("/api/tags", a.handleTags).Methods(http.MethodGet)
	r.HandleFunc("/api/list", a.handleTags).Methods(http.MethodGet)
	r.HandleFunc("/api/pull", a.handlePull).Methods(http.MethodPost)
	r.HandleFunc("/api/delete", a.handleDelete).Methods(http.MethodPost)

	r.HandleFunc("/collections/{name}", a.handleCreateCollection).Methods(http.MethodPut)
	r.HandleFunc("/collections/{name}", a.handleGetCollection).Methods(http.MethodGet)
	r.HandleFunc("/collections/{name}", a.handleDeleteCollection).Methods(http.MethodDelete)
	r.HandleFunc("/collections/{name}/points", a.handleUpsertPoints).Methods(http.MethodPut, http.MethodPost)
	r.HandleFunc("/collections/{name}/points/search", a.handleSearchPoints).Methods(http.MethodPost)
	r.HandleFunc("/collections/{name}/points/query", a.handleSearchPoints).Methods(http.MethodPost)
	r.HandleFunc("/collections/{name}/points/delete", a.handleDeletePoints).Methods(http.MethodPost)
	r.HandleFunc("/collections/{name}/points/{id}", a.handleGetPoint).Methods(http.MethodGet)
	r.HandleFunc("/collections/{name}/index", a.handleCreateIndex).Methods(http.MethodPut)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"*"},
	})

	accessLog := newAccessLogMiddleware(a.Logger, a.MetricsCollector)
	return requestIDMiddleware(accessLog.handler(c.Handler(r)))
}
