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

// Package server exposes GhostWire's HTTP surface: the native
// chat_embedding/retrieve/rag endpoints, OpenAI-shaped passthroughs,
// Ollama-compatible passthroughs, model enumeration, and a
// Qdrant-compatible collection/points surface over the same row store
// and ANN index.
package server

import (
	"context"

	"github.com/hsmalley/ghostwire/annindex"
	"github.com/hsmalley/ghostwire/embedder"
	"github.com/hsmalley/ghostwire/generator"
	"github.com/hsmalley/ghostwire/observability/logging"
	"github.com/hsmalley/ghostwire/observability/metrics"
	"github.com/hsmalley/ghostwire/rag"
	"github.com/hsmalley/ghostwire/rowstore"
)

// Summarizer produces a shorter summary of a turn's answer text before
// it is persisted via a Qdrant-style upsert. The default NoopSummarizer
// returns the text unchanged; DISABLE_SUMMARIZATION or a per-request
// "summarize": false both bypass it entirely.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// NoopSummarizer is the default Summarizer: no external summarization
// collaborator is in scope, so upserts keep the answer text verbatim.
type NoopSummarizer struct{}

func (NoopSummarizer) Summarize(ctx context.Context, text string) (string, error) { return text, nil }

// App wires every collaborator an HTTP handler needs. It is built once
// at process start and threaded through request handlers as an
// explicit field, never a package-level global (spec's §9 instruction).
type App struct {
	Orchestrator         *rag.Orchestrator
	Store                rowstore.Store
	Index                annindex.Index
	Embedder             embedder.Gateway
	ModelLister          ModelLister
	Generator            generator.Gateway
	Summarizer           Summarizer
	Logger               logging.Logger
	Dim                  int
	DisableSummarization bool

	// GenLocalURL is the local Ollama base URL, used for the
	// model-management passthroughs (/api/pull, /api/delete) that
	// Generator's streaming-only Gateway interface doesn't expose.
	GenLocalURL string

	// MetricsCollector is optional; when set, NewRouter records an
	// access log entry per request and HTTP-level request/error/latency
	// metrics through it.
	MetricsCollector metrics.Collector
}

// ModelLister is satisfied by generator.Ollama's ListModels — split out
// as its own small interface so handlers don't need the concrete type.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}
