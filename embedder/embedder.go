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

// Package embedder turns text into vectors by calling an Ollama-style
// embedding endpoint, trying each configured model in turn and
// remembering whichever one last worked so future calls skip straight
// to it.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hsmalley/ghostwire/core/resilience"
	"github.com/hsmalley/ghostwire/observability/metrics"
	"github.com/hsmalley/ghostwire/pkg/errors"
	"github.com/hsmalley/ghostwire/vectorutil"
)

// Gateway is the contract the rag.Orchestrator depends on.
type Gateway interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config parameterizes the Ollama embedding gateway.
type Config struct {
	LocalURL string
	Models   []string
	Dim      int
	Timeout  time.Duration

	// MaxConcurrentEmbeds bounds how many upstream embed calls may be
	// in flight at once, protecting a single local Ollama instance from
	// a burst of concurrent chat requests. Zero falls back to
	// resilience.DefaultBulkheadConfig's MaxConcurrent.
	MaxConcurrentEmbeds int
}

// DefaultConfig mirrors the Python settings module's embedding defaults.
func DefaultConfig() *Config {
	return &Config{
		LocalURL:            "http://localhost:11434",
		Models:              []string{"nomic-embed-text", "mxbai-embed-large", "all-minilm"},
		Dim:                 768,
		Timeout:             30 * time.Second,
		MaxConcurrentEmbeds: 10,
	}
}

// stickyChoice is the embedding model last known to succeed; stored
// behind an atomic.Pointer so concurrent requests can read and
// occasionally race-overwrite it without a lock, matching the Python
// service's unsynchronized _cached_embed_model field — a benign race
// tolerated here because the worst outcome is an extra model-selection
// attempt, never corrupted data.
type stickyChoice struct {
	model string
}

// Ollama is the HTTP-backed Gateway implementation.
type Ollama struct {
	client   *http.Client
	cfg      *Config
	sticky   atomic.Pointer[stickyChoice]
	sg       singleflight.Group
	bulkhead *resilience.Bulkhead

	// Metrics is optional; when nil, calls go unrecorded.
	Metrics *metrics.GatewayMetrics
}

// New constructs an Ollama-backed embedding gateway.
func New(cfg *Config) *Ollama {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	bulkheadCfg := resilience.DefaultBulkheadConfig()
	if cfg.MaxConcurrentEmbeds > 0 {
		bulkheadCfg.MaxConcurrent = cfg.MaxConcurrentEmbeds
	}

	return &Ollama{
		client:   &http.Client{Timeout: cfg.Timeout},
		cfg:      cfg,
		bulkhead: resilience.NewBulkhead(bulkheadCfg),
	}
}

// Embed implements Gateway. An empty string returns an all-epsilon
// vector immediately, matching the Python fallback for embed_text("").
func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return vectorutil.Sanitize(make([]float32, o.cfg.Dim)), nil
	}

	// Coalesce concurrent requests for identical text onto one upstream
	// call instead of hitting Ollama once per caller, and bound how many
	// distinct-text embed calls may be in flight against Ollama at once.
	v, err, _ := o.sg.Do(text, func() (interface{}, error) {
		var vec []float32
		err := o.bulkhead.Execute(ctx, func(ctx context.Context) error {
			v, embedErr := o.embed(ctx, text)
			if embedErr != nil {
				return embedErr
			}
			vec = v
			return nil
		})
		if err != nil {
			if err == resilience.ErrBulkheadFull {
				return nil, errors.ErrEmbedderExhausted.Wrap(err)
			}
			return nil, err
		}
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]float32(nil), v.([]float32)...), nil
}

func (o *Ollama) embed(ctx context.Context, text string) ([]float32, error) {
	candidates := o.candidateModels()

	var lastErr error
	for _, model := range candidates {
		start := time.Now()
		vec, err := o.embedWithModel(ctx, text, model)
		if err != nil {
			lastErr = err
			if o.Metrics != nil {
				o.Metrics.RecordError("embed", "local", model, "call_failed")
			}
			continue
		}
		if len(vec) > 0 {
			if o.Metrics != nil {
				o.Metrics.RecordCall("embed", "local", model, time.Since(start).Seconds())
			}
			o.sticky.Store(&stickyChoice{model: model})
			return o.normalize(vec), nil
		}
	}

	if lastErr != nil {
		return nil, errors.ErrEmbedderExhausted.Wrap(lastErr)
	}
	return nil, errors.ErrEmbedderExhausted
}

// candidateModels puts the sticky model first (if any) followed by the
// rest of the configured models, deduplicated.
func (o *Ollama) candidateModels() []string {
	sticky := o.sticky.Load()
	if sticky == nil {
		return o.cfg.Models
	}

	out := make([]string, 0, len(o.cfg.Models)+1)
	out = append(out, sticky.model)
	for _, m := range o.cfg.Models {
		if m != sticky.model {
			out = append(out, m)
		}
	}
	return out
}

// normalize sanitizes non-finite values, guards against all-zero
// vectors, and pads/truncates to the configured dimension — exactly the
// three fixups create_embedding applies after the HTTP call returns.
func (o *Ollama) normalize(vec []float32) []float32 {
	vec = vectorutil.Resize(vec, o.cfg.Dim)
	return vectorutil.Sanitize(vec)
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embedWithModel tries /api/embeddings first, then /api/embed, matching
// _get_embedding_from_api's two-endpoint fallback. Both calls go through
// resilience.Retry so a transient connection error gets one backoff
// retry before moving on to the next endpoint or model.
func (o *Ollama) embedWithModel(ctx context.Context, text, model string) ([]float32, error) {
	var vec []float32

	for _, path := range []string{"/api/embeddings", "/api/embed"} {
		err := resilience.Retry(ctx, &resilience.RetryConfig{
			MaxAttempts: 2,
			Backoff:     resilience.ConstantBackoff(200 * time.Millisecond),
			ShouldRetry: resilience.DefaultShouldRetry,
		}, func(ctx context.Context) error {
			v, callErr := o.call(ctx, path, model, text)
			if callErr != nil {
				return callErr
			}
			vec = v
			return nil
		})
		if err == nil && len(vec) > 0 {
			return vec, nil
		}
	}

	return nil, fmt.Errorf("model %s: no embedding returned from any endpoint", model)
}

func (o *Ollama) call(ctx context.Context, path, model, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: model, Input: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.LocalURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("embedding endpoint %s returned status %d", path, resp.StatusCode)
	}

	return parseEmbeddingResponse(resp.Body)
}

// parseEmbeddingResponse accepts any of Ollama's response shapes:
// {"embedding": [...]}, {"data": [{"embedding": [...]}]}, or
// {"embeddings": [[...]]}, mirroring the Python client's tolerance for
// all three.
func parseEmbeddingResponse(r io.Reader) ([]float32, error) {
	var raw struct {
		Embedding  []float32   `json:"embedding"`
		Embeddings [][]float32 `json:"embeddings"`
		Data       []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, err
	}

	if len(raw.Embedding) > 0 {
		return raw.Embedding, nil
	}
	if len(raw.Data) > 0 && len(raw.Data[0].Embedding) > 0 {
		return raw.Data[0].Embedding, nil
	}
	if len(raw.Embeddings) > 0 {
		return raw.Embeddings[0], nil
	}
	return nil, nil
}
