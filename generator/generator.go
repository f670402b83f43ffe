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

// Package generator streams completions from an Ollama-style
// /api/generate endpoint, routing each request to a local or remote
// upstream based on the requested model name.
package generator

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/hsmalley/ghostwire/core/resilience"
	"github.com/hsmalley/ghostwire/observability/metrics"
	"github.com/hsmalley/ghostwire/pkg/errors"
)

// Gateway is the contract the rag.Orchestrator depends on.
type Gateway interface {
	Stream(ctx context.Context, prompt, model string) (iter.Seq[string], error)
}

// Config parameterizes the Ollama generation gateway.
type Config struct {
	LocalURL     string
	RemoteURL    string
	DefaultModel string
	Timeout      time.Duration
}

// DefaultConfig mirrors the Python settings module's generation defaults.
func DefaultConfig() *Config {
	return &Config{
		LocalURL:     "http://localhost:11434",
		RemoteURL:    "http://localhost:11434",
		DefaultModel: "llama3.2",
		Timeout:      60 * time.Second,
	}
}

// Ollama is the HTTP-backed Gateway implementation.
type Ollama struct {
	client *http.Client
	cfg    *Config
	cb     *resilience.CircuitBreaker

	// Metrics is optional; when nil, calls go unrecorded.
	Metrics *metrics.GatewayMetrics
}

// New constructs an Ollama-backed generation gateway. A single circuit
// breaker guards both local and remote traffic; it does not trip per
// Ollama instance.
func New(cfg *Config) *Ollama {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Ollama{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		cb:     resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
	}
}

// routeModel decides the target URL and strips the local/remote
// routing affix, exactly as rag_service.generate_response does:
// "remote-" prefix or ":remote" suffix selects RemoteURL, everything
// else (including an explicit "local-"/":local" affix) goes to
// LocalURL.
func (o *Ollama) routeModel(model string) (targetURL, actualModel string) {
	useRemote := strings.HasPrefix(model, "remote-") || strings.HasSuffix(model, ":remote")

	actualModel = model
	actualModel = strings.TrimPrefix(actualModel, "remote-")
	actualModel = strings.TrimPrefix(actualModel, "local-")
	actualModel = strings.TrimSuffix(actualModel, ":remote")
	actualModel = strings.TrimSuffix(actualModel, ":local")

	if useRemote {
		return o.cfg.RemoteURL + "/api/generate", actualModel
	}
	return o.cfg.LocalURL + "/api/generate", actualModel
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels queries both upstreams' /api/tags and returns the union,
// remote entries carrying the "remote-" id prefix so a later Stream
// call routes them back to RemoteURL — every model-enumeration
// endpoint reduces to this.
func (o *Ollama) ListModels(ctx context.Context) ([]string, error) {
	local, _ := o.fetchTags(ctx, o.cfg.LocalURL)
	remote, _ := o.fetchTags(ctx, o.cfg.RemoteURL)

	names := make([]string, 0, len(local)+len(remote))
	names = append(names, local...)
	for _, name := range remote {
		names = append(names, "remote-"+name)
	}
	return names, nil
}

func (o *Ollama) fetchTags(ctx context.Context, baseURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("tags endpoint returned status %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Message  *struct {
		Content string `json:"content"`
	} `json:"message"`
}

// Stream implements Gateway. The returned sequence yields one token (or
// chunk) per NDJSON line from Ollama until a "done" frame or the stream
// ends; callers drain it with a for/range loop, ranging over
// iter.Seq[string] the same way the Python async generator is consumed
// token by token.
func (o *Ollama) Stream(ctx context.Context, prompt, model string) (iter.Seq[string], error) {
	if model == "" {
		model = o.cfg.DefaultModel
	}

	targetURL, actualModel := o.routeModel(model)
	target := "local"
	if strings.HasPrefix(model, "remote-") || strings.HasSuffix(model, ":remote") {
		target = "remote"
	}

	body, err := json.Marshal(generateRequest{Model: actualModel, Prompt: prompt, Stream: true})
	if err != nil {
		return nil, errors.ErrGeneratorUnavailable.Wrap(err)
	}

	start := time.Now()
	var resp *http.Response
	err = o.cb.Execute(ctx, func(ctx context.Context) error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(body))
		if reqErr != nil {
			return reqErr
		}
		req.Header.Set("Content-Type", "application/json")

		r, doErr := o.client.Do(req)
		if doErr != nil {
			return doErr
		}
		if r.StatusCode >= 300 {
			r.Body.Close()
			return fmt.Errorf("generate endpoint returned status %d", r.StatusCode)
		}
		resp = r
		return nil
	})
	if err != nil {
		if o.Metrics != nil {
			o.Metrics.RecordError("generate", target, actualModel, "call_failed")
		}
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.ErrLLMTimeout.Wrap(err)
		}
		return nil, errors.ErrGeneratorUnavailable.Wrap(err)
	}
	if o.Metrics != nil {
		o.Metrics.RecordCall("generate", target, actualModel, time.Since(start).Seconds())
	}

	return func(yield func(string) bool) {
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)

		for scanner.Scan() {
			if ctx.Err() != nil {
				return
			}

			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var chunk generateChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				continue // malformed NDJSON line, skip like the Python client does
			}

			text := chunk.Response
			if text == "" && chunk.Message != nil {
				text = chunk.Message.Content
			}

			if text != "" {
				if !yield(text) {
					return
				}
			}

			if chunk.Done {
				return
			}
		}

		// A mid-stream connection failure surfaces as a single
		// in-band error line rather than silently truncating the
		// reply — the client has already received a 200 by now.
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			yield("[ERROR] " + err.Error())
		}
	}, nil
}
