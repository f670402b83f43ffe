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
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandleEmbeddingsSingleString(t *testing.T) {
	app := newTestApp()

	body := strings.NewReader(`{"input":"hello world","model":"text-embedding"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/embeddings", body)
	rec := httptest.NewRecorder()

	app.handleEmbeddings(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp embeddingsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 1 || len(resp.Data[0].Embedding) != 3 {
		t.Fatalf("expected one 3-dim embedding, got %+v", resp.Data)
	}
}

func TestHandleEmbeddingsNestedArray(t *testing.T) {
	app := newTestApp()

	body := strings.NewReader(`{"input":["a",["b","c"]]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/embeddings", body)
	rec := httptest.NewRecorder()

	app.handleEmbeddings(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp embeddingsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 3 {
		t.Fatalf("expected 3 flattened inputs, got %d", len(resp.Data))
	}
}

func TestHandleChatCompletionsNonStreaming(t *testing.T) {
	app := newTestApp()

	body := strings.NewReader(`{"model":"llama3.2","messages":[{"role":"user","content":"hi"}],"stream":false}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", body)
	rec := httptest.NewRecorder()

	app.handleChatCompletions(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "hello world") {
		t.Fatalf("expected full reply in body, got %s", rec.Body.String())
	}
}

func TestHandleChatCompletionsStreaming(t *testing.T) {
	app := newTestApp()

	body := strings.NewReader(`{"model":"llama3.2","messages":[{"role":"user","content":"hi"}],"stream":true}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", body)
	rec := httptest.NewRecorder()

	app.handleChatCompletions(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	sawDone := false
	frames := 0
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		if strings.TrimPrefix(line, "data: ") == "[DONE]" {
			sawDone = true
			continue
		}
		frames++
	}
	if !sawDone {
		t.Fatalf("expected trailing [DONE] frame, body: %s", rec.Body.String())
	}
	if frames == 0 {
		t.Fatalf("expected at least one streamed chunk frame")
	}
}

func TestSplitChatMessagesFoldsPriorMessagesIntoOverride(t *testing.T) {
	sessionID, text, override := splitChatMessages([]chatMessage{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "last message"},
	})
	if sessionID != "default" {
		t.Fatalf("expected default session id, got %q", sessionID)
	}
	if text != "last message" {
		t.Fatalf("expected text to be the last message, got %q", text)
	}
	if !strings.Contains(override, "system: be terse") {
		t.Fatalf("expected override to fold prior messages, got %q", override)
	}
}
