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
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hsmalley/ghostwire/observability/health"
)

type alwaysHealthy struct{}

func (alwaysHealthy) Name() string { return "test" }

func (alwaysHealthy) Check(ctx context.Context) health.CheckResult {
	return health.CheckResult{Name: "test", Status: health.StatusHealthy}
}

func TestRouterDispatchesNativeAndQdrantRoutes(t *testing.T) {
	app := newTestApp()
	handler := NewRouter(app, alwaysHealthy{}, alwaysHealthy{})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /healthz, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /readyz, got %d", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/chat_embedding", "application/json", strings.NewReader(`{"session_id":"s1","text":"hi"}`))
	if err != nil {
		t.Fatalf("POST /chat_embedding: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /chat_embedding, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/collections/s1")
	if err != nil {
		t.Fatalf("GET /collections/s1: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /collections/s1 after a turn was persisted, got %d", resp.StatusCode)
	}
}
