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

package config

import "testing"

func TestValidateServerPortOutOfRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for port 0")
	}

	cfg.Server.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for port > 65535")
	}
}

func TestValidateStoreBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Backend = "mongodb"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unsupported store backend")
	}
}

func TestValidateStoreSQLitePathRequired(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Backend = "sqlite"
	cfg.Store.SQLitePath = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty sqlite path")
	}
}

func TestValidateIndexDimension(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Index.Dim = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero index dimension")
	}
}

func TestValidateContextStrategy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Context.Strategy = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unsupported context strategy")
	}
}

func TestValidateContextItemBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Context.MinItems = 5
	cfg.Context.MaxItems = 2
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when max_items < min_items")
	}
}

func TestValidateCacheBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Backend = "memcached"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unsupported cache backend")
	}
}

func TestValidateCacheSimilarityThresholdRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.SimilarityThreshold = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for similarity threshold > 1")
	}

	cfg.Cache.SimilarityThreshold = -0.1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative similarity threshold")
	}
}
