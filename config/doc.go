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

// Package config provides configuration management for the GhostWire
// conversational memory service.
//
// The configuration system supports multiple sources with the following
// precedence, highest first:
//   1. Environment variables (prefixed with GHOSTWIRE_)
//   2. Configuration file (YAML or JSON)
//   3. Default values
//
// # Configuration Structure
//
// The configuration is organized into sections:
//   - Server: HTTP server settings
//   - Store: row-store backend (memory or SQLite)
//   - Index: approximate-nearest-neighbor index parameters
//   - Gen: text generation gateway upstreams
//   - Embed: embedding gateway upstreams and candidate models
//   - Context: context-window composition budgets and strategy
//   - Cache: response cache backend, TTLs, and similarity threshold
//   - Logging: logging configuration
//   - Metrics: ambient metrics configuration
//
// # Usage
//
//	cfg, err := config.LoadFromFile("ghostwire.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// With no config file, defaults plus environment overrides:
//
//	cfg, err := config.LoadDefault()
//
// Environment variable override:
//
//	export GHOSTWIRE_SERVER_PORT=9090
//	export GHOSTWIRE_DB_PATH=/var/lib/ghostwire/ghostwire.db
//	export GHOSTWIRE_EMBED_MODELS=nomic-embed-text,mxbai-embed-large
//
// # Validation
//
// All configuration is validated before use. See Config.Validate() for
// the complete set of rules.
package config
