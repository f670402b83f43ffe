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

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadFromFile loads configuration from a file (YAML or JSON), then
// applies environment variable overrides and validates the result.
// The file format is determined by the file extension (.yaml, .yml, or .json).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (use .yaml, .yml, or .json)", ext)
	}

	if err := cfg.LoadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadDefault builds a configuration from defaults overlaid with
// environment variables only, skipping the file step. Useful when no
// config file is supplied on the command line.
func LoadDefault() (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.LoadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadEnv loads configuration from environment variables.
// Environment variables take precedence over file-based configuration.
// Format: GHOSTWIRE_<SECTION>_<FIELD> (e.g., GHOSTWIRE_SERVER_PORT).
func (c *Config) LoadEnv() error {
	if v := os.Getenv("GHOSTWIRE_SERVER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("GHOSTWIRE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}

	if v := os.Getenv("GHOSTWIRE_DB_PATH"); v != "" {
		c.Store.SQLitePath = v
	}
	if v := os.Getenv("GHOSTWIRE_DB_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Store.PoolSize = n
		}
	}

	if v := os.Getenv("GHOSTWIRE_EMBED_DIM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Index.Dim = n
		}
	}
	if v := os.Getenv("GHOSTWIRE_HNSW_MAX_ELEMENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Index.MaxElements = n
		}
	}
	if v := os.Getenv("GHOSTWIRE_HNSW_EF_CONSTRUCTION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Index.EfConstruction = n
		}
	}
	if v := os.Getenv("GHOSTWIRE_HNSW_M"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Index.M = n
		}
	}
	if v := os.Getenv("GHOSTWIRE_HNSW_EF"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Index.EfQuery = n
		}
	}

	if v := os.Getenv("GHOSTWIRE_LOCAL_OLLAMA_URL"); v != "" {
		c.Gen.LocalURL = v
		c.Embed.LocalURL = v
	}
	if v := os.Getenv("GHOSTWIRE_REMOTE_OLLAMA_URL"); v != "" {
		c.Gen.RemoteURL = v
	}
	if v := os.Getenv("GHOSTWIRE_DEFAULT_OLLAMA_MODEL"); v != "" {
		c.Gen.DefaultModel = v
	}
	if v := os.Getenv("GHOSTWIRE_REMOTE_OLLAMA_MODEL"); v != "" {
		c.Gen.RemoteModel = v
	}
	if v := os.Getenv("GHOSTWIRE_EMBED_MODELS"); v != "" {
		c.Embed.Models = strings.Split(v, ",")
	}
	if v := os.Getenv("GHOSTWIRE_MAX_CONCURRENT_EMBEDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Embed.MaxConcurrentEmbeds = n
		}
	}

	if v := os.Getenv("GHOSTWIRE_DISABLE_SUMMARIZATION"); v != "" {
		c.Context.DisableSummary = v == "true" || v == "1"
	}
	if v := os.Getenv("GHOSTWIRE_SUMMARY_THRESHOLD_CHARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Context.SummaryThreshold = n
		}
	}
	if v := os.Getenv("GHOSTWIRE_SUMMARY_MAX_LENGTH_CHARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Context.SummaryMaxLength = n
		}
	}
	if v := os.Getenv("GHOSTWIRE_SUMMARY_COMPRESSION_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Context.SummaryCompressionRatio = f
		}
	}
	if v := os.Getenv("GHOSTWIRE_SUMMARY_MIN_OUTPUT_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Context.SummaryMinOutputLength = n
		}
	}
	if v := os.Getenv("GHOSTWIRE_SUMMARY_MAX_OUTPUT_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Context.SummaryMaxOutputLength = n
		}
	}
	if v := os.Getenv("GHOSTWIRE_SUMMARY_MODEL"); v != "" {
		c.Context.SummaryModel = v
	}
	if v := os.Getenv("GHOSTWIRE_SUMMARY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Context.SummaryTimeout = d
		}
	}
	if v := os.Getenv("GHOSTWIRE_MAX_CONTEXT_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Context.MaxTokens = n
		}
	}
	if v := os.Getenv("GHOSTWIRE_CONTEXT_STRATEGY"); v != "" {
		c.Context.Strategy = v
	}

	if v := os.Getenv("GHOSTWIRE_CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}

	if v := os.Getenv("GHOSTWIRE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("GHOSTWIRE_LOG_BACKEND"); v != "" {
		c.Logging.Backend = v
	}

	return nil
}
