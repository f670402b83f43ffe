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
	"time"
)

// Config represents the complete configuration for the GhostWire service.
type Config struct {
	Server  ServerConfig  `yaml:"server" json:"server"`
	Store   StoreConfig   `yaml:"store" json:"store"`
	Index   IndexConfig   `yaml:"index" json:"index"`
	Gen     GenConfig     `yaml:"gen" json:"gen"`
	Embed   EmbedConfig   `yaml:"embed" json:"embed"`
	Context ContextConfig `yaml:"context" json:"context"`
	Cache   CacheConfig   `yaml:"cache" json:"cache"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// StoreConfig contains row-store backend configuration.
type StoreConfig struct {
	// Backend selects the row store implementation: "memory" or "sqlite".
	Backend      string `yaml:"backend" json:"backend"`
	SQLitePath   string `yaml:"sqlite_path" json:"sqlite_path"`
	PoolSize     int    `yaml:"pool_size" json:"pool_size"`
	PoolOverflow int    `yaml:"pool_overflow" json:"pool_overflow"`
}

// IndexConfig contains approximate-nearest-neighbor index parameters.
type IndexConfig struct {
	Dim             int    `yaml:"dim" json:"dim"`
	MaxElements     int    `yaml:"max_elements" json:"max_elements"`
	EfConstruction  int    `yaml:"ef_construction" json:"ef_construction"`
	M               int    `yaml:"m" json:"m"`
	EfQuery         int    `yaml:"ef_query" json:"ef_query"`
	SnapshotPath    string `yaml:"snapshot_path" json:"snapshot_path"`
	SnapshotOnWrite int    `yaml:"snapshot_on_write" json:"snapshot_on_write"` // read from config but not acted on; the index is snapshotted only at graceful shutdown
}

// GenConfig contains the text generation gateway's upstream settings.
type GenConfig struct {
	LocalURL     string        `yaml:"local_url" json:"local_url"`
	RemoteURL    string        `yaml:"remote_url" json:"remote_url"`
	DefaultModel string        `yaml:"default_model" json:"default_model"`
	RemoteModel  string        `yaml:"remote_model" json:"remote_model"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
}

// EmbedConfig contains the embedding gateway's upstream settings.
type EmbedConfig struct {
	LocalURL string        `yaml:"local_url" json:"local_url"`
	Models   []string      `yaml:"models" json:"models"` // candidate models tried in order; first success becomes sticky
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
	// MaxConcurrentEmbeds bounds concurrent upstream embed calls.
	MaxConcurrentEmbeds int `yaml:"max_concurrent_embeds" json:"max_concurrent_embeds"`
}

// ContextConfig contains context-window composition settings.
type ContextConfig struct {
	TopK                    int     `yaml:"top_k" json:"top_k"`
	MinItems                int     `yaml:"min_items" json:"min_items"`
	MaxItems                int     `yaml:"max_items" json:"max_items"`
	MaxTokens               int     `yaml:"max_tokens" json:"max_tokens"`
	Strategy                string  `yaml:"strategy" json:"strategy"`           // "recency", "relevance", "hybrid"
	TruncationMethod        string  `yaml:"truncation_method" json:"truncation_method"` // "sentence", "hard"
	DisableSummary          bool    `yaml:"disable_summary" json:"disable_summary"`
	SummaryThreshold        int     `yaml:"summary_threshold" json:"summary_threshold"`
	SummaryMaxLength        int     `yaml:"summary_max_length" json:"summary_max_length"`
	SummaryModel            string  `yaml:"summary_model" json:"summary_model"`
	SummaryCompressionRatio float64 `yaml:"summary_compression_ratio" json:"summary_compression_ratio"`
	SummaryMinOutputLength  int     `yaml:"summary_min_output_length" json:"summary_min_output_length"`
	SummaryMaxOutputLength  int     `yaml:"summary_max_output_length" json:"summary_max_output_length"`
	// SummaryTimeout bounds a single summarization call independently of
	// the generator's own request timeout, so one slow summarize never
	// blocks an upsert past this deadline; on expiry the original text
	// is kept unsummarized.
	SummaryTimeout time.Duration `yaml:"summary_timeout" json:"summary_timeout"`
}

// CacheConfig contains response-cache configuration.
type CacheConfig struct {
	// Backend selects the cache implementation: "sqlite" or "redis".
	Backend             string        `yaml:"backend" json:"backend"`
	TTLExact            time.Duration `yaml:"ttl_exact" json:"ttl_exact"`
	TTLApprox           time.Duration `yaml:"ttl_approx" json:"ttl_approx"`
	SimilarityThreshold float64       `yaml:"similarity_threshold" json:"similarity_threshold"`
	MaxScanPerSession   int           `yaml:"max_scan_per_session" json:"max_scan_per_session"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"` // "debug", "info", "warn", "error"
	Format     string `yaml:"format" json:"format"` // "json", "text"
	OutputPath string `yaml:"output_path" json:"output_path"`
	Backend    string `yaml:"backend" json:"backend"` // "structured" or "zap"
}

// MetricsConfig contains ambient metrics configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// DefaultConfig returns a configuration with GhostWire's default values,
// mirroring the original service's environment defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Backend:      "sqlite",
			SQLitePath:   "ghostwire.db",
			PoolSize:     5,
			PoolOverflow: 10,
		},
		Index: IndexConfig{
			Dim:            768,
			MaxElements:    100000,
			EfConstruction: 200,
			M:              16,
			EfQuery:        50,
			SnapshotPath:   "memory_index.bin",
		},
		Gen: GenConfig{
			LocalURL:     "http://localhost:11434",
			RemoteURL:    "http://localhost:11435",
			DefaultModel: "llama3",
			RemoteModel:  "llama3",
			Timeout:      60 * time.Second,
		},
		Embed: EmbedConfig{
			LocalURL: "http://localhost:11434",
			Models: []string{
				"nomic-embed-text",
				"mxbai-embed-large",
				"all-minilm",
				"snowflake-arctic-embed",
				"bge-m3",
				"bge-large",
			},
			Timeout:             30 * time.Second,
			MaxConcurrentEmbeds: 10,
		},
		Context: ContextConfig{
			TopK:                    5,
			MinItems:                1,
			MaxItems:                10,
			MaxTokens:               2000,
			Strategy:                "hybrid",
			TruncationMethod:        "sentence",
			DisableSummary:          false,
			SummaryThreshold:        4000,
			SummaryMaxLength:        1000,
			SummaryModel:            "llama3",
			SummaryCompressionRatio: 0.3,
			SummaryMinOutputLength:  100,
			SummaryMaxOutputLength:  500,
			SummaryTimeout:          10 * time.Second,
		},
		Cache: CacheConfig{
			Backend:             "sqlite",
			TTLExact:            120 * time.Minute,
			TTLApprox:           60 * time.Minute,
			SimilarityThreshold: 0.9,
			MaxScanPerSession:   100,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stdout",
			Backend:    "structured",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// NewConfig creates a new default configuration.
// This is an alias for DefaultConfig().
func NewConfig() *Config {
	return DefaultConfig()
}
