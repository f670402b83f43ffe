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

package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hsmalley/ghostwire/annindex"
	"github.com/hsmalley/ghostwire/config"
	"github.com/hsmalley/ghostwire/embedder"
	"github.com/hsmalley/ghostwire/generator"
	"github.com/hsmalley/ghostwire/memcache"
	"github.com/hsmalley/ghostwire/memcache/rediscache"
	"github.com/hsmalley/ghostwire/memcache/sqlitecache"
	"github.com/hsmalley/ghostwire/observability/health"
	"github.com/hsmalley/ghostwire/observability/logging"
	"github.com/hsmalley/ghostwire/observability/metrics"
	"github.com/hsmalley/ghostwire/rag"
	"github.com/hsmalley/ghostwire/rowstore"
	"github.com/hsmalley/ghostwire/rowstore/memstore"
	"github.com/hsmalley/ghostwire/rowstore/sqlitestore"
	"github.com/hsmalley/ghostwire/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the GhostWire HTTP server",
	Long: `Start the HTTP server that exposes GhostWire's native, OpenAI-shaped,
Ollama-compatible, and Qdrant-compatible surfaces over one shared row
store and ANN index.

Configuration can be provided via:
  - a YAML or JSON config file (default: ./config.yaml)
  - environment variables (GHOSTWIRE_*)
  - command-line flags (highest priority)

Example:
  ghostwire serve
  ghostwire serve --config my-config.yaml
  ghostwire serve --port 9000 --host 0.0.0.0`,
	RunE: runServe,
}

var (
	serveConfigPath string
	servePort       int
	serveHost       string
)

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "config.yaml", "Path to configuration file")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Server port (overrides config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Server host (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log.Println("🚀 Starting GhostWire...")
	log.Printf("📄 Config: %s", serveConfigPath)

	cfg, err := loadConfig(serveConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	store, err := buildStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to build row store: %w", err)
	}

	index := annindex.New(annindex.Config{
		Dim:            cfg.Index.Dim,
		MaxElements:    cfg.Index.MaxElements,
		M:              cfg.Index.M,
		EfConstruction: cfg.Index.EfConstruction,
		EfQuery:        cfg.Index.EfQuery,
	})
	if err := warmRebuildIndex(context.Background(), index, store, cfg.Index.SnapshotPath); err != nil {
		log.Printf("⚠️  Index warm rebuild incomplete: %v", err)
	}

	cache, err := buildCache(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to build cache: %w", err)
	}

	embedGW := embedder.New(&embedder.Config{
		LocalURL:            cfg.Embed.LocalURL,
		Models:              cfg.Embed.Models,
		Dim:                 cfg.Index.Dim,
		Timeout:             cfg.Embed.Timeout,
		MaxConcurrentEmbeds: cfg.Embed.MaxConcurrentEmbeds,
	})
	genGW := generator.New(&generator.Config{
		LocalURL:     cfg.Gen.LocalURL,
		RemoteURL:    cfg.Gen.RemoteURL,
		DefaultModel: cfg.Gen.DefaultModel,
		Timeout:      cfg.Gen.Timeout,
	})

	metricsCollector := metrics.NewPrometheusCollector()
	gatewayMetrics := metrics.NewGatewayMetrics(metricsCollector)
	sessionMetrics := metrics.NewSessionMetrics(metricsCollector)
	embedGW.Metrics = gatewayMetrics
	genGW.Metrics = gatewayMetrics

	orch := &rag.Orchestrator{
		Store:     store,
		Index:     index,
		Cache:     cache,
		Embedder:  embedGW,
		Generator: genGW,
		Logger:    logger,
		Metrics:   sessionMetrics,
		Cfg: rag.Config{
			TopK:            cfg.Context.TopK,
			ChunkSize:       10,
			CacheThreshold:  float32(cfg.Cache.SimilarityThreshold),
			CacheExactTTL:   cfg.Cache.TTLExact,
			CacheSimilarTTL: cfg.Cache.TTLApprox,
			DefaultModel:    cfg.Gen.DefaultModel,
		},
	}

	app := &server.App{
		Orchestrator: orch,
		Store:        store,
		Index:        index,
		Embedder:     embedGW,
		ModelLister:  genGW,
		Generator:    genGW,
		Summarizer: server.ThresholdSummarizer{
			Generator: genGW,
			Cfg: server.SummaryConfig{
				ThresholdChars:   cfg.Context.SummaryThreshold,
				MaxLengthChars:   cfg.Context.SummaryMaxLength,
				CompressionRatio: cfg.Context.SummaryCompressionRatio,
				MinOutputLength:  cfg.Context.SummaryMinOutputLength,
				MaxOutputLength:  cfg.Context.SummaryMaxOutputLength,
				Model:            cfg.Context.SummaryModel,
				Timeout:          cfg.Context.SummaryTimeout,
			},
		},
		Logger:               logger,
		Dim:                  cfg.Index.Dim,
		DisableSummarization: cfg.Context.DisableSummary,
		GenLocalURL:          cfg.Gen.LocalURL,
		MetricsCollector:     metricsCollector,
	}

	readiness := health.NewReadinessChecker(
		health.NewCacheChecker(cache),
		health.NewRowStoreChecker(store),
		health.NewIndexChecker(index),
	)
	handler := server.NewRouter(app, health.NewLivenessChecker(), readiness)
	if cfg.Metrics.Enabled {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux := http.NewServeMux()
		mux.Handle(path, metricsCollector.Handler())
		mux.Handle("/", handler)
		handler = mux
		log.Printf("✅ Metrics exposed at %s", path)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		log.Printf("🌐 Listening on http://%s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-sigChan:
		log.Println("\n📥 Shutdown signal received, stopping GhostWire...")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server gracefully: %w", err)
	}
	if err := store.Close(); err != nil {
		log.Printf("⚠️  row store close failed: %v", err)
	}
	if closer, ok := cache.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Printf("⚠️  cache close failed: %v", err)
		}
	}
	if cfg.Index.SnapshotPath != "" {
		if err := index.Snapshot(cfg.Index.SnapshotPath); err != nil {
			log.Printf("⚠️  index snapshot on shutdown failed: %v", err)
		}
	}

	log.Println("✅ GhostWire stopped successfully")
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Printf("⚠️  Config file not found: %s, using defaults + environment", path)
		return config.LoadDefault()
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	log.Printf("✅ Configuration loaded from %s", path)
	return cfg, nil
}

func buildLogger(cfg config.LoggingConfig) (logging.Logger, error) {
	level := logging.Level(cfg.Level)
	if cfg.Backend == "zap" {
		return logging.NewZapLogger(level)
	}
	return logging.NewStructuredLogger(level), nil
}

func buildStore(cfg config.StoreConfig) (rowstore.Store, error) {
	if cfg.Backend == "memory" {
		log.Println("✅ Row store: in-memory")
		return memstore.New(), nil
	}
	store, err := sqlitestore.New(&sqlitestore.Config{Path: cfg.SQLitePath, MaxOpenConns: cfg.PoolSize})
	if err != nil {
		return nil, err
	}
	log.Printf("✅ Row store: sqlite (%s)", cfg.SQLitePath)
	return store, nil
}

func buildCache(cfg config.CacheConfig) (memcache.Cache, error) {
	if cfg.Backend == "redis" {
		c, err := rediscache.New(&rediscache.Config{
			Address:           os.Getenv("GHOSTWIRE_REDIS_ADDRESS"),
			MaxScanPerSession: int64(cfg.MaxScanPerSession),
		})
		if err != nil {
			return nil, err
		}
		log.Println("✅ Cache: redis")
		return c, nil
	}
	c, err := sqlitecache.New(&sqlitecache.Config{Path: "ghostwire_cache.db", MaxScanPerSession: cfg.MaxScanPerSession})
	if err != nil {
		return nil, err
	}
	log.Println("✅ Cache: sqlite")
	return c, nil
}

// warmRebuildIndex restores the ANN index from its snapshot file if one
// exists, otherwise rebuilds it from every stored embedding — the same
// two-path startup the Python original's HNSWIndexManager used before
// falling back to a cold index.
func warmRebuildIndex(ctx context.Context, index *annindex.HNSW, store rowstore.Store, snapshotPath string) error {
	if snapshotPath != "" {
		if _, err := os.Stat(snapshotPath); err == nil {
			if err := index.Restore(snapshotPath); err != nil {
				return fmt.Errorf("restore from snapshot %s: %w", snapshotPath, err)
			}
			log.Printf("✅ Index restored from snapshot %s", snapshotPath)
			return nil
		}
	}

	seq, err := store.AllEmbeddings(ctx)
	if err != nil {
		return fmt.Errorf("list embeddings for rebuild: %w", err)
	}

	n := 0
	for id, raw := range seq {
		vec := decodeEmbedding(raw)
		if len(vec) == 0 {
			continue
		}
		if err := index.Add(vec, id); err != nil {
			log.Printf("⚠️  skipping row %d during index rebuild: %v", id, err)
			continue
		}
		n++
	}
	log.Printf("✅ Index rebuilt from row store (%d vectors)", n)
	return nil
}

func decodeEmbedding(raw []byte) []float32 {
	if len(raw)%4 != 0 {
		return nil
	}
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}
