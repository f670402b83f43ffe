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

package metrics

const (
	// Turn ingestion metrics
	MetricTurnsIngested     = "ghostwire_turns_ingested_total"
	MetricIngestDuration    = "ghostwire_ingest_duration_seconds"
	MetricIngestErrors      = "ghostwire_ingest_errors_total"

	// Cache metrics
	MetricCacheHits   = "ghostwire_cache_hits_total"
	MetricCacheMisses = "ghostwire_cache_misses_total"

	// Retrieval/generation latency
	MetricRetrievalLatency  = "ghostwire_retrieval_latency_seconds"
	MetricGenerationLatency = "ghostwire_generation_latency_seconds"

	// Row store / index size
	MetricSessionSize = "ghostwire_session_turns"
	MetricIndexSize   = "ghostwire_index_vectors"
)

// SessionMetrics instruments the RAG Orchestrator and row store with
// per-session counters and histograms.
type SessionMetrics struct {
	collector Collector
}

// NewSessionMetrics creates a new session metrics recorder.
func NewSessionMetrics(collector Collector) *SessionMetrics {
	return &SessionMetrics{collector: collector}
}

// RecordIngest records a turn ingested for a session, with the time
// spent embedding and writing it.
func (m *SessionMetrics) RecordIngest(sessionID string, duration float64) {
	labels := NewLabels("session_id", sessionID)
	m.collector.IncrementCounter(MetricTurnsIngested, labels)
	m.collector.ObserveHistogram(MetricIngestDuration, duration, labels)
}

// RecordIngestError records a failed ingest attempt.
func (m *SessionMetrics) RecordIngestError(sessionID, errorType string) {
	m.collector.IncrementCounter(MetricIngestErrors, NewLabels("session_id", sessionID, "type", errorType))
}

// RecordCacheHit records a cache hit for the session's answer cache.
func (m *SessionMetrics) RecordCacheHit(sessionID string) {
	m.collector.IncrementCounter(MetricCacheHits, NewLabels("session_id", sessionID))
}

// RecordCacheMiss records a cache miss for the session's answer cache.
func (m *SessionMetrics) RecordCacheMiss(sessionID string) {
	m.collector.IncrementCounter(MetricCacheMisses, NewLabels("session_id", sessionID))
}

// RecordRetrieval records the latency of a context-retrieval pass.
func (m *SessionMetrics) RecordRetrieval(sessionID string, duration float64) {
	m.collector.ObserveHistogram(MetricRetrievalLatency, duration, NewLabels("session_id", sessionID))
}

// RecordGeneration records the latency of a full generation pass.
func (m *SessionMetrics) RecordGeneration(sessionID, model string, duration float64) {
	m.collector.ObserveHistogram(MetricGenerationLatency, duration, NewLabels("session_id", sessionID, "model", model))
}

// SetSessionSize reports the number of turns stored for a session.
func (m *SessionMetrics) SetSessionSize(sessionID string, count float64) {
	m.collector.SetGauge(MetricSessionSize, count, NewLabels("session_id", sessionID))
}

// SetIndexSize reports the number of vectors held by the ANN index.
func (m *SessionMetrics) SetIndexSize(count float64) {
	m.collector.SetGauge(MetricIndexSize, count, NoLabels())
}
