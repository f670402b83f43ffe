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
	// Gateway call metrics, shared by the embedder and generator
	// upstream gateways.
	MetricGatewayCalls   = "ghostwire_gateway_calls_total"
	MetricGatewayErrors  = "ghostwire_gateway_errors_total"
	MetricGatewayLatency = "ghostwire_gateway_latency_seconds"
)

// GatewayMetrics instruments calls made to the embedder and generator
// Ollama-backed gateways.
type GatewayMetrics struct {
	collector Collector
}

// NewGatewayMetrics creates a new gateway metrics recorder.
func NewGatewayMetrics(collector Collector) *GatewayMetrics {
	return &GatewayMetrics{collector: collector}
}

// RecordCall records a gateway call with latency. gateway is "embed"
// or "generate"; target is "local" or "remote".
func (m *GatewayMetrics) RecordCall(gateway, target, model string, latency float64) {
	labels := NewLabels("gateway", gateway, "target", target, "model", model)
	m.collector.IncrementCounter(MetricGatewayCalls, labels)
	m.collector.ObserveHistogram(MetricGatewayLatency, latency, labels)
}

// RecordError records a gateway call failure.
func (m *GatewayMetrics) RecordError(gateway, target, model, errorType string) {
	labels := NewLabels("gateway", gateway, "target", target, "model", model, "type", errorType)
	m.collector.IncrementCounter(MetricGatewayErrors, labels)
}
