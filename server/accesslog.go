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
	"net/http"
	"time"

	"github.com/hsmalley/ghostwire/observability/logging"
	"github.com/hsmalley/ghostwire/observability/metrics"
)

const (
	metricHTTPRequests = "ghostwire_http_requests_total"
	metricHTTPErrors   = "ghostwire_http_errors_total"
	metricHTTPLatency  = "ghostwire_http_request_duration_seconds"
)

// accessLogMiddleware logs every request and, when a collector is
// configured, records request count, error count, and latency by
// method and path.
type accessLogMiddleware struct {
	logger    logging.Logger
	collector metrics.Collector
}

func newAccessLogMiddleware(logger logging.Logger, collector metrics.Collector) *accessLogMiddleware {
	return &accessLogMiddleware{logger: logger, collector: collector}
}

type statusCapturingWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func (w *statusCapturingWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusCapturingWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += int64(n)
	return n, err
}

func (m *accessLogMiddleware) handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.logger == nil && m.collector == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rw := &statusCapturingWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		duration := time.Since(start).Seconds()

		labels := metrics.NewLabels("method", r.Method, "path", r.URL.Path)
		if m.collector != nil {
			m.collector.IncrementCounter(metricHTTPRequests, labels)
			m.collector.ObserveHistogram(metricHTTPLatency, duration, labels)
			if rw.status >= 400 {
				m.collector.IncrementCounter(metricHTTPErrors, labels)
			}
		}

		if m.logger == nil {
			return
		}
		ctx := r.Context()
		fields := []logging.Field{
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", rw.status),
			logging.Float64("duration_sec", duration),
		}
		if rw.status >= 500 {
			m.logger.Error(ctx, "request failed", fields...)
		} else {
			m.logger.Info(ctx, "request completed", fields...)
		}
	})
}
