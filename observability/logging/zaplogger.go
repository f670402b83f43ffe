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

package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts a *zap.Logger to the Logger interface so callers can
// pick zap's sampling, encoding, and sink configuration without giving
// up the rest of the package's Field/context plumbing.
type ZapLogger struct {
	base   *zap.Logger
	level  Level
	sample float64
}

// NewZapLogger builds a ZapLogger writing JSON-encoded entries at the
// given minimum level.
func NewZapLogger(level Level) (*ZapLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(toZapLevel(level))
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return &ZapLogger{base: base, level: level, sample: 1.0}, nil
}

func toZapLevel(level Level) zapcore.Level {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func toZapFields(ctx context.Context, base []Field, extra ...Field) []zap.Field {
	ctxFields := extractContextFields(ctx)
	out := make([]zap.Field, 0, len(ctxFields)+len(base)+len(extra))
	for _, f := range ctxFields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	for _, f := range base {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	for _, f := range extra {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

func (l *ZapLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.base.Debug(msg, toZapFields(ctx, nil, fields...)...)
}

func (l *ZapLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.base.Info(msg, toZapFields(ctx, nil, fields...)...)
}

func (l *ZapLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.base.Warn(msg, toZapFields(ctx, nil, fields...)...)
}

func (l *ZapLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.base.Error(msg, toZapFields(ctx, nil, fields...)...)
}

func (l *ZapLogger) Fatal(ctx context.Context, msg string, fields ...Field) {
	l.base.Fatal(msg, toZapFields(ctx, nil, fields...)...)
}

// With returns a child logger carrying additional persistent fields.
func (l *ZapLogger) With(fields ...Field) Logger {
	zfields := make([]zap.Field, len(fields))
	for i, f := range fields {
		zfields[i] = zap.Any(f.Key, f.Value)
	}
	return &ZapLogger{base: l.base.With(zfields...), level: l.level, sample: l.sample}
}

// SetLevel is a no-op past construction: zap's atomic level is fixed at
// build time in NewZapLogger, matching how the rest of the stack treats
// level as set-once per process.
func (l *ZapLogger) SetLevel(level Level) {
	l.level = level
}

// SetSamplingRate records the sampling rate but does not alter zap's
// own sampling core; callers that need per-message sampling should use
// StructuredLogger instead.
func (l *ZapLogger) SetSamplingRate(rate float64) {
	l.sample = rate
}

// Sync flushes any buffered log entries.
func (l *ZapLogger) Sync() error {
	return l.base.Sync()
}
