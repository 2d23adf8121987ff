// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/rolegate/pkg/core"
)

// Keys stamped on every record logged with a context.
const (
	KeyRunID   = "run_id"
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"
)

// ConfigureSlog builds the process logger and installs it as slog default.
func ConfigureSlog(output io.Writer, level, format string) *slog.Logger {
	logger := slog.New(NewHandler(output, level, format))
	slog.SetDefault(logger)
	return logger
}

// NewHandler returns a text or json handler that correlates records with
// the dispatch run and the active span.
func NewHandler(output io.Writer, level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return runHandler{slog.NewJSONHandler(output, opts)}
	}
	return runHandler{slog.NewTextHandler(output, opts)}
}

// Component tags logger with the emitting component.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("component", name))
}

// ParseLevel maps a level name to slog.Level; unknown names map to info.
func ParseLevel(level string) slog.Level {
	var l slog.Level
	name := strings.ToLower(strings.TrimSpace(level))
	if name == "warning" {
		name = "warn"
	}
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// runHandler adds run, trace and span ids found in the record context,
// unless the caller already logged them.
type runHandler struct {
	slog.Handler
}

func (h runHandler) Handle(ctx context.Context, record slog.Record) error {
	if ctx != nil {
		present := loggedKeys(record)
		if id, ok := core.RunID(ctx); ok && !present[KeyRunID] {
			record.AddAttrs(slog.String(KeyRunID, id))
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			if !present[KeyTraceID] {
				record.AddAttrs(slog.String(KeyTraceID, sc.TraceID().String()))
			}
			if !present[KeySpanID] {
				record.AddAttrs(slog.String(KeySpanID, sc.SpanID().String()))
			}
		}
	}
	return h.Handler.Handle(ctx, record)
}

func (h runHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return runHandler{h.Handler.WithAttrs(attrs)}
}

func (h runHandler) WithGroup(name string) slog.Handler {
	return runHandler{h.Handler.WithGroup(name)}
}

func loggedKeys(record slog.Record) map[string]bool {
	keys := make(map[string]bool, record.NumAttrs())
	record.Attrs(func(a slog.Attr) bool {
		switch a.Key {
		case KeyRunID, KeyTraceID, KeySpanID:
			keys[a.Key] = true
		}
		return true
	})
	return keys
}
