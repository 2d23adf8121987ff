// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit records one entry per dispatch, rule pass and workflow run.
// Recording is a side channel: failures are logged and never reach callers.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the call shape that produced an entry.
type Kind string

const (
	KindDispatch Kind = "dispatch"
	KindRules    Kind = "rules"
	KindWorkflow Kind = "workflow"
)

// Entry is a single audit record.
type Entry struct {
	ID        string        `json:"id"`
	RunID     string        `json:"run_id,omitempty"`
	Kind      Kind          `json:"kind"`
	Operation string        `json:"operation"`
	Role      string        `json:"role"`
	TenantID  string        `json:"tenant_id,omitempty"`
	ActorID   string        `json:"actor_id,omitempty"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	At        time.Time     `json:"at"`
}

// Filter limits List queries.
type Filter struct {
	Kind      Kind
	Role      string
	Operation string
	Limit     int
}

func (f Filter) match(e Entry) bool {
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.Role != "" && e.Role != f.Role {
		return false
	}
	if f.Operation != "" && e.Operation != f.Operation {
		return false
	}
	return true
}

// Sink persists audit entries.
type Sink interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
}

// Recorder stamps entries and forwards them to a sink without ever failing
// the caller. A nil *Recorder drops everything.
type Recorder struct {
	sink   Sink
	logger *slog.Logger
}

// NewRecorder wraps sink. A nil sink yields a recorder that drops entries.
func NewRecorder(sink Sink, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{sink: sink, logger: logger}
}

// Record fills ID and timestamp when missing and stores the entry.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if r == nil || r.sink == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	// Detach from caller cancellation so a cancelled request is still audited.
	if err := r.sink.Record(context.WithoutCancel(ctx), entry); err != nil {
		r.logger.WarnContext(ctx, "audit record failed",
			slog.String("kind", string(entry.Kind)),
			slog.String("operation", entry.Operation),
			slog.String("error", err.Error()),
		)
	}
}

// MemorySink keeps entries in memory.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemorySink returns an in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Record appends an entry.
func (s *MemorySink) Record(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// List returns filtered entries in insertion order.
func (s *MemorySink) List(_ context.Context, filter Filter) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if !filter.match(e) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// LogSink writes entries as structured log records. It cannot list.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink writing to logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Record logs the entry at info level.
func (s *LogSink) Record(ctx context.Context, e Entry) error {
	s.logger.InfoContext(ctx, "audit",
		slog.String("id", e.ID),
		slog.String("kind", string(e.Kind)),
		slog.String("operation", e.Operation),
		slog.String("role", e.Role),
		slog.String("tenant_id", e.TenantID),
		slog.Bool("success", e.Success),
		slog.String("error", e.Error),
		slog.Duration("duration", e.Duration),
	)
	return nil
}

// List always returns no entries.
func (s *LogSink) List(context.Context, Filter) ([]Entry, error) {
	return nil, nil
}
