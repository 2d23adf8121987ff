// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"log/slog"
	"time"

	"github.com/jllopis/rolegate/pkg/audit"
	"github.com/jllopis/rolegate/pkg/telemetry"
	"github.com/jllopis/rolegate/pkg/workflow"
)

type options struct {
	logger        *slog.Logger
	metrics       *telemetry.Metrics
	sink          audit.Sink
	timeout       time.Duration
	parallelRules bool
	stepFallback  workflow.StepHandler
	batchLimit    int
}

// Option configures the orchestrator.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics enables OpenTelemetry instruments.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithAuditSink records one entry per dispatch, rule pass and workflow run.
func WithAuditSink(sink audit.Sink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

// WithTimeout bounds each handler invocation. Zero means no bound beyond the
// caller's context.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithParallelRules evaluates applicable rules concurrently.
func WithParallelRules(parallel bool) Option {
	return func(o *options) {
		o.parallelRules = parallel
	}
}

// WithStepFallback handles workflow steps without a registered handler.
func WithStepFallback(h workflow.StepHandler) Option {
	return func(o *options) {
		o.stepFallback = h
	}
}

// WithBatchConcurrency bounds how many batch items are dispatched at once.
// Zero or less means unbounded.
func WithBatchConcurrency(n int) Option {
	return func(o *options) {
		o.batchLimit = n
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
