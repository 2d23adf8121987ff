// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/rolegate/pkg/errors"
)

// Metrics records orchestration outcomes. A nil *Metrics is a valid no-op.
type Metrics struct {
	dispatches metric.Int64Counter
	duration   metric.Float64Histogram
	rules      metric.Int64Counter
	steps      metric.Int64Counter
	errs       metric.Int64Counter
}

// NewMetrics creates instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithMeter(otel.Meter("rolegate/orchestrator"))
}

// NewMetricsWithMeter creates instruments on meter.
func NewMetricsWithMeter(meter metric.Meter) (*Metrics, error) {
	dispatches, err := meter.Int64Counter(
		"rolegate.dispatch.total",
		metric.WithDescription("Dispatches by operation, role and outcome"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		"rolegate.dispatch.duration",
		metric.WithDescription("Handler wall-clock time"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	rules, err := meter.Int64Counter(
		"rolegate.rules.outcomes",
		metric.WithDescription("Rule outcomes by rule, matched and success"),
	)
	if err != nil {
		return nil, err
	}
	steps, err := meter.Int64Counter(
		"rolegate.workflow.steps",
		metric.WithDescription("Workflow step outcomes by workflow, step and success"),
	)
	if err != nil {
		return nil, err
	}
	errs, err := meter.Int64Counter(
		"rolegate.errors.total",
		metric.WithDescription("Errors by code and component"),
	)
	if err != nil {
		return nil, err
	}
	return &Metrics{
		dispatches: dispatches,
		duration:   duration,
		rules:      rules,
		steps:      steps,
		errs:       errs,
	}, nil
}

// RecordDispatch records one dispatch outcome and its duration.
func (m *Metrics) RecordDispatch(ctx context.Context, operation, role, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrOperation, operation),
		attribute.String(AttrRole, role),
		attribute.String(AttrOutcome, outcome),
	)
	m.dispatches.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(d.Microseconds())/1000, attrs)
}

// RecordRule records a rule outcome.
func (m *Metrics) RecordRule(ctx context.Context, rule string, matched, success bool) {
	if m == nil {
		return
	}
	m.rules.Add(ctx, 1, metric.WithAttributes(RuleAttributes(rule, matched, success)...))
}

// RecordStep records a workflow step outcome.
func (m *Metrics) RecordStep(ctx context.Context, workflow, step string, success bool) {
	if m == nil {
		return
	}
	m.steps.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrWorkflowName, workflow),
		attribute.String(AttrStepName, step),
		attribute.Bool(AttrStepSuccess, success),
	))
}

// RecordError counts err by code for component.
func (m *Metrics) RecordError(ctx context.Context, err error, component string) {
	if m == nil || err == nil {
		return
	}
	m.errs.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrErrorCode, string(errors.CodeOf(err))),
		attribute.String("component", component),
	))
}
