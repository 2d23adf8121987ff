// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/rolegate/pkg/audit"
	"github.com/jllopis/rolegate/pkg/capability"
	"github.com/jllopis/rolegate/pkg/core"
	"github.com/jllopis/rolegate/pkg/errors"
	"github.com/jllopis/rolegate/pkg/policy"
	"github.com/jllopis/rolegate/pkg/resilience"
	"github.com/jllopis/rolegate/pkg/telemetry"
	"github.com/jllopis/rolegate/pkg/transform"
)

// Dispatcher routes an operation to the first handler serving its
// capability, after checking the role may use it.
type Dispatcher struct {
	resolver     *policy.Resolver
	capabilities *capability.Registry
	transformer  *transform.Transformer
	audit        *audit.Recorder
	logger       *slog.Logger
	metrics      *telemetry.Metrics
	tracer       trace.Tracer
	timeout      time.Duration
	batchLimit   int
}

// NewDispatcher wires a dispatcher. Use Core for the full facade.
func NewDispatcher(resolver *policy.Resolver, capabilities *capability.Registry, transformer *transform.Transformer, opts ...Option) *Dispatcher {
	o := buildOptions(opts)
	return &Dispatcher{
		resolver:     resolver,
		capabilities: capabilities,
		transformer:  transformer,
		audit:        audit.NewRecorder(o.sink, o.logger),
		logger:       telemetry.Component(o.logger, "dispatcher"),
		metrics:      o.metrics,
		tracer:       otel.Tracer("rolegate/orchestrator"),
		timeout:      o.timeout,
		batchLimit:   o.batchLimit,
	}
}

// Dispatch runs one operation for role. Lookup and permission failures are
// returned as errors; a failing handler yields a Response with outcome
// "failed". The dispatcher never retries.
func (d *Dispatcher) Dispatch(ctx context.Context, kind, role string, payload map[string]any) (*Response, error) {
	start := time.Now()
	ec := core.NewExecutionContext(role, payload)
	ctx, runID := core.EnsureRunID(ctx)

	ctx, span := d.tracer.Start(ctx, "Orchestrator.Dispatch",
		trace.WithAttributes(telemetry.DispatchAttributes(kind, role, runID)...),
	)
	defer span.End()

	resp, err := d.dispatch(ctx, kind, ec, span)
	elapsed := time.Since(start)

	entry := audit.Entry{
		RunID:     runID,
		Kind:      audit.KindDispatch,
		Operation: kind,
		Role:      role,
		TenantID:  ec.TenantID,
		ActorID:   ec.ActorID,
		Duration:  elapsed,
	}
	outcome := "rejected"
	switch {
	case err != nil:
		entry.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, string(errors.CodeOf(err)))
		d.metrics.RecordError(ctx, err, "dispatcher")
	case resp.Succeeded():
		entry.Success = true
		outcome = string(resp.Outcome)
	default:
		entry.Error = resp.Error
		outcome = string(resp.Outcome)
		span.SetStatus(codes.Error, resp.Error)
	}
	d.metrics.RecordDispatch(ctx, kind, role, outcome, elapsed)
	d.audit.Record(ctx, entry)

	if err != nil {
		return nil, err
	}
	resp.TimingMs = elapsed.Milliseconds()
	return resp, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, kind string, ec core.ExecutionContext, span trace.Span) (*Response, error) {
	pol, err := d.resolver.Resolve(ec.Role)
	if err != nil {
		return nil, err
	}
	required, err := d.capabilities.CapabilityFor(kind)
	if err != nil {
		return nil, err
	}
	if pol.Restricts(kind) || !pol.Allows(required) {
		d.logger.InfoContext(ctx, "capability denied",
			slog.String("operation", kind),
			slog.String("role", ec.Role),
			slog.String("capability", string(required)),
		)
		return nil, errors.Newf(errors.CodeCapabilityDenied, "role %q may not use %q", ec.Role, kind).
			WithContext("role", ec.Role).
			WithContext("operation", kind).
			WithContext("capability", string(required))
	}
	handler, err := d.capabilities.Select(required)
	if err != nil {
		d.logger.WarnContext(ctx, "no handler available",
			slog.String("operation", kind),
			slog.String("capability", string(required)),
		)
		return nil, err
	}
	span.SetAttributes(telemetry.HandlerAttributes(handler.ID, string(required))...)

	result, err := resilience.CallWithTimeout(ctx, d.timeout, func(ctx context.Context) (capability.Result, error) {
		return handler.Provider.Invoke(ctx, core.CloneMap(ec.Payload), pol)
	})
	meta := metadata(handler.Name(), string(required), ec.Role, time.Now())
	if err != nil {
		herr := errors.New(errors.CodeHandlerExecution, fmt.Sprintf("handler %q failed", handler.ID), err).
			WithContext("handler", handler.ID).
			WithContext("operation", kind).
			WithRecoverable(true)
		d.logger.ErrorContext(ctx, "handler failed",
			slog.String("handler", handler.ID),
			slog.String("operation", kind),
			slog.String("role", ec.Role),
			slog.String("error", err.Error()),
		)
		return &Response{
			Outcome:   OutcomeFailed,
			Operation: kind,
			Metadata:  meta,
			Error:     herr.Error(),
			Err:       herr,
		}, nil
	}

	confidence := DefaultConfidence
	if result.Confidence != nil {
		confidence = *result.Confidence
	}
	return &Response{
		Outcome:         OutcomeSuccess,
		Operation:       kind,
		Confidence:      confidence,
		Result:          d.transformer.Transform(result.Data, ec.Role),
		Recommendations: recommendations(pol, result.Recommendations),
		NextActions:     nextActions(pol, result.Data),
		Metadata:        meta,
	}, nil
}
