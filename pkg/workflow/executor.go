// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/rolegate/pkg/core"
	"github.com/jllopis/rolegate/pkg/errors"
	"github.com/jllopis/rolegate/pkg/policy"
	"github.com/jllopis/rolegate/pkg/resilience"
	"github.com/jllopis/rolegate/pkg/telemetry"
)

// State accumulates step outputs during a run.
type State struct {
	Context core.ExecutionContext
	Outputs map[string]any
	Last    any
}

// NewState creates an initialized execution state.
func NewState(ec core.ExecutionContext) *State {
	return &State{Context: ec, Outputs: make(map[string]any)}
}

// StepHandler executes a single named step.
type StepHandler interface {
	Execute(ctx context.Context, step string, state *State) (any, error)
}

// StepFunc adapts a function to StepHandler.
type StepFunc func(ctx context.Context, step string, state *State) (any, error)

// Execute implements StepHandler.
func (f StepFunc) Execute(ctx context.Context, step string, state *State) (any, error) {
	return f(ctx, step, state)
}

// Steps maps step names to handlers.
type Steps map[string]StepHandler

// Acknowledge completes any step without side effects. It is meant as the
// fallback for steps that have no concrete handler yet.
var Acknowledge StepFunc = func(_ context.Context, step string, _ *State) (any, error) {
	return map[string]any{
		"step":      step,
		"status":    "completed",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// StepResult is one ledger entry of a run.
type StepResult struct {
	Step     string `json:"step"`
	Success  bool   `json:"success"`
	Critical bool   `json:"critical,omitempty"`
	Result   any    `json:"result,omitempty"`
	Error    string `json:"error,omitempty"`
	Err      error  `json:"-"`
}

// Report is the outcome of a run. Total is always the declared step count,
// also when a critical failure stopped the run early.
type Report struct {
	Workflow  string       `json:"workflow"`
	Steps     []StepResult `json:"steps"`
	Completed int          `json:"completed"`
	Total     int          `json:"total"`
	// AbortedAt names the critical step that stopped the run.
	AbortedAt string `json:"aborted_at,omitempty"`
}

// Succeeded reports whether every declared step ran and succeeded.
func (r *Report) Succeeded() bool {
	return r != nil && r.Completed == r.Total
}

// Executor runs workflows from a registry.
type Executor struct {
	resolver *policy.Resolver
	registry *Registry
	steps    Steps
	fallback StepHandler
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
}

// Option configures an Executor.
type Option func(*Executor)

// WithFallback handles steps that have no registered handler.
func WithFallback(h StepHandler) Option {
	return func(e *Executor) {
		e.fallback = h
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records per-step outcomes.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// NewExecutor creates an executor with the provided step handlers.
func NewExecutor(resolver *policy.Resolver, registry *Registry, steps Steps, opts ...Option) *Executor {
	e := &Executor{
		resolver: resolver,
		registry: registry,
		steps:    steps,
		logger:   slog.Default(),
		tracer:   otel.Tracer("rolegate/workflow"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = telemetry.Component(e.logger, "workflow")
	return e
}

// Run executes the named workflow for ec. Lookup and authorization failures
// are returned as errors; step failures are captured in the report.
func (e *Executor) Run(ctx context.Context, name string, ec core.ExecutionContext) (*Report, error) {
	if _, err := e.resolver.Resolve(ec.Role); err != nil {
		return nil, err
	}
	wf, err := e.registry.Get(name)
	if err != nil {
		return nil, err
	}
	if !wf.Allows(ec.Role) {
		e.logger.InfoContext(ctx, "workflow forbidden",
			slog.String("workflow", name),
			slog.String("role", ec.Role),
		)
		return nil, errors.Newf(errors.CodeWorkflowForbidden, "role %q may not run workflow %q", ec.Role, name).
			WithContext("workflow", name).
			WithContext("role", ec.Role)
	}

	runID, _ := core.RunID(ctx)
	ctx, span := e.tracer.Start(ctx, "Workflow.Run",
		trace.WithAttributes(telemetry.DispatchAttributes(name, ec.Role, runID)...),
	)
	defer span.End()

	report := &Report{Workflow: wf.Name, Total: len(wf.Steps)}
	state := NewState(ec)
	for i, step := range wf.Steps {
		critical := wf.IsCritical(step)
		res := e.runStep(ctx, wf, i, step, critical, state)
		report.Steps = append(report.Steps, res)
		if res.Success {
			report.Completed++
			continue
		}
		if critical {
			report.AbortedAt = step
			e.logger.WarnContext(ctx, "workflow aborted on critical step",
				slog.String("workflow", wf.Name),
				slog.String("step", step),
			)
			break
		}
	}

	span.SetAttributes(telemetry.WorkflowResultAttributes(report.Completed, report.Total)...)
	if report.AbortedAt != "" {
		span.SetStatus(codes.Error, fmt.Sprintf("aborted at %s", report.AbortedAt))
	}
	return report, nil
}

func (e *Executor) runStep(ctx context.Context, wf Workflow, index int, step string, critical bool, state *State) StepResult {
	ctx, span := e.tracer.Start(ctx, "Workflow.Step",
		trace.WithAttributes(telemetry.StepAttributes(wf.Name, step, index, critical)...),
	)
	defer span.End()

	res := StepResult{Step: step, Critical: critical}
	handler := e.handlerFor(step)
	var (
		output any
		err    error
	)
	if handler == nil {
		err = fmt.Errorf("no handler for step %q", step)
	} else {
		output, err = resilience.Call(ctx, func(ctx context.Context) (any, error) {
			return handler.Execute(ctx, step, state)
		})
	}
	if err != nil {
		serr := errors.New(errors.CodeStepExecution, fmt.Sprintf("step %q failed", step), err).
			WithContext("workflow", wf.Name).
			WithContext("step", step).
			WithContext("critical", critical)
		res.Error = err.Error()
		res.Err = serr
		span.RecordError(serr)
		span.SetStatus(codes.Error, err.Error())
		e.logger.WarnContext(ctx, "workflow step failed",
			slog.String("workflow", wf.Name),
			slog.String("step", step),
			slog.Bool("critical", critical),
			slog.String("error", err.Error()),
		)
		e.metrics.RecordStep(ctx, wf.Name, step, false)
		e.metrics.RecordError(ctx, serr, "workflow")
		return res
	}

	state.Outputs[step] = output
	state.Last = output
	res.Success = true
	res.Result = output
	e.metrics.RecordStep(ctx, wf.Name, step, true)
	return res
}

func (e *Executor) handlerFor(step string) StepHandler {
	if h, ok := e.steps[step]; ok && h != nil {
		return h
	}
	return e.fallback
}
