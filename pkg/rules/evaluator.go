// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/rolegate/pkg/core"
	"github.com/jllopis/rolegate/pkg/errors"
	"github.com/jllopis/rolegate/pkg/policy"
	"github.com/jllopis/rolegate/pkg/resilience"
	"github.com/jllopis/rolegate/pkg/telemetry"
)

// Outcome is one ledger entry of a rule pass.
type Outcome struct {
	Rule    string `json:"rule"`
	Matched bool   `json:"matched"`
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
	// ConditionError is set when the condition itself failed; Matched is
	// then false and the action never ran.
	ConditionError string `json:"condition_error,omitempty"`
	Err            error  `json:"-"`
}

// Evaluator runs every applicable rule and isolates their failures.
type Evaluator struct {
	resolver *policy.Resolver
	registry *Registry
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
	parallel bool
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records per-rule outcomes.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Evaluator) {
		e.metrics = m
	}
}

// WithParallel evaluates applicable rules concurrently. The ledger keeps
// registration order either way.
func WithParallel(parallel bool) Option {
	return func(e *Evaluator) {
		e.parallel = parallel
	}
}

// NewEvaluator creates an evaluator over registry.
func NewEvaluator(resolver *policy.Resolver, registry *Registry, opts ...Option) *Evaluator {
	e := &Evaluator{
		resolver: resolver,
		registry: registry,
		logger:   slog.Default(),
		tracer:   otel.Tracer("rolegate/rules"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = telemetry.Component(e.logger, "rules")
	return e
}

// Evaluate runs the rule pass for ec. It returns an error only when the role
// is unknown; individual rule failures are captured in the ledger.
func (e *Evaluator) Evaluate(ctx context.Context, ec core.ExecutionContext) ([]Outcome, error) {
	if _, err := e.resolver.Resolve(ec.Role); err != nil {
		return nil, err
	}
	applicable := e.registry.For(ec.Role)
	runID, _ := core.RunID(ctx)

	ctx, span := e.tracer.Start(ctx, "Rules.Evaluate",
		trace.WithAttributes(telemetry.DispatchAttributes("rules", ec.Role, runID)...),
	)
	defer span.End()

	outcomes := make([]Outcome, len(applicable))
	if e.parallel && len(applicable) > 1 {
		var wg sync.WaitGroup
		for i, rule := range applicable {
			wg.Add(1)
			go func() {
				defer wg.Done()
				outcomes[i] = e.evaluateRule(ctx, rule, ec.Clone())
			}()
		}
		wg.Wait()
	} else {
		for i, rule := range applicable {
			outcomes[i] = e.evaluateRule(ctx, rule, ec.Clone())
		}
	}
	return outcomes, nil
}

func (e *Evaluator) evaluateRule(ctx context.Context, rule Rule, ec core.ExecutionContext) Outcome {
	ctx, span := e.tracer.Start(ctx, "Rules.Rule")
	defer span.End()

	out := Outcome{Rule: rule.Name}
	matched, err := safeCondition(rule, ec)
	if err != nil {
		cerr := errors.New(errors.CodeRuleCondition, fmt.Sprintf("rule %q condition failed", rule.Name), err).
			WithContext("rule", rule.Name)
		out.ConditionError = err.Error()
		out.Err = cerr
		e.logger.WarnContext(ctx, "rule condition failed",
			slog.String("rule", rule.Name),
			slog.String("role", ec.Role),
			slog.String("error", err.Error()),
		)
		e.finish(ctx, span, out)
		return out
	}
	if !matched {
		out.Success = true
		e.finish(ctx, span, out)
		return out
	}

	out.Matched = true
	result, err := resilience.Call(ctx, func(ctx context.Context) (any, error) {
		return rule.Action(ctx, ec)
	})
	if err != nil {
		aerr := errors.New(errors.CodeRuleAction, fmt.Sprintf("rule %q action failed", rule.Name), err).
			WithContext("rule", rule.Name)
		out.Error = err.Error()
		out.Err = aerr
		e.logger.WarnContext(ctx, "rule action failed",
			slog.String("rule", rule.Name),
			slog.String("role", ec.Role),
			slog.String("error", err.Error()),
		)
		e.metrics.RecordError(ctx, aerr, "rules")
		e.finish(ctx, span, out)
		return out
	}
	out.Success = true
	out.Result = result
	e.finish(ctx, span, out)
	return out
}

func (e *Evaluator) finish(ctx context.Context, span trace.Span, out Outcome) {
	span.SetAttributes(telemetry.RuleAttributes(out.Rule, out.Matched, out.Success)...)
	if !out.Success {
		span.SetStatus(codes.Error, out.Error+out.ConditionError)
	}
	e.metrics.RecordRule(ctx, out.Rule, out.Matched, out.Success)
}

func safeCondition(rule Rule, ec core.ExecutionContext) (matched bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			matched = false
			err = fmt.Errorf("panic in condition: %v", r)
		}
	}()
	return rule.Condition(ec)
}

// Summary counts outcomes.
type Summary struct {
	Evaluated int `json:"evaluated"`
	Matched   int `json:"matched"`
	Failed    int `json:"failed"`
}

// Summarize counts a ledger.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{Evaluated: len(outcomes)}
	for _, o := range outcomes {
		if o.Matched {
			s.Matched++
		}
		if !o.Success {
			s.Failed++
		}
	}
	return s
}
