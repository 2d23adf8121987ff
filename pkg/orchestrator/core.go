// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator is the entry point of the core: role-gated dispatch,
// rule passes and workflow runs, each ending in the role transform.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jllopis/rolegate/pkg/audit"
	"github.com/jllopis/rolegate/pkg/capability"
	"github.com/jllopis/rolegate/pkg/core"
	"github.com/jllopis/rolegate/pkg/health"
	"github.com/jllopis/rolegate/pkg/policy"
	"github.com/jllopis/rolegate/pkg/rules"
	"github.com/jllopis/rolegate/pkg/telemetry"
	"github.com/jllopis/rolegate/pkg/transform"
	"github.com/jllopis/rolegate/pkg/workflow"
)

const healthCacheTTL = 5 * time.Second

// Registries bundles everything built at start-up. Nothing in it is written
// after New returns.
type Registries struct {
	Resolver     *policy.Resolver
	Capabilities *capability.Registry
	Rules        *rules.Registry
	Workflows    *workflow.Registry
	Steps        workflow.Steps
	Transformer  *transform.Transformer
}

// Validate checks that the registries are complete and that every role a
// rule or workflow mentions has a policy.
func (r Registries) Validate() error {
	if r.Resolver == nil {
		return fmt.Errorf("resolver is required")
	}
	if r.Capabilities == nil {
		return fmt.Errorf("capability registry is required")
	}
	if r.Transformer == nil {
		return fmt.Errorf("transformer is required")
	}
	for _, role := range r.Rules.Roles() {
		if !r.Resolver.Has(role) {
			return fmt.Errorf("rules reference role %q without a policy", role)
		}
	}
	for _, role := range r.Workflows.Roles() {
		if !r.Resolver.Has(role) {
			return fmt.Errorf("workflows reference role %q without a policy", role)
		}
	}
	return nil
}

// Core is the orchestration facade. It is safe for concurrent use.
type Core struct {
	reg        Registries
	dispatcher *Dispatcher
	evaluator  *rules.Evaluator
	executor   *workflow.Executor
	audit      *audit.Recorder
	health     *health.Registry
	logger     *slog.Logger
}

// New validates the registries and wires the dispatcher, rule evaluator and
// workflow executor.
func New(reg Registries, opts ...Option) (*Core, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	if reg.Rules == nil {
		reg.Rules, _ = rules.NewRegistry()
	}
	if reg.Workflows == nil {
		reg.Workflows, _ = workflow.NewRegistry()
	}

	wfOpts := []workflow.Option{workflow.WithLogger(o.logger), workflow.WithMetrics(o.metrics)}
	if o.stepFallback != nil {
		wfOpts = append(wfOpts, workflow.WithFallback(o.stepFallback))
	}
	return &Core{
		reg:        reg,
		dispatcher: NewDispatcher(reg.Resolver, reg.Capabilities, reg.Transformer, opts...),
		evaluator: rules.NewEvaluator(reg.Resolver, reg.Rules,
			rules.WithLogger(o.logger),
			rules.WithMetrics(o.metrics),
			rules.WithParallel(o.parallelRules),
		),
		executor: workflow.NewExecutor(reg.Resolver, reg.Workflows, reg.Steps, wfOpts...),
		audit:    audit.NewRecorder(o.sink, o.logger),
		health:   healthRegistry(reg.Capabilities, o.sink),
		logger:   telemetry.Component(o.logger, "orchestrator"),
	}, nil
}

// healthRegistry registers one check per handler and one for the audit sink
// when it can report its health. In-process handlers are always healthy.
func healthRegistry(caps *capability.Registry, sink audit.Sink) *health.Registry {
	reg := health.NewRegistry(healthCacheTTL)
	for _, h := range caps.Handlers() {
		checker, ok := h.Provider.(health.Checker)
		if !ok {
			checker = health.Static(health.Healthy, "in-process")
		}
		reg.Register("handler."+h.ID, checker)
	}
	if checker, ok := sink.(health.Checker); ok {
		reg.Register("audit", checker)
	}
	return reg
}

// Health checks every handler and the audit sink.
func (c *Core) Health(ctx context.Context) ([]health.Result, health.Status) {
	return c.health.CheckAll(ctx)
}

// Dispatch runs one operation for role.
func (c *Core) Dispatch(ctx context.Context, kind, role string, payload map[string]any) (*Response, error) {
	return c.dispatcher.Dispatch(ctx, kind, role, payload)
}

// DispatchBatch dispatches every request and settles all of them.
func (c *Core) DispatchBatch(ctx context.Context, requests []Request) []BatchItem {
	return c.dispatcher.DispatchBatch(ctx, requests)
}

// EvaluateRules runs the rule pass for role. Rule results are scrubbed for
// the role before they are returned.
func (c *Core) EvaluateRules(ctx context.Context, role string, payload map[string]any) ([]rules.Outcome, error) {
	start := time.Now()
	ctx, runID := core.EnsureRunID(ctx)
	ec := core.NewExecutionContext(role, payload)

	outcomes, err := c.evaluator.Evaluate(ctx, ec)
	entry := audit.Entry{
		RunID:     runID,
		Kind:      audit.KindRules,
		Operation: "rules",
		Role:      role,
		TenantID:  ec.TenantID,
		ActorID:   ec.ActorID,
		Duration:  time.Since(start),
	}
	if err != nil {
		entry.Error = err.Error()
		c.audit.Record(ctx, entry)
		return nil, err
	}
	summary := rules.Summarize(outcomes)
	entry.Success = summary.Failed == 0
	if !entry.Success {
		entry.Error = fmt.Sprintf("%d of %d rules failed", summary.Failed, summary.Evaluated)
	}
	c.audit.Record(ctx, entry)

	for i := range outcomes {
		outcomes[i].Result = c.transformValue(outcomes[i].Result, role)
	}
	return outcomes, nil
}

// RunWorkflow runs the named workflow for role. Step results are scrubbed
// for the role before they are returned.
func (c *Core) RunWorkflow(ctx context.Context, name, role string, payload map[string]any) (*workflow.Report, error) {
	start := time.Now()
	ctx, runID := core.EnsureRunID(ctx)
	ec := core.NewExecutionContext(role, payload)

	report, err := c.executor.Run(ctx, name, ec)
	entry := audit.Entry{
		RunID:     runID,
		Kind:      audit.KindWorkflow,
		Operation: name,
		Role:      role,
		TenantID:  ec.TenantID,
		ActorID:   ec.ActorID,
		Duration:  time.Since(start),
	}
	if err != nil {
		entry.Error = err.Error()
		c.audit.Record(ctx, entry)
		return nil, err
	}
	entry.Success = report.Succeeded()
	if !entry.Success {
		entry.Error = fmt.Sprintf("%d of %d steps completed", report.Completed, report.Total)
	}
	c.audit.Record(ctx, entry)

	for i := range report.Steps {
		report.Steps[i].Result = c.transformValue(report.Steps[i].Result, role)
	}
	return report, nil
}

// Processed is the result of ProcessForRole.
type Processed struct {
	Data     map[string]any  `json:"data"`
	Rules    []rules.Outcome `json:"business_rules"`
	Metadata map[string]any  `json:"metadata"`
}

// ProcessForRole runs the rule pass over payload and returns the payload as
// the role may see it, with the rule ledger.
func (c *Core) ProcessForRole(ctx context.Context, role, operation string, payload map[string]any) (*Processed, error) {
	outcomes, err := c.EvaluateRules(ctx, role, payload)
	if err != nil {
		return nil, err
	}
	return &Processed{
		Data:  c.reg.Transformer.Transform(payload, role),
		Rules: outcomes,
		Metadata: map[string]any{
			"processed_at": time.Now().UTC().Format(time.RFC3339),
			"role":         role,
			"operation":    operation,
		},
	}, nil
}

// CapabilitiesForRole lists the capabilities granted to role.
func (c *Core) CapabilitiesForRole(role string) []core.Capability {
	return c.reg.Resolver.CapabilitiesFor(role)
}

// CanAccess reports whether role may use capability.
func (c *Core) CanAccess(role string, capability core.Capability) bool {
	return c.reg.Resolver.CanAccess(role, capability)
}

// Roles returns the known roles in registration order.
func (c *Core) Roles() []string {
	return c.reg.Resolver.Roles()
}

// Operations returns the known operation kinds.
func (c *Core) Operations() []string {
	return c.reg.Capabilities.Operations()
}

// Workflows returns the registered workflow names.
func (c *Core) Workflows() []string {
	return c.reg.Workflows.Names()
}

func (c *Core) transformValue(v any, role string) any {
	switch val := v.(type) {
	case map[string]any:
		return c.reg.Transformer.Scrub(val, role)
	case []map[string]any:
		out := make([]map[string]any, len(val))
		for i, m := range val {
			out[i] = c.reg.Transformer.Scrub(m, role)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = c.transformValue(inner, role)
		}
		return out
	default:
		return v
	}
}
