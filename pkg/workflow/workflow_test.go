package workflow

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/jllopis/rolegate/pkg/core"
	"github.com/jllopis/rolegate/pkg/errors"
	"github.com/jllopis/rolegate/pkg/policy"
)

func testResolver(t *testing.T) *policy.Resolver {
	t.Helper()
	var policies []policy.RolePolicy
	for _, id := range []string{"hr_manager", "manager"} {
		p, err := policy.New(policy.Spec{ID: id, Capabilities: []string{"workflow"}, DataScope: core.ScopeTeam})
		if err != nil {
			t.Fatalf("policy: %v", err)
		}
		policies = append(policies, p)
	}
	r, err := policy.NewResolver(policies...)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	return r
}

type recorder struct {
	ran  []string
	fail map[string]bool
}

func (r *recorder) handler() StepFunc {
	return func(_ context.Context, step string, state *State) (any, error) {
		r.ran = append(r.ran, step)
		if r.fail[step] {
			return nil, stderrors.New(step + " unavailable")
		}
		return map[string]any{"step": step, "seen": len(state.Outputs)}, nil
	}
}

func (r *recorder) steps(names ...string) Steps {
	out := Steps{}
	for _, n := range names {
		out[n] = r.handler()
	}
	return out
}

func TestWorkflowValidate(t *testing.T) {
	tests := []struct {
		name string
		wf   Workflow
	}{
		{"no name", Workflow{Steps: []string{"a"}, Roles: []string{"r"}}},
		{"no steps", Workflow{Name: "w", Roles: []string{"r"}}},
		{"no roles", Workflow{Name: "w", Steps: []string{"a"}}},
		{"repeated step", Workflow{Name: "w", Steps: []string{"a", "a"}, Roles: []string{"r"}}},
		{"unknown critical", Workflow{Name: "w", Steps: []string{"a"}, Roles: []string{"r"}, Critical: []string{"b"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.wf.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
	if _, err := NewRegistry(
		Workflow{Name: "w", Steps: []string{"a"}, Roles: []string{"r"}},
		Workflow{Name: "w", Steps: []string{"a"}, Roles: []string{"r"}},
	); err == nil {
		t.Fatalf("expected duplicate error")
	}
}

func TestRunAbortsOnCriticalFailure(t *testing.T) {
	reg, err := NewRegistry(Workflow{
		Name:     "w",
		Steps:    []string{"s1", "s2", "s3"},
		Roles:    []string{"hr_manager"},
		Critical: []string{"s2"},
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	rec := &recorder{fail: map[string]bool{"s2": true}}
	exec := NewExecutor(testResolver(t), reg, rec.steps("s1", "s2", "s3"))

	report, err := exec.Run(context.Background(), "w", core.NewExecutionContext("hr_manager", nil))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.Steps) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(report.Steps))
	}
	if !report.Steps[0].Success || report.Steps[1].Success {
		t.Fatalf("unexpected ledger %+v", report.Steps)
	}
	if !errors.Is(report.Steps[1].Err, errors.CodeStepExecution) {
		t.Fatalf("expected step execution error, got %v", report.Steps[1].Err)
	}
	if report.Completed != 1 || report.Total != 3 {
		t.Fatalf("expected completed=1 total=3, got %d/%d", report.Completed, report.Total)
	}
	if report.AbortedAt != "s2" || report.Succeeded() {
		t.Fatalf("expected abort at s2")
	}
	if len(rec.ran) != 2 {
		t.Fatalf("s3 must not run, ran %v", rec.ran)
	}
}

func TestRunContinuesOnNonCriticalFailure(t *testing.T) {
	reg, _ := NewRegistry(Workflow{
		Name:  "w",
		Steps: []string{"s1", "s2", "s3"},
		Roles: []string{"hr_manager"},
	})
	rec := &recorder{fail: map[string]bool{"s2": true}}
	exec := NewExecutor(testResolver(t), reg, rec.steps("s1", "s2", "s3"))

	report, err := exec.Run(context.Background(), "w", core.NewExecutionContext("hr_manager", nil))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.Steps) != 3 || report.Steps[2].Step != "s3" || !report.Steps[2].Success {
		t.Fatalf("expected s3 to run, got %+v", report.Steps)
	}
	if report.Completed != 2 || report.Total != 3 || report.AbortedAt != "" {
		t.Fatalf("unexpected counts %+v", report)
	}
	// s3 sees only the successful outputs.
	if seen := report.Steps[2].Result.(map[string]any)["seen"]; seen != 1 {
		t.Fatalf("expected accumulated outputs from s1 only, got %v", seen)
	}
}

func TestRunLookupAndAuthorization(t *testing.T) {
	reg, _ := NewRegistry(Workflow{
		Name:  "employee_onboarding",
		Steps: []string{"create_employee_record"},
		Roles: []string{"hr_manager"},
	})
	rec := &recorder{}
	exec := NewExecutor(testResolver(t), reg, rec.steps("create_employee_record"))

	_, err := exec.Run(context.Background(), "missing", core.NewExecutionContext("hr_manager", nil))
	if !errors.Is(err, errors.CodeWorkflowNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	_, err = exec.Run(context.Background(), "employee_onboarding", core.NewExecutionContext("manager", nil))
	if !errors.Is(err, errors.CodeWorkflowForbidden) || !errors.IsPermission(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	_, err = exec.Run(context.Background(), "employee_onboarding", core.NewExecutionContext("ghost", nil))
	if !errors.Is(err, errors.CodeUnknownRole) {
		t.Fatalf("expected unknown role, got %v", err)
	}
	_, err = exec.Run(context.Background(), "missing", core.NewExecutionContext("ghost", nil))
	if !errors.Is(err, errors.CodeUnknownRole) {
		t.Fatalf("unknown role must win over unknown workflow, got %v", err)
	}
	if len(rec.ran) != 0 {
		t.Fatalf("no step may run on rejected calls, ran %v", rec.ran)
	}
}

func TestRunFallbackAndMissingHandler(t *testing.T) {
	reg, _ := NewRegistry(Workflow{
		Name:     "w",
		Steps:    []string{"known", "unknown"},
		Roles:    []string{"hr_manager"},
		Critical: []string{"unknown"},
	})
	rec := &recorder{}

	report, _ := NewExecutor(testResolver(t), reg, rec.steps("known")).
		Run(context.Background(), "w", core.NewExecutionContext("hr_manager", nil))
	if report.Steps[1].Success || report.AbortedAt != "unknown" {
		t.Fatalf("missing handler without fallback must fail, got %+v", report.Steps[1])
	}

	report, _ = NewExecutor(testResolver(t), reg, rec.steps("known"), WithFallback(Acknowledge)).
		Run(context.Background(), "w", core.NewExecutionContext("hr_manager", nil))
	if !report.Succeeded() {
		t.Fatalf("fallback should complete the run: %+v", report)
	}
	out := report.Steps[1].Result.(map[string]any)
	if out["step"] != "unknown" || out["status"] != "completed" {
		t.Fatalf("unexpected fallback output %v", out)
	}
}

func TestRunPanicAndDeadlineAreFailures(t *testing.T) {
	reg, _ := NewRegistry(Workflow{
		Name:  "w",
		Steps: []string{"panics", "slow"},
		Roles: []string{"hr_manager"},
	})
	steps := Steps{
		"panics": StepFunc(func(context.Context, string, *State) (any, error) { panic("nil record") }),
		"slow": StepFunc(func(ctx context.Context, _ string, _ *State) (any, error) {
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			return "late", nil
		}),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	report, err := NewExecutor(testResolver(t), reg, steps).Run(ctx, "w", core.NewExecutionContext("hr_manager", nil))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Steps[0].Success || report.Steps[1].Success {
		t.Fatalf("expected both steps to fail: %+v", report.Steps)
	}
	if report.Completed != 0 || report.Total != 2 {
		t.Fatalf("unexpected counts %d/%d", report.Completed, report.Total)
	}
}
