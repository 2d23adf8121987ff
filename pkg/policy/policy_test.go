package policy

import (
	"sync"
	"testing"

	"github.com/jllopis/rolegate/pkg/core"
	"github.com/jllopis/rolegate/pkg/errors"
)

func mustPolicy(t *testing.T, spec Spec) RolePolicy {
	t.Helper()
	p, err := New(spec)
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	return p
}

func TestResolveKnownAndUnknown(t *testing.T) {
	r, err := NewResolver(
		mustPolicy(t, Spec{ID: "employee", Capabilities: []string{"nlp"}, DataScope: core.ScopePersonal}),
		mustPolicy(t, Spec{ID: "super_admin", Capabilities: []string{"all"}, DataScope: core.ScopeFull}),
	)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}

	p, err := r.Resolve("employee")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if p.DataScope != core.ScopePersonal {
		t.Fatalf("unexpected scope %s", p.DataScope)
	}

	_, err = r.Resolve("intern")
	if !errors.Is(err, errors.CodeUnknownRole) {
		t.Fatalf("expected UnknownRole, got %v", err)
	}
	if got := r.Roles(); len(got) != 2 || got[0] != "employee" {
		t.Fatalf("unexpected role order %v", got)
	}
}

func TestNilResolverFailsClosed(t *testing.T) {
	var r *Resolver
	if _, err := r.Resolve("admin"); !errors.Is(err, errors.CodeUnknownRole) {
		t.Fatalf("expected UnknownRole from nil resolver, got %v", err)
	}
}

func TestAllowsAndSentinel(t *testing.T) {
	emp := mustPolicy(t, Spec{ID: "employee", Capabilities: []string{"nlp"}, DataScope: core.ScopePersonal})
	root := mustPolicy(t, Spec{ID: "root", Capabilities: []string{"all"}, DataScope: core.ScopeFull})

	if !emp.Allows("nlp") || emp.Allows("data_analysis") {
		t.Fatalf("unexpected employee capabilities")
	}
	if !root.Allows("code_generation") {
		t.Fatalf("expected sentinel to grant everything")
	}
}

func TestRestrictsAndPriorities(t *testing.T) {
	p := mustPolicy(t, Spec{
		ID:                   "manager",
		Capabilities:         []string{"nlp", "data_analysis"},
		DataScope:            core.ScopeTeam,
		PriorityTopics:       []string{"team_performance", "goal_tracking"},
		RestrictedOperations: []string{"automation", " "},
	})
	if !p.Restricts("automation") || p.Restricts("analysis") {
		t.Fatalf("unexpected restrictions %v", p.RestrictedOperations)
	}
	if len(p.RestrictedOperations) != 1 {
		t.Fatalf("blank restriction should be dropped")
	}
	if !p.HasPriority("goal_tracking") || p.HasPriority("automation") {
		t.Fatalf("unexpected priority lookup")
	}
	caps := p.Capabilities()
	if len(caps) != 2 || caps[0] != "data_analysis" {
		t.Fatalf("expected sorted capabilities, got %v", caps)
	}
}

func TestNewResolverRejectsDuplicates(t *testing.T) {
	p := mustPolicy(t, Spec{ID: "admin", DataScope: core.ScopeTenantWide})
	if _, err := NewResolver(p, p); err == nil {
		t.Fatalf("expected duplicate error")
	}
}

func TestNewValidatesSpec(t *testing.T) {
	if _, err := New(Spec{}); err == nil {
		t.Fatalf("expected missing id error")
	}
	if _, err := New(Spec{ID: "x"}); err == nil {
		t.Fatalf("expected missing scope error")
	}
}

func TestCapabilityIntrospection(t *testing.T) {
	r, _ := NewResolver(mustPolicy(t, Spec{ID: "hr_manager", Capabilities: []string{"nlp", "workflow"}, DataScope: core.ScopeDomain}))
	if !r.CanAccess("hr_manager", "workflow") || r.CanAccess("hr_manager", "code_generation") {
		t.Fatalf("unexpected CanAccess result")
	}
	if r.CanAccess("ghost", "nlp") {
		t.Fatalf("unknown role must not access anything")
	}
	if r.CapabilitiesFor("ghost") != nil {
		t.Fatalf("expected nil capabilities for unknown role")
	}
}

func TestResolveConcurrent(t *testing.T) {
	r, _ := NewResolver(mustPolicy(t, Spec{ID: "admin", Capabilities: []string{"nlp"}, DataScope: core.ScopeTenantWide}))
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Resolve("admin"); err != nil {
				t.Errorf("resolve: %v", err)
			}
		}()
	}
	wg.Wait()
}
