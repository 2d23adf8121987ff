package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jllopis/rolegate/pkg/resilience"
)

func TestStaticChecker(t *testing.T) {
	tests := []struct {
		name   string
		status Status
	}{
		{"healthy", Healthy},
		{"degraded", Degraded},
		{"unhealthy", Unhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Static(tt.status, "msg").Check(context.Background())
			if r.Status != tt.status || r.Message != "msg" {
				t.Errorf("unexpected result %+v", r)
			}
			if r.LastCheck.IsZero() {
				t.Errorf("expected LastCheck to be set")
			}
		})
	}
}

func TestPing(t *testing.T) {
	ok := Ping(func(context.Context) error { return nil }).Check(context.Background())
	if ok.Status != Healthy {
		t.Errorf("expected healthy, got %s", ok.Status)
	}
	bad := Ping(func(context.Context) error { return errors.New("database is locked") }).Check(context.Background())
	if bad.Status != Unhealthy || bad.Message != "database is locked" {
		t.Errorf("unexpected result %+v", bad)
	}
}

func TestBreakerChecker(t *testing.T) {
	if r := Breaker(nil).Check(context.Background()); r.Status != Healthy {
		t.Errorf("nil breaker should be healthy, got %s", r.Status)
	}

	b := resilience.NewBreaker(resilience.BreakerConfig{Name: "nlp", Threshold: 1, OpenTimeout: time.Minute})
	if r := Breaker(b).Check(context.Background()); r.Status != Healthy {
		t.Errorf("closed breaker should be healthy, got %+v", r)
	}
	_, _ = resilience.Execute(b, func() (int, error) { return 0, errors.New("down") })
	if r := Breaker(b).Check(context.Background()); r.Status != Unhealthy || r.Message != "circuit open" {
		t.Errorf("open breaker should be unhealthy, got %+v", r)
	}
}

func TestRegistryCheckAll(t *testing.T) {
	tests := []struct {
		name     string
		statuses map[string]Status
		want     Status
	}{
		{"empty", nil, Healthy},
		{"all healthy", map[string]Status{"a": Healthy, "b": Healthy}, Healthy},
		{"one degraded", map[string]Status{"a": Healthy, "b": Degraded}, Degraded},
		{"unhealthy wins", map[string]Status{"a": Degraded, "b": Unhealthy, "c": Healthy}, Unhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry(0)
			for name, status := range tt.statuses {
				reg.Register(name, Static(status, ""))
			}
			results, overall := reg.CheckAll(context.Background())
			if overall != tt.want {
				t.Errorf("expected %s, got %s", tt.want, overall)
			}
			if len(results) != len(tt.statuses) {
				t.Fatalf("expected %d results, got %d", len(tt.statuses), len(results))
			}
			for i := 1; i < len(results); i++ {
				if results[i-1].Component > results[i].Component {
					t.Errorf("results not sorted: %v", results)
				}
			}
		})
	}
}

func TestRegistryCache(t *testing.T) {
	var calls atomic.Int32
	counting := CheckerFunc(func(context.Context) Result {
		calls.Add(1)
		return Result{Status: Healthy}
	})

	cached := NewRegistry(time.Minute)
	cached.Register("audit", counting)
	for i := 0; i < 3; i++ {
		if _, err := cached.Check(context.Background(), "audit"); err != nil {
			t.Fatal(err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected one call with caching, got %d", got)
	}

	calls.Store(0)
	uncached := NewRegistry(0)
	uncached.Register("audit", counting)
	for i := 0; i < 3; i++ {
		_, _ = uncached.Check(context.Background(), "audit")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected three calls without caching, got %d", got)
	}

	if _, err := uncached.Check(context.Background(), "missing"); err == nil {
		t.Errorf("expected an error for an unregistered component")
	}
}
