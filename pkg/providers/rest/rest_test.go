package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jllopis/rolegate/pkg/capability"
	"github.com/jllopis/rolegate/pkg/core"
	"github.com/jllopis/rolegate/pkg/errors"
	"github.com/jllopis/rolegate/pkg/health"
	"github.com/jllopis/rolegate/pkg/policy"
	"github.com/jllopis/rolegate/pkg/resilience"
)

func testPolicy(t *testing.T) policy.RolePolicy {
	t.Helper()
	p, err := policy.New(policy.Spec{
		ID:                   "hr_manager",
		Capabilities:         []string{"nlp"},
		DataScope:            core.ScopeDomain,
		PriorityTopics:       []string{"employee_management"},
		RestrictedOperations: []string{"financial_projections"},
	})
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	return p
}

func fastRetry(attempts int) resilience.RetryConfig {
	return resilience.DefaultRetryConfig().WithMaxAttempts(attempts).WithInitialDelay(time.Millisecond)
}

func TestProviderImplementsInterface(t *testing.T) {
	var _ capability.Provider = (*Provider)(nil)
	var _ health.Checker = (*Provider)(nil)
}

func TestInvokeSendsEnvelope(t *testing.T) {
	var got map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"confidence":0.93,"sentiment":"positive","recommendations":["Share with the team"]}`))
	}))
	defer srv.Close()

	p := New(srv.URL, WithToken("secret"), WithRetry(fastRetry(1)))
	res, err := p.Invoke(context.Background(), map[string]any{
		"query":     "how is morale?",
		"tenant_id": "t-1",
		"team":      "ops",
	}, testPolicy(t))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	if auth != "Bearer secret" {
		t.Errorf("expected bearer token, got %q", auth)
	}
	if got["query"] != "how is morale?" || got["tenant_id"] != "t-1" {
		t.Errorf("unexpected envelope %v", got)
	}
	if data, _ := got["data"].(map[string]any); data["team"] != "ops" {
		t.Errorf("expected remaining payload as data, got %v", got["data"])
	}
	rc, _ := got["role_context"].(map[string]any)
	if rc["role"] != "hr_manager" || rc["data_scope"] != "domain" {
		t.Errorf("unexpected role context %v", rc)
	}

	if res.Confidence == nil || *res.Confidence != 0.93 {
		t.Errorf("expected confidence 0.93, got %v", res.Confidence)
	}
	if res.Data["sentiment"] != "positive" {
		t.Errorf("unexpected data %v", res.Data)
	}
	if _, ok := res.Data["confidence"]; ok {
		t.Errorf("confidence must not leak into data")
	}
	if len(res.Recommendations) != 1 {
		t.Errorf("expected one recommendation, got %v", res.Recommendations)
	}
}

func TestInvokeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"ok":true}}`))
	}))
	defer srv.Close()

	p := New(srv.URL, WithRetry(fastRetry(3)), WithBreaker(nil))
	res, err := p.Invoke(context.Background(), nil, testPolicy(t))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
	if res.Data["ok"] != true {
		t.Errorf("unexpected data %v", res.Data)
	}
}

func TestInvokeClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer srv.Close()

	p := New(srv.URL, WithRetry(fastRetry(3)), WithBreaker(nil))
	_, err := p.Invoke(context.Background(), nil, testPolicy(t))
	if !errors.Is(err, errors.CodeHandlerExecution) {
		t.Fatalf("expected handler execution error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single call, got %d", calls.Load())
	}
}

func TestInvokeMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	p := New(srv.URL, WithRetry(fastRetry(1)))
	if _, err := p.Invoke(context.Background(), nil, testPolicy(t)); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Name:        "test",
		Threshold:   2,
		OpenTimeout: time.Minute,
	})
	p := New(srv.URL, WithRetry(fastRetry(1)), WithBreaker(breaker))

	for i := 0; i < 2; i++ {
		if _, err := p.Invoke(context.Background(), nil, testPolicy(t)); err == nil {
			t.Fatalf("expected failure on call %d", i)
		}
	}
	_, err := p.Invoke(context.Background(), nil, testPolicy(t))
	if err == nil {
		t.Fatalf("expected open circuit error")
	}
	if calls.Load() != 2 {
		t.Errorf("expected the open breaker to short-circuit, got %d calls", calls.Load())
	}
	if breaker.State() != "open" {
		t.Errorf("expected open breaker, got %s", breaker.State())
	}
	if r := p.Check(context.Background()); r.Status != health.Unhealthy {
		t.Errorf("expected unhealthy provider, got %+v", r)
	}
}
