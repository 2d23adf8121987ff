package static

import (
	"context"
	"testing"

	"github.com/jllopis/rolegate/pkg/capability"
	"github.com/jllopis/rolegate/pkg/policy"
)

func TestProviderImplementsInterface(t *testing.T) {
	var _ capability.Provider = (*Provider)(nil)
}

func TestInvokeReturnsIndependentCopies(t *testing.T) {
	p := New(map[string]any{"insight": map[string]any{"score": 1}},
		WithConfidence(0.9),
		WithRecommendations("Check the dashboard"),
	)

	first, err := p.Invoke(context.Background(), nil, policy.RolePolicy{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	first.Data["insight"].(map[string]any)["score"] = 99

	second, _ := p.Invoke(context.Background(), nil, policy.RolePolicy{})
	if second.Data["insight"].(map[string]any)["score"] != 1 {
		t.Errorf("canned data was mutated through a previous result")
	}
	if second.Confidence == nil || *second.Confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %v", second.Confidence)
	}
	if len(second.Recommendations) != 1 {
		t.Errorf("expected one recommendation, got %v", second.Recommendations)
	}
}

func TestInvokeEcho(t *testing.T) {
	p := New(nil, WithEcho())
	res, err := p.Invoke(context.Background(), map[string]any{"text": "hi"}, policy.RolePolicy{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	input, ok := res.Data["input"].(map[string]any)
	if !ok || input["text"] != "hi" {
		t.Errorf("expected echoed payload, got %v", res.Data)
	}
	if res.Confidence != nil {
		t.Errorf("expected no confidence, got %v", *res.Confidence)
	}
}

func TestInvokeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(nil).Invoke(ctx, nil, policy.RolePolicy{}); err == nil {
		t.Fatalf("expected error for canceled context")
	}
}
