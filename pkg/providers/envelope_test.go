package providers

import (
	"testing"

	"github.com/jllopis/rolegate/pkg/core"
	"github.com/jllopis/rolegate/pkg/policy"
)

func TestNewRequest(t *testing.T) {
	p, _ := policy.New(policy.Spec{
		ID:                   "manager",
		Capabilities:         []string{"nlp", "data_analysis"},
		DataScope:            core.ScopeTeam,
		RestrictedOperations: []string{"hr_functions", "company_wide_operations"},
	})

	tests := []struct {
		name      string
		payload   map[string]any
		wantQuery string
		wantData  bool
	}{
		{"query key", map[string]any{"query": "q"}, "q", false},
		{"context alias", map[string]any{"context": "c", "x": 1}, "c", true},
		{"explicit data", map[string]any{"data": map[string]any{"a": 1}}, "", true},
		{"empty", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := NewRequest(tt.payload, p)
			if req.Query != tt.wantQuery {
				t.Errorf("query: expected %q, got %q", tt.wantQuery, req.Query)
			}
			if (req.Data != nil) != tt.wantData {
				t.Errorf("data: expected present=%v, got %v", tt.wantData, req.Data)
			}
			if req.RoleContext.Role != "manager" {
				t.Errorf("unexpected role context %+v", req.RoleContext)
			}
			if got := req.RoleContext.Restrictions; len(got) != 2 || got[0] != "company_wide_operations" {
				t.Errorf("expected sorted restrictions, got %v", got)
			}
		})
	}
}

func TestNewRequestDoesNotMutatePayload(t *testing.T) {
	payload := map[string]any{"query": "q", "tenant_id": "t"}
	NewRequest(payload, policy.RolePolicy{ID: "x"})
	if payload["query"] != "q" || payload["tenant_id"] != "t" {
		t.Errorf("payload was mutated: %v", payload)
	}
}

func TestDecodeResult(t *testing.T) {
	res := DecodeResult(map[string]any{
		"confidence":      0.5,
		"recommendations": []any{"a", 3, "b"},
		"data":            map[string]any{"k": "v"},
		"ignored":         true,
	})
	if res.Confidence == nil || *res.Confidence != 0.5 {
		t.Errorf("expected confidence 0.5")
	}
	if len(res.Recommendations) != 2 {
		t.Errorf("expected string recommendations only, got %v", res.Recommendations)
	}
	if len(res.Data) != 1 || res.Data["k"] != "v" {
		t.Errorf("expected nested data, got %v", res.Data)
	}

	flat := DecodeResult(map[string]any{"sentiment": "neutral"})
	if flat.Confidence != nil || flat.Data["sentiment"] != "neutral" {
		t.Errorf("unexpected flat decode %+v", flat)
	}
}

func TestRequestMap(t *testing.T) {
	m := Request{Query: "q", RoleContext: RoleContext{Role: "r", Priorities: []string{"p"}}}.Map()
	rc := m["role_context"].(map[string]any)
	if rc["role"] != "r" || len(rc["priorities"].([]any)) != 1 {
		t.Errorf("unexpected map %v", m)
	}
	if _, ok := m["data"]; ok {
		t.Errorf("empty data must be omitted")
	}
}
