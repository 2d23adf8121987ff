package rules

import (
	"testing"

	"github.com/jllopis/rolegate/pkg/core"
)

func TestCompileCondition(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		role    string
		payload map[string]any
		want    bool
		wantErr bool
	}{
		{
			name:    "salary over threshold",
			expr:    `has(data.salary_change) && (data.salary_change > 1000 || data.salary_change < -1000)`,
			role:    "hr_manager",
			payload: map[string]any{"salary_change": 1500.0},
			want:    true,
		},
		{
			name:    "negative salary change",
			expr:    `has(data.salary_change) && (data.salary_change > 1000 || data.salary_change < -1000)`,
			role:    "hr_manager",
			payload: map[string]any{"salary_change": -2000},
			want:    true,
		},
		{
			name:    "missing key guarded by has",
			expr:    `has(data.salary_change) && data.salary_change > 1000`,
			role:    "hr_manager",
			payload: map[string]any{},
			want:    false,
		},
		{
			name:    "tenure modulo",
			expr:    `has(data.tenure_months) && int(data.tenure_months) > 0 && int(data.tenure_months) % 6 == 0`,
			role:    "manager",
			payload: map[string]any{"tenure_months": 12.0},
			want:    true,
		},
		{
			name:    "whole tenure multiple of six",
			expr:    `has(data.tenure_months) && data.tenure_months > 0 && double(int(data.tenure_months)) == double(data.tenure_months) && int(data.tenure_months) % 6 == 0`,
			role:    "manager",
			payload: map[string]any{"tenure_months": 18},
			want:    true,
		},
		{
			name:    "fractional tenure never matches",
			expr:    `has(data.tenure_months) && data.tenure_months > 0 && double(int(data.tenure_months)) == double(data.tenure_months) && int(data.tenure_months) % 6 == 0`,
			role:    "manager",
			payload: map[string]any{"tenure_months": 6.5},
			want:    false,
		},
		{
			name:    "role variable",
			expr:    `role == "admin"`,
			role:    "admin",
			payload: nil,
			want:    true,
		},
		{
			name:    "missing key without guard errors",
			expr:    `data.status_change == "terminated"`,
			role:    "admin",
			payload: map[string]any{},
			wantErr: true,
		},
		{
			name:    "non bool result errors",
			expr:    `data.name`,
			role:    "admin",
			payload: map[string]any{"name": "x"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond, err := CompileCondition(tt.expr)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			got, err := cond(core.NewExecutionContext(tt.role, tt.payload))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected evaluation error")
				}
				return
			}
			if err != nil {
				t.Fatalf("eval: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCompileConditionSyntaxError(t *testing.T) {
	if _, err := CompileCondition(`data.x ==`); err == nil {
		t.Fatalf("expected compile error")
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	MustCompileCondition(`((`)
}
