package transform

import (
	"reflect"
	"testing"

	"github.com/jllopis/rolegate/pkg/core"
)

func newTestTransformer(t *testing.T) *Transformer {
	t.Helper()
	tr, err := New(
		Entry{Role: "hr_manager", Scope: core.ScopeDomain, Func: Enrich("hrInsights", map[string]any{
			"employeeSatisfaction": "4.2/5",
			"retentionRate":        "92%",
		})},
		Entry{Role: "employee", Scope: core.ScopePersonal, Func: Chain(
			Redact("systemData", "adminData"),
			Enrich("personalInsights", map[string]any{"goalStatus": "On Track"}),
		)},
	)
	if err != nil {
		t.Fatalf("transformer: %v", err)
	}
	return tr
}

func sampleResult() map[string]any {
	return map[string]any{
		"data":       map[string]any{"sentiment": "positive"},
		"salary":     12000,
		"systemData": map[string]any{"nodes": 4},
		"employees": []any{
			map[string]any{"name": "Sara", "ssn": "123-45-6789", "bank_details": "x"},
		},
	}
}

func TestEnrichmentNeverDropsFields(t *testing.T) {
	tr := newTestTransformer(t)
	raw := sampleResult()
	out := tr.Transform(raw, "hr_manager")

	for k := range raw {
		if _, ok := out[k]; !ok {
			t.Fatalf("enrichment dropped key %q", k)
		}
	}
	if _, ok := out["hrInsights"]; !ok {
		t.Fatalf("expected hrInsights enrichment")
	}
	if _, ok := raw["hrInsights"]; ok {
		t.Fatalf("transform must not mutate the raw result")
	}
}

func TestEnrichDoesNotOverwrite(t *testing.T) {
	out := Enrich("hrInsights", map[string]any{"x": 1})(map[string]any{"hrInsights": "provider"})
	if out["hrInsights"] != "provider" {
		t.Fatalf("existing key must be preserved, got %v", out["hrInsights"])
	}
}

func TestRedactionRemovesSensitiveFields(t *testing.T) {
	tr := newTestTransformer(t)
	out := tr.Transform(sampleResult(), "employee")

	for _, k := range []string{"salary", "systemData"} {
		if _, ok := out[k]; ok {
			t.Fatalf("field %q leaked to employee", k)
		}
	}
	emp := out["employees"].([]any)[0].(map[string]any)
	if _, ok := emp["ssn"]; ok {
		t.Fatalf("nested ssn leaked")
	}
	if _, ok := emp["bank_details"]; ok {
		t.Fatalf("nested bank_details leaked")
	}
	if emp["name"] != "Sara" {
		t.Fatalf("non-sensitive nested field removed")
	}
	if _, ok := out["personalInsights"]; !ok {
		t.Fatalf("expected personal insights")
	}
}

func TestRedactionIdempotent(t *testing.T) {
	tr := newTestTransformer(t)
	once := tr.Transform(sampleResult(), "employee")
	twice := tr.Transform(once, "employee")
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("redaction not idempotent:\n%v\n%v", once, twice)
	}
}

func TestUnknownRoleFailsClosed(t *testing.T) {
	tr := newTestTransformer(t)
	out := tr.Transform(sampleResult(), "contractor")
	if _, ok := out["salary"]; ok {
		t.Fatalf("unknown role must receive redacted output")
	}
	if tr.Has("contractor") {
		t.Fatalf("unexpected strategy for contractor")
	}
}

func TestPersonalScopeRedactedWithoutStrategy(t *testing.T) {
	tr, _ := New(Entry{Role: "guest", Scope: core.ScopePersonal})
	out := tr.Transform(map[string]any{"iban": "SA00", "ok": true}, "guest")
	if _, ok := out["iban"]; ok {
		t.Fatalf("iban leaked")
	}
	if out["ok"] != true {
		t.Fatalf("expected ok preserved")
	}
}

func TestNewRejectsDuplicates(t *testing.T) {
	if _, err := New(Entry{Role: "a"}, Entry{Role: "a"}); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if _, err := New(Entry{}); err == nil {
		t.Fatalf("expected missing role error")
	}
}

func TestMaskPII(t *testing.T) {
	in := map[string]any{
		"note":   "contact sara@example.com or 0551234567, id 1098765432",
		"list":   []any{"IBAN SA0380000000608010167519"},
		"amount": 3,
	}
	out := MaskPII()(in)
	want := "contact [EMAIL] or [PHONE], id [NATIONAL_ID]"
	if out["note"] != want {
		t.Fatalf("unexpected masked note %q", out["note"])
	}
	if out["list"].([]any)[0] != "IBAN [IBAN]" {
		t.Fatalf("unexpected masked list %v", out["list"])
	}
	if in["note"] == want {
		t.Fatalf("input must not be mutated")
	}
	again := MaskPII()(out)
	if !reflect.DeepEqual(out, again) {
		t.Fatalf("masking not idempotent")
	}
}

func TestMaskStringFixedPoint(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"contact a@b.co1234567890", "contact [EMAIL][NATIONAL_ID]"},
		{"a@b.co0551234567", "[EMAIL][PHONE]"},
		{"x@y.org 2098765432", "[EMAIL] [NATIONAL_ID]"},
		{"no identifiers here", "no identifiers here"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := MaskString(tt.in)
			if got != tt.want {
				t.Fatalf("MaskString(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if again := MaskString(got); again != got {
				t.Fatalf("not a fixed point: %q then %q", got, again)
			}
		})
	}
}

func TestScrubNeverEnriches(t *testing.T) {
	tr := newTestTransformer(t)
	out := tr.Scrub(sampleResult(), "hr_manager")
	if _, ok := out["hrInsights"]; ok {
		t.Fatalf("scrub must not enrich")
	}
	if _, ok := out["salary"]; !ok {
		t.Fatalf("privileged scrub must keep fields")
	}
	out = tr.Scrub(sampleResult(), "employee")
	if _, ok := out["salary"]; ok {
		t.Fatalf("salary leaked to personal scope")
	}
	if _, ok := out["personalInsights"]; ok {
		t.Fatalf("scrub must not enrich personal scope")
	}
}

func TestNilTransformerRedacts(t *testing.T) {
	var tr *Transformer
	out := tr.Transform(sampleResult(), "hr_manager")
	if _, ok := out["salary"]; ok {
		t.Fatalf("nil transformer must fail closed")
	}
	if tr.Has("hr_manager") {
		t.Fatalf("nil transformer has no roles")
	}
}
