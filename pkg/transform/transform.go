// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package transform shapes results according to the requesting role before
// they leave the orchestration core.
//
// Privileged roles get additive enrichment (summary metrics); least-privileged
// roles get explicit field redaction. A Transformer is the single place where
// data scope is enforced, so every outbound path must end with Transform.
package transform

import (
	"fmt"

	"github.com/jllopis/rolegate/pkg/core"
)

// DefaultSensitiveFields are removed for personal-scope roles even when no
// strategy names them.
var DefaultSensitiveFields = []string{
	"salary",
	"ssn",
	"bank_details",
	"iban",
	"national_id",
	"systemData",
	"adminData",
}

// Func transforms a result. Implementations must not mutate their input.
type Func func(raw map[string]any) map[string]any

// Entry registers a strategy for a role alongside its data scope.
type Entry struct {
	Role  string
	Scope core.DataScope
	Func  Func
}

// Transformer maps roles to strategies. Read-only after construction.
type Transformer struct {
	entries map[string]Entry
	redact  Func
}

// New builds a transformer from entries. Duplicate roles are rejected.
func New(entries ...Entry) (*Transformer, error) {
	t := &Transformer{
		entries: make(map[string]Entry, len(entries)),
		redact:  Redact(DefaultSensitiveFields...),
	}
	for _, e := range entries {
		if e.Role == "" {
			return nil, fmt.Errorf("transform entry without role")
		}
		if _, dup := t.entries[e.Role]; dup {
			return nil, fmt.Errorf("duplicate transform entry for role %q", e.Role)
		}
		t.entries[e.Role] = e
	}
	return t, nil
}

// Transform applies the role's strategy to raw and returns a new map.
// Personal-scope and unknown roles are always passed through the default
// redaction, after their own strategy. A nil Transformer redacts everything
// it is given.
func (t *Transformer) Transform(raw map[string]any, role string) map[string]any {
	out := Clone(raw)
	if t == nil {
		return Redact(DefaultSensitiveFields...)(out)
	}
	e, ok := t.entries[role]
	if ok && e.Func != nil {
		out = e.Func(out)
	}
	if !ok || !e.Scope.Privileged() {
		out = t.redact(out)
	}
	return out
}

// Scrub applies only the redaction side: unknown and personal-scope roles
// lose the default sensitive fields, nothing is ever added. It is used for
// ledger entries, where enrichment would only add noise.
func (t *Transformer) Scrub(raw map[string]any, role string) map[string]any {
	out := Clone(raw)
	if t == nil {
		return Redact(DefaultSensitiveFields...)(out)
	}
	if e, ok := t.entries[role]; ok && e.Scope.Privileged() {
		return out
	}
	return t.redact(out)
}

// Has reports whether a strategy is registered for role.
func (t *Transformer) Has(role string) bool {
	if t == nil {
		return false
	}
	_, ok := t.entries[role]
	return ok
}

// Enrich attaches section under key unless key already exists.
func Enrich(key string, section map[string]any) Func {
	return func(raw map[string]any) map[string]any {
		out := Clone(raw)
		if _, exists := out[key]; exists {
			return out
		}
		out[key] = Clone(section)
		return out
	}
}

// Redact removes the named fields at every nesting level.
func Redact(fields ...string) Func {
	drop := make(map[string]bool, len(fields))
	for _, f := range fields {
		drop[f] = true
	}
	return func(raw map[string]any) map[string]any {
		out, _ := redactValue(Clone(raw), drop).(map[string]any)
		if out == nil {
			out = map[string]any{}
		}
		return out
	}
}

// Chain applies fns in order.
func Chain(fns ...Func) Func {
	return func(raw map[string]any) map[string]any {
		out := raw
		for _, fn := range fns {
			if fn != nil {
				out = fn(out)
			}
		}
		if out == nil {
			out = map[string]any{}
		}
		return out
	}
}

func redactValue(v any, drop map[string]bool) any {
	switch val := v.(type) {
	case map[string]any:
		for k, inner := range val {
			if drop[k] {
				delete(val, k)
				continue
			}
			val[k] = redactValue(inner, drop)
		}
		return val
	case []any:
		for i, inner := range val {
			val[i] = redactValue(inner, drop)
		}
		return val
	default:
		return v
	}
}

// Clone deep-copies maps and slices so strategies never alias caller data.
func Clone(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return core.CloneMap(m)
}
