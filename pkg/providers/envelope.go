// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package providers holds the wire envelope shared by remote capability
// providers. Concrete providers live in subpackages: static, rest and mcptool.
package providers

import (
	"sort"

	"github.com/jllopis/rolegate/pkg/capability"
	"github.com/jllopis/rolegate/pkg/core"
	"github.com/jllopis/rolegate/pkg/policy"
)

// Request is the body sent to a remote provider.
type Request struct {
	Query       string         `json:"query,omitempty"`
	Data        any            `json:"data,omitempty"`
	RoleContext RoleContext    `json:"role_context"`
	TenantID    string         `json:"tenant_id,omitempty"`
	Preferences map[string]any `json:"preferences,omitempty"`
}

// RoleContext is the part of the caller's policy a provider may use to shape
// its answer.
type RoleContext struct {
	Role         string   `json:"role"`
	DataScope    string   `json:"data_scope"`
	Priorities   []string `json:"priorities,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	Restrictions []string `json:"restrictions,omitempty"`
}

// NewRequest builds the envelope for payload. The payload keys query (or
// context), tenant_id and preferences are lifted out; data is sent as is when
// present, otherwise the rest of the payload is sent as data.
func NewRequest(payload map[string]any, p policy.RolePolicy) Request {
	req := Request{RoleContext: newRoleContext(p)}
	rest := core.CloneMap(payload)
	if rest == nil {
		rest = map[string]any{}
	}
	if q, ok := rest["query"].(string); ok {
		req.Query = q
		delete(rest, "query")
	} else if q, ok := rest["context"].(string); ok {
		req.Query = q
		delete(rest, "context")
	}
	if t, ok := rest["tenant_id"].(string); ok {
		req.TenantID = t
		delete(rest, "tenant_id")
	}
	if prefs, ok := rest["preferences"].(map[string]any); ok {
		req.Preferences = prefs
		delete(rest, "preferences")
	}
	if data, ok := rest["data"]; ok {
		req.Data = data
	} else if len(rest) > 0 {
		req.Data = rest
	}
	return req
}

// Map renders the request as a plain map, the form MCP tool arguments take.
func (r Request) Map() map[string]any {
	rc := map[string]any{
		"role":       r.RoleContext.Role,
		"data_scope": r.RoleContext.DataScope,
	}
	if len(r.RoleContext.Priorities) > 0 {
		rc["priorities"] = toAny(r.RoleContext.Priorities)
	}
	if len(r.RoleContext.Capabilities) > 0 {
		rc["capabilities"] = toAny(r.RoleContext.Capabilities)
	}
	if len(r.RoleContext.Restrictions) > 0 {
		rc["restrictions"] = toAny(r.RoleContext.Restrictions)
	}
	m := map[string]any{"role_context": rc}
	if r.Query != "" {
		m["query"] = r.Query
	}
	if r.Data != nil {
		m["data"] = r.Data
	}
	if r.TenantID != "" {
		m["tenant_id"] = r.TenantID
	}
	if r.Preferences != nil {
		m["preferences"] = r.Preferences
	}
	return m
}

// DecodeResult turns a decoded provider answer into a capability result.
// Answers with a data object use it as the result data; flat answers are
// used whole. confidence and recommendations are read when present.
func DecodeResult(body map[string]any) capability.Result {
	var res capability.Result
	if c, ok := number(body["confidence"]); ok {
		res.Confidence = capability.Confidence(c)
	}
	if recs, ok := body["recommendations"].([]any); ok {
		for _, r := range recs {
			if s, ok := r.(string); ok {
				res.Recommendations = append(res.Recommendations, s)
			}
		}
	}
	if data, ok := body["data"].(map[string]any); ok {
		res.Data = data
		return res
	}
	res.Data = make(map[string]any, len(body))
	for k, v := range body {
		if k == "confidence" || k == "recommendations" {
			continue
		}
		res.Data[k] = v
	}
	return res
}

func newRoleContext(p policy.RolePolicy) RoleContext {
	rc := RoleContext{
		Role:       p.ID,
		DataScope:  string(p.DataScope),
		Priorities: append([]string(nil), p.PriorityTopics...),
	}
	for _, c := range p.Capabilities() {
		rc.Capabilities = append(rc.Capabilities, string(c))
	}
	for op := range p.RestrictedOperations {
		rc.Restrictions = append(rc.Restrictions, op)
	}
	sort.Strings(rc.Restrictions)
	return rc
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
