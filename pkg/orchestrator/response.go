// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"time"

	"github.com/jllopis/rolegate/pkg/policy"
)

// DefaultConfidence is reported when a provider returns no confidence.
const DefaultConfidence = 0.8

// Outcome classifies a dispatch result.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	// OutcomeFailed means the handler ran and failed.
	OutcomeFailed Outcome = "failed"
	// OutcomeError marks a batch item rejected before reaching a handler.
	OutcomeError Outcome = "error"
)

// Response is the result of a single dispatch. Result is always the
// role-transformed view; the raw provider data never leaves the core.
type Response struct {
	Outcome         Outcome        `json:"outcome"`
	Operation       string         `json:"operation"`
	Confidence      float64        `json:"confidence"`
	Result          map[string]any `json:"result"`
	TimingMs        int64          `json:"timing_ms"`
	Recommendations []string       `json:"recommendations,omitempty"`
	NextActions     []string       `json:"next_actions,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Error           string         `json:"error,omitempty"`
	Err             error          `json:"-"`
}

// Succeeded reports whether the handler produced a result.
func (r *Response) Succeeded() bool {
	return r != nil && r.Outcome == OutcomeSuccess
}

type nextActionRule struct {
	topic  string
	flag   string
	action string
}

var nextActionRules = []nextActionRule{
	{topic: "automation", flag: "automatable", action: "Create automation workflow"},
	{topic: "compliance_monitoring", flag: "compliance_relevant", action: "Review compliance requirements"},
	{topic: "performance_optimization", flag: "performance_impact", action: "Analyze performance metrics"},
}

// nextActions derives follow-ups from the role's priority topics and the
// flags a provider set on its raw result. Priority order decides the order.
func nextActions(p policy.RolePolicy, raw map[string]any) []string {
	var out []string
	for _, topic := range p.PriorityTopics {
		for _, r := range nextActionRules {
			if r.topic == topic && truthy(raw[r.flag]) {
				out = append(out, r.action)
			}
		}
	}
	return out
}

func recommendations(p policy.RolePolicy, fromProvider []string) []string {
	out := make([]string, 0, len(fromProvider)+len(p.Recommendations))
	out = append(out, fromProvider...)
	return append(out, p.Recommendations...)
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != "" && val != "false"
	case float64:
		return val != 0
	case int:
		return val != 0
	default:
		return false
	}
}

func metadata(handler, capability, role string, at time.Time) map[string]any {
	return map[string]any{
		"model":      handler,
		"capability": capability,
		"role":       role,
		"timestamp":  at.UTC().Format(time.RFC3339),
	}
}
