// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"

	"github.com/google/uuid"
)

// ExecutionContext is created per request and never shared across calls.
type ExecutionContext struct {
	Role     string         `json:"role"`
	TenantID string         `json:"tenant_id,omitempty"`
	ActorID  string         `json:"actor_id,omitempty"`
	Payload  map[string]any `json:"payload,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewExecutionContext builds a context from a role and a copy of payload.
// Tenant and actor ids are lifted from well-known payload keys when present.
func NewExecutionContext(role string, payload map[string]any) ExecutionContext {
	payload = CloneMap(payload)
	if payload == nil {
		payload = map[string]any{}
	}
	ec := ExecutionContext{
		Role:     role,
		Payload:  payload,
		Metadata: map[string]any{},
	}
	ec.TenantID = firstString(payload, "tenant_id", "company_id")
	ec.ActorID = firstString(payload, "actor_id", "user_id")
	return ec
}

// Get returns a payload value.
func (ec ExecutionContext) Get(key string) (any, bool) {
	v, ok := ec.Payload[key]
	return v, ok
}

// Attrs flattens the context for expression evaluation.
func (ec ExecutionContext) Attrs() map[string]any {
	return map[string]any{
		"role":      ec.Role,
		"tenant_id": ec.TenantID,
		"actor_id":  ec.ActorID,
		"data":      nonNil(ec.Payload),
		"metadata":  nonNil(ec.Metadata),
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

type runIDKey struct{}

// WithRunID attaches a run id to the context.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the run id if present.
func RunID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok
}

// EnsureRunID ensures a run id exists in the context.
func EnsureRunID(ctx context.Context) (context.Context, string) {
	if id, ok := RunID(ctx); ok {
		return ctx, id
	}
	id := "run-" + uuid.NewString()
	return WithRunID(ctx, id), id
}
