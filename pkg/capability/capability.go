// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package capability maps operation kinds to capabilities and capabilities to
// the handlers that serve them.
package capability

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jllopis/rolegate/pkg/core"
	"github.com/jllopis/rolegate/pkg/errors"
	"github.com/jllopis/rolegate/pkg/policy"
)

// Result is the raw output of a capability provider.
type Result struct {
	// Confidence is nil when the provider does not report one.
	Confidence      *float64       `json:"confidence,omitempty"`
	Data            map[string]any `json:"data"`
	Recommendations []string       `json:"recommendations,omitempty"`
}

// Confidence returns a pointer to v, for building results.
func Confidence(v float64) *float64 {
	return &v
}

// Provider is an external collaborator serving one or more capabilities
// (an NLP backend, a report generator, ...).
type Provider interface {
	Invoke(ctx context.Context, payload map[string]any, p policy.RolePolicy) (Result, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, payload map[string]any, p policy.RolePolicy) (Result, error)

// Invoke implements Provider.
func (f ProviderFunc) Invoke(ctx context.Context, payload map[string]any, p policy.RolePolicy) (Result, error) {
	return f(ctx, payload, p)
}

// Handler binds a provider to the capabilities it serves.
type Handler struct {
	ID           string
	DisplayName  string
	Capabilities []core.Capability
	Provider     Provider
}

// Supports reports whether h declares capability.
func (h Handler) Supports(capability core.Capability) bool {
	for _, c := range h.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// Name returns the display name, falling back to the id.
func (h Handler) Name() string {
	if h.DisplayName != "" {
		return h.DisplayName
	}
	return h.ID
}

// Registry is built once at start-up and read-only afterwards.
type Registry struct {
	operations map[string]core.Capability
	handlers   []Handler
}

// NewRegistry validates and builds a registry. Handlers keep their
// registration order, which decides selection (first match wins).
func NewRegistry(operations map[string]core.Capability, handlers ...Handler) (*Registry, error) {
	r := &Registry{
		operations: make(map[string]core.Capability, len(operations)),
		handlers:   make([]Handler, 0, len(handlers)),
	}
	for kind, capability := range operations {
		kind = strings.TrimSpace(kind)
		if kind == "" {
			return nil, fmt.Errorf("operation kind is required")
		}
		if capability == "" {
			return nil, fmt.Errorf("operation %q maps to no capability", kind)
		}
		r.operations[kind] = capability
	}
	seen := make(map[string]bool, len(handlers))
	for _, h := range handlers {
		if h.ID == "" {
			return nil, fmt.Errorf("handler id is required")
		}
		if seen[h.ID] {
			return nil, fmt.Errorf("duplicate handler %q", h.ID)
		}
		if len(h.Capabilities) == 0 {
			return nil, fmt.Errorf("handler %q declares no capability", h.ID)
		}
		if h.Provider == nil {
			return nil, fmt.Errorf("handler %q has no provider", h.ID)
		}
		seen[h.ID] = true
		h.Capabilities = append([]core.Capability(nil), h.Capabilities...)
		r.handlers = append(r.handlers, h)
	}
	return r, nil
}

// CapabilityFor returns the capability an operation kind requires.
func (r *Registry) CapabilityFor(kind string) (core.Capability, error) {
	if c, ok := r.operations[kind]; ok {
		return c, nil
	}
	return "", errors.Newf(errors.CodeUnsupportedOperation, "operation %q is not supported", kind).
		WithContext("operation", kind)
}

// Select returns the first registered handler serving capability.
func (r *Registry) Select(capability core.Capability) (Handler, error) {
	for _, h := range r.handlers {
		if h.Supports(capability) {
			return h, nil
		}
	}
	return Handler{}, errors.Newf(errors.CodeNoHandlerAvailable, "no handler available for capability %q", capability).
		WithContext("capability", string(capability))
}

// Handlers returns the handlers in registration order.
func (r *Registry) Handlers() []Handler {
	return append([]Handler(nil), r.handlers...)
}

// Operations returns the known operation kinds sorted by name.
func (r *Registry) Operations() []string {
	out := make([]string, 0, len(r.operations))
	for k := range r.operations {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Capabilities returns every capability referenced by an operation kind.
func (r *Registry) Capabilities() []core.Capability {
	set := make(map[core.Capability]bool)
	for _, c := range r.operations {
		set[c] = true
	}
	out := make([]core.Capability, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
