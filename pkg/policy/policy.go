// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy resolves actor roles to their static policy records.
package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jllopis/rolegate/pkg/core"
	"github.com/jllopis/rolegate/pkg/errors"
)

// RolePolicy defines what an actor with a given role may do and see.
// Policies are built once at start-up and never mutated.
type RolePolicy struct {
	ID                   string
	AllowedCapabilities  map[core.Capability]bool
	DataScope            core.DataScope
	PriorityTopics       []string
	RestrictedOperations map[string]bool
	Recommendations      []string
}

// Spec is the plain form of a RolePolicy used by builders and catalogs.
type Spec struct {
	ID                   string
	Capabilities         []string
	DataScope            core.DataScope
	PriorityTopics       []string
	RestrictedOperations []string
	Recommendations      []string
}

// New builds an immutable policy from a spec.
func New(spec Spec) (RolePolicy, error) {
	id := strings.TrimSpace(spec.ID)
	if id == "" {
		return RolePolicy{}, fmt.Errorf("role id is required")
	}
	if spec.DataScope == "" {
		return RolePolicy{}, fmt.Errorf("role %q missing data scope", id)
	}
	p := RolePolicy{
		ID:                   id,
		AllowedCapabilities:  make(map[core.Capability]bool, len(spec.Capabilities)),
		DataScope:            spec.DataScope,
		PriorityTopics:       append([]string(nil), spec.PriorityTopics...),
		RestrictedOperations: make(map[string]bool, len(spec.RestrictedOperations)),
		Recommendations:      append([]string(nil), spec.Recommendations...),
	}
	for _, c := range spec.Capabilities {
		c = strings.TrimSpace(c)
		if c != "" {
			p.AllowedCapabilities[core.Capability(c)] = true
		}
	}
	for _, op := range spec.RestrictedOperations {
		op = strings.TrimSpace(op)
		if op != "" {
			p.RestrictedOperations[op] = true
		}
	}
	return p, nil
}

// Allows reports whether the policy grants capability, directly or through
// the "all" sentinel.
func (p RolePolicy) Allows(capability core.Capability) bool {
	return p.AllowedCapabilities[core.CapabilityAll] || p.AllowedCapabilities[capability]
}

// Restricts reports whether operation is explicitly restricted for the role.
func (p RolePolicy) Restricts(operation string) bool {
	return p.RestrictedOperations[operation]
}

// HasPriority reports whether topic is one of the role's priority topics.
func (p RolePolicy) HasPriority(topic string) bool {
	for _, t := range p.PriorityTopics {
		if t == topic {
			return true
		}
	}
	return false
}

// Capabilities returns the granted capabilities sorted by name.
func (p RolePolicy) Capabilities() []core.Capability {
	out := make([]core.Capability, 0, len(p.AllowedCapabilities))
	for c := range p.AllowedCapabilities {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Resolver maps roles to policies. It is read-only after construction and
// safe for concurrent use.
type Resolver struct {
	policies map[string]RolePolicy
	order    []string
}

// NewResolver builds a resolver. Duplicate role ids are rejected.
func NewResolver(policies ...RolePolicy) (*Resolver, error) {
	r := &Resolver{policies: make(map[string]RolePolicy, len(policies))}
	for _, p := range policies {
		if p.ID == "" {
			return nil, fmt.Errorf("policy with empty role id")
		}
		if _, dup := r.policies[p.ID]; dup {
			return nil, fmt.Errorf("duplicate policy for role %q", p.ID)
		}
		r.policies[p.ID] = p
		r.order = append(r.order, p.ID)
	}
	return r, nil
}

// Resolve returns the policy for role or fails with CodeUnknownRole.
func (r *Resolver) Resolve(role string) (RolePolicy, error) {
	if r != nil {
		if p, ok := r.policies[role]; ok {
			return p, nil
		}
	}
	return RolePolicy{}, errors.Newf(errors.CodeUnknownRole, "no policy registered for role %q", role).
		WithContext("role", role)
}

// Has reports whether role is known.
func (r *Resolver) Has(role string) bool {
	if r == nil {
		return false
	}
	_, ok := r.policies[role]
	return ok
}

// Roles returns role ids in registration order.
func (r *Resolver) Roles() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.order...)
}

// CapabilitiesFor returns the capabilities granted to role, or nil if unknown.
func (r *Resolver) CapabilitiesFor(role string) []core.Capability {
	p, err := r.Resolve(role)
	if err != nil {
		return nil
	}
	return p.Capabilities()
}

// CanAccess reports whether role exists and is granted capability.
func (r *Resolver) CanAccess(role string, capability core.Capability) bool {
	p, err := r.Resolve(role)
	if err != nil {
		return false
	}
	return p.Allows(capability)
}
