// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package rules holds role-scoped condition/action rules and evaluates them
// independently of one another.
package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/jllopis/rolegate/pkg/core"
)

// Condition decides whether a rule fires for the given context.
type Condition func(ec core.ExecutionContext) (bool, error)

// Action runs when a rule's condition holds.
type Action func(ctx context.Context, ec core.ExecutionContext) (any, error)

// Rule is a named condition/action pair scoped to a set of roles.
// Rules must not depend on each other's side effects.
type Rule struct {
	Name        string
	Description string
	Roles       []string
	// Expression is the source of Condition when it was compiled from CEL.
	Expression string
	Condition  Condition
	Action     Action
}

// AppliesTo reports whether role may trigger the rule.
func (r Rule) AppliesTo(role string) bool {
	for _, candidate := range r.Roles {
		if candidate == role {
			return true
		}
	}
	return false
}

// Registry is an ordered set of uniquely named rules. It is built once and
// read-only afterwards.
type Registry struct {
	rules  []Rule
	byName map[string]int
}

// NewRegistry validates rules and keeps their registration order.
func NewRegistry(rules ...Rule) (*Registry, error) {
	reg := &Registry{byName: make(map[string]int, len(rules))}
	for _, r := range rules {
		r.Name = strings.TrimSpace(r.Name)
		if r.Name == "" {
			return nil, fmt.Errorf("rule name is required")
		}
		if _, dup := reg.byName[r.Name]; dup {
			return nil, fmt.Errorf("duplicate rule %q", r.Name)
		}
		if r.Condition == nil {
			return nil, fmt.Errorf("rule %q has no condition", r.Name)
		}
		if r.Action == nil {
			return nil, fmt.Errorf("rule %q has no action", r.Name)
		}
		if len(r.Roles) == 0 {
			return nil, fmt.Errorf("rule %q applies to no role", r.Name)
		}
		r.Roles = append([]string(nil), r.Roles...)
		reg.byName[r.Name] = len(reg.rules)
		reg.rules = append(reg.rules, r)
	}
	return reg, nil
}

// Rules returns the rules in registration order.
func (r *Registry) Rules() []Rule {
	if r == nil {
		return nil
	}
	return append([]Rule(nil), r.rules...)
}

// Get returns a rule by name.
func (r *Registry) Get(name string) (Rule, bool) {
	if r == nil {
		return Rule{}, false
	}
	i, ok := r.byName[name]
	if !ok {
		return Rule{}, false
	}
	return r.rules[i], true
}

// For returns the rules applicable to role, in registration order.
func (r *Registry) For(role string) []Rule {
	if r == nil {
		return nil
	}
	var out []Rule
	for _, rule := range r.rules {
		if rule.AppliesTo(role) {
			out = append(out, rule)
		}
	}
	return out
}

// Roles returns every role referenced by a rule, without duplicates.
func (r *Registry) Roles() []string {
	if r == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, rule := range r.rules {
		for _, role := range rule.Roles {
			if !seen[role] {
				seen[role] = true
				out = append(out, role)
			}
		}
	}
	return out
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.rules)
}
