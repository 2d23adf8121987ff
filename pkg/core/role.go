// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"fmt"
	"strings"
)

// Capability is an abstract category of operation a handler can serve.
type Capability string

// CapabilityAll is the sentinel granting every capability.
const CapabilityAll Capability = "all"

// DataScope bounds the data a role may receive.
type DataScope string

const (
	ScopeFull       DataScope = "full"
	ScopeTenantWide DataScope = "tenant_wide"
	ScopeDomain     DataScope = "domain"
	ScopeTeam       DataScope = "team"
	ScopePersonal   DataScope = "personal"
)

// scopeRank orders scopes from widest (0) to narrowest.
var scopeRank = map[DataScope]int{
	ScopeFull:       0,
	ScopeTenantWide: 1,
	ScopeDomain:     2,
	ScopeTeam:       3,
	ScopePersonal:   4,
}

// ParseDataScope validates a scope name. Aliases used by older role tables
// (company_wide, hr_domain, team_scope) are accepted.
func ParseDataScope(value string) (DataScope, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "full":
		return ScopeFull, nil
	case "tenant_wide", "company_wide":
		return ScopeTenantWide, nil
	case "domain", "hr_domain":
		return ScopeDomain, nil
	case "team", "team_scope":
		return ScopeTeam, nil
	case "personal":
		return ScopePersonal, nil
	default:
		return "", fmt.Errorf("unknown data scope %q", value)
	}
}

// Narrower reports whether s grants less data than other.
func (s DataScope) Narrower(other DataScope) bool {
	return scopeRank[s] > scopeRank[other]
}

// Privileged reports whether the scope receives enrichment rather than redaction.
func (s DataScope) Privileged() bool {
	return s != ScopePersonal
}
