// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package catalog loads the declarative description of roles, operations,
// handlers, rules and workflows, and builds the orchestrator registries from
// it.
package catalog

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jllopis/rolegate/pkg/core"
	"github.com/jllopis/rolegate/pkg/errors"
	"github.com/jllopis/rolegate/pkg/rules"
	"github.com/jllopis/rolegate/pkg/workflow"
)

// Provider types understood by the default provider factory.
const (
	ProviderStatic = "static"
	ProviderHTTP   = "http"
	ProviderMCP    = "mcp"
)

// Catalog is the document form of the orchestrator registries.
type Catalog struct {
	Roles      []Role            `yaml:"roles"`
	Operations map[string]string `yaml:"operations"`
	Handlers   []Handler         `yaml:"handlers"`
	Rules      []Rule            `yaml:"rules"`
	Workflows  []Workflow        `yaml:"workflows"`
}

// Role declares a policy and how results are shaped for it.
type Role struct {
	ID              string   `yaml:"id"`
	DataScope       string   `yaml:"data_scope"`
	Capabilities    []string `yaml:"capabilities"`
	Priorities      []string `yaml:"priorities"`
	Restrictions    []string `yaml:"restrictions"`
	Recommendations []string `yaml:"recommendations"`
	// Enrich sections are attached to results under their key.
	Enrich map[string]map[string]any `yaml:"enrich"`
	Redact []string                  `yaml:"redact"`
	// MaskPII masks identifiers embedded in string values after redaction.
	MaskPII bool `yaml:"mask_pii"`
}

// Handler binds a provider to the capabilities it serves.
type Handler struct {
	ID           string      `yaml:"id"`
	Name         string      `yaml:"name"`
	Capabilities []string    `yaml:"capabilities"`
	Provider     ProviderRef `yaml:"provider"`
}

// ProviderRef describes how to reach a handler's provider.
type ProviderRef struct {
	Type string `yaml:"type"`

	// static
	Data            map[string]any `yaml:"data,omitempty"`
	Confidence      *float64       `yaml:"confidence,omitempty"`
	Recommendations []string       `yaml:"recommendations,omitempty"`
	Echo            bool           `yaml:"echo,omitempty"`

	// http
	Endpoint string `yaml:"endpoint,omitempty"`
	Token    string `yaml:"token,omitempty"`
	TokenEnv string `yaml:"token_env,omitempty"`

	// mcp
	Server string `yaml:"server,omitempty"`
	Tool   string `yaml:"tool,omitempty"`

	// http and mcp
	Retries          int `yaml:"retries,omitempty"`
	BreakerThreshold int `yaml:"breaker_threshold,omitempty"`
}

// Rule declares a CEL condition and the name of the action it triggers.
type Rule struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Roles       []string `yaml:"roles"`
	When        string   `yaml:"when"`
	Action      string   `yaml:"action"`
}

// Workflow declares a step sequence.
type Workflow struct {
	Name        string   `yaml:"name"`
	DisplayName string   `yaml:"display_name"`
	Steps       []string `yaml:"steps"`
	Roles       []string `yaml:"roles"`
	Critical    []string `yaml:"critical"`
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.New(errors.CodeInvalidInput, "parse catalog", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads and parses the catalog at path.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Validate reports every problem in the catalog at once.
func (c *Catalog) Validate() error {
	var problems []error
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	roles := make(map[string]bool, len(c.Roles))
	for i, r := range c.Roles {
		id := strings.TrimSpace(r.ID)
		switch {
		case id == "":
			add("roles[%d]: id is required", i)
			continue
		case roles[id]:
			add("role %q declared twice", id)
		}
		roles[id] = true
		scope, err := core.ParseDataScope(r.DataScope)
		if err != nil {
			add("role %q: %v", id, err)
			continue
		}
		// Privileged results are enriched, never narrowed.
		if scope.Privileged() {
			if len(r.Redact) > 0 {
				add("role %q: redact requires the personal scope, got %s", id, scope)
			}
			if r.MaskPII {
				add("role %q: mask_pii requires the personal scope, got %s", id, scope)
			}
		}
	}

	for kind, capability := range c.Operations {
		if strings.TrimSpace(kind) == "" || strings.TrimSpace(capability) == "" {
			add("operation %q must map to one capability", kind)
		}
	}

	handlers := make(map[string]bool, len(c.Handlers))
	for i, h := range c.Handlers {
		if h.ID == "" {
			add("handlers[%d]: id is required", i)
			continue
		}
		if handlers[h.ID] {
			add("handler %q declared twice", h.ID)
		}
		handlers[h.ID] = true
		if len(h.Capabilities) == 0 {
			add("handler %q declares no capability", h.ID)
		}
		if err := h.Provider.validate(); err != nil {
			add("handler %q: %v", h.ID, err)
		}
	}

	ruleNames := make(map[string]bool, len(c.Rules))
	for i, r := range c.Rules {
		if r.Name == "" {
			add("rules[%d]: name is required", i)
			continue
		}
		if ruleNames[r.Name] {
			add("rule %q declared twice", r.Name)
		}
		ruleNames[r.Name] = true
		if len(r.Roles) == 0 {
			add("rule %q applies to no role", r.Name)
		}
		for _, role := range r.Roles {
			if !roles[role] {
				add("rule %q references unknown role %q", r.Name, role)
			}
		}
		if r.Action == "" {
			add("rule %q has no action", r.Name)
		}
		if _, err := rules.CompileCondition(r.When); err != nil {
			add("rule %q: %v", r.Name, err)
		}
	}

	workflows := make(map[string]bool, len(c.Workflows))
	for _, w := range c.Workflows {
		if workflows[w.Name] {
			add("workflow %q declared twice", w.Name)
		}
		workflows[w.Name] = true
		if err := w.workflow().Validate(); err != nil {
			problems = append(problems, err)
		}
		for _, role := range w.Roles {
			if !roles[role] {
				add("workflow %q references unknown role %q", w.Name, role)
			}
		}
	}

	if len(problems) > 0 {
		return errors.New(errors.CodeInvalidInput, "invalid catalog", stderrors.Join(problems...))
	}
	return nil
}

// ActionNames lists the action names the rules refer to, in rule order.
func (c *Catalog) ActionNames() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range c.Rules {
		if !seen[r.Action] {
			seen[r.Action] = true
			out = append(out, r.Action)
		}
	}
	return out
}

// Override replaces the non-zero fields of a handler's provider reference.
// It lets deployment configuration point catalog handlers at real endpoints.
func (c *Catalog) Override(handlerID string, ref ProviderRef) error {
	for i := range c.Handlers {
		if c.Handlers[i].ID != handlerID {
			continue
		}
		p := &c.Handlers[i].Provider
		if ref.Type != "" {
			p.Type = ref.Type
		}
		if ref.Endpoint != "" {
			p.Endpoint = ref.Endpoint
		}
		if ref.Token != "" {
			p.Token = ref.Token
		}
		if ref.TokenEnv != "" {
			p.TokenEnv = ref.TokenEnv
		}
		if ref.Server != "" {
			p.Server = ref.Server
		}
		if ref.Tool != "" {
			p.Tool = ref.Tool
		}
		if ref.Retries != 0 {
			p.Retries = ref.Retries
		}
		if ref.BreakerThreshold != 0 {
			p.BreakerThreshold = ref.BreakerThreshold
		}
		return p.validate()
	}
	return fmt.Errorf("unknown handler %q", handlerID)
}

func (p ProviderRef) validate() error {
	switch p.Type {
	case ProviderStatic:
		return nil
	case ProviderHTTP:
		if p.Endpoint == "" {
			return fmt.Errorf("http provider requires an endpoint")
		}
	case ProviderMCP:
		if p.Server == "" || p.Tool == "" {
			return fmt.Errorf("mcp provider requires server and tool")
		}
	case "":
		return fmt.Errorf("provider type is required")
	default:
		return fmt.Errorf("unknown provider type %q", p.Type)
	}
	if p.Retries < 0 {
		return fmt.Errorf("retries must not be negative")
	}
	return nil
}

func (w Workflow) workflow() workflow.Workflow {
	return workflow.Workflow{
		Name:        w.Name,
		DisplayName: w.DisplayName,
		Steps:       w.Steps,
		Roles:       w.Roles,
		Critical:    w.Critical,
	}
}
