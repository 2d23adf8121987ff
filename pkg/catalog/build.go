// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/rolegate/pkg/capability"
	"github.com/jllopis/rolegate/pkg/core"
	rgmcp "github.com/jllopis/rolegate/pkg/mcp"
	"github.com/jllopis/rolegate/pkg/orchestrator"
	"github.com/jllopis/rolegate/pkg/policy"
	"github.com/jllopis/rolegate/pkg/providers/mcptool"
	"github.com/jllopis/rolegate/pkg/providers/rest"
	"github.com/jllopis/rolegate/pkg/providers/static"
	"github.com/jllopis/rolegate/pkg/resilience"
	"github.com/jllopis/rolegate/pkg/rules"
	"github.com/jllopis/rolegate/pkg/transform"
	"github.com/jllopis/rolegate/pkg/workflow"
)

// ProviderFactory creates the provider behind a handler.
type ProviderFactory func(h Handler) (capability.Provider, error)

// Bindings supplies the code a catalog refers to by name.
type Bindings struct {
	// Actions maps rule action names to implementations. Every action a rule
	// names must be bound.
	Actions map[string]rules.Action
	// Steps holds the concrete step handlers. Unbound steps are left to the
	// executor fallback.
	Steps workflow.Steps
	// Providers defaults to DefaultProviders.
	Providers ProviderFactory
}

// Build turns the catalog into orchestrator registries.
func (c *Catalog) Build(b Bindings) (orchestrator.Registries, error) {
	var reg orchestrator.Registries
	if err := c.Validate(); err != nil {
		return reg, err
	}

	policies := make([]policy.RolePolicy, 0, len(c.Roles))
	entries := make([]transform.Entry, 0, len(c.Roles))
	for _, r := range c.Roles {
		scope, _ := core.ParseDataScope(r.DataScope)
		p, err := policy.New(policy.Spec{
			ID:                   r.ID,
			Capabilities:         r.Capabilities,
			DataScope:            scope,
			PriorityTopics:       r.Priorities,
			RestrictedOperations: r.Restrictions,
			Recommendations:      r.Recommendations,
		})
		if err != nil {
			return reg, err
		}
		policies = append(policies, p)
		entries = append(entries, transform.Entry{Role: r.ID, Scope: scope, Func: r.strategy()})
	}
	resolver, err := policy.NewResolver(policies...)
	if err != nil {
		return reg, err
	}
	transformer, err := transform.New(entries...)
	if err != nil {
		return reg, err
	}

	factory := b.Providers
	if factory == nil {
		factory = DefaultProviders
	}
	handlers := make([]capability.Handler, 0, len(c.Handlers))
	for _, h := range c.Handlers {
		provider, err := factory(h)
		if err != nil {
			return reg, fmt.Errorf("handler %q: %w", h.ID, err)
		}
		handler := capability.Handler{ID: h.ID, DisplayName: h.Name, Provider: provider}
		for _, name := range h.Capabilities {
			handler.Capabilities = append(handler.Capabilities, core.Capability(name))
		}
		handlers = append(handlers, handler)
	}
	operations := make(map[string]core.Capability, len(c.Operations))
	for kind, name := range c.Operations {
		operations[kind] = core.Capability(name)
	}
	caps, err := capability.NewRegistry(operations, handlers...)
	if err != nil {
		return reg, err
	}

	ruleSet := make([]rules.Rule, 0, len(c.Rules))
	for _, r := range c.Rules {
		action, ok := b.Actions[r.Action]
		if !ok {
			return reg, fmt.Errorf("rule %q: action %q is not bound", r.Name, r.Action)
		}
		cond, err := rules.CompileCondition(r.When)
		if err != nil {
			return reg, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		ruleSet = append(ruleSet, rules.Rule{
			Name:        r.Name,
			Description: r.Description,
			Roles:       r.Roles,
			Expression:  r.When,
			Condition:   cond,
			Action:      action,
		})
	}
	ruleReg, err := rules.NewRegistry(ruleSet...)
	if err != nil {
		return reg, err
	}

	wfs := make([]workflow.Workflow, 0, len(c.Workflows))
	for _, w := range c.Workflows {
		wfs = append(wfs, w.workflow())
	}
	wfReg, err := workflow.NewRegistry(wfs...)
	if err != nil {
		return reg, err
	}

	return orchestrator.Registries{
		Resolver:     resolver,
		Capabilities: caps,
		Rules:        ruleReg,
		Workflows:    wfReg,
		Steps:        b.Steps,
		Transformer:  transformer,
	}, nil
}

// strategy enriches with the declared sections in key order, then redacts
// and masks.
func (r Role) strategy() transform.Func {
	if len(r.Enrich) == 0 && len(r.Redact) == 0 && !r.MaskPII {
		return nil
	}
	keys := make([]string, 0, len(r.Enrich))
	for k := range r.Enrich {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fns := make([]transform.Func, 0, len(keys)+2)
	for _, k := range keys {
		fns = append(fns, transform.Enrich(k, r.Enrich[k]))
	}
	if len(r.Redact) > 0 {
		fns = append(fns, transform.Redact(r.Redact...))
	}
	if r.MaskPII {
		fns = append(fns, transform.MaskPII())
	}
	return transform.Chain(fns...)
}

// DefaultProviders builds static, http and mcp providers. MCP servers are
// connected on first use so building a catalog never touches the network.
func DefaultProviders(h Handler) (capability.Provider, error) {
	ref := h.Provider
	switch ref.Type {
	case ProviderStatic:
		var opts []static.Option
		if ref.Confidence != nil {
			opts = append(opts, static.WithConfidence(*ref.Confidence))
		}
		if len(ref.Recommendations) > 0 {
			opts = append(opts, static.WithRecommendations(ref.Recommendations...))
		}
		if ref.Echo {
			opts = append(opts, static.WithEcho())
		}
		return static.New(ref.Data, opts...), nil
	case ProviderHTTP:
		token := ref.Token
		if ref.TokenEnv != "" {
			token = os.Getenv(ref.TokenEnv)
		}
		opts := []rest.Option{rest.WithToken(token), rest.WithBreaker(breakerFor(h))}
		if ref.Retries > 0 {
			opts = append(opts, rest.WithRetry(resilience.DefaultRetryConfig().WithMaxAttempts(ref.Retries+1)))
		}
		return rest.New(ref.Endpoint, opts...), nil
	case ProviderMCP:
		caller := &lazyCaller{server: ref.Server, retries: ref.Retries}
		return mcptool.New(caller, ref.Tool, mcptool.WithBreaker(breakerFor(h))), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", ref.Type)
	}
}

func breakerFor(h Handler) *resilience.Breaker {
	return resilience.NewBreaker(resilience.BreakerConfig{
		Name:      h.ID,
		Threshold: h.Provider.BreakerThreshold,
	})
}

// lazyCaller connects to a Streamable HTTP MCP server on the first call.
type lazyCaller struct {
	server  string
	retries int

	mu     sync.Mutex
	client *rgmcp.Client
}

func (l *lazyCaller) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	client, err := l.connect()
	if err != nil {
		return nil, err
	}
	return client.CallTool(ctx, name, args)
}

func (l *lazyCaller) connect() (*rgmcp.Client, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client != nil {
		return l.client, nil
	}
	var opts []rgmcp.ClientOption
	if l.retries > 0 {
		opts = append(opts, rgmcp.WithRetry(l.retries, 0))
	}
	client, err := rgmcp.NewClientWithStreamableHTTP(l.server, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect mcp server %s: %w", l.server, err)
	}
	l.client = client
	return client, nil
}
