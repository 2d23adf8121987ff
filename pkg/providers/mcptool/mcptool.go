// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package mcptool provides a capability provider that calls a tool on an MCP
// server.
package mcptool

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/rolegate/pkg/capability"
	"github.com/jllopis/rolegate/pkg/errors"
	"github.com/jllopis/rolegate/pkg/health"
	rgmcp "github.com/jllopis/rolegate/pkg/mcp"
	"github.com/jllopis/rolegate/pkg/policy"
	"github.com/jllopis/rolegate/pkg/providers"
	"github.com/jllopis/rolegate/pkg/resilience"
)

// ToolCaller is the part of the MCP client the provider needs.
// *mcp.Client from pkg/mcp satisfies it.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
}

// Provider sends the provider envelope as tool arguments and decodes the
// tool's text answer as JSON. Answers that are not JSON are returned under
// the "text" key.
type Provider struct {
	caller  ToolCaller
	tool    string
	breaker *resilience.Breaker
}

// Option configures the Provider.
type Option func(*Provider)

// WithBreaker guards tool calls with b.
func WithBreaker(b *resilience.Breaker) Option {
	return func(p *Provider) {
		p.breaker = b
	}
}

// New creates a provider calling tool through caller.
func New(caller ToolCaller, tool string, opts ...Option) *Provider {
	p := &Provider{caller: caller, tool: tool}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Check implements health.Checker by reporting the breaker state.
func (p *Provider) Check(ctx context.Context) health.Result {
	r := health.Breaker(p.breaker).Check(ctx)
	r.Message = "tool " + p.tool + ": " + r.Message
	return r
}

// Invoke implements capability.Provider.
func (p *Provider) Invoke(ctx context.Context, payload map[string]any, pol policy.RolePolicy) (capability.Result, error) {
	args := providers.NewRequest(payload, pol).Map()
	result, err := resilience.Execute(p.breaker, func() (*mcp.CallToolResult, error) {
		res, err := p.caller.CallTool(ctx, p.tool, args)
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, errors.Newf(errors.CodeHandlerExecution, "tool %s returned no result", p.tool)
		}
		if res.IsError {
			return nil, errors.Newf(errors.CodeHandlerExecution, "tool %s failed: %s", p.tool, rgmcp.Text(res)).
				WithContext("tool", p.tool)
		}
		return res, nil
	})
	if err != nil {
		return capability.Result{}, err
	}

	text := strings.TrimSpace(rgmcp.Text(result))
	var decoded map[string]any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return capability.Result{Data: map[string]any{"text": text}}, nil
	}
	return providers.DecodeResult(decoded), nil
}
