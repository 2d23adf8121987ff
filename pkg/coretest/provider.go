// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package coretest provides test doubles and assertion helpers for code
// built on the orchestration core.
//
// It includes:
//   - a call-counting stub capability provider with scripted results
//   - scripted workflow step handlers that fail on demand
//   - fluent assertions over rule and workflow ledgers
package coretest

import (
	"context"
	"fmt"
	"sync"

	"github.com/jllopis/rolegate/pkg/capability"
	"github.com/jllopis/rolegate/pkg/core"
	"github.com/jllopis/rolegate/pkg/policy"
)

// Call records one provider invocation.
type Call struct {
	Payload map[string]any
	Role    string
}

// ScriptedResult is a queued provider answer.
type ScriptedResult struct {
	Result capability.Result
	Error  error
}

// StubProvider is a capability.Provider that counts calls and replays
// scripted results. When the script runs out it repeats the fallback.
type StubProvider struct {
	mu       sync.Mutex
	script   []ScriptedResult
	index    int
	calls    []Call
	fallback ScriptedResult
	onInvoke func(ctx context.Context, payload map[string]any, p policy.RolePolicy) (capability.Result, error)
}

// NewStubProvider creates a provider that returns an empty result by default.
func NewStubProvider() *StubProvider {
	return &StubProvider{fallback: ScriptedResult{Result: capability.Result{Data: map[string]any{}}}}
}

// Returning sets the default data returned once the script is exhausted.
func (p *StubProvider) Returning(data map[string]any) *StubProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fallback = ScriptedResult{Result: capability.Result{Data: data}}
	return p
}

// Failing makes every unscripted call fail with err.
func (p *StubProvider) Failing(err error) *StubProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fallback = ScriptedResult{Error: err}
	return p
}

// AddResult queues a result.
func (p *StubProvider) AddResult(result capability.Result) *StubProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script = append(p.script, ScriptedResult{Result: result})
	return p
}

// AddError queues an error.
func (p *StubProvider) AddError(err error) *StubProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script = append(p.script, ScriptedResult{Error: err})
	return p
}

// WithInvokeFunc replaces scripted behaviour with fn. Calls are still counted.
func (p *StubProvider) WithInvokeFunc(fn func(ctx context.Context, payload map[string]any, pol policy.RolePolicy) (capability.Result, error)) *StubProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onInvoke = fn
	return p
}

// Invoke implements capability.Provider.
func (p *StubProvider) Invoke(ctx context.Context, payload map[string]any, pol policy.RolePolicy) (capability.Result, error) {
	p.mu.Lock()
	p.calls = append(p.calls, Call{Payload: payload, Role: pol.ID})
	fn := p.onInvoke
	next := p.fallback
	if p.index < len(p.script) {
		next = p.script[p.index]
		p.index++
	}
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, payload, pol)
	}
	if next.Error != nil {
		return capability.Result{}, next.Error
	}
	return next.Result, nil
}

// CallCount returns the number of Invoke calls made.
func (p *StubProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// Calls returns the captured calls.
func (p *StubProvider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// LastCall returns the most recent call, or nil.
func (p *StubProvider) LastCall() *Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return nil
	}
	c := p.calls[len(p.calls)-1]
	return &c
}

// Reset clears calls and rewinds the script.
func (p *StubProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.index = 0
	p.calls = p.calls[:0]
}

// Handler wraps the provider in a capability handler.
func (p *StubProvider) Handler(id string, capabilities ...string) capability.Handler {
	h := capability.Handler{ID: id, DisplayName: fmt.Sprintf("stub %s", id), Provider: p}
	for _, c := range capabilities {
		h.Capabilities = append(h.Capabilities, core.Capability(c))
	}
	return h
}
