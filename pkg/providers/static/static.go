// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package static provides a capability provider returning a canned result.
package static

import (
	"context"

	"github.com/jllopis/rolegate/pkg/capability"
	"github.com/jllopis/rolegate/pkg/core"
	"github.com/jllopis/rolegate/pkg/policy"
)

// Provider answers every invocation with the same result. With Echo set the
// payload is merged under the "input" key.
type Provider struct {
	result capability.Result
	echo   bool
}

// Option configures the Provider.
type Option func(*Provider)

// WithConfidence sets the reported confidence.
func WithConfidence(c float64) Option {
	return func(p *Provider) {
		p.result.Confidence = capability.Confidence(c)
	}
}

// WithRecommendations sets the provider recommendation lines.
func WithRecommendations(recs ...string) Option {
	return func(p *Provider) {
		p.result.Recommendations = append([]string(nil), recs...)
	}
}

// WithEcho copies the invocation payload into the result.
func WithEcho() Option {
	return func(p *Provider) {
		p.echo = true
	}
}

// New creates a provider returning data.
func New(data map[string]any, opts ...Option) *Provider {
	p := &Provider{result: capability.Result{Data: core.CloneMap(data)}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Invoke implements capability.Provider. Each call gets its own copy of the
// canned data.
func (p *Provider) Invoke(ctx context.Context, payload map[string]any, _ policy.RolePolicy) (capability.Result, error) {
	if err := ctx.Err(); err != nil {
		return capability.Result{}, err
	}
	out := capability.Result{
		Confidence:      p.result.Confidence,
		Data:            core.CloneMap(p.result.Data),
		Recommendations: append([]string(nil), p.result.Recommendations...),
	}
	if out.Data == nil {
		out.Data = map[string]any{}
	}
	if p.echo {
		out.Data["input"] = core.CloneMap(payload)
	}
	return out, nil
}
