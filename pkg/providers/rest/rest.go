// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package rest provides a capability provider backed by an HTTP endpoint.
// Requests are retried and guarded by a circuit breaker.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jllopis/rolegate/pkg/capability"
	"github.com/jllopis/rolegate/pkg/errors"
	"github.com/jllopis/rolegate/pkg/health"
	"github.com/jllopis/rolegate/pkg/policy"
	"github.com/jllopis/rolegate/pkg/providers"
	"github.com/jllopis/rolegate/pkg/resilience"
)

const maxBodyBytes = 4 << 20

// Provider POSTs the provider envelope to an endpoint and decodes the answer.
type Provider struct {
	endpoint string
	token    string
	client   *http.Client
	retry    resilience.RetryConfig
	breaker  *resilience.Breaker
	logger   *slog.Logger
}

// Option configures the Provider.
type Option func(*Provider)

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(p *Provider) {
		p.token = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.client = client
	}
}

// WithRetry overrides the retry policy.
func WithRetry(rc resilience.RetryConfig) Option {
	return func(p *Provider) {
		p.retry = rc
	}
}

// WithBreaker guards requests with b. A nil breaker disables it.
func WithBreaker(b *resilience.Breaker) Option {
	return func(p *Provider) {
		p.breaker = b
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a provider for endpoint. By default it retries with
// resilience.DefaultRetryConfig and uses a breaker named after the endpoint.
func New(endpoint string, opts ...Option) *Provider {
	p := &Provider{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		retry:    resilience.DefaultRetryConfig(),
		logger:   slog.Default(),
	}
	p.breaker = resilience.NewBreaker(resilience.BreakerConfig{Name: endpoint})
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Check implements health.Checker by reporting the breaker state.
func (p *Provider) Check(ctx context.Context) health.Result {
	r := health.Breaker(p.breaker).Check(ctx)
	r.Message = p.endpoint + ": " + r.Message
	return r
}

// Invoke implements capability.Provider.
func (p *Provider) Invoke(ctx context.Context, payload map[string]any, pol policy.RolePolicy) (capability.Result, error) {
	body, err := json.Marshal(providers.NewRequest(payload, pol))
	if err != nil {
		return capability.Result{}, errors.New(errors.CodeInvalidInput, "encode provider request", err)
	}
	attempt := 0
	return resilience.DoValue(ctx, p.retry, func() (capability.Result, error) {
		attempt++
		res, err := resilience.Execute(p.breaker, func() (capability.Result, error) {
			return p.post(ctx, body)
		})
		if err != nil {
			p.logger.Debug("provider request failed",
				slog.String("endpoint", p.endpoint),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		}
		return res, err
	})
}

func (p *Provider) post(ctx context.Context, body []byte) (capability.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return capability.Result{}, errors.New(errors.CodeInvalidInput, "build provider request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return capability.Result{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return capability.Result{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return capability.Result{}, errors.Newf(errors.CodeHandlerExecution,
			"provider request failed: %s", resp.Status).
			WithContext("endpoint", p.endpoint).
			WithContext("status", resp.StatusCode).
			WithRecoverable(resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return capability.Result{}, errors.New(errors.CodeHandlerExecution, "failed to parse provider response", err)
	}
	return providers.DecodeResult(decoded), nil
}
