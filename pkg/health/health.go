// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package health aggregates component checks: provider circuit breakers and
// the audit store.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jllopis/rolegate/pkg/resilience"
)

// Status represents the health state of a component.
type Status string

const (
	// Healthy indicates the component is fully operational.
	Healthy Status = "HEALTHY"

	// Degraded indicates the component is operational but probing recovery.
	Degraded Status = "DEGRADED"

	// Unhealthy indicates the component is not operational.
	Unhealthy Status = "UNHEALTHY"
)

// Result is the outcome of one check.
type Result struct {
	Status    Status    `json:"status"`
	Component string    `json:"component"`
	Message   string    `json:"message,omitempty"`
	LastCheck time.Time `json:"last_check"`
}

// Checker checks the health of a component.
type Checker interface {
	Check(ctx context.Context) Result
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) Result

// Check calls f and stamps LastCheck when missing.
func (f CheckerFunc) Check(ctx context.Context) Result {
	r := f(ctx)
	if r.LastCheck.IsZero() {
		r.LastCheck = time.Now()
	}
	return r
}

// Static returns a checker with a constant status.
func Static(status Status, message string) Checker {
	return CheckerFunc(func(context.Context) Result {
		return Result{Status: status, Message: message}
	})
}

// Breaker reports a circuit breaker: closed is healthy, half-open degraded
// and open unhealthy. A nil breaker is always healthy.
func Breaker(b *resilience.Breaker) Checker {
	return CheckerFunc(func(context.Context) Result {
		if b == nil {
			return Result{Status: Healthy, Message: "no circuit breaker"}
		}
		state := b.State()
		r := Result{Message: "circuit " + state}
		switch state {
		case "open":
			r.Status = Unhealthy
		case "half-open":
			r.Status = Degraded
		default:
			r.Status = Healthy
		}
		return r
	})
}

// Ping reports Unhealthy when ping fails.
func Ping(ping func(ctx context.Context) error) Checker {
	return CheckerFunc(func(ctx context.Context) Result {
		if err := ping(ctx); err != nil {
			return Result{Status: Unhealthy, Message: err.Error()}
		}
		return Result{Status: Healthy}
	})
}

// Registry runs registered checkers and caches their results.
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	cache    map[string]Result
	cacheTTL time.Duration
}

// NewRegistry creates a registry. A zero cacheTTL disables caching.
func NewRegistry(cacheTTL time.Duration) *Registry {
	return &Registry{
		checkers: make(map[string]Checker),
		cache:    make(map[string]Result),
		cacheTTL: cacheTTL,
	}
}

// Register adds or replaces the checker for a component.
func (r *Registry) Register(name string, checker Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[name] = checker
	delete(r.cache, name)
}

// Len returns the number of registered components.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.checkers)
}

// Check runs the checker of one component.
func (r *Registry) Check(ctx context.Context, name string) (Result, error) {
	r.mu.RLock()
	checker, ok := r.checkers[name]
	cached, hit := r.cache[name]
	r.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("checker not registered: %s", name)
	}
	if hit && r.cacheTTL > 0 && time.Since(cached.LastCheck) < r.cacheTTL {
		return cached, nil
	}

	result := checker.Check(ctx)
	result.Component = name
	if result.LastCheck.IsZero() {
		result.LastCheck = time.Now()
	}
	r.mu.Lock()
	r.cache[name] = result
	r.mu.Unlock()
	return result, nil
}

// CheckAll checks every component in name order. The overall status is the
// worst individual status; an empty registry is healthy.
func (r *Registry) CheckAll(ctx context.Context) ([]Result, Status) {
	r.mu.RLock()
	names := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)

	overall := Healthy
	results := make([]Result, 0, len(names))
	for _, name := range names {
		result, err := r.Check(ctx, name)
		if err != nil {
			// Unregistered concurrently.
			continue
		}
		results = append(results, result)
		switch {
		case result.Status == Unhealthy:
			overall = Unhealthy
		case result.Status == Degraded && overall == Healthy:
			overall = Degraded
		}
	}
	return results, overall
}
