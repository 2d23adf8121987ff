// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/jllopis/rolegate/pkg/errors"
)

// BreakerConfig configures a circuit breaker around a provider.
type BreakerConfig struct {
	Name string
	// Threshold is the minimum number of requests in an interval before the
	// failure ratio is considered.
	Threshold    int
	FailureRatio float64
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	Logger      *slog.Logger
}

// Breaker wraps gobreaker with typed errors.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker creates a breaker. Zero values take sensible defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	threshold := uint32(cfg.Threshold) //nolint:gosec // positive, checked above
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    cfg.OpenTimeout,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < threshold {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn through the breaker. Rejections while open are returned as
// recoverable CodeHandlerExecution errors.
func Execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if b == nil {
		return fn()
	}
	out, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, errors.New(errors.CodeHandlerExecution, "circuit open", err).
				WithContext("breaker", b.cb.Name()).
				WithRecoverable(true)
		}
		return zero, err
	}
	v, _ := out.(T)
	return v, nil
}

// State returns the breaker state name.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
