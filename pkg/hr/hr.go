// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package hr provides the HR domain's workflow steps and rule actions.
// External systems (government portals, notification channels) are reached
// through small interfaces so deployments can plug in real adapters.
package hr

import (
	"context"
	"log/slog"
	"time"

	"github.com/jllopis/rolegate/pkg/telemetry"
)

// PortalExecutor performs an operation against an external portal such as
// Qiwa or GOSI.
type PortalExecutor interface {
	Execute(ctx context.Context, portal, operation string, data map[string]any) (map[string]any, error)
}

// PortalFunc adapts a function to PortalExecutor.
type PortalFunc func(ctx context.Context, portal, operation string, data map[string]any) (map[string]any, error)

// Execute implements PortalExecutor.
func (f PortalFunc) Execute(ctx context.Context, portal, operation string, data map[string]any) (map[string]any, error) {
	return f(ctx, portal, operation, data)
}

// LocalPortal acknowledges every operation without contacting anything.
var LocalPortal PortalFunc = func(_ context.Context, portal, _ string, _ map[string]any) (map[string]any, error) {
	return map[string]any{"sync": portal, "status": "completed"}, nil
}

// Notifier delivers a message and reports the channel used.
type Notifier interface {
	Notify(ctx context.Context, recipient, message string) (method string, err error)
}

// LogNotifier writes notifications to the log and reports them as email.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(ctx context.Context, recipient, message string) (string, error) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification", slog.String("recipient", recipient), slog.String("message", message))
	return "email", nil
}

// Services are the collaborators shared by steps and actions.
type Services struct {
	portal   PortalExecutor
	notifier Notifier
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures Services.
type Option func(*Services)

// WithPortal sets the government portal adapter.
func WithPortal(p PortalExecutor) Option {
	return func(s *Services) {
		if p != nil {
			s.portal = p
		}
	}
}

// WithNotifier sets the notification channel.
func WithNotifier(n Notifier) Option {
	return func(s *Services) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Services) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Services) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServices builds services with local defaults.
func NewServices(opts ...Option) *Services {
	s := &Services{
		portal: LocalPortal,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = telemetry.Component(s.logger, "hr")
	if s.notifier == nil {
		s.notifier = LogNotifier{Logger: s.logger}
	}
	return s
}
