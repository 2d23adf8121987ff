// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jllopis/rolegate/pkg/audit"
	"github.com/jllopis/rolegate/pkg/catalog"
	"github.com/jllopis/rolegate/pkg/config"
	"github.com/jllopis/rolegate/pkg/hr"
	"github.com/jllopis/rolegate/pkg/orchestrator"
	"github.com/jllopis/rolegate/pkg/telemetry"
	"github.com/jllopis/rolegate/pkg/workflow"
)

// cliEnv carries what commands share. The core is built on first use so
// commands like version never touch the catalog.
type cliEnv struct {
	global globalFlags
	cfg    *config.Config
	stdout io.Writer
	stderr io.Writer
	logs   io.Writer

	logger   *slog.Logger
	sink     audit.Sink
	core     *orchestrator.Core
	shutdown telemetry.ShutdownFunc
	closers  []func() error
}

// openLogs resolves log.output. An empty value sends logs to stderr for
// serving commands and drops them otherwise.
func (e *cliEnv) openLogs(serves bool) error {
	switch out := e.cfg.Log.Output; out {
	case "":
		if serves {
			e.logs = e.stderr
		} else {
			e.logs = io.Discard
		}
	case "stderr":
		e.logs = e.stderr
	case "discard", "none":
		e.logs = io.Discard
	default:
		f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("log.output: %w", err)
		}
		e.closers = append(e.closers, f.Close)
		e.logs = f
	}
	return nil
}

func (e *cliEnv) log() *slog.Logger {
	if e.logger == nil {
		w := e.logs
		if w == nil {
			w = io.Discard
		}
		e.logger = telemetry.ConfigureSlog(w, e.cfg.Log.Level, e.cfg.Log.Format)
	}
	return e.logger
}

// loadCatalog reads the configured catalog, or the built-in one, and applies
// the provider overrides from the configuration.
func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	var (
		cat *catalog.Catalog
		err error
	)
	if cfg.Catalog.Path != "" {
		cat, err = catalog.Load(cfg.Catalog.Path)
	} else {
		cat, err = catalog.Default()
	}
	if err != nil {
		return nil, err
	}
	for id, p := range cfg.Providers {
		if err := cat.Override(id, catalog.ProviderRef{
			Type:             p.Type,
			Endpoint:         p.Endpoint,
			Token:            p.Token,
			TokenEnv:         p.TokenEnv,
			Server:           p.Server,
			Tool:             p.Tool,
			Retries:          p.Retries,
			BreakerThreshold: p.BreakerThreshold,
		}); err != nil {
			return nil, fmt.Errorf("providers.%s: %w", id, err)
		}
	}
	return cat, nil
}

func (e *cliEnv) auditSink() (audit.Sink, error) {
	if e.sink != nil {
		return e.sink, nil
	}
	switch e.cfg.Audit.Driver {
	case "", "memory":
		e.sink = audit.NewMemorySink()
	case "log":
		e.sink = audit.NewLogSink(telemetry.Component(e.log(), "audit"))
	case "sqlite":
		dsn := e.cfg.Audit.DSN
		if dsn == "" {
			dsn = "file:rolegate-audit.db"
		}
		s, err := audit.OpenSQLite(dsn)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, s.Close)
		e.sink = s
	default:
		return nil, fmt.Errorf("unknown audit driver %q", e.cfg.Audit.Driver)
	}
	return e.sink, nil
}

// orchestrator builds the core from the catalog, wiring telemetry, audit
// and the HR step handlers and rule actions.
func (e *cliEnv) orchestrator(ctx context.Context) (*orchestrator.Core, error) {
	if e.core != nil {
		return e.core, nil
	}
	logger := e.log()

	shutdown, err := telemetry.Init(e.cfg.Telemetry.ServiceName, version, telemetry.Config{
		Exporter:     e.cfg.Telemetry.Exporter,
		OTLPEndpoint: e.cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: e.cfg.Telemetry.OTLPInsecure,
		Output:       e.logs,
		Environment:  e.global.Profile,
	})
	if err != nil {
		return nil, err
	}
	e.shutdown = shutdown
	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return nil, err
	}

	sink, err := e.auditSink()
	if err != nil {
		return nil, err
	}
	cat, err := loadCatalog(e.cfg)
	if err != nil {
		return nil, err
	}
	services := hr.NewServices(hr.WithLogger(telemetry.Component(logger, "hr")))
	reg, err := cat.Build(catalog.Bindings{Actions: services.Actions(), Steps: services.Steps()})
	if err != nil {
		return nil, err
	}

	opts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(metrics),
		orchestrator.WithAuditSink(sink),
		orchestrator.WithTimeout(e.cfg.Dispatch.Timeout),
		orchestrator.WithParallelRules(e.cfg.Dispatch.ParallelRules),
		orchestrator.WithBatchConcurrency(e.cfg.Dispatch.BatchConcurrency),
	}
	if e.cfg.Dispatch.StepFallback {
		opts = append(opts, orchestrator.WithStepFallback(workflow.Acknowledge))
	}
	core, err := orchestrator.New(reg, opts...)
	if err != nil {
		return nil, err
	}
	logger.DebugContext(ctx, "orchestrator ready",
		slog.Int("roles", len(core.Roles())),
		slog.Int("operations", len(core.Operations())),
		slog.Int("workflows", len(core.Workflows())),
	)
	e.core = core
	return core, nil
}

func (e *cliEnv) close(ctx context.Context) {
	if e.shutdown != nil {
		if err := e.shutdown(ctx); err != nil && e.logger != nil {
			e.logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}
	for _, c := range e.closers {
		_ = c()
	}
}
