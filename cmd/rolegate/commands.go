// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/pflag"

	"github.com/jllopis/rolegate/pkg/audit"
	"github.com/jllopis/rolegate/pkg/catalog"
	"github.com/jllopis/rolegate/pkg/config"
	rgcore "github.com/jllopis/rolegate/pkg/core"
	"github.com/jllopis/rolegate/pkg/errors"
	"github.com/jllopis/rolegate/pkg/health"
	"github.com/jllopis/rolegate/pkg/hr"
	"github.com/jllopis/rolegate/pkg/mcp"
	"github.com/jllopis/rolegate/pkg/orchestrator"
	"github.com/jllopis/rolegate/pkg/rules"
	"github.com/jllopis/rolegate/pkg/telemetry"
)

// requestFlags are shared by the commands acting for a role.
type requestFlags struct {
	role        string
	payload     string
	payloadFile string
}

func (r *requestFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&r.role, "role", "", "role of the caller (required)")
	fs.StringVar(&r.payload, "payload", "", "payload as a JSON object")
	fs.StringVar(&r.payloadFile, "payload-file", "", "file holding the payload JSON object")
}

func (r *requestFlags) parse() (map[string]any, error) {
	if r.role == "" {
		return nil, usagef("--role is required")
	}
	raw := []byte(r.payload)
	if r.payloadFile != "" {
		data, err := os.ReadFile(r.payloadFile)
		if err != nil {
			return nil, usageError(err)
		}
		raw = data
	}
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, usagef("invalid payload: %v", err)
	}
	return payload, nil
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

// parseArgs parses args and checks the number of positional arguments.
func parseArgs(fs *pflag.FlagSet, args []string, positional int) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, usageError(err)
	}
	if fs.NArg() != positional {
		return nil, usagef("%s expects %d argument(s), got %d", fs.Name(), positional, fs.NArg())
	}
	return fs.Args(), nil
}

func runDispatch(ctx context.Context, env *cliEnv, args []string) error {
	var req requestFlags
	fs := newFlagSet("dispatch")
	req.register(fs)
	pos, err := parseArgs(fs, args, 1)
	if err != nil {
		return err
	}
	payload, err := req.parse()
	if err != nil {
		return err
	}
	core, err := env.orchestrator(ctx)
	if err != nil {
		return err
	}
	resp, err := core.Dispatch(ctx, pos[0], req.role, payload)
	if err != nil {
		return err
	}
	if err := writeJSON(env.stdout, resp); err != nil {
		return err
	}
	// A handler failure is reported in the response and still fails the run.
	return resp.Err
}

func runBatch(ctx context.Context, env *cliEnv, args []string) error {
	var file string
	fs := newFlagSet("batch")
	fs.StringVar(&file, "file", "", "JSON array of {kind, role, payload} requests (required)")
	if _, err := parseArgs(fs, args, 0); err != nil {
		return err
	}
	if file == "" {
		return usagef("--file is required")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return usageError(err)
	}
	var requests []orchestrator.Request
	if err := json.Unmarshal(data, &requests); err != nil {
		return usagef("invalid batch file: %v", err)
	}
	core, err := env.orchestrator(ctx)
	if err != nil {
		return err
	}
	return writeJSON(env.stdout, core.DispatchBatch(ctx, requests))
}

type rulesOutput struct {
	Role     string          `json:"role"`
	Outcomes []rules.Outcome `json:"outcomes"`
	Summary  rules.Summary   `json:"summary"`
}

func runRules(ctx context.Context, env *cliEnv, args []string) error {
	var req requestFlags
	fs := newFlagSet("rules")
	req.register(fs)
	if _, err := parseArgs(fs, args, 0); err != nil {
		return err
	}
	payload, err := req.parse()
	if err != nil {
		return err
	}
	core, err := env.orchestrator(ctx)
	if err != nil {
		return err
	}
	outcomes, err := core.EvaluateRules(ctx, req.role, payload)
	if err != nil {
		return err
	}
	return writeJSON(env.stdout, rulesOutput{Role: req.role, Outcomes: outcomes, Summary: rules.Summarize(outcomes)})
}

func runWorkflow(ctx context.Context, env *cliEnv, args []string) error {
	var req requestFlags
	fs := newFlagSet("workflow")
	req.register(fs)
	pos, err := parseArgs(fs, args, 1)
	if err != nil {
		return err
	}
	payload, err := req.parse()
	if err != nil {
		return err
	}
	core, err := env.orchestrator(ctx)
	if err != nil {
		return err
	}
	report, err := core.RunWorkflow(ctx, pos[0], req.role, payload)
	if err != nil {
		return err
	}
	return writeJSON(env.stdout, report)
}

func runProcess(ctx context.Context, env *cliEnv, args []string) error {
	var req requestFlags
	fs := newFlagSet("process")
	req.register(fs)
	pos, err := parseArgs(fs, args, 1)
	if err != nil {
		return err
	}
	payload, err := req.parse()
	if err != nil {
		return err
	}
	core, err := env.orchestrator(ctx)
	if err != nil {
		return err
	}
	processed, err := core.ProcessForRole(ctx, req.role, pos[0], payload)
	if err != nil {
		return err
	}
	return writeJSON(env.stdout, processed)
}

type roleOutput struct {
	Role         string   `json:"role"`
	Capabilities []string `json:"capabilities"`
	Operations   []string `json:"operations"`
	Workflows    []string `json:"workflows"`
}

// runRoles lists, per role, its capabilities and the operations and
// workflows it may run.
func runRoles(ctx context.Context, env *cliEnv, args []string) error {
	if _, err := parseArgs(newFlagSet("roles"), args, 0); err != nil {
		return err
	}
	c, err := env.orchestrator(ctx)
	if err != nil {
		return err
	}
	cat, err := loadCatalog(env.cfg)
	if err != nil {
		return err
	}

	out := make([]roleOutput, 0, len(c.Roles()))
	for _, role := range c.Roles() {
		r := roleOutput{Role: role, Capabilities: []string{}, Operations: []string{}, Workflows: []string{}}
		for _, capability := range c.CapabilitiesForRole(role) {
			r.Capabilities = append(r.Capabilities, string(capability))
		}
		for _, op := range c.Operations() {
			if c.CanAccess(role, rgcore.Capability(cat.Operations[op])) {
				r.Operations = append(r.Operations, op)
			}
		}
		for _, w := range cat.Workflows {
			for _, allowed := range w.Roles {
				if allowed == role {
					r.Workflows = append(r.Workflows, w.Name)
				}
			}
		}
		sort.Strings(r.Workflows)
		out = append(out, r)
	}
	return writeJSON(env.stdout, out)
}

type validateOutput struct {
	Catalog    string   `json:"catalog"`
	Valid      bool     `json:"valid"`
	Roles      int      `json:"roles"`
	Operations int      `json:"operations"`
	Handlers   int      `json:"handlers"`
	Rules      int      `json:"rules"`
	Workflows  int      `json:"workflows"`
	Actions    []string `json:"actions"`
}

func runValidate(ctx context.Context, env *cliEnv, args []string) error {
	if _, err := parseArgs(newFlagSet("validate"), args, 0); err != nil {
		return err
	}
	cat, err := loadCatalog(env.cfg)
	if err != nil {
		return err
	}
	// Building also checks that every action is bound.
	if _, err := env.orchestrator(ctx); err != nil {
		return err
	}
	name := env.cfg.Catalog.Path
	if name == "" {
		name = "built-in"
	}
	return writeJSON(env.stdout, validateOutput{
		Catalog:    name,
		Valid:      true,
		Roles:      len(cat.Roles),
		Operations: len(cat.Operations),
		Handlers:   len(cat.Handlers),
		Rules:      len(cat.Rules),
		Workflows:  len(cat.Workflows),
		Actions:    cat.ActionNames(),
	})
}

func runAudit(ctx context.Context, env *cliEnv, args []string) error {
	if len(args) == 0 || args[0] != "list" {
		return usagef("usage: rolegate audit list [--kind k] [--role r] [--operation o] [--limit n]")
	}
	var filter audit.Filter
	var kind string
	fs := newFlagSet("audit list")
	fs.StringVar(&kind, "kind", "", "dispatch, rules or workflow")
	fs.StringVar(&filter.Role, "role", "", "only entries for role")
	fs.StringVar(&filter.Operation, "operation", "", "only entries for operation or workflow")
	fs.IntVar(&filter.Limit, "limit", 50, "maximum number of entries")
	if _, err := parseArgs(fs, args[1:], 0); err != nil {
		return err
	}
	switch audit.Kind(kind) {
	case "", audit.KindDispatch, audit.KindRules, audit.KindWorkflow:
		filter.Kind = audit.Kind(kind)
	default:
		return usagef("unknown audit kind %q", kind)
	}
	sink, err := env.auditSink()
	if err != nil {
		return err
	}
	entries, err := sink.List(ctx, filter)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	return writeJSON(env.stdout, entries)
}

func runMCP(ctx context.Context, env *cliEnv, args []string) error {
	if len(args) == 0 || args[0] != "serve" {
		return usagef("usage: rolegate mcp serve [--transport stdio|http] [--addr :8090]")
	}
	var transport, addr string
	fs := newFlagSet("mcp serve")
	fs.StringVar(&transport, "transport", "stdio", "stdio or http")
	fs.StringVar(&addr, "addr", env.cfg.MCP.Addr, "listen address for the http transport")
	if _, err := parseArgs(fs, args[1:], 0); err != nil {
		return err
	}
	core, err := env.orchestrator(ctx)
	if err != nil {
		return err
	}
	server := mcp.NewServer(env.cfg.MCP.Name, version, core)
	switch transport {
	case "stdio":
		return server.ServeStdio()
	case "http":
		env.log().InfoContext(ctx, "serving MCP over streamable HTTP", slog.String("addr", addr))
		return server.ServeHTTP(addr)
	default:
		return usagef("unknown transport %q", transport)
	}
}

// runWatch revalidates the catalog every time the configuration or the
// catalog file changes, until interrupted.
func runWatch(ctx context.Context, env *cliEnv, args []string) error {
	if _, err := parseArgs(newFlagSet("watch"), args, 0); err != nil {
		return err
	}
	logger := env.log()
	opts := config.Options{Path: env.global.Config, Profile: env.global.Profile, Sets: env.global.Sets}
	if env.global.Catalog != "" {
		opts.Sets = append(opts.Sets, "catalog.path="+env.global.Catalog)
	}
	watcher, cfg, err := config.WatchConfig(ctx, opts, config.WithWatchLogger(logger))
	if err != nil {
		return err
	}
	defer watcher.Stop()

	services := hr.NewServices(hr.WithLogger(telemetry.Component(logger, "hr")))
	check := func(cfg *config.Config) {
		cat, err := loadCatalog(cfg)
		if err == nil {
			_, err = cat.Build(catalog.Bindings{Actions: services.Actions(), Steps: services.Steps()})
		}
		if err != nil {
			logger.Error("catalog invalid", slog.String("error", err.Error()))
			return
		}
		logger.Info("catalog valid", slog.Int("rules", len(cat.Rules)), slog.Int("workflows", len(cat.Workflows)))
	}
	check(cfg)
	watcher.OnChange(check)
	<-ctx.Done()
	return nil
}

type healthOutput struct {
	Status     health.Status   `json:"status"`
	Components []health.Result `json:"components"`
}

// runHealth reports handler breakers and the audit store. An unhealthy core
// exits with status 1.
func runHealth(ctx context.Context, env *cliEnv, args []string) error {
	if _, err := parseArgs(newFlagSet("health"), args, 0); err != nil {
		return err
	}
	core, err := env.orchestrator(ctx)
	if err != nil {
		return err
	}
	results, status := core.Health(ctx)
	if err := writeJSON(env.stdout, healthOutput{Status: status, Components: results}); err != nil {
		return err
	}
	if status == health.Unhealthy {
		return errors.Newf(errors.CodeNoHandlerAvailable, "core is unhealthy")
	}
	return nil
}

func runVersion(_ context.Context, env *cliEnv, args []string) error {
	if _, err := parseArgs(newFlagSet("version"), args, 0); err != nil {
		return err
	}
	return writeJSON(env.stdout, map[string]string{"version": version})
}
