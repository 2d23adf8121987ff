// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

// Command rolegate runs role-gated operations, rule passes and workflows
// against a catalog, and serves them over MCP.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/jllopis/rolegate/pkg/config"
)

const version = "dev"

type globalFlags struct {
	Config  string
	Profile string
	Sets    []string
	Catalog string
	Help    bool
}

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, env *cliEnv, args []string) error
	// serves marks long-running commands, which log to stderr unless
	// log.output says otherwise. One-shot commands keep stderr for the
	// error object.
	serves bool
}

var commands = []command{
	{"dispatch", "dispatch <kind> --role r [--payload json]", runDispatch, false},
	{"batch", "batch --file requests.json", runBatch, false},
	{"rules", "rules --role r [--payload json]", runRules, false},
	{"workflow", "workflow <name> --role r [--payload json]", runWorkflow, false},
	{"process", "process <operation> --role r [--payload json]", runProcess, false},
	{"roles", "roles", runRoles, false},
	{"validate", "validate", runValidate, false},
	{"audit", "audit list [--kind k] [--role r] [--limit n]", runAudit, false},
	{"mcp", "mcp serve [--transport stdio|http] [--addr :8090]", runMCP, true},
	{"watch", "watch", runWatch, true},
	{"health", "health", runHealth, false},
	{"version", "version", runVersion, false},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one CLI invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global, rest, err := parseGlobalFlags(args)
	if err != nil {
		writeError(stderr, usageError(err))
		return exitUsage
	}
	if global.Help || len(rest) == 0 {
		printUsage(stderr)
		return exitOK
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == rest[0] {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		writeError(stderr, usageError(fmt.Errorf("unknown command %q", rest[0])))
		return exitUsage
	}

	cfg, err := config.LoadWith(config.Options{Path: global.Config, Profile: global.Profile, Sets: global.Sets})
	if err != nil {
		writeError(stderr, err)
		return exitCode(err)
	}
	if global.Catalog != "" {
		cfg.Catalog.Path = global.Catalog
	}

	env := &cliEnv{global: global, cfg: cfg, stdout: stdout, stderr: stderr}
	defer env.close(ctx)
	if err := env.openLogs(cmd.serves); err != nil {
		writeError(stderr, err)
		return exitCode(err)
	}
	if err := cmd.run(ctx, env, rest[1:]); err != nil {
		writeError(stderr, err)
		return exitCode(err)
	}
	return exitOK
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var g globalFlags
	fs := pflag.NewFlagSet("rolegate", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(io.Discard)
	fs.StringVar(&g.Config, "config", "", "configuration file")
	fs.StringVar(&g.Profile, "profile", "", "profile overlay (config.<profile>.yaml)")
	fs.StringArrayVar(&g.Sets, "set", nil, "override a configuration key (key=value, repeatable)")
	fs.StringVar(&g.Catalog, "catalog", "", "catalog file (default: built-in catalog)")
	fs.BoolVarP(&g.Help, "help", "h", false, "show help")
	if err := fs.Parse(args); err != nil {
		return g, nil, err
	}
	return g, fs.Args(), nil
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage: rolegate [--config file] [--profile p] [--set key=value] [--catalog file] <command>\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(w, "  %s\n", c.usage)
	}
	fmt.Fprintf(w, "\nOutput is JSON on stdout and errors are JSON on stderr. Logs are off for one-shot\ncommands unless log.output is set (stderr or a file path).\nExit codes: 1 error, 2 usage, 3 permission denied, 4 not found.\n")
}
