// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads rolegate settings. Sources are layered: defaults, the
// YAML file, an optional profile overlay (config.<profile>.yaml), ROLEGATE_
// environment variables and finally --set overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes environment overrides: ROLEGATE_DISPATCH_TIMEOUT sets
// dispatch.timeout. Only the first underscore after the prefix separates the
// section from the key.
const EnvPrefix = "ROLEGATE_"

type Config struct {
	Log       LogConfig                 `koanf:"log"`
	Telemetry TelemetryConfig           `koanf:"telemetry"`
	Audit     AuditConfig               `koanf:"audit"`
	Catalog   CatalogConfig             `koanf:"catalog"`
	Dispatch  DispatchConfig            `koanf:"dispatch"`
	MCP       MCPConfig                 `koanf:"mcp"`
	Providers map[string]ProviderConfig `koanf:"providers"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
	// Output is stderr, discard or a file path. Empty lets the caller pick.
	Output string `koanf:"output"`
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // none, stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
	ServiceName  string `koanf:"service_name"`
}

type AuditConfig struct {
	Driver string `koanf:"driver"` // memory, sqlite, log
	DSN    string `koanf:"dsn"`
}

type CatalogConfig struct {
	// Path is the catalog YAML. Empty selects the built-in catalog.
	Path string `koanf:"path"`
}

type DispatchConfig struct {
	Timeout       time.Duration `koanf:"timeout"`
	ParallelRules bool          `koanf:"parallel_rules"`
	// StepFallback acknowledges workflow steps without a handler.
	StepFallback bool `koanf:"step_fallback"`
	// BatchConcurrency bounds concurrent batch items; zero is unbounded.
	BatchConcurrency int `koanf:"batch_concurrency"`
}

type MCPConfig struct {
	Addr string `koanf:"addr"`
	Name string `koanf:"name"`
}

// ProviderConfig overrides the provider of the catalog handler with the same
// key.
type ProviderConfig struct {
	Type             string `koanf:"type"` // static, http, mcp
	Endpoint         string `koanf:"endpoint"`
	Token            string `koanf:"token"`
	TokenEnv         string `koanf:"token_env"`
	Server           string `koanf:"server"`
	Tool             string `koanf:"tool"`
	Retries          int    `koanf:"retries"`
	BreakerThreshold int    `koanf:"breaker_threshold"`
}

// Options selects the sources LoadWith reads.
type Options struct {
	Path    string
	Profile string
	// Sets are key=value overrides applied last. Values starting with { or [
	// are decoded as JSON.
	Sets []string
}

var defaults = map[string]any{
	"log.level":                  "info",
	"log.format":                 "text",
	"telemetry.exporter":         "none",
	"telemetry.service_name":     "rolegate",
	"audit.driver":               "memory",
	"dispatch.timeout":           "30s",
	"dispatch.parallel_rules":    false,
	"dispatch.step_fallback":     true,
	"dispatch.batch_concurrency": 8,
	"mcp.addr":                   ":8090",
	"mcp.name":                   "rolegate",
}

// Load reads the file at path (optional) and the environment.
func Load(path string) (*Config, error) {
	return LoadWith(Options{Path: path})
}

// LoadWithProfile overlays config.<profile>.yaml next to path when it exists.
func LoadWithProfile(path, profile string) (*Config, error) {
	return LoadWith(Options{Path: path, Profile: profile})
}

// LoadWithCLI reads --config, --profile (alias --env) and repeated --set
// flags from args. Other arguments are ignored.
func LoadWithCLI(args []string) (*Config, error) {
	opts, err := parseCLIOverrides(args)
	if err != nil {
		return nil, err
	}
	return LoadWith(opts)
}

// LoadWith layers every source in opts over the defaults.
func LoadWith(opts Options) (*Config, error) {
	k := koanf.New(".")
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, err
		}
	}

	if opts.Path != "" {
		if err := k.Load(file.Provider(opts.Path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %s: %w", opts.Path, err)
		}
		if overlay := profileConfigPath(opts.Path, opts.Profile); overlay != "" {
			if err := k.Load(file.Provider(overlay), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load profile %s: %w", overlay, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	for _, set := range opts.Sets {
		key, value, err := parseSet(set)
		if err != nil {
			return nil, err
		}
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("apply --set %s: %w", key, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
}

// profileConfigPath returns the overlay path for profile, or "" when there is
// no such file.
func profileConfigPath(base, profile string) string {
	if base == "" || profile == "" {
		return ""
	}
	ext := filepath.Ext(base)
	path := strings.TrimSuffix(base, ext) + "." + profile + ext
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return ""
	}
	return path
}

func parseCLIOverrides(args []string) (Options, error) {
	var opts Options
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, value, hasValue := strings.Cut(arg, "=")
		switch name {
		case "--config", "--profile", "--env", "--set":
		default:
			continue
		}
		if !hasValue {
			if i+1 >= len(args) {
				return Options{}, fmt.Errorf("%s requires a value", name)
			}
			i++
			value = args[i]
		}
		switch name {
		case "--config":
			opts.Path = value
		case "--profile", "--env":
			opts.Profile = value
		case "--set":
			if _, _, err := parseSet(value); err != nil {
				return Options{}, err
			}
			opts.Sets = append(opts.Sets, value)
		}
	}
	return opts, nil
}

func parseSet(set string) (string, any, error) {
	key, raw, ok := strings.Cut(set, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", nil, fmt.Errorf("invalid --set %q: want key=value", set)
	}
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return "", nil, fmt.Errorf("invalid --set %s: %w", key, err)
		}
		return key, v, nil
	}
	return key, raw, nil
}
