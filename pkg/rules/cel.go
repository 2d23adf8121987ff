// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/jllopis/rolegate/pkg/core"
)

var (
	envOnce sync.Once
	env     *cel.Env
	envErr  error
)

// conditionEnv declares the variables visible to rule expressions:
// role, tenant_id, actor_id, data (the payload), metadata and now.
func conditionEnv() (*cel.Env, error) {
	envOnce.Do(func() {
		env, envErr = cel.NewEnv(
			cel.Variable("role", cel.StringType),
			cel.Variable("tenant_id", cel.StringType),
			cel.Variable("actor_id", cel.StringType),
			cel.Variable("data", cel.MapType(cel.StringType, cel.DynType)),
			cel.Variable("metadata", cel.MapType(cel.StringType, cel.DynType)),
			cel.Variable("now", cel.TimestampType),
			cel.CrossTypeNumericComparisons(true),
		)
	})
	return env, envErr
}

// CompileCondition compiles a CEL expression into a Condition. The expression
// must evaluate to a bool.
func CompileCondition(expression string) (Condition, error) {
	e, err := conditionEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	ast, issues := e.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", issues.Err())
	}
	program, err := e.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}

	return func(ec core.ExecutionContext) (bool, error) {
		vars := ec.Attrs()
		vars["now"] = time.Now()
		out, _, err := program.Eval(vars)
		if err != nil {
			return false, err
		}
		matched, ok := out.Value().(bool)
		if !ok {
			return false, fmt.Errorf("expression returned %T, want bool", out.Value())
		}
		return matched, nil
	}, nil
}

// MustCompileCondition is CompileCondition for static expressions; it panics
// on a compile error.
func MustCompileCondition(expression string) Condition {
	c, err := CompileCondition(expression)
	if err != nil {
		panic(err)
	}
	return c
}
