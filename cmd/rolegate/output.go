// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jllopis/rolegate/pkg/errors"
)

const (
	exitOK         = 0
	exitError      = 1
	exitUsage      = 2
	exitPermission = 3
	exitLookup     = 4
)

// cliError marks invalid invocations.
type cliError struct {
	err error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

func usageError(err error) error {
	return &cliError{err: err}
}

func usagef(format string, args ...any) error {
	return usageError(fmt.Errorf(format, args...))
}

// exitCode maps typed errors to process exit codes.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	if _, ok := err.(*cliError); ok {
		return exitUsage
	}
	switch {
	case errors.IsPermission(err):
		return exitPermission
	case errors.IsLookup(err):
		return exitLookup
	}
	return exitError
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

// writeError reports err as a JSON object on w.
func writeError(w io.Writer, err error) {
	out := map[string]any{"message": err.Error()}
	if _, ok := err.(*cliError); ok {
		out["code"] = "USAGE"
	} else {
		e := errors.AsError(err)
		out["code"] = string(e.Code)
		if len(e.Context) > 0 {
			out["context"] = e.Context
		}
	}
	_ = writeJSON(w, map[string]any{"error": out})
}
