// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package workflow runs named, ordered step lists with a two-tier failure
// policy: a failed critical step aborts the run, any other failed step is
// recorded and the run continues.
package workflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jllopis/rolegate/pkg/errors"
)

// Workflow is a named sequence of steps scoped to a set of roles.
type Workflow struct {
	Name        string
	DisplayName string
	Steps       []string
	Roles       []string
	// Critical lists the steps whose failure aborts the run.
	Critical []string
}

// Allows reports whether role may run the workflow.
func (w Workflow) Allows(role string) bool {
	for _, r := range w.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsCritical reports whether step aborts the run on failure.
func (w Workflow) IsCritical(step string) bool {
	for _, s := range w.Critical {
		if s == step {
			return true
		}
	}
	return false
}

// Validate checks the workflow definition.
func (w Workflow) Validate() error {
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("workflow name is required")
	}
	if len(w.Steps) == 0 {
		return fmt.Errorf("workflow %q has no steps", w.Name)
	}
	if len(w.Roles) == 0 {
		return fmt.Errorf("workflow %q allows no role", w.Name)
	}
	steps := make(map[string]bool, len(w.Steps))
	for _, s := range w.Steps {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("workflow %q has an empty step name", w.Name)
		}
		if steps[s] {
			return fmt.Errorf("workflow %q repeats step %q", w.Name, s)
		}
		steps[s] = true
	}
	for _, c := range w.Critical {
		if !steps[c] {
			return fmt.Errorf("workflow %q marks unknown step %q as critical", w.Name, c)
		}
	}
	return nil
}

// Registry holds workflows by name. It is read-only after construction.
type Registry struct {
	workflows map[string]Workflow
}

// NewRegistry validates and stores workflows.
func NewRegistry(workflows ...Workflow) (*Registry, error) {
	r := &Registry{workflows: make(map[string]Workflow, len(workflows))}
	for _, w := range workflows {
		if err := w.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.workflows[w.Name]; dup {
			return nil, fmt.Errorf("duplicate workflow %q", w.Name)
		}
		w.Steps = append([]string(nil), w.Steps...)
		w.Roles = append([]string(nil), w.Roles...)
		w.Critical = append([]string(nil), w.Critical...)
		r.workflows[w.Name] = w
	}
	return r, nil
}

// Get returns a workflow or fails with CodeWorkflowNotFound.
func (r *Registry) Get(name string) (Workflow, error) {
	if r != nil {
		if w, ok := r.workflows[name]; ok {
			return w, nil
		}
	}
	return Workflow{}, errors.Newf(errors.CodeWorkflowNotFound, "workflow %q is not registered", name).
		WithContext("workflow", name)
}

// Names returns workflow names sorted alphabetically.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.workflows))
	for name := range r.workflows {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Roles returns every role referenced by any workflow, sorted.
func (r *Registry) Roles() []string {
	if r == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, w := range r.workflows {
		for _, role := range w.Roles {
			if !seen[role] {
				seen[role] = true
				out = append(out, role)
			}
		}
	}
	sort.Strings(out)
	return out
}
