// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

package coretest

import (
	"context"
	"fmt"
	"sync"

	"github.com/jllopis/rolegate/pkg/workflow"
)

// ScriptedSteps builds step handlers that succeed unless told to fail and
// remember the order in which they ran.
type ScriptedSteps struct {
	mu   sync.Mutex
	fail map[string]error
	ran  []string
}

// NewScriptedSteps creates an empty script.
func NewScriptedSteps() *ScriptedSteps {
	return &ScriptedSteps{fail: make(map[string]error)}
}

// Fail makes step return err.
func (s *ScriptedSteps) Fail(step string, err error) *ScriptedSteps {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		err = fmt.Errorf("%s failed", step)
	}
	s.fail[step] = err
	return s
}

// Handlers returns a handler for each named step.
func (s *ScriptedSteps) Handlers(steps ...string) workflow.Steps {
	out := make(workflow.Steps, len(steps))
	for _, step := range steps {
		out[step] = workflow.StepFunc(s.execute)
	}
	return out
}

func (s *ScriptedSteps) execute(_ context.Context, step string, _ *workflow.State) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ran = append(s.ran, step)
	if err := s.fail[step]; err != nil {
		return nil, err
	}
	return map[string]any{"step": step, "status": "done"}, nil
}

// Ran returns the steps executed so far, in order.
func (s *ScriptedSteps) Ran() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ran...)
}
