// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

package hr

import (
	"context"
	"fmt"

	"github.com/jllopis/rolegate/pkg/workflow"
)

// Steps returns the concrete step handlers. Steps not listed here are left
// to the executor's fallback.
func (s *Services) Steps() workflow.Steps {
	return workflow.Steps{
		"create_employee_record": workflow.StepFunc(s.createEmployeeRecord),
		"generate_employee_id":   workflow.StepFunc(s.generateEmployeeID),
		"setup_system_accounts":  workflow.StepFunc(s.setupSystemAccounts),
		"notify_manager":         workflow.StepFunc(s.notifyManager),
		"sync_with_qiwa":         s.portalStep("qiwa"),
		"update_gosi_records":    s.portalStep("gosi"),
	}
}

func (s *Services) createEmployeeRecord(ctx context.Context, _ string, _ *workflow.State) (any, error) {
	id := fmt.Sprintf("EMP%d", s.now().UnixMilli())
	s.logger.InfoContext(ctx, "employee record created")
	return map[string]any{"record": "created", "id": id}, nil
}

func (s *Services) generateEmployeeID(_ context.Context, _ string, _ *workflow.State) (any, error) {
	ms := fmt.Sprintf("%d", s.now().UnixMilli())
	if len(ms) > 6 {
		ms = ms[len(ms)-6:]
	}
	return map[string]any{"employeeId": "AQL" + ms}, nil
}

func (s *Services) setupSystemAccounts(_ context.Context, _ string, _ *workflow.State) (any, error) {
	return map[string]any{
		"accounts": []any{"email", "hr_system", "payroll"},
		"status":   "created",
	}, nil
}

func (s *Services) notifyManager(ctx context.Context, _ string, state *workflow.State) (any, error) {
	recipient, _ := state.Context.Payload["manager_id"].(string)
	if recipient == "" {
		recipient = "manager"
	}
	method, err := s.notifier.Notify(ctx, recipient, "new employee onboarding in progress")
	if err != nil {
		return nil, err
	}
	return map[string]any{"notification": "sent", "method": method}, nil
}

func (s *Services) portalStep(portal string) workflow.StepFunc {
	return func(ctx context.Context, step string, state *workflow.State) (any, error) {
		out, err := s.portal.Execute(ctx, portal, step, state.Context.Payload)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", portal, err)
		}
		return out, nil
	}
}
