// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

package hr

import (
	"context"
	"log/slog"
	"time"

	"github.com/jllopis/rolegate/pkg/core"
	"github.com/jllopis/rolegate/pkg/rules"
)

const reviewLeadTime = 30 * 24 * time.Hour

// Actions returns the rule actions by the name catalogs refer to them.
func (s *Services) Actions() map[string]rules.Action {
	return map[string]rules.Action{
		"trigger_approval":     s.triggerApproval,
		"termination_workflow": s.terminationWorkflow,
		"nitaqat_check":        s.nitaqatCheck,
		"schedule_review":      s.scheduleReview,
		"log_sensitive_access": s.logSensitiveAccess,
	}
}

func (s *Services) triggerApproval(ctx context.Context, ec core.ExecutionContext) (any, error) {
	kind, _ := ec.Payload["approval_type"].(string)
	if kind == "" {
		kind = "salary_change"
	}
	s.logger.InfoContext(ctx, "approval workflow triggered", slog.String("type", kind), slog.String("role", ec.Role))
	return map[string]any{"workflow": "approval", "type": kind, "status": "initiated"}, nil
}

func (s *Services) terminationWorkflow(ctx context.Context, ec core.ExecutionContext) (any, error) {
	s.logger.InfoContext(ctx, "termination workflow triggered", slog.String("role", ec.Role))
	return map[string]any{"workflow": "termination", "status": "initiated"}, nil
}

func (s *Services) nitaqatCheck(ctx context.Context, ec core.ExecutionContext) (any, error) {
	out, err := s.portal.Execute(ctx, "nitaqat", "compliance_check", ec.Payload)
	if err != nil {
		return nil, err
	}
	status, _ := out["status"].(string)
	if status == "" || status == "completed" {
		status = "compliant"
	}
	return map[string]any{"compliance": "nitaqat", "status": status}, nil
}

func (s *Services) scheduleReview(_ context.Context, _ core.ExecutionContext) (any, error) {
	return map[string]any{
		"review": "scheduled",
		"date":   s.now().Add(reviewLeadTime).UTC().Format(time.RFC3339),
	}, nil
}

func (s *Services) logSensitiveAccess(ctx context.Context, ec core.ExecutionContext) (any, error) {
	s.logger.InfoContext(ctx, "sensitive data access",
		slog.String("role", ec.Role),
		slog.String("actor_id", ec.ActorID),
		slog.String("tenant_id", ec.TenantID),
	)
	return map[string]any{"logged": true, "timestamp": s.now().UTC().Format(time.RFC3339)}, nil
}
