// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides logging, tracing and metrics for the
// orchestration core.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic conventions for rolegate telemetry.
const (
	AttrRole       = "rolegate.role"
	AttrTenantID   = "rolegate.tenant_id"
	AttrRunID      = "rolegate.run_id"
	AttrOperation  = "rolegate.operation"
	AttrCapability = "rolegate.capability"
	AttrHandler    = "rolegate.handler"
	AttrOutcome    = "rolegate.outcome"
	AttrDurationMs = "rolegate.duration_ms"
	AttrErrorCode  = "rolegate.error.code"

	AttrRuleName    = "rolegate.rule.name"
	AttrRuleMatched = "rolegate.rule.matched"
	AttrRuleSuccess = "rolegate.rule.success"
	AttrRulesCount  = "rolegate.rules.count"

	AttrWorkflowName  = "rolegate.workflow.name"
	AttrStepName      = "rolegate.workflow.step"
	AttrStepIndex     = "rolegate.workflow.step_index"
	AttrStepCritical  = "rolegate.workflow.step_critical"
	AttrStepSuccess   = "rolegate.workflow.step_success"
	AttrStepsTotal    = "rolegate.workflow.steps_total"
	AttrStepsComplete = "rolegate.workflow.steps_completed"
)

// DispatchAttributes returns attributes for a dispatch span.
func DispatchAttributes(operation, role, runID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrOperation, operation),
		attribute.String(AttrRole, role),
	}
	if runID != "" {
		attrs = append(attrs, attribute.String(AttrRunID, runID))
	}
	return attrs
}

// HandlerAttributes describes the selected handler.
func HandlerAttributes(handlerID string, capability string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrHandler, handlerID),
		attribute.String(AttrCapability, capability),
	}
}

// RuleAttributes returns attributes for a single rule evaluation.
func RuleAttributes(name string, matched, success bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrRuleName, name),
		attribute.Bool(AttrRuleMatched, matched),
		attribute.Bool(AttrRuleSuccess, success),
	}
}

// StepAttributes returns attributes for a workflow step span.
func StepAttributes(workflow, step string, index int, critical bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrWorkflowName, workflow),
		attribute.String(AttrStepName, step),
		attribute.Int(AttrStepIndex, index),
		attribute.Bool(AttrStepCritical, critical),
	}
}

// WorkflowResultAttributes summarises a finished workflow run.
func WorkflowResultAttributes(completed, total int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrStepsComplete, completed),
		attribute.Int(AttrStepsTotal, total),
	}
}
