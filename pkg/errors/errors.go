// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package errors provides typed errors for the orchestration core.
//
// Every failure leaving the core carries an ErrorCode so callers can tell a
// permission problem ("access denied") from a lookup problem or an
// infrastructure failure without string matching.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies orchestration errors for callers and monitoring.
type ErrorCode string

const (
	// CodeUnknownRole indicates the role has no registered policy.
	CodeUnknownRole ErrorCode = "UNKNOWN_ROLE"

	// CodeUnsupportedOperation indicates the operation kind is not mapped to a capability.
	CodeUnsupportedOperation ErrorCode = "UNSUPPORTED_OPERATION"

	// CodeWorkflowNotFound indicates the workflow name is not registered.
	CodeWorkflowNotFound ErrorCode = "WORKFLOW_NOT_FOUND"

	// CodeCapabilityDenied indicates the role policy does not grant the capability.
	CodeCapabilityDenied ErrorCode = "CAPABILITY_DENIED"

	// CodeWorkflowForbidden indicates the role may not run the workflow.
	CodeWorkflowForbidden ErrorCode = "WORKFLOW_FORBIDDEN"

	// CodeNoHandlerAvailable indicates no handler serves a required capability.
	CodeNoHandlerAvailable ErrorCode = "NO_HANDLER_AVAILABLE"

	// CodeHandlerExecution wraps a failure from a capability provider.
	CodeHandlerExecution ErrorCode = "HANDLER_EXECUTION"

	// CodeStepExecution wraps a failure from a workflow step.
	CodeStepExecution ErrorCode = "STEP_EXECUTION"

	// CodeRuleAction wraps a failure from a rule action.
	CodeRuleAction ErrorCode = "RULE_ACTION"

	// CodeRuleCondition wraps a failure while evaluating a rule condition.
	CodeRuleCondition ErrorCode = "RULE_CONDITION"

	// CodeInvalidInput indicates a malformed request.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Error is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type Error struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Attributes  map[string]string
	Recoverable bool
	StatusCode  int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *Error) MarshalJSON() ([]byte, error) {
	cause := ""
	if e.Err != nil {
		cause = e.Err.Error()
	}
	return json.Marshal(&struct {
		Message     string                 `json:"message"`
		Code        string                 `json:"code"`
		Err         string                 `json:"error,omitempty"`
		Recoverable bool                   `json:"recoverable"`
		Context     map[string]interface{} `json:"context,omitempty"`
		StatusCode  int                    `json:"status_code"`
	}{
		Message:     e.Error(),
		Code:        string(e.Code),
		Err:         cause,
		Recoverable: e.Recoverable,
		Context:     e.Context,
		StatusCode:  e.StatusCode,
	})
}

// New creates a new Error with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *Error {
	return &Error{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		Attributes: make(map[string]string),
		StatusCode: codeToStatusCode(code),
	}
}

// Newf creates a new Error without a cause, formatting the message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithAttribute adds a string attribute for OTEL traces.
func (e *Error) WithAttribute(key, value string) *Error {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
func (e *Error) WithRecoverable(recoverable bool) *Error {
	e.Recoverable = recoverable
	return e
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *Error) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// AsError attempts to convert an error to an *Error.
// Unknown errors are wrapped as internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf returns the code of the first *Error in the chain, or CodeInternal.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Is reports whether any *Error in the chain carries code.
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	return e.Code == code
}

// IsPermission reports whether err is an authorization failure
// (CodeCapabilityDenied or CodeWorkflowForbidden).
func IsPermission(err error) bool {
	switch CodeOf(err) {
	case CodeCapabilityDenied, CodeWorkflowForbidden:
		return true
	}
	return false
}

// IsLookup reports whether err signals a caller or configuration lookup failure.
func IsLookup(err error) bool {
	switch CodeOf(err) {
	case CodeUnknownRole, CodeUnsupportedOperation, CodeWorkflowNotFound:
		return true
	}
	return false
}

// IsFatal reports whether err aborts a call rather than being captured per item.
func IsFatal(err error) bool {
	switch CodeOf(err) {
	case CodeUnknownRole, CodeUnsupportedOperation, CodeWorkflowNotFound,
		CodeCapabilityDenied, CodeWorkflowForbidden, CodeNoHandlerAvailable,
		CodeInvalidInput:
		return true
	}
	return false
}

// codeToStatusCode maps error codes to HTTP-style status codes.
func codeToStatusCode(code ErrorCode) int {
	switch code {
	case CodeCapabilityDenied, CodeWorkflowForbidden:
		return 403
	case CodeUnknownRole, CodeUnsupportedOperation, CodeWorkflowNotFound:
		return 404
	case CodeInvalidInput:
		return 400
	case CodeTimeout:
		return 408
	case CodeNoHandlerAvailable:
		return 503
	default:
		return 500
	}
}
