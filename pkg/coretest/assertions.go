// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

package coretest

import (
	"testing"

	"github.com/jllopis/rolegate/pkg/errors"
	"github.com/jllopis/rolegate/pkg/rules"
	"github.com/jllopis/rolegate/pkg/workflow"
)

// Assertions provides assertion helpers for testing.
type Assertions struct {
	t      *testing.T
	failed bool
}

// NewAssertions creates a new assertions helper.
func NewAssertions(t *testing.T) *Assertions {
	return &Assertions{t: t}
}

// Failed returns true if any assertion has failed.
func (a *Assertions) Failed() bool {
	return a.failed
}

func (a *Assertions) errorf(format string, args ...any) {
	a.t.Helper()
	a.t.Errorf(format, args...)
	a.failed = true
}

// AssertEqual asserts that two values are equal.
func (a *Assertions) AssertEqual(expected, actual any, msg string) {
	a.t.Helper()
	if expected != actual {
		a.errorf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// AssertNoError asserts that the error is nil.
func (a *Assertions) AssertNoError(err error, msg string) {
	a.t.Helper()
	if err != nil {
		a.errorf("%s: unexpected error: %v", msg, err)
	}
}

// AssertCode asserts that err carries code.
func (a *Assertions) AssertCode(err error, code errors.ErrorCode, msg string) {
	a.t.Helper()
	if !errors.Is(err, code) {
		a.errorf("%s: expected %s, got %v", msg, code, err)
	}
}

// RuleLedgerAssertions checks a rule pass ledger.
type RuleLedgerAssertions struct {
	*Assertions
	outcomes []rules.Outcome
}

// AssertRules starts assertions over a rule ledger.
func (a *Assertions) AssertRules(outcomes []rules.Outcome) *RuleLedgerAssertions {
	return &RuleLedgerAssertions{Assertions: a, outcomes: outcomes}
}

// HasEntries asserts the ledger length.
func (r *RuleLedgerAssertions) HasEntries(n int) *RuleLedgerAssertions {
	r.t.Helper()
	if len(r.outcomes) != n {
		r.errorf("expected %d rule outcomes, got %d", n, len(r.outcomes))
	}
	return r
}

// HasSuccesses asserts how many outcomes succeeded.
func (r *RuleLedgerAssertions) HasSuccesses(n int) *RuleLedgerAssertions {
	r.t.Helper()
	got := 0
	for _, o := range r.outcomes {
		if o.Success {
			got++
		}
	}
	if got != n {
		r.errorf("expected %d successful rules, got %d", n, got)
	}
	return r
}

// Succeeded asserts rule matched and succeeded.
func (r *RuleLedgerAssertions) Succeeded(rule string) *RuleLedgerAssertions {
	r.t.Helper()
	o, ok := r.find(rule)
	if !ok {
		return r
	}
	if !o.Matched || !o.Success {
		r.errorf("expected rule %q to match and succeed, got %+v", rule, o)
	}
	return r
}

// Failed asserts rule ran and failed.
func (r *RuleLedgerAssertions) Failed(rule string) *RuleLedgerAssertions {
	r.t.Helper()
	o, ok := r.find(rule)
	if !ok {
		return r
	}
	if o.Success {
		r.errorf("expected rule %q to fail", rule)
	}
	return r
}

// Absent asserts rule is not in the ledger.
func (r *RuleLedgerAssertions) Absent(rule string) *RuleLedgerAssertions {
	r.t.Helper()
	for _, o := range r.outcomes {
		if o.Rule == rule {
			r.errorf("expected rule %q to be skipped", rule)
		}
	}
	return r
}

func (r *RuleLedgerAssertions) find(rule string) (rules.Outcome, bool) {
	r.t.Helper()
	for _, o := range r.outcomes {
		if o.Rule == rule {
			return o, true
		}
	}
	r.errorf("rule %q not in ledger", rule)
	return rules.Outcome{}, false
}

// ReportAssertions checks a workflow report.
type ReportAssertions struct {
	*Assertions
	report *workflow.Report
}

// AssertReport starts assertions over a workflow report.
func (a *Assertions) AssertReport(report *workflow.Report) *ReportAssertions {
	a.t.Helper()
	if report == nil {
		a.errorf("report is nil")
		report = &workflow.Report{}
	}
	return &ReportAssertions{Assertions: a, report: report}
}

// HasCounts asserts completed and total.
func (r *ReportAssertions) HasCounts(completed, total int) *ReportAssertions {
	r.t.Helper()
	if r.report.Completed != completed || r.report.Total != total {
		r.errorf("expected %d/%d steps, got %d/%d", completed, total, r.report.Completed, r.report.Total)
	}
	return r
}

// HasSteps asserts the ledger lists exactly steps, in order.
func (r *ReportAssertions) HasSteps(steps ...string) *ReportAssertions {
	r.t.Helper()
	if len(r.report.Steps) != len(steps) {
		r.errorf("expected steps %v, got %d entries", steps, len(r.report.Steps))
		return r
	}
	for i, s := range steps {
		if r.report.Steps[i].Step != s {
			r.errorf("step %d: expected %q, got %q", i, s, r.report.Steps[i].Step)
		}
	}
	return r
}

// StepFailed asserts the named step is in the ledger as a failure.
func (r *ReportAssertions) StepFailed(step string) *ReportAssertions {
	r.t.Helper()
	for _, s := range r.report.Steps {
		if s.Step == step {
			if s.Success {
				r.errorf("expected step %q to fail", step)
			}
			return r
		}
	}
	r.errorf("step %q not in ledger", step)
	return r
}
