// Copyright 2026 The AgentMeta Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared assertion helpers for pipeline
// tests, centered on diagnostic-code expectations.
package testutil

import (
	"github.com/trustless-agents/agentmeta/lib/diag"
)

// failer is the subset of testing.T these helpers use.
type failer interface {
	Helper()
	Errorf(format string, args ...any)
}

// RequireCode fails the test when no diagnostic with the given code is
// present.
func RequireCode(t failer, diagnostics []diag.Diagnostic, code diag.Code) {
	t.Helper()
	if !hasCode(diagnostics, code) {
		t.Errorf("expected diagnostic %s, got %v", code, codesOf(diagnostics))
	}
}

// RequireNoCode fails the test when a diagnostic with the given code is
// present.
func RequireNoCode(t failer, diagnostics []diag.Diagnostic, code diag.Code) {
	t.Helper()
	if hasCode(diagnostics, code) {
		t.Errorf("unexpected diagnostic %s in %v", code, codesOf(diagnostics))
	}
}

// RequireNoErrors fails the test when any Critical diagnostic is
// present.
func RequireNoErrors(t failer, diagnostics []diag.Diagnostic) {
	t.Helper()
	for _, d := range diagnostics {
		if d.Severity == diag.SeverityError {
			t.Errorf("unexpected critical diagnostic %s: %s", d.Code, d.Message)
		}
	}
}

func hasCode(diagnostics []diag.Diagnostic, code diag.Code) bool {
	for _, d := range diagnostics {
		if d.Code == code {
			return true
		}
	}
	return false
}

func codesOf(diagnostics []diag.Diagnostic) []diag.Code {
	codes := make([]diag.Code, len(diagnostics))
	for i, d := range diagnostics {
		codes[i] = d.Code
	}
	return codes
}
