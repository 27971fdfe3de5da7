// Copyright 2026 The AgentMeta Authors
// SPDX-License-Identifier: Apache-2.0

package diag

import "fmt"

// List accumulates diagnostics in insertion order. Duplicates with the
// same code and field path collapse to the first occurrence, so a
// validator that revisits a field (schema level flags a missing list,
// status level flags it again) reports it once.
//
// A List is owned by a single resolution call and is not safe for
// concurrent use.
type List struct {
	items []Diagnostic
	seen  map[dedupKey]struct{}
}

type dedupKey struct {
	code Code
	path string
}

// Add appends d unless a diagnostic with the same code and field path
// was already recorded.
func (l *List) Add(d Diagnostic) {
	key := dedupKey{code: d.Code, path: d.FieldPath}
	if l.seen == nil {
		l.seen = make(map[dedupKey]struct{})
	}
	if _, dup := l.seen[key]; dup {
		return
	}
	l.seen[key] = struct{}{}
	l.items = append(l.items, d)
}

// Addf records a diagnostic with a formatted message.
func (l *List) Addf(code Code, fieldPath, format string, args ...any) {
	l.Add(New(code, fieldPath, fmt.Sprintf(format, args...)))
}

// Items returns the accumulated diagnostics in insertion order. The
// returned slice is the list's backing storage; callers that outlive
// the list must copy it.
func (l *List) Items() []Diagnostic {
	return l.items
}

// Len returns the number of accumulated diagnostics.
func (l *List) Len() int {
	return len(l.items)
}

// HasErrors reports whether any accumulated diagnostic is Critical.
func (l *List) HasErrors() bool {
	for _, d := range l.items {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Has reports whether a diagnostic with the given code was recorded on
// any field path.
func (l *List) Has(code Code) bool {
	for _, d := range l.items {
		if d.Code == code {
			return true
		}
	}
	return false
}
