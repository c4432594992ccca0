// Package diagnostics accumulates the error/info reports produced while
// loading, parsing, elaborating and checking a Watson project. It never
// aborts the run: callers deposit a Diagnostic and keep going, per the
// accumulating-not-aborting model (spec §5, §7).
package diagnostics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/dragonhatcher/watson/internal/source"
)

// Kind classifies a Diagnostic per the taxonomy in spec §7.
type Kind string

const (
	KindIO        Kind = "io"
	KindParse     Kind = "parse"
	KindAmbiguity Kind = "ambiguity"
	KindName      Kind = "name"
	KindShape     Kind = "shape"
	KindModule    Kind = "module"
	KindKernel    Kind = "kernel"
	KindExternal  Kind = "external"
)

// Severity distinguishes errors (which force exit status 1) from warnings
// (which never do, per spec §7).
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

// Diagnostic is one reported condition, optionally anchored to a span.
type Diagnostic struct {
	Kind     Kind
	Severity Severity
	Message  string
	Span     source.Span
	HasSpan  bool
}

func (d Diagnostic) String() string {
	var b strings.Builder
	switch d.Severity {
	case SeverityWarning:
		b.WriteString("warning")
	case SeverityInfo:
		b.WriteString("info")
	default:
		b.WriteString("error")
	}
	b.WriteString(fmt.Sprintf("[%s]", d.Kind))
	if d.HasSpan {
		b.WriteString(" at " + d.Span.String())
	}
	b.WriteString(": " + d.Message)
	return b.String()
}

// Manager is the run-wide diagnostic collector. It is not safe for
// concurrent use by design: the core is single-threaded cooperative
// (spec §5).
type Manager struct {
	diags []Diagnostic
	// known is consulted for fuzzy "did you mean" suggestions on
	// unknown-name errors.
	known []string
}

// NewManager returns an empty collector.
func NewManager() *Manager { return &Manager{} }

// Report deposits a plain diagnostic.
func (m *Manager) Report(kind Kind, sev Severity, sp source.Span, hasSpan bool, format string, args ...any) {
	m.diags = append(m.diags, Diagnostic{
		Kind:     kind,
		Severity: sev,
		Message:  fmt.Sprintf(format, args...),
		Span:     sp,
		HasSpan:  hasSpan,
	})
}

// Errorf is shorthand for Report at SeverityError with no span.
func (m *Manager) Errorf(kind Kind, format string, args ...any) {
	m.Report(kind, SeverityError, source.Span{}, false, format, args...)
}

// ErrorAt is shorthand for Report at SeverityError with a span.
func (m *Manager) ErrorAt(kind Kind, sp source.Span, format string, args ...any) {
	m.Report(kind, SeverityError, sp, true, format, args...)
}

// TrackKnownName registers name as a candidate for fuzzy suggestions on a
// future unknown-name error (theorems, categories, notations).
func (m *Manager) TrackKnownName(name string) {
	m.known = append(m.known, name)
}

// UnknownName reports a Name-kind error for an unresolved identifier,
// appending a "did you mean" hint when a close match exists among the
// names registered via TrackKnownName. Grounded on the teacher's
// runtime/planner/planner.go use of lithammer/fuzzysearch to suggest the
// nearest decorator name.
func (m *Manager) UnknownName(sp source.Span, what, name string) {
	msg := fmt.Sprintf("unknown %s %q", what, name)
	if best := closest(name, m.known); best != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", best)
	}
	m.ErrorAt(KindName, sp, "%s", msg)
}

func closest(name string, candidates []string) string {
	best := ""
	bestDist := -1
	for _, c := range candidates {
		if c == name {
			continue
		}
		d := fuzzy.LevenshteinDistance(name, c)
		// Only suggest genuinely close spellings, not arbitrary names.
		if d > 3 {
			continue
		}
		if bestDist == -1 || d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// HasErrors reports whether any SeverityError diagnostic was reported;
// this is the run's exit-status source (spec §7: "exit status is 1 iff
// any error accumulated").
func (m *Manager) HasErrors() bool {
	for _, d := range m.diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// All returns every diagnostic reported so far, in report order.
func (m *Manager) All() []Diagnostic {
	out := make([]Diagnostic, len(m.diags))
	copy(out, m.diags)
	return out
}

// ByKind groups diagnostics by kind, for summary reporting.
func (m *Manager) ByKind() map[Kind][]Diagnostic {
	out := make(map[Kind][]Diagnostic)
	for _, d := range m.diags {
		out[d.Kind] = append(out[d.Kind], d)
	}
	return out
}

// Sorted returns diagnostics ordered by source, then by start byte, for
// stable CLI output.
func (m *Manager) Sorted() []Diagnostic {
	out := m.All()
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Span.Source != b.Span.Source {
			return a.Span.Source < b.Span.Source
		}
		return a.Span.StartByte < b.Span.StartByte
	})
	return out
}
