// Package diag implements the compiler's diagnostic sink (spec.md component
// A, half): accumulated errors with source locations, fatal vs recoverable
// severity, and continuation chains, following the accumulate-then-report
// shape of cmd_local/go/internal/base's Errorf/Fatalf/SetExitStatus.
package diag

import (
	"fmt"
	"sort"

	"golang.org/x/xerrors"
)

// Severity classifies a diagnostic.
type Severity int

const (
	// Warning diagnostics never fail a pass.
	Warning Severity = iota
	// Error diagnostics are recoverable: the pass keeps going so later
	// problems in the same pass are also reported, but the pass as a
	// whole is considered failed.
	Error
	// Fatal diagnostics stop the pass (and the pipeline) immediately.
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal error"
	default:
		return "diagnostic"
	}
}

// Pos is a source location: an interned (original, expanded) path pair plus
// a 1-based line number, attached to every AST node.
type Pos struct {
	Original string
	Expanded string
	Line     int
}

func (p Pos) String() string {
	if p.Original == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d", p.Original, p.Line)
}

// Diagnostic is one accumulated problem.
type Diagnostic struct {
	Severity  Severity
	Pos       Pos
	Message   string
	Continued *Diagnostic // the diagnostic this one continues, if any
	frame     xerrors.Frame
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s: %s", d.Pos, d.Severity, d.Message)
}

// Sink accumulates diagnostics for one compiler pass. A fresh Sink should be
// used per pass so Ok reflects exactly that pass's outcome, per spec.md §7:
// "every pass accumulates errors; the pass returns success iff no error with
// Fatal severity was raised and no non-fatal error accumulated."
type Sink struct {
	diagnostics []*Diagnostic
	fatal       bool
}

// NewSink returns an empty Sink.
func NewSink() *Sink {
	return &Sink{}
}

// Report records a diagnostic at the given severity and location.
func (s *Sink) Report(sev Severity, pos Pos, format string, args ...interface{}) *Diagnostic {
	d := &Diagnostic{
		Severity: sev,
		Pos:      pos,
		Message:  fmt.Sprintf(format, args...),
		frame:    xerrors.Caller(1),
	}
	s.diagnostics = append(s.diagnostics, d)
	if sev == Fatal {
		s.fatal = true
	}
	return d
}

// Continue records a diagnostic that continues a previous one (e.g. "note:
// required by this field"), linking it via Continued.
func (s *Sink) Continue(prior *Diagnostic, sev Severity, pos Pos, format string, args ...interface{}) *Diagnostic {
	d := s.Report(sev, pos, format, args...)
	d.Continued = prior
	return d
}

// Wrap folds a Go error produced elsewhere (e.g. the resource manager) into
// a diagnostic whose message is "context: err".
func (s *Sink) Wrap(sev Severity, pos Pos, context string, err error) *Diagnostic {
	return s.Report(sev, pos, "%v", xerrors.Errorf("%s: %w", context, err))
}

// Diagnostics returns all accumulated diagnostics in report order.
func (s *Sink) Diagnostics() []*Diagnostic {
	return s.diagnostics
}

// Ok reports whether the pass succeeded: no Error or Fatal diagnostic was
// raised. Warnings alone still count as success.
func (s *Sink) Ok() bool {
	for _, d := range s.diagnostics {
		if d.Severity != Warning {
			return false
		}
	}
	return true
}

// HasFatal reports whether a Fatal diagnostic was raised.
func (s *Sink) HasFatal() bool {
	return s.fatal
}

// Merge appends another sink's diagnostics into s, used when a pass fans
// out across several sub-traversals (e.g. one per bank) that each keep
// their own Sink before being combined.
func (s *Sink) Merge(other *Sink) {
	s.diagnostics = append(s.diagnostics, other.diagnostics...)
	if other.fatal {
		s.fatal = true
	}
}

// SortStable orders diagnostics by source position for deterministic
// output, breaking ties by original report order.
func (s *Sink) SortStable() {
	sort.SliceStable(s.diagnostics, func(i, j int) bool {
		a, b := s.diagnostics[i], s.diagnostics[j]
		if a.Pos.Original != b.Pos.Original {
			return a.Pos.Original < b.Pos.Original
		}
		return a.Pos.Line < b.Pos.Line
	})
}
