package compiler

import (
	"fmt"
	"sort"
)

// Severity of a compiler diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Diagnostic identifiers.
const (
	DiagSyntax           = "BS1002"
	DiagUndefinedName    = "BS0103"
	DiagUnknownNamespace = "BS0246"
	DiagUnknownLibrary   = "BS0006"
	DiagArity            = "BS1501"
	DiagNoEnclosingLoop  = "BS0139"
	DiagDuplicateMember  = "BS0111"
	DiagDuplicateLocal   = "BS0128"
	DiagUnreachable      = "BS0162"
	DiagNoEntryPoint     = "BS5001"
	DiagNotAssignable    = "BS0131"
	DiagInvalidStatement = "BS0201"
	DiagUnknownType      = "BS0234"
	DiagLimitExceeded    = "BS8103"
	DiagNoMember         = "BS0117"
)

// Diagnostic is a compiler error or warning at a unit source position.
type Diagnostic struct {
	Pos      Position
	ID       string
	Severity Severity
	Message  string
}

// Error formats the diagnostic as "(line,col): error ID: message".
func (d Diagnostic) Error() string {
	return fmt.Sprintf("(%d,%d): %s %s: %s", d.Pos.Line, d.Pos.Column, d.Severity, d.ID, d.Message)
}

// HasErrors reports whether any diagnostic is an error.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only the error diagnostics.
func Errors(diags []Diagnostic) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}

// diagList accumulates diagnostics.
type diagList struct {
	items []Diagnostic
}

func (l *diagList) errorAt(pos Position, id, format string, args ...any) {
	l.items = append(l.items, Diagnostic{Pos: pos, ID: id, Severity: SeverityError, Message: fmt.Sprintf(format, args...)})
}

func (l *diagList) warnAt(pos Position, id, format string, args ...any) {
	l.items = append(l.items, Diagnostic{Pos: pos, ID: id, Severity: SeverityWarning, Message: fmt.Sprintf(format, args...)})
}

// sorted returns the diagnostics ordered by position.
func (l *diagList) sorted() []Diagnostic {
	out := make([]Diagnostic, len(l.items))
	copy(out, l.items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pos.Line != out[j].Pos.Line {
			return out[i].Pos.Line < out[j].Pos.Line
		}
		return out[i].Pos.Column < out[j].Pos.Column
	})
	return out
}
