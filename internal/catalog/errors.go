package catalog

import (
	"errors"
	"fmt"
)

// Family identifies one of the four source text families.
type Family string

const (
	FamilyDRGList        Family = "drg-list"
	FamilyDiagnosisIndex Family = "diagnosis-index"
	FamilyCCIndex        Family = "cc-index"
	FamilyMDCLogic       Family = "mdc-logic"
)

// ParseError reports malformed or missing source text. A catalog is never
// returned alongside a ParseError.
type ParseError struct {
	Family Family
	Source string
	// Line is 1-based; zero when the error is not tied to a line.
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	switch {
	case e.Source != "" && e.Line > 0:
		return fmt.Sprintf("%s %s:%d: %s", e.Family, e.Source, e.Line, e.Err)
	case e.Source != "":
		return fmt.Sprintf("%s %s: %s", e.Family, e.Source, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Family, e.Err)
	}
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ErrMissingSource is wrapped by a ParseError when a family has no input.
var ErrMissingSource = errors.New("source text missing")

func parseErr(f Family, src string, line int, format string, args ...any) *ParseError {
	return &ParseError{Family: f, Source: src, Line: line, Err: fmt.Errorf(format, args...)}
}
