// Package specerr defines the two load-time error kinds: malformed OpenAPI
// documents and malformed rules files. Both are fatal at startup (spec §7).
package specerr

import "fmt"

// SpecError reports a problem loading or resolving the OpenAPI document:
// a malformed document, a dangling or non-local $ref, or an unreadable file.
type SpecError struct {
	Path string // document path, or "" for in-memory documents
	Msg  string
	Err  error
}

func (e *SpecError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("spec error in %s: %s", e.Path, e.Msg)
	}
	return fmt.Sprintf("spec error: %s", e.Msg)
}

func (e *SpecError) Unwrap() error { return e.Err }

func NewSpecError(path, msg string, err error) *SpecError {
	return &SpecError{Path: path, Msg: msg, Err: err}
}

// RuleError reports a malformed rules (scenarios) file: a scenario missing
// `when` or `do`, or one with an unrecognized action variant.
type RuleError struct {
	Path  string
	Index int // scenario index, -1 if not applicable
	Msg   string
	Err   error
}

func (e *RuleError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("rule error in %s (scenario %d): %s", e.Path, e.Index, e.Msg)
	}
	return fmt.Sprintf("rule error in %s: %s", e.Path, e.Msg)
}

func (e *RuleError) Unwrap() error { return e.Err }

func NewRuleError(path string, index int, msg string, err error) *RuleError {
	return &RuleError{Path: path, Index: index, Msg: msg, Err: err}
}
