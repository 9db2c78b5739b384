package types

import "fmt"

// The four error kinds the pipeline distinguishes. FormatError and
// IntegrityError abort the run; a RecoverableGap is resolved to an explicit
// unknown placeholder and processing continues; IOError aborts without ever
// touching the input file.

// FormatError reports a structurally invalid snapshot: bad magic, truncated
// header or record, or an unsupported property type.
type FormatError struct {
	Msg string
}

func (e *FormatError) Error() string { return "format error: " + e.Msg }

// FormatErrorf builds a FormatError from a format string.
func FormatErrorf(format string, args ...interface{}) error {
	return &FormatError{Msg: fmt.Sprintf(format, args...)}
}

// IntegrityError reports a snapshot that parses but violates directory
// invariants: duplicate case-folded DNs, or a missing required naming
// context during enrichment.
type IntegrityError struct {
	Msg string
}

func (e *IntegrityError) Error() string { return "integrity error: " + e.Msg }

// IntegrityErrorf builds an IntegrityError from a format string.
func IntegrityErrorf(format string, args ...interface{}) error {
	return &IntegrityError{Msg: fmt.Sprintf(format, args...)}
}

// RecoverableGap reports a reference that cannot be resolved to a known
// object. Callers substitute an unknown placeholder and continue.
type RecoverableGap struct {
	Reference string
}

func (e *RecoverableGap) Error() string {
	return "unresolved reference: " + e.Reference
}

// IOError wraps a file open/read/write failure.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
