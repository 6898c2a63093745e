// Package dataset reads and writes activity logs in the canonical delimited
// format and computes descriptive profiles over them.
package dataset

import (
	"errors"
	"fmt"
)

// Row-level failure causes, usable with errors.Is.
var (
	ErrFieldCount       = errors.New("wrong number of fields")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrInvalidTenant    = errors.New("invalid tenant id")
	ErrInvalidResource  = errors.New("invalid resource id")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidLabel     = errors.New("invalid anomaly label")
	ErrInvalidRecord    = errors.New("record failed validation")

	// ErrHeaderMismatch is fatal: the file is not in the canonical layout.
	ErrHeaderMismatch = errors.New("dataset: header does not match canonical schema")
)

// MissingInputError reports that the input file does not exist.
type MissingInputError struct {
	Path string
	Err  error
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("input file not found: %s", e.Path)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *MissingInputError) Unwrap() error {
	return e.Err
}

// MalformedRecordError reports a row that does not parse as the canonical
// schema. Such rows are skipped, never merged into statistics.
type MalformedRecordError struct {
	Line  int    // 1-based line number in the file
	Field string // column name, empty when the whole row is bad
	Value string
	Err   error
}

func (e *MalformedRecordError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: %s %q: %v", e.Line, e.Field, e.Value, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

func malformed(line int, field, value string, err error) *MalformedRecordError {
	return &MalformedRecordError{Line: line, Field: field, Value: value, Err: err}
}

// IsMissingInput reports whether err is a MissingInputError.
func IsMissingInput(err error) bool {
	var mie *MissingInputError
	return errors.As(err, &mie)
}
