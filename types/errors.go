package types

import (
	"fmt"
	"strings"
)

// FormatError reports input that can not be read: a malformed fixed width
// field, a missing section or data array, or an empty input
type FormatError struct {
	File  string
	Line  int // 1-based, zero when the error is not tied to a line
	Field string
	Err   error
}

func (e *FormatError) Error() string {
	var sb strings.Builder
	if e.File != "" {
		sb.WriteString(e.File)
	} else {
		sb.WriteString("<input>")
	}
	if e.Line > 0 {
		fmt.Fprintf(&sb, ":%d", e.Line)
	}
	if e.Field != "" {
		fmt.Fprintf(&sb, ": field %q", e.Field)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

func (e *FormatError) Unwrap() error { return e.Err }

// NewFormatError builds a FormatError with a formatted cause
func NewFormatError(file string, line int, field, format string, args ...any) *FormatError {
	return &FormatError{
		File:  file,
		Line:  line,
		Field: field,
		Err:   fmt.Errorf(format, args...),
	}
}

// ConsistencyError reports a count mismatch between parsed records and the
// assembled grid
type ConsistencyError struct {
	What      string
	Want, Got int
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("number of %s in grid (%d) does not match number read from mesh (%d)",
		e.What, e.Got, e.Want)
}

// UsageError reports bad command line arguments
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

func NewUsageError(format string, args ...any) *UsageError {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}
