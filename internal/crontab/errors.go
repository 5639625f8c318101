package crontab

import (
	"errors"
	"fmt"
)

var (
	// ErrFieldFormat: a field token matches no grammar alternative, a range is
	// inverted or a step divisor is out of bounds.
	ErrFieldFormat = errors.New("unrecognized field format")
	// ErrFieldRange: an expanded value lies outside the field's domain.
	ErrFieldRange = errors.New("field value out of range")
	// ErrTaskUnreachable: the schedule matches no calendar instant.
	ErrTaskUnreachable = errors.New("task is never to be executed")
	// ErrLastCallFormat: the trailing last-call comment could not be decoded.
	ErrLastCallFormat = errors.New("malformed last call")
	// ErrLineFormat: the line is neither a task, a comment nor blank.
	ErrLineFormat = errors.New("wrong format for task")
)

// FieldError locates a field parse failure.
type FieldError struct {
	Field string
	Token string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s field %q: %v", e.Field, e.Token, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// LineError ties a parse failure to its 1-based line number.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v: %s", e.Line, e.Err, e.Text)
}

func (e *LineError) Unwrap() error { return e.Err }
