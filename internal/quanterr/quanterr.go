// Package quanterr defines the structured failure model shared by the
// engine boundaries. Callers can branch on the Kind without parsing
// messages, and partial results stay usable alongside the error.
package quanterr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// Data marks an empty or malformed bar sequence. Fatal for the call.
	Data Kind = "data"
	// InsufficientHistory marks windows larger than the available bars.
	InsufficientHistory Kind = "insufficient_history"
	// Computation marks recovered numeric instability.
	Computation Kind = "computation"
	// Capacity marks a trade skipped for lack of capital.
	Capacity Kind = "capacity"
)

type Error struct {
	Kind Kind
	Msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.err
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), err: err}
}

// KindOf reports the kind carried by err, or "" for foreign errors.
func KindOf(err error) Kind {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return ""
}
