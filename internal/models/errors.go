package models

import (
	"errors"
	"fmt"
)

// Kind classifies a per-filing failure.
type Kind string

const (
	KindValidation Kind = "VALIDATION"
	KindResolution Kind = "RESOLUTION"
	KindNotFound   Kind = "NOT_FOUND"
	KindTransport  Kind = "TRANSPORT"
	KindUnexpected Kind = "UNEXPECTED"
)

// Error is a classified failure raised while processing a filing.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a classified error with a formatted cause.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err. A nil err yields nil; an already classified err keeps its kind.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the classification of err, KindUnexpected when unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// Message returns the text reported downstream for err. The operation prefix
// is omitted so the originating application sees the underlying reason.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Err.Error()
	}
	return err.Error()
}
