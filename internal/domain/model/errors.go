package model

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Match with errors.Is.
var (
	// ErrValidation marks malformed or out-of-bounds input; state is unchanged.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidTransition marks an operation illegal in the current state,
	// e.g. ending a shift that was never started; state is unchanged.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrOutOfRange marks a clock or period bound violation; state is unchanged.
	ErrOutOfRange = errors.New("out of range")
	// ErrNotFound marks an unknown event, player or session.
	ErrNotFound = errors.New("not found")
)

// Error annotates a kind with the failing operation and detail.
type Error struct {
	Op     string
	Kind   error
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewKind builds an *Error of the given kind.
func NewKind(op string, kind error, detail string) error {
	return &Error{Op: op, Kind: kind, Detail: detail}
}

// NewKindf is NewKind with a format string.
func NewKindf(op string, kind error, format string, args ...any) error {
	return &Error{Op: op, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// WrapKind wraps err with a kind and op.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf returns the first known sentinel kind err matches, or nil.
func KindOf(err error) error {
	for _, k := range []error{ErrValidation, ErrInvalidTransition, ErrOutOfRange, ErrNotFound} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
