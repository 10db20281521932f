// Package voxerr defines the error kinds produced by the mapping core.
//
// None of the four kinds ever panic their way out of a public call; every
// fallible operation returns one of these wrapped with github.com/pkg/errors
// so callers can both errors.Is/As match on kind and read a useful message.
package voxerr

import "github.com/pkg/errors"

// Kind classifies an error returned by the core.
type Kind int

const (
	// KindConfig marks a misconfiguration: resolution <= 0, B not a power
	// of two or ascending-ratio violations, caught at construction time,
	// or depth image dimensions disagreeing with the sensor model, caught
	// per frame by the carver.
	KindConfig Kind = iota
	// KindAllocation marks exhaustion of the memory pool.
	KindAllocation
	// KindBoundary marks a voxel coordinate outside [0, N)^3, surfaced only
	// from public queries; internal callers must pre-check.
	KindBoundary
	// KindIO marks a mesh file read/write failure.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindAllocation:
		return "allocation"
	case KindBoundary:
		return "boundary"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned for all four kinds.
type Error struct {
	Kind Kind
	msg  string
	// cause is the wrapped underlying error, if any (e.g. an *os.PathError
	// surfacing through an IoError).
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is a *Error with the same Kind, so
// errors.Is(err, voxerr.NewConfigError("")) style matching works for sentinels
// built with the same kind regardless of message.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, msg: errors.Errorf(format, args...).Error()}
}

// NewConfigError builds a KindConfig error.
func NewConfigError(format string, args ...interface{}) error {
	return newError(KindConfig, format, args...)
}

// NewAllocationError builds a KindAllocation error.
func NewAllocationError(format string, args ...interface{}) error {
	return newError(KindAllocation, format, args...)
}

// NewBoundaryError builds a KindBoundary error.
func NewBoundaryError(format string, args ...interface{}) error {
	return newError(KindBoundary, format, args...)
}

// NewIOError wraps cause as a KindIO error.
func NewIOError(cause error, format string, args ...interface{}) error {
	e := newError(KindIO, format, args...)
	e.cause = cause
	return e
}

// IsKind reports whether err is a *Error of the given kind, walking the
// error chain with errors.As.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
