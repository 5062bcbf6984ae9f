// Package errs classifies domain errors into a small closed set of kinds so
// that transports can map them without knowing every sentinel.
package errs

import "errors"

// Kind tags an error with its caller-facing category.
type Kind string

const (
	KindValidation      Kind = "validation_error"
	KindConflict        Kind = "conflict"
	KindNotFound        Kind = "not_found"
	KindState           Kind = "invalid_state"
	KindPrecondition    Kind = "precondition_not_met"
	KindForbidden       Kind = "forbidden"
	KindUnauthenticated Kind = "unauthenticated"
	KindRateLimited     Kind = "rate_limited"
	KindInternal        Kind = "internal_error"
)

// Error is a sentinel bound to a Kind. Compare with errors.Is.
type Error struct {
	kind Kind
	code string
}

// New declares a sentinel error with the given kind and machine-readable code.
func New(kind Kind, code string) *Error {
	return &Error{kind: kind, code: code}
}

func (e *Error) Error() string { return e.code }

// Kind returns the error kind.
func (e *Error) Kind() Kind { return e.kind }

// Code returns the machine-readable code.
func (e *Error) Code() string { return e.code }

// KindOf resolves the kind of err, looking through wrapped errors.
// Unclassified errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var target *Error
	if errors.As(err, &target) {
		return target.kind
	}
	return KindInternal
}

// CodeOf returns the code of the first classified error in the chain.
func CodeOf(err error) string {
	var target *Error
	if errors.As(err, &target) {
		return target.code
	}
	return string(KindInternal)
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Shared sentinels used across packages.
var (
	ErrUnauthenticated = New(KindUnauthenticated, "unauthenticated")
	ErrForbidden       = New(KindForbidden, "forbidden")
)
