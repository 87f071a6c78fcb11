// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package apperror defines the error kinds surfaced by the account and
// issuance services. Every failure leaving a service is an *Error whose
// Message is safe to show to clients; the wrapped cause is for logs only.
package apperror

import "errors"

// Kind classifies a failure by what the caller can do about it.
type Kind int

const (
	KindInternal   Kind = iota // unexpected; not retryable by the caller
	KindValidation             // malformed or missing input
	KindConflict               // uniqueness or state-gate violation
	KindAuth                   // credential or code mismatch
	KindNotFound               // referenced entity absent
	KindTransient              // store or dependency timeout; retry with backoff
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindTransient:
		return "transient"
	default:
		return "internal"
	}
}

// Error is a classified failure. Two errors match under errors.Is when
// their Kind and Code are equal, so package-level sentinels keep working
// after Wrap.
type Error struct {
	Err     error
	Code    string
	Message string
	Kind    Kind
}

// New creates a sentinel error.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Code == e.Code
}

// Wrap returns a copy of e carrying err as its cause.
func (e *Error) Wrap(err error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: err}
}

// WithMessage returns a copy of e with a different client-facing message.
func (e *Error) WithMessage(message string) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: message, Err: e.Err}
}

// ErrStoreUnavailable is returned when a store call failed or timed out.
// Reads and uniqueness-guarded writes are safe to retry.
var ErrStoreUnavailable = New(KindTransient, "store_unavailable", "service temporarily unavailable, please retry")

// KindOf returns the Kind of the first *Error in err's chain, or
// KindInternal if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client-facing message for err. Errors that are not
// classified get a generic message so internal details never leak.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "an internal error occurred"
}

// CodeOf returns the machine-readable code for err, or "internal".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}
