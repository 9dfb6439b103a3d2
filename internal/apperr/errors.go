// Package apperr provides a coded error type shared by the catalog, search
// and session layers so handlers can pick a user-facing reply by code.
package apperr

import (
	stderrs "errors"
	"fmt"
)

// Code classifies an error. Values are only compared in-process.
type Code uint8

const (
	// CodeUnknown is for unclassified errors
	CodeUnknown Code = iota

	// CodeValidation is for bad input (empty query, empty batch, no file payload)
	CodeValidation

	// CodeCollision is for unique constraint violations on natural keys or tokens
	CodeCollision

	// CodeExhausted is for bounded retries that ran out
	CodeExhausted

	// CodeUpstream is for store or delivery failures
	CodeUpstream

	// CodeExpired is for session tokens that are unknown or past their TTL
	CodeExpired

	// CodeForbidden is for sessions used by someone other than their owner
	CodeForbidden

	// CodeNotFound is for missing records
	CodeNotFound
)

func (c Code) String() string {
	switch c {
	case CodeValidation:
		return "validation"
	case CodeCollision:
		return "collision"
	case CodeExhausted:
		return "exhausted"
	case CodeUpstream:
		return "upstream"
	case CodeExpired:
		return "expired"
	case CodeForbidden:
		return "forbidden"
	case CodeNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error carries a code, a message and an optional wrapped cause.
type Error struct {
	orig error
	msg  string
	code Code
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.orig)
	}
	return e.msg
}

// Unwrap returns the wrapped error, if any
func (e *Error) Unwrap() error { return e.orig }

// Code returns the error code
func (e *Error) Code() Code { return e.code }

// New returns a new *Error with the given code and message
func New(code Code, msg string) error { return &Error{code: code, msg: msg} }

// Newf returns a new *Error with code and formatted message
func Newf(code Code, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...)}
}

// Wrap returns a new *Error that wraps orig with code and message
func Wrap(orig error, code Code, msg string) error {
	return &Error{code: code, msg: msg, orig: orig}
}

// Wrapf returns a new *Error that wraps orig with code and formatted message
func Wrapf(orig error, code Code, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...), orig: orig}
}

// As unwraps and returns (*Error, true) if err is one of ours
func As(err error) (*Error, bool) {
	var e *Error
	if stderrs.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf extracts the outermost Code from err, defaulting to CodeUnknown
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.code
	}
	return CodeUnknown
}

// IsCode reports whether err has the given code
func IsCode(err error, code Code) bool { return err != nil && CodeOf(err) == code }

// Sugar

// Validationf returns a validation error
func Validationf(format string, a ...any) error { return Newf(CodeValidation, format, a...) }

// Collisionf returns a collision error
func Collisionf(format string, a ...any) error { return Newf(CodeCollision, format, a...) }

// Exhaustedf returns an exhausted-retries error
func Exhaustedf(format string, a ...any) error { return Newf(CodeExhausted, format, a...) }

// NotFoundf returns a not found error
func NotFoundf(format string, a ...any) error { return Newf(CodeNotFound, format, a...) }

// Upstream wraps a collaborator failure unless it already carries a code
func Upstream(err error, msg string) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	return Wrap(err, CodeUpstream, msg)
}
