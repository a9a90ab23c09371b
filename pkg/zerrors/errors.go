// Package zerrors defines the pool's error taxonomy (spec.md section 7):
// InvalidArgument, TooLarge, OutOfMemory, TryAgain. Invariant violations
// (I1-I7) are not part of this taxonomy -- those are asserted via
// pkg/utils.Assert and panic, since they indicate corruption rather than
// a caller mistake the pool can recover from.
package zerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code classifies a Pool error into one of the taxonomy buckets spec.md
// section 7 defines.
type Code int

const (
	// CodeInvalidArgument covers a zero-size request, flags forbidding
	// directly addressable memory, or a ReclaimPage call with no eviction
	// hook registered or nothing left to reclaim.
	CodeInvalidArgument Code = iota
	// CodeTooLarge covers a request exceeding the largest tier.
	CodeTooLarge
	// CodeOutOfMemory covers the backing page-frame supplier refusing a page.
	CodeOutOfMemory
	// CodeTryAgain covers ReclaimPage exhausting its retry budget.
	CodeTryAgain
)

func (c Code) String() string {
	switch c {
	case CodeInvalidArgument:
		return "InvalidArgument"
	case CodeTooLarge:
		return "TooLarge"
	case CodeOutOfMemory:
		return "OutOfMemory"
	case CodeTryAgain:
		return "TryAgain"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned across the public API.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ztier: %s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("ztier: %s: %s", e.Code, e.Message)
}

// Unwrap lets errors.Is/errors.As see through to the underlying cause,
// e.g. the page-frame supplier's own error.
func (e *Error) Unwrap() error { return e.Cause }

// New builds a taxonomy error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap builds a taxonomy error around a collaborator's failure, preserving
// a stack trace on cause via github.com/pkg/errors the way
// talyz-systemd_exporter wraps dbus/procfs failures.
func Wrap(code Code, message string, cause error) error {
	if cause == nil {
		return New(code, message)
	}
	return &Error{Code: code, Message: message, Cause: errors.Wrap(cause, message)}
}

// Is reports whether err is a taxonomy error of the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// Convenience constructors matching spec.md section 7's named errors.

func InvalidArgument(message string) error { return New(CodeInvalidArgument, message) }
func TooLarge(message string) error        { return New(CodeTooLarge, message) }
func OutOfMemory(cause error) error {
	return Wrap(CodeOutOfMemory, "backing page-frame supplier refused a page", cause)
}
func TryAgain(message string) error { return New(CodeTryAgain, message) }
