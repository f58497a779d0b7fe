// Package errors provides error handling for Spuro.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrNotFound) {
//	    // handle not found
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint        = crdb.WithHint
	WithHintf       = crdb.WithHintf
	WithDetail      = crdb.WithDetail
	WithDetailf     = crdb.WithDetailf
	WithSafeDetails = crdb.WithSafeDetails
)

// Error inspection
var (
	Is         = crdb.Is
	IsAny      = crdb.IsAny
	As         = crdb.As
	Unwrap     = crdb.Unwrap
	UnwrapOnce = crdb.UnwrapOnce
	UnwrapAll  = crdb.UnwrapAll
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Sentinel errors forming the engine's error taxonomy.
// Every engine call resolves to success or exactly one of these classes.
// Use with errors.Is() for type-safe checking; wrap with errors.Wrap()
// to add context while preserving the class.
var (
	// ErrNotFound indicates the entity key was never assigned, was deleted,
	// or has expired as of the call instant.
	ErrNotFound = New("not found")

	// ErrForbidden indicates the caller is not the entity's owner.
	ErrForbidden = New("forbidden")

	// ErrInvalidInput indicates a malformed TTL, attribute type, query
	// string, or degenerate transfer target.
	ErrInvalidInput = New("invalid input")

	// ErrUnavailable indicates a storage or transport failure below the
	// engine. This is the only class eligible for bounded local retry.
	ErrUnavailable = New("unavailable")
)

// IsNotFound checks if an error is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsForbidden checks if an error is or wraps ErrForbidden.
func IsForbidden(err error) bool {
	return err != nil && Is(err, ErrForbidden)
}

// IsInvalidInput checks if an error is or wraps ErrInvalidInput.
func IsInvalidInput(err error) bool {
	return err != nil && Is(err, ErrInvalidInput)
}

// IsUnavailable checks if an error is or wraps ErrUnavailable.
func IsUnavailable(err error) bool {
	return err != nil && Is(err, ErrUnavailable)
}

// NewNotFoundf creates a not-found error with a formatted message.
func NewNotFoundf(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}

// NewInvalidInputf creates an invalid-input error with a formatted message.
func NewInvalidInputf(format string, args ...interface{}) error {
	return Wrap(ErrInvalidInput, Newf(format, args...).Error())
}

// NewForbiddenf creates a forbidden error with a formatted message.
func NewForbiddenf(format string, args ...interface{}) error {
	return Wrap(ErrForbidden, Newf(format, args...).Error())
}

// WrapUnavailable wraps a lower-layer failure as unavailable with context.
func WrapUnavailable(err error, context string) error {
	if err == nil {
		return nil
	}
	return Wrap(Wrap(ErrUnavailable, err.Error()), context)
}
