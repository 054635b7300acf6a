// Package errors provides standardized domain errors that express business intent
// rather than infrastructure details. These errors should be used by use cases
// and mapped to appropriate HTTP status codes by handlers.
package errors

import (
	"errors"
	"fmt"
)

// Standard domain errors that can be used across all domain modules.
var (
	// ErrNotFound indicates the requested resource or key does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a conflict with existing data.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates the input data is malformed or fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates credentials were rejected by a backend or caller.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller doesn't have permission.
	ErrForbidden = errors.New("forbidden")

	// ErrUnavailable indicates a backend could not be loaded, reached or used.
	ErrUnavailable = errors.New("unavailable")

	// ErrTimeout indicates a bounded operation did not complete in time.
	ErrTimeout = errors.New("timeout")

	// ErrIntegrity indicates an authentication check failed on decrypt or unwrap.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrIO indicates an artifact could not be persisted or read back.
	ErrIO = errors.New("i/o error")
)

// New creates a new error with the given message.
// This is a convenience wrapper around errors.New for consistency.
func New(message string) error {
	return errors.New(message)
}

// Wrap wraps an error with additional context while preserving the error chain.
// Use this to add context at each layer without losing the original error type.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Join attaches cause to a domain error so both stay visible to errors.Is.
// The domain error is reported first in the message.
func Join(domainErr, cause error) error {
	if cause == nil {
		return domainErr
	}
	return fmt.Errorf("%w: %w", domainErr, cause)
}

// Is reports whether any error in err's tree matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}
