// Package services defines the business logic of the waitlist: the intake
// pipeline that screens, normalizes and persists sign-ups.
//
// This file centralizes the service-level error values so that they can be
// consistently returned by service methods and checked by callers with
// errors.Is. Translation into user-facing messages or HTTP status codes is
// performed at the handler layer.
package services

import (
	"errors"
	"fmt"
)

// Intake rejections visible to the caller.
var (
	// ErrRateLimited is returned when the source exceeded its request budget
	// for the current window. The concrete error is *RateLimitedError.
	ErrRateLimited = errors.New("rate limited")

	// ErrInvalidInput is returned when the raw email trips the content-safety screen.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingInput is returned when nothing usable remains after sanitization.
	ErrMissingInput = errors.New("email is required")

	// ErrInvalidFormat is returned when the sanitized email is not local@domain.tld.
	ErrInvalidFormat = errors.New("invalid email format")

	// ErrDisposableDomain is returned for throwaway mailbox providers.
	ErrDisposableDomain = errors.New("disposable email domain")

	// ErrAlreadyRegistered is returned when the email is already on the waitlist,
	// whether detected by lookup or by a uniqueness violation on insert.
	ErrAlreadyRegistered = errors.New("email already registered")
)

// Server-side failures; details are logged, never returned to the caller.
var (
	// ErrPersistence wraps any record-store failure other than a duplicate,
	// including timeouts.
	ErrPersistence = errors.New("persistence failure")

	// ErrConfiguration is returned when the record store was never configured.
	ErrConfiguration = errors.New("record store not configured")
)

// RateLimitedError carries the wait, in whole seconds, before the source
// may submit again. It matches ErrRateLimited under errors.Is.
type RateLimitedError struct {
	RetryAfterSeconds int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: retry after %d seconds", e.RetryAfterSeconds)
}

// Unwrap lets errors.Is(err, ErrRateLimited) succeed.
func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }
