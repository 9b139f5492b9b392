// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and give clients a stable, machine-readable
// taxonomy next to the human-readable message. Intake codes name the pipeline
// stage that rejected a submission. Bot detections have no code because they
// are answered with a normal success.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"
	ErrCodeUnavailable      = "unavailable"

	// Intake pipeline:
	ErrCodeInvalidInput      = "invalid_input"
	ErrCodeMissingInput      = "missing_input"
	ErrCodeInvalidFormat     = "invalid_format"
	ErrCodeDisposableDomain  = "disposable_domain"
	ErrCodeAlreadyRegistered = "already_registered"
	ErrCodePersistence       = "persistence_error"
	ErrCodeConfiguration     = "configuration_error"
)
