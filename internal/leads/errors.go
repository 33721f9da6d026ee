package leads

import (
	"errors"

	"github.com/alfredai/landing-leads/internal/ratelimit"
	"github.com/alfredai/landing-leads/internal/validation"
)

var (
	// ErrInvalidName is returned when the name is missing
	ErrInvalidName = errors.New("name is required")

	// ErrMissingEmail is returned when the email is missing
	ErrMissingEmail = errors.New("email is required")

	// ErrMissingMessage is returned when the message is missing
	ErrMissingMessage = errors.New("message is required")

	// ErrLeadNotFound is returned when a lead is not found
	ErrLeadNotFound = errors.New("lead not found")

	// ErrMalformedRequest is returned when the body is not a JSON object
	ErrMalformedRequest = errors.New("leads: malformed request")

	// ErrPersistence wraps storage failures surfaced to callers
	ErrPersistence = errors.New("leads: persistence failure")
)

// RateLimitError is returned when the client has spent its submission budget.
type RateLimitError struct {
	Result ratelimit.Result
}

func (e *RateLimitError) Error() string {
	return "leads: rate limit exceeded"
}

// ValidationError carries per-field failures.
type ValidationError struct {
	Fields validation.Errors
}

func (e *ValidationError) Error() string {
	return "leads: validation failed: " + e.Fields.Error()
}

// Security reports whether a malicious-input detector rejected any field.
func (e *ValidationError) Security() bool {
	return e.Fields.HasSecurityViolation()
}
