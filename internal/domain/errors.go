package domain

import "errors"

var (
	// ErrFrameTooLarge reports a wire frame exceeding the configured limit.
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrServiceUnavailable reports a failed round trip to the decision
	// service. Callers treat it as fail-open.
	ErrServiceUnavailable = errors.New("decision service unavailable")

	// ErrRegistrationFailed reports a failed tool-inventory registration in
	// discovery mode.
	ErrRegistrationFailed = errors.New("tool registration failed")
)
