package domain

import (
	"errors"
	"fmt"
)

// Error kinds returned by the negotiation core. Handlers map these to HTTP
// status codes with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("access denied")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")

	// ErrExpired is a Conflict variant: acting on a proposal or price offer
	// past its deadline never silently succeeds.
	ErrExpired = fmt.Errorf("no longer available: %w", ErrConflict)
)
