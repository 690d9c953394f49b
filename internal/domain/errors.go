package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound   = errors.New("not found")
	ErrBadRequest = errors.New("bad request")

	// OTP verification outcomes.
	ErrInvalidOTP         = errors.New("invalid OTP")
	ErrExpired            = errors.New("OTP expired")
	ErrTooManyAttempts    = errors.New("too many verification attempts")
	ErrLimiterUnavailable = errors.New("attempt limiter unavailable")

	// Login gate outcomes.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotVerified        = errors.New("email not verified")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrIdentityExists     = errors.New("identity already exists")

	// Collaborator failures.
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	ErrDeliveryFailed      = errors.New("email delivery failed")
)
