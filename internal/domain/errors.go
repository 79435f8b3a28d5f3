package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrBadRequest = errors.New("bad request")

	// ErrInvalidOTP covers a wrong, expired, exhausted or absent code. Callers
	// never learn which of those applied.
	ErrInvalidOTP   = errors.New("invalid or expired OTP")
	ErrUserConflict = errors.New("user already registered")
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidToken covers bad signatures, expiry and token-type mismatch alike.
	ErrInvalidToken = errors.New("invalid token")
)
