package service

import "errors"

// Token workflow failures.  Handlers map them to HTTP statuses.
var (
	ErrTokenNotFound   = errors.New("token not found")
	ErrAlreadyVerified = errors.New("email already verified")
	ErrTokenExpired    = errors.New("token expired")
	// ErrServerConfig wraps identity.ErrUnavailable when an operation needs
	// the identity admin client and it did not initialize at startup.
	ErrServerConfig = errors.New("server configuration error")
)
