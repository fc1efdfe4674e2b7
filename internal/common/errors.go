// Package common defines shared constants and sentinel errors used across
// the server, the HTTP layer and the CLI client. Callers should use errors.Is
// to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal   = errors.New("internal error")
	ErrorValidation = errors.New("validation error")
	ErrorExternal   = errors.New("external dependency failure")

	// Auth errors.
	ErrorUnauthenticated  = errors.New("user not logged in")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// OTP lifecycle errors.
	ErrOTPInvalid = errors.New("invalid otp")
	ErrOTPExpired = errors.New("otp expired")

	ErrResetGrantInvalid   = fmt.Errorf("password reset not authorized: %w", ErrInvalidToken)
	ErrUserAlreadyVerified = fmt.Errorf("user already verified: %w", ErrorAlreadyExists)
)
