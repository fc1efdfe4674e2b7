// Package common contains shared constants and sentinel errors used across
// chatterbox components.
package common

// AuthorizationHeaderName is the HTTP header carrying the bearer token.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token inside the Authorization header.
const BearerPrefix = "Bearer "

// OTP purposes. Stored uppercased, matching what clients send.
const (
	OTPPurposeIdentity      = "IV"
	OTPPurposePasswordReset = "FP"
)
