package models

import "time"

// OTP is one issued passcode. Only the bcrypt hash of the code is kept.
type OTP struct {
	ID        string
	Email     string
	Purpose   string
	CodeHash  []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the passcode is past its expiry at now.
func (o *OTP) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// PasswordReset is a single-use grant issued after a password-reset OTP
// verifies. TokenHash is the sha256 of the token handed to the client.
type PasswordReset struct {
	TokenHash string
	Email     string
	CreatedAt time.Time
	ExpiresAt time.Time
}
