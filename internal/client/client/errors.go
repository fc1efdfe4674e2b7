package client

import (
	"errors"

	"github.com/dmitrijs2005/chatterbox/internal/common"
)

var ErrUnavailable = errors.New("server unavailable")

var kinds = map[string]error{
	"validation":          common.ErrorValidation,
	"not_found":           common.ErrorNotFound,
	"unauthenticated":     common.ErrorUnauthenticated,
	"invalid_credentials": common.ErrInvalidCredentials,
	"invalid_token":       common.ErrInvalidToken,
	"otp_invalid":         common.ErrOTPInvalid,
	"otp_expired":         common.ErrOTPExpired,
	"conflict":            common.ErrorAlreadyExists,
	"external":            common.ErrorExternal,
}

// APIError is a failed call as reported by the server.
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return e.Kind
	}
	return e.Message
}

// Unwrap maps the error kind to its sentinel; unknown kinds map to
// common.ErrorInternal.
func (e *APIError) Unwrap() error {
	if err, ok := kinds[e.Kind]; ok {
		return err
	}
	return common.ErrorInternal
}
