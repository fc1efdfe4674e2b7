// Package httpapi is the JSON HTTP surface of the server: routing, request
// decoding, error mapping and the middleware chain.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/chatterbox/internal/common"
	"github.com/dmitrijs2005/chatterbox/internal/logging"
	"github.com/dmitrijs2005/chatterbox/internal/server/services"
)

const maxBodyBytes = 1 << 20

type HandlerFunc func(http.ResponseWriter, *http.Request) error

// ErrorBody is written for every failed request.
type ErrorBody struct {
	IsSuccess bool   `json:"isSuccess"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
}

// MessageBody is written by endpoints that only report an outcome.
type MessageBody struct {
	IsSuccess bool   `json:"isSuccess"`
	Message   string `json:"message"`
}

func ok(message string) MessageBody {
	return MessageBody{IsSuccess: true, Message: message}
}

// Wrap turns a HandlerFunc into an http.Handler, mapping returned errors to
// status codes and ErrorBody.
func Wrap(log logging.Logger, fn HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			code, kind := classify(err)
			if code >= http.StatusInternalServerError {
				log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
			}
			message := err.Error()
			if code == http.StatusInternalServerError {
				message = "internal error"
			}
			WriteJSON(w, ErrorBody{Kind: kind, Message: message}, code)
		}
	})
}

// classify maps an error to its status code and kind.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, common.ErrorUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid_token"
	case errors.Is(err, common.ErrOTPInvalid):
		return http.StatusBadRequest, "otp_invalid"
	case errors.Is(err, common.ErrOTPExpired):
		return http.StatusBadRequest, "otp_expired"
	case errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusConflict, "conflict"
	case errors.Is(err, common.ErrorExternal):
		return http.StatusBadGateway, "external"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// Decode reads a JSON body into T. Unknown fields, trailing data and
// oversized bodies are validation errors.
func Decode[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var t T

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&t); err != nil {
		if errors.Is(err, io.EOF) {
			return t, fmt.Errorf("empty request body: %w", common.ErrorValidation)
		}
		return t, fmt.Errorf("invalid request body: %v: %w", err, common.ErrorValidation)
	}
	if dec.More() {
		return t, fmt.Errorf("invalid request body: trailing data: %w", common.ErrorValidation)
	}

	return t, nil
}

func WriteJSON(w http.ResponseWriter, v any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type ctxKey string

const identityKey ctxKey = "identity"

// Authenticator validates bearer tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*services.Identity, error)
}

// AuthMiddleware requires a valid "Authorization: Bearer <token>" header and
// attaches the caller's identity to the request context.
func AuthMiddleware(a Authenticator, log logging.Logger, next http.Handler) http.Handler {
	return Wrap(log, func(w http.ResponseWriter, r *http.Request) error {
		h := r.Header.Get(common.AuthorizationHeaderName)
		if !strings.HasPrefix(h, common.BearerPrefix) {
			return common.ErrorUnauthenticated
		}
		token := strings.TrimSpace(strings.TrimPrefix(h, common.BearerPrefix))
		if token == "" {
			return common.ErrorUnauthenticated
		}

		id, err := a.Authenticate(r.Context(), token)
		if err != nil {
			return err
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
		return nil
	})
}

// IdentityFrom returns the caller attached by AuthMiddleware.
func IdentityFrom(ctx context.Context) (*services.Identity, error) {
	id, _ := ctx.Value(identityKey).(*services.Identity)
	if id == nil {
		return nil, common.ErrorUnauthenticated
	}
	return id, nil
}
