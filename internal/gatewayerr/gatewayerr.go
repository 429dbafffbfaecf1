// Package gatewayerr is the single boundary where internal error kinds
// become HTTP status codes. Components return typed errors; internal/httpapi
// maps them here rather than each handler guessing a status code.
package gatewayerr

import (
	"errors"
	"net/http"
)

// Kind is a typed error category propagated up from the request pipeline.
type Kind string

const (
	Validation           Kind = "validation"
	Auth                 Kind = "auth"
	ModelNotFound        Kind = "model_not_found"
	PayloadTooLarge      Kind = "payload_too_large"
	RateLimit            Kind = "rate_limit"
	ProviderUnavailable  Kind = "provider_unavailable"
	NoProvidersAvailable Kind = "no_providers_available"
	Timeout              Kind = "timeout"
	ProviderError        Kind = "provider_error"
	ToolCallParseError   Kind = "tool_call_parse_error"
	Internal             Kind = "internal"
)

// statusByKind mirrors the Kind -> HTTP table; anything absent falls back to
// 500 via Internal.
var statusByKind = map[Kind]int{
	Validation:           http.StatusBadRequest,
	Auth:                 http.StatusUnauthorized,
	ModelNotFound:        http.StatusNotFound,
	PayloadTooLarge:      http.StatusRequestEntityTooLarge,
	RateLimit:            http.StatusTooManyRequests,
	ProviderUnavailable:  http.StatusBadGateway,
	NoProvidersAvailable: http.StatusServiceUnavailable,
	Timeout:              http.StatusGatewayTimeout,
	ProviderError:        http.StatusBadGateway,
	ToolCallParseError:   http.StatusBadGateway,
	Internal:             http.StatusInternalServerError,
}

// Error is a typed gateway error carrying the kind that decides its HTTP
// status, a client-safe message, and the provider key involved, if any.
// Upstream error bodies are never embedded in Message; they belong in logs.
type Error struct {
	Kind     Kind
	Message  string
	Provider string
	cause    error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.cause }

// New builds a gatewayerr.Error, optionally wrapping cause for logging.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithProvider attaches the provider key that produced the error.
func (e *Error) WithProvider(providerKey string) *Error {
	e.Provider = providerKey
	return e
}

// HTTPStatus returns the status code for err, defaulting to 500 when err
// isn't a *Error.
func HTTPStatus(err error) int {
	var ge *Error
	if errors.As(err, &ge) {
		if status, ok := statusByKind[ge.Kind]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}
