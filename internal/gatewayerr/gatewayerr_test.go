package gatewayerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusByKind(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{Validation, http.StatusBadRequest},
		{Auth, http.StatusUnauthorized},
		{ModelNotFound, http.StatusNotFound},
		{PayloadTooLarge, http.StatusRequestEntityTooLarge},
		{RateLimit, http.StatusTooManyRequests},
		{ProviderUnavailable, http.StatusBadGateway},
		{NoProvidersAvailable, http.StatusServiceUnavailable},
		{Timeout, http.StatusGatewayTimeout},
		{ProviderError, http.StatusBadGateway},
		{ToolCallParseError, http.StatusBadGateway},
		{Internal, http.StatusInternalServerError},
	}

	for _, c := range cases {
		err := New(c.kind, "boom", nil)
		if got := HTTPStatus(err); got != c.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", c.kind, got, c.want)
		}
	}
}

func TestHTTPStatusUnknownKindDefaultsInternal(t *testing.T) {
	err := New(Kind("made_up"), "boom", nil)
	if got := HTTPStatus(err); got != http.StatusInternalServerError {
		t.Errorf("HTTPStatus(unknown kind) = %d, want %d", got, http.StatusInternalServerError)
	}
}

func TestHTTPStatusNonGatewayError(t *testing.T) {
	if got := HTTPStatus(errors.New("plain error")); got != http.StatusInternalServerError {
		t.Errorf("HTTPStatus(plain error) = %d, want %d", got, http.StatusInternalServerError)
	}
}

func TestHTTPStatusWrappedError(t *testing.T) {
	base := New(RateLimit, "too many requests", nil)
	wrapped := fmt.Errorf("handler failed: %w", base)
	if got := HTTPStatus(wrapped); got != http.StatusTooManyRequests {
		t.Errorf("HTTPStatus(wrapped) = %d, want %d", got, http.StatusTooManyRequests)
	}
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	cause := errors.New("upstream timed out")
	err := New(Timeout, "request timed out", cause)

	if err.Error() != "request timed out" {
		t.Errorf("Error() = %q, want %q", err.Error(), "request timed out")
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
}

func TestWithProvider(t *testing.T) {
	err := New(ProviderError, "bad gateway", nil).WithProvider("primary")
	if err.Provider != "primary" {
		t.Errorf("Provider = %q, want %q", err.Provider, "primary")
	}
}
