package providers

import (
	"context"

	"github.com/synaxis-gateway/synaxis/internal/translate"
)

// ErrorClass classifies a provider error for routing/retry decisions.
type ErrorClass string

const (
	ErrContextOverflow ErrorClass = "context_overflow"
	ErrRateLimited     ErrorClass = "rate_limited"
	ErrTransient       ErrorClass = "transient"
	ErrFatal           ErrorClass = "fatal"
)

// ClassifiedError wraps an upstream error with a routing classification and,
// for rate-limited errors, the provider's suggested retry delay in seconds.
type ClassifiedError struct {
	Err        error
	Class      ErrorClass
	RetryAfter int
}

func (e *ClassifiedError) Error() string { return e.Err.Error() }
func (e *ClassifiedError) Unwrap() error { return e.Err }

// Sender sends one unary canonical request to a provider and returns its
// canonical response.
type Sender interface {
	ID() string
	Send(ctx context.Context, modelPath string, req translate.CanonicalRequest) (translate.CanonicalResponse, error)
	ClassifyError(err error) *ClassifiedError
}

// StreamSender additionally streams canonical chunks. SendStream returns a
// channel of chunks and a single error channel; the chunk channel is closed
// when the stream ends (successfully or not). The final error, if any, is
// sent on errCh before it is closed.
type StreamSender interface {
	Sender
	SendStream(ctx context.Context, modelPath string, req translate.CanonicalRequest) (<-chan translate.CanonicalChunk, <-chan error)
}

// HealthChecker exposes a provider's URL for liveness probing.
type HealthChecker interface {
	HealthEndpoint() string
}
