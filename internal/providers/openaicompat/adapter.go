// Package openaicompat implements a provider adapter for the OpenAI
// chat/completions wire format shared by OpenAI itself, vLLM, and any other
// OpenAI-compatible endpoint (huggingface text-generation-inference, custom
// self-hosted gateways).
package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/synaxis-gateway/synaxis/internal/providers"
	"github.com/synaxis-gateway/synaxis/internal/translate"
)

// Adapter implements providers.Sender and providers.StreamSender for any
// OpenAI-compatible endpoint. Supports round-robin across multiple base
// URLs, mirroring self-hosted deployments that front several replicas
// behind one provider entry.
type Adapter struct {
	id         string
	apiKey     string
	endpoints  []string
	counter    atomic.Uint64
	client     *http.Client
	translator translate.OpenAICompatTranslator
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.client.Timeout = d }
}

// WithEndpoints adds additional base URLs for round-robin balancing.
func WithEndpoints(endpoints ...string) Option {
	return func(a *Adapter) { a.endpoints = append(a.endpoints, endpoints...) }
}

// New creates an adapter. apiKey may be empty for endpoints that require no
// bearer token (local vLLM/TGI instances).
func New(id, apiKey, baseURL string, opts ...Option) *Adapter {
	a := &Adapter{
		id:        id,
		apiKey:    apiKey,
		endpoints: []string{baseURL},
		client:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Adapter) ID() string { return a.id }

// HealthEndpoint returns the chat/completions URL of the first configured
// endpoint for liveness probing.
func (a *Adapter) HealthEndpoint() string {
	return a.endpoints[0] + "/v1/chat/completions"
}

func (a *Adapter) nextEndpoint() string {
	idx := a.counter.Add(1) - 1
	return a.endpoints[idx%uint64(len(a.endpoints))]
}

func (a *Adapter) headers() map[string]string {
	if a.apiKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + a.apiKey}
}

func (a *Adapter) Send(ctx context.Context, modelPath string, req translate.CanonicalRequest) (translate.CanonicalResponse, error) {
	req.Model = modelPath
	req.Stream = false
	ctx = providers.WithProviderKey(ctx, a.id)

	payload, err := a.translator.TranslateRequest(req)
	if err != nil {
		return translate.CanonicalResponse{}, err
	}

	body, err := providers.DoRequest(ctx, a.client, a.nextEndpoint()+"/v1/chat/completions", json.RawMessage(payload), a.headers())
	if err != nil {
		return translate.CanonicalResponse{}, err
	}
	return a.translator.TranslateResponse(body)
}

func (a *Adapter) SendStream(ctx context.Context, modelPath string, req translate.CanonicalRequest) (<-chan translate.CanonicalChunk, <-chan error) {
	req.Model = modelPath
	req.Stream = true
	ctx = providers.WithProviderKey(ctx, a.id)

	chunks := make(chan translate.CanonicalChunk)
	errs := make(chan error, 1)

	payload, err := a.translator.TranslateRequest(req)
	if err != nil {
		errs <- err
		close(chunks)
		close(errs)
		return chunks, errs
	}

	go func() {
		defer close(chunks)
		defer close(errs)

		body, err := providers.DoStreamRequest(ctx, a.client, a.nextEndpoint()+"/v1/chat/completions", json.RawMessage(payload), a.headers())
		if err != nil {
			errs <- err
			return
		}
		defer body.Close()

		state := translate.NewChunkState()
		streamErr := providers.ParseSSE(body, func(ev providers.SSEEvent) bool {
			chunk, err := a.translator.TranslateChunk("", []byte(ev.Data), state)
			if err != nil {
				errs <- err
				return false
			}
			select {
			case chunks <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		})
		if streamErr != nil {
			errs <- streamErr
		}
	}()

	return chunks, errs
}

func (a *Adapter) ClassifyError(err error) *providers.ClassifiedError {
	var se *providers.StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusTooManyRequests:
			ce := &providers.ClassifiedError{Err: err, Class: providers.ErrRateLimited}
			if se.RetryAfterSecs > 0 {
				ce.RetryAfter = se.RetryAfterSecs
			}
			return ce
		case se.StatusCode >= 500:
			return &providers.ClassifiedError{Err: err, Class: providers.ErrTransient}
		case strings.Contains(se.Body, "context_length_exceeded"):
			return &providers.ClassifiedError{Err: err, Class: providers.ErrContextOverflow}
		}
	}
	return &providers.ClassifiedError{Err: err, Class: providers.ErrFatal}
}
