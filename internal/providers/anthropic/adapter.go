// Package anthropic implements a provider adapter for the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/synaxis-gateway/synaxis/internal/providers"
	"github.com/synaxis-gateway/synaxis/internal/translate"
)

const apiVersion = "2023-06-01"

// Adapter implements providers.Sender and providers.StreamSender for
// Anthropic.
type Adapter struct {
	id         string
	apiKey     string
	baseURL    string
	client     *http.Client
	translator translate.AnthropicTranslator
}

// New creates a new Anthropic adapter. Its HTTP client timeout is 30s
// unless WithTimeout overrides it.
func New(id, apiKey, baseURL string, opts ...Option) *Adapter {
	a := &Adapter{
		id:      id,
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.client.Timeout = d }
}

func (a *Adapter) ID() string { return a.id }

// HealthEndpoint returns a URL for health probing. A GET to the messages
// endpoint returns 405 (Method Not Allowed), which proves reachability.
func (a *Adapter) HealthEndpoint() string {
	return a.baseURL + "/v1/messages"
}

func (a *Adapter) headers() map[string]string {
	return map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": apiVersion,
	}
}

func (a *Adapter) Send(ctx context.Context, modelPath string, req translate.CanonicalRequest) (translate.CanonicalResponse, error) {
	req.Model = modelPath
	req.Stream = false
	ctx = providers.WithProviderKey(ctx, a.id)

	payload, err := a.translator.TranslateRequest(req)
	if err != nil {
		return translate.CanonicalResponse{}, err
	}

	body, err := providers.DoRequest(ctx, a.client, a.baseURL+"/v1/messages", json.RawMessage(payload), a.headers())
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

		body, err := providers.DoStreamRequest(ctx, a.client, a.baseURL+"/v1/messages", json.RawMessage(payload), a.headers())
		if err != nil {
			errs <- err
			return
		}
		defer body.Close()

		state := translate.NewChunkState()
		streamErr := providers.ParseSSE(body, func(ev providers.SSEEvent) bool {
			chunk, err := a.translator.TranslateChunk(ev.Name, []byte(ev.Data), state)
			if err != nil {
				errs <- err
				return false
			}
			select {
			case chunks <- chunk:
				return !chunk.Done
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
		case se.StatusCode == http.StatusTooManyRequests || se.StatusCode == 529:
			ce := &providers.ClassifiedError{Err: err, Class: providers.ErrRateLimited}
			if se.RetryAfterSecs > 0 {
				ce.RetryAfter = se.RetryAfterSecs
			}
			return ce
		case se.StatusCode >= 500:
			return &providers.ClassifiedError{Err: err, Class: providers.ErrTransient}
		case strings.Contains(se.Body, "prompt is too long") || strings.Contains(se.Body, "prompt_too_long"):
			return &providers.ClassifiedError{Err: err, Class: providers.ErrContextOverflow}
		}
	}
	return &providers.ClassifiedError{Err: err, Class: providers.ErrFatal}
}
