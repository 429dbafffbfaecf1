// Package azureopenai implements a provider adapter for Azure OpenAI. The
// chat/completions wire payload is identical to OpenAI's; only the request
// URL (deployment-scoped, api-version-qualified) and authentication differ.
package azureopenai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/synaxis-gateway/synaxis/internal/providers"
	"github.com/synaxis-gateway/synaxis/internal/translate"
)

const defaultAPIVersion = "2024-02-15-preview"

// Adapter implements providers.Sender and providers.StreamSender for Azure
// OpenAI. modelPath, as passed to Send/SendStream, is the Azure deployment
// id to target, not the underlying model name.
type Adapter struct {
	id         string
	endpoint   string
	apiVersion string
	apiKey     string // set for api-key auth; empty when tokens is set
	tokens     *tokenProvider
	client     *http.Client
	translator translate.OpenAICompatTranslator
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithAPIVersion overrides the default Azure OpenAI API version.
func WithAPIVersion(v string) Option {
	return func(a *Adapter) { a.apiVersion = v }
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.client.Timeout = d }
}

// WithClientCredentials switches auth from a static api-key to an OAuth2
// client-credentials token, cached and refreshed 5 minutes before expiry.
func WithClientCredentials(tenantID, clientID, clientSecret string) Option {
	return func(a *Adapter) {
		a.apiKey = ""
		a.tokens = newTokenProvider(tenantID, clientID, clientSecret, 5*time.Minute)
	}
}

// New creates an adapter authenticated with a static Azure api-key.
func New(id, apiKey, endpoint string, opts ...Option) *Adapter {
	a := &Adapter{
		id:         id,
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiVersion: defaultAPIVersion,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Adapter) ID() string { return a.id }

func (a *Adapter) url(deploymentID, operation string) string {
	return fmt.Sprintf("%s/openai/deployments/%s/%s?api-version=%s",
		a.endpoint, url.PathEscape(deploymentID), operation, a.apiVersion)
}

// HealthEndpoint lists deployed models, a lightweight authenticated call
// that proves both connectivity and credential validity.
func (a *Adapter) HealthEndpoint() string {
	return fmt.Sprintf("%s/openai/models?api-version=%s", a.endpoint, a.apiVersion)
}

func (a *Adapter) headers(ctx context.Context) (map[string]string, error) {
	if a.tokens != nil {
		token, err := a.tokens.GetToken(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]string{"Authorization": "Bearer " + token}, nil
	}
	return map[string]string{"api-key": a.apiKey}, nil
}

func (a *Adapter) Send(ctx context.Context, deploymentID string, req translate.CanonicalRequest) (translate.CanonicalResponse, error) {
	req.Stream = false
	req.Model = "" // Azure derives the model from the deployment path, not the body
	ctx = providers.WithProviderKey(ctx, a.id)

	payload, err := a.translator.TranslateRequest(req)
	if err != nil {
		return translate.CanonicalResponse{}, err
	}
	headers, err := a.headers(ctx)
	if err != nil {
		return translate.CanonicalResponse{}, err
	}

	body, err := providers.DoRequest(ctx, a.client, a.url(deploymentID, "chat/completions"), json.RawMessage(payload), headers)
	if err != nil {
		return translate.CanonicalResponse{}, err
	}
	return a.translator.TranslateResponse(body)
}

func (a *Adapter) SendStream(ctx context.Context, deploymentID string, req translate.CanonicalRequest) (<-chan translate.CanonicalChunk, <-chan error) {
	req.Stream = true
	req.Model = ""
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
	headers, err := a.headers(ctx)
	if err != nil {
		errs <- err
		close(chunks)
		close(errs)
		return chunks, errs
	}

	go func() {
		defer close(chunks)
		defer close(errs)

		body, err := providers.DoStreamRequest(ctx, a.client, a.url(deploymentID, "chat/completions"), json.RawMessage(payload), headers)
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

// tokenProvider caches an Azure AD client-credentials token, refreshing it
// refreshBefore its expiry.
type tokenProvider struct {
	tenantID, clientID, clientSecret string
	refreshBefore                   time.Duration
	client                          *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func newTokenProvider(tenantID, clientID, clientSecret string, refreshBefore time.Duration) *tokenProvider {
	return &tokenProvider{
		tenantID:      tenantID,
		clientID:      clientID,
		clientSecret:  clientSecret,
		refreshBefore: refreshBefore,
		client:        &http.Client{Timeout: 10 * time.Second},
	}
}

func (tp *tokenProvider) GetToken(ctx context.Context) (string, error) {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if tp.token != "" && time.Now().Before(tp.expiresAt.Add(-tp.refreshBefore)) {
		return tp.token, nil
	}

	token, expiresAt, err := tp.refresh(ctx)
	if err != nil {
		return "", fmt.Errorf("azure token refresh: %w", err)
	}
	tp.token = token
	tp.expiresAt = expiresAt
	return token, nil
}

func (tp *tokenProvider) refresh(ctx context.Context) (string, time.Time, error) {
	tokenURL := fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tp.tenantID)
	form := url.Values{
		"client_id":     {tp.clientID},
		"client_secret": {tp.clientSecret},
		"scope":         {"https://cognitiveservices.azure.com/.default"},
		"grant_type":    {"client_credentials"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := tp.client.Do(req)
	if err != nil {
		return "", time.Time{}, err
	}
	defer resp.Body.Close()

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", time.Time{}, err
	}
	if resp.StatusCode != http.StatusOK || parsed.AccessToken == "" {
		return "", time.Time{}, fmt.Errorf("azure AD token endpoint returned status %d", resp.StatusCode)
	}
	return parsed.AccessToken, time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second), nil
}
