package azureopenai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/synaxis-gateway/synaxis/internal/providers"
	"github.com/synaxis-gateway/synaxis/internal/translate"
)

func TestSend_usesDeploymentScopedURLAndAPIKeyHeader(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openai/deployments/gpt4-prod/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("api-version") != defaultAPIVersion {
			t.Errorf("unexpected api-version: %s", r.URL.Query().Get("api-version"))
		}
		if r.Header.Get("api-key") != "az-key" {
			t.Errorf("expected api-key header, got %q", r.Header.Get("api-key"))
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "hi"}, "finish_reason": "stop"}},
		})
	}))
	defer ts.Close()

	a := New("azure-1", "az-key", ts.URL)
	resp, err := a.Send(context.Background(), "gpt4-prod", translate.CanonicalRequest{
		Messages: []translate.Message{{Role: translate.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hi" {
		t.Errorf("unexpected content: %q", resp.Content)
	}
}

func TestSend_modelFieldOmittedFromWirePayload(t *testing.T) {
	var payload map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer ts.Close()

	a := New("azure-1", "az-key", ts.URL)
	_, _ = a.Send(context.Background(), "gpt4-prod", translate.CanonicalRequest{
		Messages: []translate.Message{{Role: translate.RoleUser, Content: "hi"}},
	})
	if _, ok := payload["model"]; ok {
		t.Errorf("expected no model field in Azure wire payload, got %v", payload["model"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	a := New("azure-1", "k", "https://my-resource.openai.azure.com")
	want := "https://my-resource.openai.azure.com/openai/models?api-version=" + defaultAPIVersion
	if got := a.HealthEndpoint(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestClassifyError_rateLimited(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer ts.Close()

	a := New("azure-1", "k", ts.URL)
	_, err := a.Send(context.Background(), "d", translate.CanonicalRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	ce := a.ClassifyError(err)
	if ce.Class != providers.ErrRateLimited || ce.RetryAfter != 3 {
		t.Errorf("unexpected classified error: %+v", ce)
	}
}

func TestTokenProvider_cachesUntilNearExpiry(t *testing.T) {
	tp := newTokenProvider("tenant", "client", "secret", 5*time.Minute)
	// Pre-seed a far-future expiry; GetToken must return it without
	// attempting a network refresh (which would fail against the real
	// AAD endpoint in a test environment).
	tp.token = "cached"
	tp.expiresAt = time.Now().Add(time.Hour)

	token, err := tp.GetToken(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "cached" {
		t.Errorf("expected cached token, got %q", token)
	}
}

func TestTokenProvider_refreshesPastExpiry(t *testing.T) {
	tp := newTokenProvider("tenant", "client", "secret", 5*time.Minute)
	tp.token = "stale"
	tp.expiresAt = time.Now().Add(-time.Minute)

	_, err := tp.GetToken(context.Background())
	if err == nil {
		t.Fatal("expected refresh against the (unreachable in test) AAD endpoint to fail")
	}
}
