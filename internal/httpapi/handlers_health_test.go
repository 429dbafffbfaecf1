package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/synaxis-gateway/synaxis/internal/gatewaycfg"
)

func newTestStore(t *testing.T, cfgJSON string) *gatewaycfg.Store {
	t.Helper()
	snap, err := gatewaycfg.Parse([]byte(cfgJSON))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return gatewaycfg.NewStoreFromSnapshot(snap)
}

const oneEnabledProviderConfig = `{
	"providers": [
		{"key": "primary", "type": "openai-compatible", "endpoint": "https://api.example.com", "secret": "sk-test", "enabled": true, "tier": 1, "qualityScore": 80}
	],
	"canonicalModels": [
		{"id": "gpt-test", "provider": "primary", "modelPath": "gpt-test-1", "capabilities": {"streaming": true}}
	]
}`

const noEnabledProviderConfig = `{
	"providers": [
		{"key": "primary", "type": "openai-compatible", "endpoint": "https://api.example.com", "secret": "sk-test", "enabled": false, "tier": 1, "qualityScore": 80}
	],
	"canonicalModels": []
}`

func TestLivenessHandlerAlwaysOK(t *testing.T) {
	d := Dependencies{GatewayConfig: newTestStore(t, noEnabledProviderConfig)}
	rr := httptest.NewRecorder()
	LivenessHandler(d)(rr, httptest.NewRequest(http.MethodGet, "/health/liveness", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestReadinessHandlerWithEnabledProvider(t *testing.T) {
	d := Dependencies{GatewayConfig: newTestStore(t, oneEnabledProviderConfig)}
	rr := httptest.NewRecorder()
	ReadinessHandler(d)(rr, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestReadinessHandlerNoEnabledProviders(t *testing.T) {
	d := Dependencies{GatewayConfig: newTestStore(t, noEnabledProviderConfig)}
	rr := httptest.NewRecorder()
	ReadinessHandler(d)(rr, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}
