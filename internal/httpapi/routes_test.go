package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/synaxis-gateway/synaxis/internal/orchestrator"
)

func newTestRouter(t *testing.T, cfgJSON string) *chi.Mux {
	t.Helper()
	r := chi.NewRouter()
	d := Dependencies{
		GatewayConfig: newTestStore(t, cfgJSON),
		Orchestrator:  &orchestrator.Orchestrator{},
	}
	MountRoutes(r, d)
	return r
}

func TestMountRoutesLiveness(t *testing.T) {
	r := newTestRouter(t, oneEnabledProviderConfig)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/liveness", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestMountRoutesReadiness(t *testing.T) {
	r := newTestRouter(t, noEnabledProviderConfig)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}

func TestMountRoutesListModels(t *testing.T) {
	r := newTestRouter(t, oneEnabledProviderConfig)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/models", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data) != 1 || body.Data[0].ID != "gpt-test" {
		t.Errorf("data = %+v, want one gpt-test entry", body.Data)
	}
}

func TestMountRoutesGetUnknownModel(t *testing.T) {
	r := newTestRouter(t, oneEnabledProviderConfig)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/models/does-not-exist", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestMountRoutesNoMetricsHandlerWhenNil(t *testing.T) {
	r := newTestRouter(t, oneEnabledProviderConfig)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 when Dependencies.Metrics is nil", rr.Code)
	}
}
