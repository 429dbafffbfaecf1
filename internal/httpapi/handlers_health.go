package httpapi

import (
	"encoding/json"
	"net/http"
)

// LivenessHandler serves GET /health/liveness: process is up and able to
// answer HTTP requests at all. It never inspects provider state.
func LivenessHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

// ReadinessHandler serves GET /health/readiness: the gateway has a loaded
// configuration snapshot with at least one enabled provider that the health
// store also considers healthy (not in cooldown). A gateway where every
// provider is failing health checks is not ready, even if all are enabled.
func ReadinessHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := d.GatewayConfig.Current()
		healthy := 0
		for _, p := range snap.Providers {
			if !p.Enabled {
				continue
			}
			if d.Orchestrator != nil && d.Orchestrator.Health != nil && !d.Orchestrator.Health.IsHealthy(p.Key) {
				continue
			}
			healthy++
		}
		if healthy == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "unready", "providers": 0})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "providers": healthy})
	}
}
