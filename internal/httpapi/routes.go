package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/synaxis-gateway/synaxis/internal/gatewaycfg"
	"github.com/synaxis-gateway/synaxis/internal/identity"
	"github.com/synaxis-gateway/synaxis/internal/metrics"
	"github.com/synaxis-gateway/synaxis/internal/orchestrator"
	"github.com/synaxis-gateway/synaxis/internal/ratelimit"
	"github.com/synaxis-gateway/synaxis/internal/usage"
)

// Dependencies bundles everything an HTTP handler needs to resolve a model,
// run it through the fallback orchestrator, and record the outcome.
type Dependencies struct {
	GatewayConfig *gatewaycfg.Store
	Orchestrator  *orchestrator.Orchestrator
	Usage         *usage.Recorder
	Metrics       *metrics.Registry

	// RateLimiter throttles the inbound /v1 surface. Nil disables rate
	// limiting (used in tests).
	RateLimiter *ratelimit.Limiter
}

// maxRequestBodySize is the maximum allowed request body for POST endpoints
// (10 MB; covers multi-turn conversations with embedded tool results).
const maxRequestBodySize = 10 << 20

// bodySizeLimit wraps the request body with http.MaxBytesReader so an
// oversized payload fails fast instead of being read to completion.
func bodySizeLimit(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MountRoutes registers the gateway's OpenAI-compatible surface plus health
// and metrics endpoints onto r.
func MountRoutes(r chi.Router, d Dependencies) {
	r.Get("/health/liveness", LivenessHandler(d))
	r.Get("/health/readiness", ReadinessHandler(d))

	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(bodySizeLimit(maxRequestBodySize))
		r.Use(identity.Middleware)
		if d.RateLimiter != nil {
			r.Use(d.RateLimiter.Middleware)
		}

		r.Post("/chat/completions", ChatCompletionsHandler(d))
		r.Post("/completions", CompletionsHandler(d))
		r.Post("/responses", ResponsesHandler(d))
		r.Post("/embeddings", EmbeddingsHandler(d))
		r.Get("/models", ModelsHandler(d))
		r.Get("/models/{id}", ModelHandler(d))
	})
}
