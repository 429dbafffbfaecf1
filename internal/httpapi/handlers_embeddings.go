package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/synaxis-gateway/synaxis/internal/gatewaycfg"
	"github.com/synaxis-gateway/synaxis/internal/gatewayerr"
	"github.com/synaxis-gateway/synaxis/internal/identity"
	"github.com/synaxis-gateway/synaxis/internal/orchestrator"
	"github.com/synaxis-gateway/synaxis/internal/providers"
	"github.com/synaxis-gateway/synaxis/internal/resolver"
	"github.com/synaxis-gateway/synaxis/internal/translate"
)

// embeddingsRequest is the OpenAI-compatible wire body for /v1/embeddings.
type embeddingsRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

// embeddingsUsage reads back the subset of an OpenAI-compatible embeddings
// response this gateway needs for quota accounting; embeddings responses
// carry only prompt_tokens, never completion_tokens.
type embeddingsUsage struct {
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
	} `json:"usage"`
}

// EmbeddingsHandler serves POST /v1/embeddings. Embeddings aren't modeled in
// CanonicalRequest (the wire shape is identical across openai-compatible
// providers and carries no conversation/tool semantics), so this proxies the
// raw request body to the resolved provider's endpoint instead of going
// through the translate pipeline. Candidate selection and usage bookkeeping
// still run through the same health/quota-filtered, tier-ranked list the
// chat pipeline uses.
func EmbeddingsHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		var body json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeGatewayError(w, gatewayerr.New(gatewayerr.PayloadTooLarge, "request body exceeds the maximum allowed size", err))
				return
			}
			writeGatewayError(w, gatewayerr.New(gatewayerr.Validation, "invalid request body", err))
			return
		}
		var req embeddingsRequest
		if err := json.Unmarshal(body, &req); err != nil || req.Model == "" {
			writeGatewayError(w, gatewayerr.New(gatewayerr.Validation, "model is required", nil))
			return
		}

		id := identity.FromContext(r.Context())
		snap := d.GatewayConfig.Current()
		resolved, err := resolver.Resolve(snap, req.Model, gatewaycfg.EndpointEmbeddings, []gatewaycfg.Capability{gatewaycfg.CapEmbeddings})
		if err != nil {
			writeResolveError(w, err)
			return
		}

		ranked := d.Orchestrator.RankedCandidates(orchestrator.Request{
			Resolved: resolved,
			TenantID: id.TenantID,
			UserID:   id.UserID,
		})

		client := &http.Client{Timeout: 30 * time.Second}
		var failures []orchestrator.AttemptFailure
		for _, rc := range ranked {
			cand := rc.Candidate.Candidate
			provider := cand.Provider
			target, headers := embeddingsTarget(provider, cand.ResolvedModelPath)
			payload := map[string]any{"model": cand.ResolvedModelPath, "input": req.Input}

			ctx := providers.WithProviderKey(r.Context(), provider.Key)
			respBody, sendErr := providers.DoRequest(ctx, client, target, payload, headers)
			if sendErr != nil {
				class := providers.ErrTransient
				if sender, ok := d.lookupSender(provider.Key); ok {
					class = sender.ClassifyError(sendErr).Class
				}
				d.Orchestrator.Health.MarkFailure(provider.Key, 0)
				d.Orchestrator.Quota.RecordAttempt(provider.Key)
				failures = append(failures, orchestrator.AttemptFailure{
					ProviderKey: provider.Key,
					ModelPath:   cand.ResolvedModelPath,
					Class:       class,
					Err:         sendErr,
				})
				continue
			}

			d.Orchestrator.Health.MarkSuccess(provider.Key)
			var parsed embeddingsUsage
			_ = json.Unmarshal(respBody, &parsed)
			d.Orchestrator.Quota.RecordUsage(provider.Key, parsed.Usage.PromptTokens, 0)

			recordSuccess(d, gatewaycfg.EndpointEmbeddings, req.Model, orchestrator.Outcome{
				ProviderKey: provider.Key,
				ModelPath:   cand.ResolvedModelPath,
				Response:    translate.CanonicalResponse{Usage: &translate.Usage{InputTokens: parsed.Usage.PromptTokens}},
				Tier:        rc.Tier,
			}, time.Since(start), id)

			w.Header().Set(providerHeader, provider.Key)
			w.Header().Set(resolvedModelHeader, cand.ResolvedModelPath)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(respBody)
			return
		}

		err = &orchestrator.ExhaustedError{Attempts: failures}
		recordFailure(d, gatewaycfg.EndpointEmbeddings, req.Model, time.Since(start), err)
		writeOrchestratorError(w, err)
	}
}

// embeddingsTarget builds the upstream URL and auth headers for a provider's
// embeddings endpoint. Azure deployments are addressed by deployment name in
// the URL path rather than by model name in the body.
func embeddingsTarget(p gatewaycfg.ProviderConfig, modelPath string) (string, map[string]string) {
	headers := map[string]string{}
	for k, v := range p.CustomHeaders {
		headers[k] = v
	}

	base := strings.TrimRight(p.Endpoint, "/")
	switch p.Type {
	case gatewaycfg.ProviderAzureOpenAI:
		deployment := modelPath
		if dep, ok := p.AzureDeploymentMap[modelPath]; ok {
			deployment = dep
		}
		apiVersion := p.AzureAPIVersion
		if apiVersion == "" {
			apiVersion = "2024-02-01"
		}
		headers["api-key"] = p.Secret
		return base + "/openai/deployments/" + deployment + "/embeddings?api-version=" + apiVersion, headers
	default:
		headers["Authorization"] = "Bearer " + p.Secret
		return base + "/v1/embeddings", headers
	}
}
