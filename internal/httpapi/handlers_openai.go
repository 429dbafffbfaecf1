package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/synaxis-gateway/synaxis/internal/gatewaycfg"
	"github.com/synaxis-gateway/synaxis/internal/gatewayerr"
	"github.com/synaxis-gateway/synaxis/internal/identity"
	"github.com/synaxis-gateway/synaxis/internal/orchestrator"
	"github.com/synaxis-gateway/synaxis/internal/providers"
	"github.com/synaxis-gateway/synaxis/internal/resolver"
	"github.com/synaxis-gateway/synaxis/internal/translate"
)

// providerHeader and resolvedModelHeader are set on every unary response and
// on the first SSE chunk of a streaming response, naming the provider and
// model path the request actually landed on.
const (
	providerHeader      = "x-synaxis-provider"
	resolvedModelHeader = "x-synaxis-resolved-model"
)

// ChatCompletionsHandler serves /v1/chat/completions: resolve the requested
// model to candidate providers, run the tiered fallback orchestrator (or, for
// streaming requests, a single-pass candidate walk), and shape the result
// back into the OpenAI-compatible envelope.
func ChatCompletionsHandler(d Dependencies) http.HandlerFunc {
	return chatLikeHandler(d, gatewaycfg.EndpointChat)
}

// CompletionsHandler serves the legacy /v1/completions surface: a bare
// prompt string is folded into a single user message and run through the
// same pipeline as chat completions.
func CompletionsHandler(d Dependencies) http.HandlerFunc {
	return chatLikeHandler(d, gatewaycfg.EndpointCompletions)
}

// ResponsesHandler serves /v1/responses. Synaxis treats it as isomorphic to
// chat completions: same message shape, same pipeline, same envelope.
func ResponsesHandler(d Dependencies) http.HandlerFunc {
	return chatLikeHandler(d, gatewaycfg.EndpointChat)
}

func chatLikeHandler(d Dependencies, endpointKind gatewaycfg.EndpointKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		var wireReq chatCompletionsRequest
		if err := json.NewDecoder(r.Body).Decode(&wireReq); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeGatewayError(w, gatewayerr.New(gatewayerr.PayloadTooLarge, "request body exceeds the maximum allowed size", err))
				return
			}
			writeGatewayError(w, gatewayerr.New(gatewayerr.Validation, "invalid request body", err))
			return
		}
		if wireReq.Model == "" {
			writeGatewayError(w, gatewayerr.New(gatewayerr.Validation, "model is required", nil))
			return
		}
		if wireReq.Temperature != nil && (*wireReq.Temperature < 0 || *wireReq.Temperature > 2) {
			writeGatewayError(w, gatewayerr.New(gatewayerr.Validation, "temperature must be between 0 and 2", nil))
			return
		}
		if wireReq.MaxTokens != nil && *wireReq.MaxTokens < 1 {
			writeGatewayError(w, gatewayerr.New(gatewayerr.Validation, "max_tokens must be at least 1", nil))
			return
		}

		id := identity.FromContext(r.Context())
		canonical := wireReq.toCanonical()
		canonical.EndpointKind = endpointKind

		var requiredCaps []gatewaycfg.Capability
		if len(canonical.Tools) > 0 {
			requiredCaps = append(requiredCaps, gatewaycfg.CapTools)
		}
		if canonical.Stream {
			requiredCaps = append(requiredCaps, gatewaycfg.CapStreaming)
		}

		snap := d.GatewayConfig.Current()
		resolved, err := resolver.Resolve(snap, wireReq.Model, endpointKind, requiredCaps)
		if err != nil {
			writeResolveError(w, err)
			return
		}

		if canonical.Stream {
			streamChatCompletion(w, r, d, endpointKind, resolved, canonical, wireReq.Model, id, start)
			return
		}

		outcome, err := d.Orchestrator.Execute(r.Context(), orchestrator.Request{
			Resolved:  resolved,
			Canonical: canonical,
			TenantID:  id.TenantID,
			UserID:    id.UserID,
		})
		if err != nil {
			recordFailure(d, endpointKind, wireReq.Model, time.Since(start), err)
			writeOrchestratorError(w, err)
			return
		}

		resp := chatCompletionResponse{
			ID:      fmt.Sprintf("chatcmpl-%d", start.UnixNano()),
			Object:  "chat.completion",
			Created: start.Unix(),
			Model:   wireReq.Model,
			Choices: []chatCompletionChoice{{
				Index: 0,
				Message: &wireRespMessage{
					Role:      "assistant",
					Content:   outcome.Response.Content,
					ToolCalls: toolCallsToWire(outcome.Response.ToolCalls),
				},
				FinishReason: finishReasonPtr(outcome.Response.FinishReason),
			}},
			Usage: usageToWire(outcome.Response.Usage),
		}

		recordSuccess(d, endpointKind, wireReq.Model, outcome, time.Since(start), id)

		w.Header().Set(providerHeader, outcome.ProviderKey)
		w.Header().Set(resolvedModelHeader, outcome.ModelPath)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func finishReasonPtr(s string) *string {
	if s == "" {
		s = "stop"
	}
	return &s
}

// streamChatCompletion walks the same health/quota-filtered, tier-ranked
// candidate list Execute would, attempting each one until a StreamSender
// accepts the request. Unlike the unary path it does not retry mid-stream:
// once bytes have reached the client the gateway cannot silently restart on
// a different provider, so a failure after the first chunk ends the
// response rather than falling through to the next candidate.
func streamChatCompletion(w http.ResponseWriter, r *http.Request, d Dependencies, endpointKind gatewaycfg.EndpointKind, resolved *resolver.Resolved, canonical translate.CanonicalRequest, requestedModel string, id identity.Context, start time.Time) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeGatewayError(w, gatewayerr.New(gatewayerr.Internal, "streaming unsupported by response writer", nil))
		return
	}

	ranked := d.Orchestrator.RankedCandidates(orchestrator.Request{
		Resolved:  resolved,
		Canonical: canonical,
		TenantID:  id.TenantID,
		UserID:    id.UserID,
	})

	var failures []orchestrator.AttemptFailure
	for _, rc := range ranked {
		cand := rc.Candidate.Candidate
		sender, ok := d.lookupSender(cand.Provider.Key)
		if !ok {
			continue
		}
		streamSender, ok := sender.(providers.StreamSender)
		if !ok {
			continue
		}

		chunks, errCh := streamSender.SendStream(r.Context(), cand.ResolvedModelPath, canonical)

		started := false
		var lastUsage *translate.Usage
		for chunk := range chunks {
			if !started {
				w.Header().Set("Content-Type", "text/event-stream")
				w.Header().Set("Cache-Control", "no-cache")
				w.Header().Set("Connection", "keep-alive")
				w.Header().Set(providerHeader, cand.Provider.Key)
				w.Header().Set(resolvedModelHeader, cand.ResolvedModelPath)
				w.WriteHeader(http.StatusOK)
				started = true
			}
			if chunk.Usage != nil {
				lastUsage = chunk.Usage
			}
			b, _ := json.Marshal(chunkToWire(chunk, requestedModel))
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
		}

		streamErr := <-errCh
		if streamErr == nil {
			d.Orchestrator.Health.MarkSuccess(cand.Provider.Key)
			if lastUsage != nil {
				d.Orchestrator.Quota.RecordUsage(cand.Provider.Key, lastUsage.InputTokens, lastUsage.OutputTokens)
			}
			if started {
				fmt.Fprint(w, "data: [DONE]\n\n")
				flusher.Flush()
			}
			recordSuccess(d, endpointKind, requestedModel, orchestrator.Outcome{
				ProviderKey: cand.Provider.Key,
				ModelPath:   cand.ResolvedModelPath,
				Response:    translate.CanonicalResponse{Usage: lastUsage},
				Tier:        rc.Tier,
			}, time.Since(start), id)
			return
		}

		classified := sender.ClassifyError(streamErr)
		d.Orchestrator.Health.MarkFailure(cand.Provider.Key, orchestrator.BackoffCooldown(classified))
		d.Orchestrator.Quota.RecordAttempt(cand.Provider.Key)
		failures = append(failures, orchestrator.AttemptFailure{
			ProviderKey: cand.Provider.Key,
			ModelPath:   cand.ResolvedModelPath,
			Class:       classified.Class,
			Err:         streamErr,
		})

		if started {
			// Bytes already reached the client on this provider; the
			// stream ends here even though no [DONE] marker was sent.
			recordFailure(d, endpointKind, requestedModel, time.Since(start), streamErr)
			return
		}
	}

	err := error(&orchestrator.ExhaustedError{Attempts: failures})
	recordFailure(d, endpointKind, requestedModel, time.Since(start), err)
	writeOrchestratorError(w, err)
}

func chunkToWire(c translate.CanonicalChunk, model string) chatCompletionResponse {
	var finish *string
	if c.FinishReason != "" {
		f := c.FinishReason
		finish = &f
	}
	return chatCompletionResponse{
		Object: "chat.completion.chunk",
		Model:  model,
		Choices: []chatCompletionChoice{{
			Index: 0,
			Delta: &wireRespMessage{
				Content:   c.ContentDelta,
				ToolCalls: toolCallsToWire(c.ToolCallDelta),
			},
			FinishReason: finish,
		}},
		Usage: usageToWire(c.Usage),
	}
}

// ModelsHandler serves GET /v1/models.
func ModelsHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := d.GatewayConfig.Current()
		type modelEntry struct {
			ID      string `json:"id"`
			Object  string `json:"object"`
			OwnedBy string `json:"owned_by"`
		}
		var out []modelEntry
		for _, id := range snap.CanonicalIDs() {
			out = append(out, modelEntry{ID: id, Object: "model", OwnedBy: "synaxis"})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": out})
	}
}

// ModelHandler serves GET /v1/models/{id}.
func ModelHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		snap := d.GatewayConfig.Current()
		canonicalID, ok := snap.ResolveCanonicalID(id)
		if !ok {
			writeGatewayError(w, gatewayerr.New(gatewayerr.ModelNotFound, "unknown model", nil))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": canonicalID, "object": "model", "owned_by": "synaxis"})
	}
}
