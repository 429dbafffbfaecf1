package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/synaxis-gateway/synaxis/internal/gatewaycfg"
	"github.com/synaxis-gateway/synaxis/internal/gatewayerr"
	"github.com/synaxis-gateway/synaxis/internal/identity"
	"github.com/synaxis-gateway/synaxis/internal/orchestrator"
	"github.com/synaxis-gateway/synaxis/internal/providers"
	"github.com/synaxis-gateway/synaxis/internal/resolver"
	"github.com/synaxis-gateway/synaxis/internal/usage"
)

// lookupSender resolves a provider key to its adapter through the
// orchestrator's registry, for the streaming path which drives adapters
// directly instead of going through Orchestrator.Execute.
func (d Dependencies) lookupSender(providerKey string) (providers.Sender, bool) {
	if d.Orchestrator == nil || d.Orchestrator.Senders == nil {
		return nil, false
	}
	return d.Orchestrator.Senders.Sender(providerKey)
}

func writeGatewayError(w http.ResponseWriter, err *gatewayerr.Error) {
	status := gatewayerr.HTTPStatus(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(openaiErrorBody{Error: openaiErrorDetail{
		Message: err.Message,
		Type:    string(err.Kind),
		Code:    nil,
	}})
}

// writeResolveError maps a resolver error to the gateway's error taxonomy.
func writeResolveError(w http.ResponseWriter, err error) {
	switch err.(type) {
	case *resolver.UnknownModelError:
		writeGatewayError(w, gatewayerr.New(gatewayerr.ModelNotFound, err.Error(), err))
	case *resolver.NoProvidersForModelError:
		writeGatewayError(w, gatewayerr.New(gatewayerr.NoProvidersAvailable, err.Error(), err))
	default:
		writeGatewayError(w, gatewayerr.New(gatewayerr.Internal, err.Error(), err))
	}
}

// writeOrchestratorError maps an orchestrator exhaustion error to the
// gateway's error taxonomy.
func writeOrchestratorError(w http.ResponseWriter, err error) {
	if _, ok := err.(*orchestrator.ExhaustedError); ok {
		writeGatewayError(w, gatewayerr.New(gatewayerr.NoProvidersAvailable, err.Error(), err))
		return
	}
	writeGatewayError(w, gatewayerr.New(gatewayerr.ProviderError, err.Error(), err))
}

// recordSuccess updates Prometheus counters and persists a usage record for
// a completed orchestration outcome.
func recordSuccess(d Dependencies, endpointKind gatewaycfg.EndpointKind, requestedModel string, outcome orchestrator.Outcome, latency time.Duration, id identity.Context) {
	if d.Metrics != nil {
		d.Metrics.RequestsTotal.WithLabelValues(string(endpointKind), requestedModel, outcome.ProviderKey, "200").Inc()
		d.Metrics.RequestLatency.WithLabelValues(string(endpointKind), requestedModel, outcome.ProviderKey).Observe(float64(latency.Milliseconds()))
		d.Metrics.FallbackTierTotal.WithLabelValues(outcome.Tier).Inc()
		if outcome.Response.Usage != nil {
			d.Metrics.TokensTotal.WithLabelValues(requestedModel, outcome.ProviderKey, "input").Add(float64(outcome.Response.Usage.InputTokens))
			d.Metrics.TokensTotal.WithLabelValues(requestedModel, outcome.ProviderKey, "output").Add(float64(outcome.Response.Usage.OutputTokens))
		}
	}

	var costUSD float64
	var inputTokens, outputTokens int
	if outcome.Response.Usage != nil {
		inputTokens = outcome.Response.Usage.InputTokens
		outputTokens = outcome.Response.Usage.OutputTokens
		if d.Orchestrator != nil && d.Orchestrator.Costs != nil {
			snap := d.GatewayConfig.Current()
			canonicalID, _ := snap.ResolveCanonicalID(requestedModel)
			if c := d.Orchestrator.Costs.Cost(outcome.ProviderKey, canonicalID); c != nil {
				costUSD = float64(inputTokens)*c.InputCostPerTok + float64(outputTokens)*c.OutputCostPerTok
			}
		}
		if d.Metrics != nil {
			d.Metrics.CostUSD.WithLabelValues(requestedModel, outcome.ProviderKey).Add(costUSD)
		}
	}

	if d.Usage != nil {
		d.Usage.Record(usage.Record{
			Timestamp:    time.Now().UTC(),
			TenantID:     id.TenantID,
			UserID:       id.UserID,
			ProviderKey:  outcome.ProviderKey,
			ModelID:      requestedModel,
			ModelPath:    outcome.ModelPath,
			Tier:         outcome.Tier,
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
			CostUSD:      costUSD,
			LatencyMs:    latency.Milliseconds(),
			Success:      true,
		})
	}
}

// recordFailure updates Prometheus counters and persists a usage record for
// a failed request that exhausted every fallback tier.
func recordFailure(d Dependencies, endpointKind gatewaycfg.EndpointKind, requestedModel string, latency time.Duration, err error) {
	status := gatewayerr.HTTPStatus(err)
	if d.Metrics != nil {
		d.Metrics.RequestsTotal.WithLabelValues(string(endpointKind), requestedModel, "", strconv.Itoa(status)).Inc()
		d.Metrics.RequestErrorsByStatus.WithLabelValues(string(endpointKind), requestedModel, "", strconv.Itoa(status)).Inc()
	}
	if d.Usage != nil {
		d.Usage.Record(usage.Record{
			Timestamp: time.Now().UTC(),
			ModelID:   requestedModel,
			LatencyMs: latency.Milliseconds(),
			Success:   false,
			ErrorKind: err.Error(),
		})
	}
}
