// Package resolver maps a client-requested model name to the ordered set
// of upstream providers able to serve it.
package resolver

import (
	"fmt"

	"github.com/synaxis-gateway/synaxis/internal/gatewaycfg"
)

// Candidate is one provider able to serve a resolved canonical model.
type Candidate struct {
	Provider       gatewaycfg.ProviderConfig
	Model          gatewaycfg.CanonicalModel
	ResolvedModelPath string
}

// Resolved is the output of resolving a requested model name.
type Resolved struct {
	CanonicalID string
	Candidates  []Candidate
}

// NoProvidersForModelError is returned when a requested model resolves to a
// known canonical id but no enabled provider can currently serve it under
// the requested endpoint kind and capability set.
type NoProvidersForModelError struct {
	Requested    string
	EndpointKind gatewaycfg.EndpointKind
}

func (e *NoProvidersForModelError) Error() string {
	return fmt.Sprintf("resolver: no providers for model %q under endpoint %q", e.Requested, e.EndpointKind)
}

// UnknownModelError is returned when requestedModel matches no canonical id,
// alias, or "default".
type UnknownModelError struct {
	Requested string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("resolver: unknown model %q", e.Requested)
}

// Resolve normalizes requestedModel, resolves it to a canonical id (exact id
// > alias > "default", in that precedence), then enumerates every enabled
// provider able to serve that id under endpointKind with every capability in
// requiredCapabilities. Candidates are returned in declaration order;
// tie-breaking among them is left to the routing score calculator.
func Resolve(snap *gatewaycfg.Snapshot, requestedModel string, endpointKind gatewaycfg.EndpointKind, requiredCapabilities []gatewaycfg.Capability) (*Resolved, error) {
	canonicalID, ok := snap.ResolveCanonicalID(requestedModel)
	if !ok {
		return nil, &UnknownModelError{Requested: requestedModel}
	}

	var candidates []Candidate
	for _, model := range snap.ModelsForID(canonicalID) {
		provider, ok := snap.Providers[model.Provider]
		if !ok || !provider.Enabled {
			continue
		}
		if !provider.Type.SupportsEndpoint(endpointKind) {
			continue
		}
		if !model.HasCapabilities(requiredCapabilities) {
			continue
		}
		candidates = append(candidates, Candidate{
			Provider:          provider,
			Model:             model,
			ResolvedModelPath: model.ModelPath,
		})
	}

	if len(candidates) == 0 {
		return nil, &NoProvidersForModelError{Requested: requestedModel, EndpointKind: endpointKind}
	}

	return &Resolved{CanonicalID: canonicalID, Candidates: candidates}, nil
}
