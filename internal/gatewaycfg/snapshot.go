package gatewaycfg

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Snapshot is an immutable view of the gateway's routing configuration.
// Readers holding a Snapshot see a consistent view for the lifetime of a
// request even if the Store publishes a new one concurrently.
type Snapshot struct {
	Providers     map[string]ProviderConfig   // keyed by ProviderConfig.Key
	models        map[string][]CanonicalModel // keyed by CanonicalModel.ID; one entry per provider offering that id
	modelOrder    []string                    // declaration order of distinct ids, for "default" resolution
	providerOrder []string                    // declaration order, for deterministic candidate ordering
	aliasIndex    map[string]string           // lowercased alias -> canonical id
	Costs         map[costKey]ModelCost
	Policies      []RoutingScorePolicy
}

type costKey struct {
	providerKey string
	canonicalID string
}

// file is the on-disk JSON shape loaded at startup and on every reload.
type file struct {
	Providers       []ProviderConfig     `json:"providers"`
	CanonicalModels []CanonicalModel     `json:"canonicalModels"`
	Costs           []ModelCost          `json:"costs"`
	Policies        []RoutingScorePolicy `json:"policies"`
}

// Load reads and validates a configuration file, returning a ready Snapshot.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gatewaycfg: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a Snapshot from raw JSON bytes, validating referential
// integrity (every CanonicalModel.Provider must name a known ProviderConfig)
// and policy weights (must be non-negative).
func Parse(data []byte) (*Snapshot, error) {
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}

	snap := &Snapshot{
		Providers:  make(map[string]ProviderConfig, len(f.Providers)),
		models:     make(map[string][]CanonicalModel, len(f.CanonicalModels)),
		aliasIndex: make(map[string]string),
		Costs:      make(map[costKey]ModelCost, len(f.Costs)),
	}

	for _, p := range f.Providers {
		if p.Key == "" {
			return nil, &ValidationError{Reason: "provider with empty key"}
		}
		snap.Providers[p.Key] = p
		snap.providerOrder = append(snap.providerOrder, p.Key)
	}

	for _, m := range f.CanonicalModels {
		if m.ID == "" {
			return nil, &ValidationError{Reason: "canonical model with empty id"}
		}
		if _, ok := snap.Providers[m.Provider]; !ok {
			return nil, &ValidationError{Reason: fmt.Sprintf("canonical model %q references unknown provider %q", m.ID, m.Provider)}
		}
		if m.Capabilities == nil {
			m.Capabilities = map[Capability]bool{}
		}
		if _, seen := snap.models[m.ID]; !seen {
			snap.modelOrder = append(snap.modelOrder, m.ID)
		}
		snap.models[m.ID] = append(snap.models[m.ID], m)
		for _, alias := range m.Aliases {
			snap.aliasIndex[normalizeModelKey(alias)] = m.ID
		}
	}

	for _, c := range f.Costs {
		snap.Costs[costKey{providerKey: c.ProviderKey, canonicalID: c.CanonicalID}] = c
	}

	for _, pol := range f.Policies {
		if pol.QualityWeight < 0 || pol.QuotaWeight < 0 || pol.RateLimitWeight < 0 || pol.LatencyWeight < 0 {
			return nil, &ValidationError{Reason: fmt.Sprintf("policy %s/%s has a negative weight", pol.Scope, pol.ScopeID)}
		}
		snap.Policies = append(snap.Policies, pol)
	}

	return snap, nil
}

// ValidationError is returned when a candidate Snapshot fails validation;
// the previous snapshot remains in force when this is returned to Store.Reload.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "gatewaycfg: " + e.Reason }

// ResolveCanonicalID normalizes and resolves a requested model name against
// exact id, alias, and the "default" special-case, in that precedence order.
func (s *Snapshot) ResolveCanonicalID(requested string) (string, bool) {
	key := normalizeModelKey(requested)
	if _, ok := s.models[key]; ok {
		return key, true
	}
	if id, ok := s.aliasIndex[key]; ok {
		return id, true
	}
	if key == "default" && len(s.modelOrder) > 0 {
		return s.modelOrder[0], true
	}
	return "", false
}

// ModelsForID returns every provider-specific CanonicalModel entry declared
// under a canonical id, in declaration order. A canonical id may be offered
// by more than one provider, each with its own modelPath and capability set.
func (s *Snapshot) ModelsForID(canonicalID string) []CanonicalModel {
	return s.models[canonicalID]
}

// CanonicalIDs returns every distinct canonical model id in declaration
// order, for listing endpoints.
func (s *Snapshot) CanonicalIDs() []string {
	return s.modelOrder
}

// Cost returns the ModelCost for (providerKey, canonicalID), or nil if none
// is configured.
func (s *Snapshot) Cost(providerKey, canonicalID string) *ModelCost {
	if c, ok := s.Costs[costKey{providerKey: providerKey, canonicalID: canonicalID}]; ok {
		return &c
	}
	return nil
}

// PolicyFor returns the effective policy for a (tenantID, userID) pair,
// following User > Tenant > Global precedence, normalized to sum to 1.
func (s *Snapshot) PolicyFor(tenantID, userID string) RoutingScorePolicy {
	var tenantMatch, globalMatch *RoutingScorePolicy
	for i := range s.Policies {
		p := s.Policies[i]
		switch {
		case p.Scope == ScopeUser && userID != "" && p.ScopeID == userID:
			return p.Normalized()
		case p.Scope == ScopeTenant && tenantID != "" && p.ScopeID == tenantID:
			tenantMatch = &p
		case p.Scope == ScopeGlobal:
			globalMatch = &p
		}
	}
	if tenantMatch != nil {
		return tenantMatch.Normalized()
	}
	if globalMatch != nil {
		return globalMatch.Normalized()
	}
	return RoutingScorePolicy{}.Normalized()
}

func normalizeModelKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
