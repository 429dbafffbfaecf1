// Package cost resolves the price of a (provider, canonical model) pair,
// preferring the hot-reloaded configuration and falling back to an optional
// external pricing source with a bounded-staleness cache.
package cost

import (
	"math"
	"sync"
	"time"

	"github.com/synaxis-gateway/synaxis/internal/gatewaycfg"
)

// minTTL is the floor on how long an externally fetched cost entry may be
// reused before a refetch is attempted.
const minTTL = 60 * time.Second

// FetchFunc looks up a cost from a source outside the hot-reloaded config,
// such as a models-registry API. It returns (nil, nil) when the source has
// no opinion about the pair.
type FetchFunc func(providerKey, canonicalID string) (*gatewaycfg.ModelCost, error)

type cacheEntry struct {
	cost     *gatewaycfg.ModelCost
	cachedAt time.Time
}

type cacheKey struct {
	providerKey string
	canonicalID string
}

// Service answers cost lookups for the routing score calculator and the
// fallback orchestrator's free-before-cheap-before-paid ordering.
type Service struct {
	cfg   *gatewaycfg.Store
	fetch FetchFunc
	ttl   time.Duration

	mu    sync.Mutex
	cache map[cacheKey]cacheEntry
}

// Option configures a Service.
type Option func(*Service)

// WithFetch attaches an external pricing source consulted when the hot
// config has no cost entry for a pair.
func WithFetch(fn FetchFunc) Option {
	return func(s *Service) { s.fetch = fn }
}

// WithTTL overrides the external-fetch cache TTL. Values below minTTL are
// raised to minTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl < minTTL {
			ttl = minTTL
		}
		s.ttl = ttl
	}
}

// New creates a cost Service backed by cfg.
func New(cfg *gatewaycfg.Store, opts ...Option) *Service {
	s := &Service{
		cfg:   cfg,
		ttl:   minTTL,
		cache: make(map[cacheKey]cacheEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cost returns the ModelCost for (providerKey, canonicalID). It returns nil
// when no cost is known anywhere, which callers must treat as +Inf cost and
// not free.
func (s *Service) Cost(providerKey, canonicalID string) *gatewaycfg.ModelCost {
	if c := s.cfg.Current().Cost(providerKey, canonicalID); c != nil {
		return c
	}
	if s.fetch == nil {
		return nil
	}
	return s.cachedFetch(providerKey, canonicalID)
}

func (s *Service) cachedFetch(providerKey, canonicalID string) *gatewaycfg.ModelCost {
	key := cacheKey{providerKey: providerKey, canonicalID: canonicalID}

	s.mu.Lock()
	if entry, ok := s.cache[key]; ok && time.Since(entry.cachedAt) < s.ttl {
		s.mu.Unlock()
		return entry.cost
	}
	s.mu.Unlock()

	cost, err := s.fetch(providerKey, canonicalID)
	if err != nil {
		cost = nil
	}

	s.mu.Lock()
	s.cache[key] = cacheEntry{cost: cost, cachedAt: time.Now()}
	s.mu.Unlock()

	return cost
}

// CostPerToken returns the output cost per token used for ranking, treating
// a missing cost as +Inf so uncosted candidates sort last.
func CostPerToken(c *gatewaycfg.ModelCost) float64 {
	if c == nil {
		return math.Inf(1)
	}
	return c.OutputCostPerTok
}

// IsFree reports whether a candidate is free, combining the provider's
// blanket free flag with the specific model cost's free-tier flag.
func IsFree(providerIsFree bool, c *gatewaycfg.ModelCost) bool {
	return providerIsFree || (c != nil && c.FreeTier)
}
