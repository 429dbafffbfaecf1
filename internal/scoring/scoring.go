// Package scoring computes a per-candidate routing score under the
// Global/Tenant/User routing policy hierarchy.
package scoring

import (
	"math"
	"sort"

	"github.com/synaxis-gateway/synaxis/internal/gatewaycfg"
	"github.com/synaxis-gateway/synaxis/internal/resolver"
)

// EnrichedCandidate is a resolver Candidate enriched with the health, quota,
// and cost facts the score formula needs. The orchestrator assembles these
// from the Health Store, Quota Tracker, and Cost Service before scoring.
type EnrichedCandidate struct {
	Candidate resolver.Candidate

	IsFree       bool
	CostPerToken float64 // output cost per token; +Inf when unknown

	Healthy bool

	// AverageLatencyMs is the provider's observed average latency, or 0 if
	// unknown (unknown latency scores as if instantaneous; the orchestrator
	// prefers cost/health signals over an absent latency sample).
	AverageLatencyMs float64

	// Utilization is the fraction (0..1) of the provider's rate limit
	// consumed in the current window, or 0 when the provider has no
	// configured limit.
	Utilization float64
}

// Score returns a value in [0, 100]: higher is more preferred.
func Score(c EnrichedCandidate, policy gatewaycfg.RoutingScorePolicy) float64 {
	p := policy.Normalized()

	quality := float64(c.Candidate.Provider.QualityScore) * 10 // 0-10 -> 0-100
	quotaRemaining := float64(c.Candidate.Provider.EstimatedQuotaRemaining)
	rateLimitHeadroom := 100 * (1 - c.Utilization)
	latencyScore := math.Max(0, 100-c.AverageLatencyMs/10)

	return quality*p.QualityWeight +
		quotaRemaining*p.QuotaWeight +
		rateLimitHeadroom*p.RateLimitWeight +
		latencyScore*p.LatencyWeight
}

// Scored pairs a candidate with its computed score.
type Scored struct {
	Candidate EnrichedCandidate
	Score     float64
}

// RankAll scores every candidate under policy and orders the result by
// score descending, then by Provider.Tier ascending, then by CostPerToken
// ascending, then by declaration order (stable sort preserves the
// resolver's declaration order on a full tie).
func RankAll(candidates []EnrichedCandidate, policy gatewaycfg.RoutingScorePolicy) []Scored {
	ranked := make([]Scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = Scored{Candidate: c, Score: Score(c, policy)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		ti, tj := ranked[i].Candidate.Candidate.Provider.Tier, ranked[j].Candidate.Candidate.Provider.Tier
		if ti != tj {
			return ti < tj
		}
		ci, cj := ranked[i].Candidate.CostPerToken, ranked[j].Candidate.CostPerToken
		if ci != cj {
			return ci < cj
		}
		return false
	})
	return ranked
}
