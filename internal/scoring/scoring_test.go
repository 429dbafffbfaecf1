package scoring

import (
	"testing"

	"github.com/synaxis-gateway/synaxis/internal/gatewaycfg"
	"github.com/synaxis-gateway/synaxis/internal/resolver"
)

func candidate(key string, quality, quotaRemaining, tier int, latencyMs float64) EnrichedCandidate {
	return EnrichedCandidate{
		Candidate: resolver.Candidate{
			Provider: gatewaycfg.ProviderConfig{
				Key:                     key,
				Tier:                    tier,
				QualityScore:            quality,
				EstimatedQuotaRemaining: quotaRemaining,
			},
		},
		AverageLatencyMs: latencyMs,
	}
}

func equalWeights() gatewaycfg.RoutingScorePolicy {
	return gatewaycfg.RoutingScorePolicy{QualityWeight: 1, QuotaWeight: 1, RateLimitWeight: 1, LatencyWeight: 1}
}

func TestScore_higherQualityScoresHigher(t *testing.T) {
	high := candidate("high", 9, 50, 1, 100)
	low := candidate("low", 3, 50, 1, 100)
	policy := equalWeights()
	if Score(high, policy) <= Score(low, policy) {
		t.Errorf("expected higher quality to score higher: %v vs %v", Score(high, policy), Score(low, policy))
	}
}

func TestScore_boundedToHundred(t *testing.T) {
	best := candidate("best", 10, 100, 1, 0)
	policy := equalWeights()
	if s := Score(best, policy); s > 100.001 {
		t.Errorf("expected score <= 100, got %v", s)
	}
}

func TestScore_higherLatencyScoresLower(t *testing.T) {
	fast := candidate("fast", 5, 50, 1, 10)
	slow := candidate("slow", 5, 50, 1, 900)
	policy := equalWeights()
	if Score(fast, policy) <= Score(slow, policy) {
		t.Errorf("expected faster provider to score higher")
	}
}

func TestRankAll_tieBreaksOnTierThenCost(t *testing.T) {
	a := candidate("a", 5, 50, 2, 100)
	a.CostPerToken = 0.002
	b := candidate("b", 5, 50, 1, 100)
	b.CostPerToken = 0.001
	policy := equalWeights()

	ranked := RankAll([]EnrichedCandidate{a, b}, policy)
	if ranked[0].Candidate.Candidate.Provider.Key != "b" {
		t.Errorf("expected lower tier to rank first on score tie, got %s", ranked[0].Candidate.Candidate.Provider.Key)
	}
}

func TestRankAll_ordersByScoreDescending(t *testing.T) {
	low := candidate("low", 1, 10, 1, 900)
	high := candidate("high", 10, 100, 1, 0)
	policy := equalWeights()

	ranked := RankAll([]EnrichedCandidate{low, high}, policy)
	if ranked[0].Candidate.Candidate.Provider.Key != "high" {
		t.Errorf("expected high-scoring candidate first, got %s", ranked[0].Candidate.Candidate.Provider.Key)
	}
}
