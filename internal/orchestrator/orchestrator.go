// Package orchestrator implements the tiered fallback attempt loop: given a
// resolved candidate list it partitions providers into preferred/free/paid/
// emergency tiers, filters on health and quota, and drives per-attempt
// retries across a 60-second cumulative deadline.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/synaxis-gateway/synaxis/internal/cost"
	"github.com/synaxis-gateway/synaxis/internal/gatewaycfg"
	"github.com/synaxis-gateway/synaxis/internal/health"
	"github.com/synaxis-gateway/synaxis/internal/providers"
	"github.com/synaxis-gateway/synaxis/internal/quota"
	"github.com/synaxis-gateway/synaxis/internal/resolver"
	"github.com/synaxis-gateway/synaxis/internal/scoring"
	"github.com/synaxis-gateway/synaxis/internal/translate"
)

// DefaultTimeout is the cumulative orchestration deadline applied when the
// caller's context carries no earlier deadline.
const DefaultTimeout = 60 * time.Second

const maxAttemptRetries = 3

// tier identifies which fallback partition a candidate belongs to.
type tier int

const (
	tierPreferred tier = iota
	tierFree
	tierPaid
	tierEmergency
	tierCount
)

// Request bundles one resolved model lookup with the context needed to
// enrich, score, and send it.
type Request struct {
	Resolved              *resolver.Resolved
	Canonical             translate.CanonicalRequest
	TenantID              string
	UserID                string
	PreferredProviderKeys []string // explicit provider pins from the caller; populate T0
}

// AttemptFailure records one failed send, for the aggregate error surfaced
// on exhaustion.
type AttemptFailure struct {
	ProviderKey string
	ModelPath   string
	Class       providers.ErrorClass
	Err         error
}

// ExhaustedError is returned when every tier's candidates were filtered out
// or failed; it names every provider attempted and why.
type ExhaustedError struct {
	Attempts []AttemptFailure
}

func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return "orchestrator: no eligible providers for this model"
	}
	var b strings.Builder
	b.WriteString("orchestrator: all providers failed:")
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, " %s(%s)=%s", a.ProviderKey, a.ModelPath, a.Class)
	}
	return b.String()
}

// Outcome is a successful orchestration result.
type Outcome struct {
	ProviderKey string
	ModelPath   string
	Response    translate.CanonicalResponse
	Tier        string
}

// Registry resolves a provider key to the Sender that talks to it.
type Registry interface {
	Sender(providerKey string) (providers.Sender, bool)
}

// Orchestrator drives the tiered fallback loop.
type Orchestrator struct {
	Health   *health.Store
	Quota    *quota.Tracker
	Costs    *cost.Service
	Senders  Registry
	Snapshot func() *gatewaycfg.Snapshot
}

// Execute runs the tiered fallback loop for one unary request.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (Outcome, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	var failures []AttemptFailure
	for _, rc := range o.RankedCandidates(req) {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		cand := rc.Candidate.Candidate
		sender, ok := o.Senders.Sender(cand.Provider.Key)
		if !ok {
			continue
		}

		resp, err := attemptWithRetry(ctx, sender, cand.ResolvedModelPath, req.Canonical)
		if err == nil {
			o.Health.MarkSuccess(cand.Provider.Key)
			if resp.Usage != nil {
				o.Quota.RecordUsage(cand.Provider.Key, resp.Usage.InputTokens, resp.Usage.OutputTokens)
			}
			return Outcome{
				ProviderKey: cand.Provider.Key,
				ModelPath:   cand.ResolvedModelPath,
				Response:    resp,
				Tier:        rc.Tier,
			}, nil
		}

		classified := sender.ClassifyError(err)
		o.Health.MarkFailure(cand.Provider.Key, BackoffCooldown(classified))
		o.Quota.RecordAttempt(cand.Provider.Key)
		failures = append(failures, AttemptFailure{
			ProviderKey: cand.Provider.Key,
			ModelPath:   cand.ResolvedModelPath,
			Class:       classified.Class,
			Err:         err,
		})
	}

	return Outcome{}, &ExhaustedError{Attempts: failures}
}

// RankedCandidate pairs one enriched, scored candidate with the fallback
// tier it was admitted under. Execute walks this list with its own
// retry-and-resend loop; callers that drive their own I/O against a
// provider (the streaming and embeddings handlers) walk the same list
// directly instead of re-deriving tiering/health/quota order from
// resolved.Candidates.
type RankedCandidate struct {
	scoring.Scored
	Tier string
}

// RankedCandidates partitions req's resolved candidates into the four
// fallback tiers, drops unhealthy and (outside the emergency tier)
// quota-denied candidates, and scores what remains, tier by tier in fallback
// order.
func (o *Orchestrator) RankedCandidates(req Request) []RankedCandidate {
	policy := o.Snapshot().PolicyFor(req.TenantID, req.UserID)
	tiers := o.partition(req)

	var out []RankedCandidate
	for t := tierPreferred; t < tierCount; t++ {
		candidates := o.admitted(tiers[t], t)
		if len(candidates) == 0 {
			continue
		}
		for _, scored := range scoring.RankAll(candidates, policy) {
			out = append(out, RankedCandidate{Scored: scored, Tier: tierName(t)})
		}
	}
	return out
}

// partition splits the resolved candidates into the four fallback tiers.
func (o *Orchestrator) partition(req Request) [tierCount][]scoring.EnrichedCandidate {
	var tiers [tierCount][]scoring.EnrichedCandidate
	if req.Resolved == nil {
		return tiers
	}

	preferred := make(map[string]bool, len(req.PreferredProviderKeys))
	for _, k := range req.PreferredProviderKeys {
		preferred[k] = true
	}

	for _, cand := range req.Resolved.Candidates {
		enriched := o.enrich(cand)
		switch {
		case preferred[cand.Provider.Key]:
			tiers[tierPreferred] = append(tiers[tierPreferred], enriched)
		case enriched.IsFree:
			tiers[tierFree] = append(tiers[tierFree], enriched)
		default:
			tiers[tierPaid] = append(tiers[tierPaid], enriched)
		}
		tiers[tierEmergency] = append(tiers[tierEmergency], enriched)
	}
	return tiers
}

func (o *Orchestrator) enrich(cand resolver.Candidate) scoring.EnrichedCandidate {
	c := o.Costs.Cost(cand.Provider.Key, cand.Model.ID)
	latency := 0.0
	if cand.Provider.AverageLatencyMs != nil {
		latency = float64(*cand.Provider.AverageLatencyMs)
	}
	return scoring.EnrichedCandidate{
		Candidate:        cand,
		IsFree:           cost.IsFree(cand.Provider.IsFree, c),
		CostPerToken:     cost.CostPerToken(c),
		Healthy:          o.Health.IsHealthy(cand.Provider.Key),
		AverageLatencyMs: latency,
		Utilization:      o.utilization(cand.Provider),
	}
}

func (o *Orchestrator) utilization(p gatewaycfg.ProviderConfig) float64 {
	reqs, toks := o.Quota.Utilization(p.Key)
	u := 0.0
	if p.RateLimitRPM != nil && *p.RateLimitRPM > 0 {
		u = math.Max(u, float64(reqs)/float64(*p.RateLimitRPM))
	}
	if p.RateLimitTPM != nil && *p.RateLimitTPM > 0 {
		u = math.Max(u, float64(toks)/float64(*p.RateLimitTPM))
	}
	return u
}

// admitted filters a tier's candidates on health (every tier) and quota
// (T0-T2 only; T3/emergency bypasses quota denial).
func (o *Orchestrator) admitted(candidates []scoring.EnrichedCandidate, t tier) []scoring.EnrichedCandidate {
	out := make([]scoring.EnrichedCandidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.Healthy {
			continue
		}
		if t != tierEmergency {
			decision := o.Quota.CheckQuota(c.Candidate.Provider.Key, c.Candidate.Provider.RateLimitRPM, c.Candidate.Provider.RateLimitTPM)
			if decision.Denied() {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

func tierName(t tier) string {
	switch t {
	case tierPreferred:
		return "preferred"
	case tierFree:
		return "free"
	case tierPaid:
		return "paid"
	default:
		return "emergency"
	}
}

// BackoffCooldown picks a health cooldown hint from a classified error; 0
// defers to health.Store's default. Exported so callers that drive their
// own send loop outside Execute (streaming, embeddings) apply the same
// rate-limit-aware cooldown on failure.
func BackoffCooldown(ce *providers.ClassifiedError) time.Duration {
	if ce.Class == providers.ErrRateLimited && ce.RetryAfter > 0 {
		return time.Duration(ce.RetryAfter) * time.Second
	}
	return 0
}

// attemptWithRetry sends one request, retrying up to maxAttemptRetries times
// with exponential backoff on network errors, 5xx, and 429 responses.
// Fatal and context-overflow classifications are not retried; the caller
// moves on to the next candidate.
func attemptWithRetry(ctx context.Context, sender providers.Sender, modelPath string, req translate.CanonicalRequest) (translate.CanonicalResponse, error) {
	var resp translate.CanonicalResponse

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxAttemptRetries), ctx)
	err := backoff.Retry(func() error {
		var sendErr error
		resp, sendErr = sender.Send(ctx, modelPath, req)
		if sendErr == nil {
			return nil
		}
		classified := sender.ClassifyError(sendErr)
		if isRetryable(sendErr, classified) {
			return sendErr
		}
		return backoff.Permanent(sendErr)
	}, bo)

	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return translate.CanonicalResponse{}, perm.Err
		}
		return translate.CanonicalResponse{}, err
	}
	return resp, nil
}

func isRetryable(err error, classified *providers.ClassifiedError) bool {
	if classified.Class == providers.ErrTransient || classified.Class == providers.ErrRateLimited {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
