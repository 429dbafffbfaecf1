// Package quota tracks per-provider requests-per-minute and tokens-per-minute
// usage against configured limits using fixed 60-second windows.
package quota

import (
	"sync"
	"time"
)

const window = 60 * time.Second

// warnThreshold is the utilization fraction at and above which CheckQuota
// reports Warn without denying the request.
const warnThreshold = 0.8

// Decision is the result of a quota check for one provider.
type Decision struct {
	Admit     bool
	WarnRPM   bool
	WarnTPM   bool
}

// Denied reports whether the request should be rejected.
func (d Decision) Denied() bool { return !d.Admit }

type bucket struct {
	windowStart time.Time
	requests    int
	tokens      int
}

// Tracker holds one fixed-window bucket per provider. Counters are
// approximate: a bucket resets wholesale when its window elapses, which can
// overshoot a strict sliding-window limit by a bounded amount.
type Tracker struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewTracker creates an empty quota tracker.
func NewTracker() *Tracker {
	return &Tracker{buckets: make(map[string]*bucket)}
}

// CheckQuota reports whether providerKey may be attempted given its
// configured per-minute limits. A nil limit means "no limit" for that
// dimension. CheckQuota does not itself record the attempt; call
// RecordUsage after a successful request.
func (t *Tracker) CheckQuota(providerKey string, rpmLimit, tpmLimit *int) Decision {
	t.mu.Lock()
	defer t.mu.Unlock()

	b := t.getOrReset(providerKey)

	d := Decision{Admit: true}
	if rpmLimit != nil && *rpmLimit > 0 {
		if b.requests >= *rpmLimit {
			d.Admit = false
		} else if float64(b.requests) >= warnThreshold*float64(*rpmLimit) {
			d.WarnRPM = true
		}
	}
	if tpmLimit != nil && *tpmLimit > 0 {
		if b.tokens >= *tpmLimit {
			d.Admit = false
		} else if float64(b.tokens) >= warnThreshold*float64(*tpmLimit) {
			d.WarnTPM = true
		}
	}
	return d
}

// RecordUsage appends one completed request's token counts to the current
// window.
func (t *Tracker) RecordUsage(providerKey string, inputTokens, outputTokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	b := t.getOrReset(providerKey)
	b.requests++
	b.tokens += inputTokens + outputTokens
}

// RecordAttempt counts one request against providerKey's RPM window without
// attributing any tokens. Callers use this for attempts that were sent but
// did not complete (denied, failed, rate-limited) so a provider that keeps
// erroring is still throttled by C3 rather than only by health cooldown.
func (t *Tracker) RecordAttempt(providerKey string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	b := t.getOrReset(providerKey)
	b.requests++
}

// Utilization returns the current window's request and token counts for a
// provider, for use by the routing score calculator's rate-limit headroom
// term. It does not roll the window.
func (t *Tracker) Utilization(providerKey string) (requests, tokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.buckets[providerKey]
	if !ok || time.Since(b.windowStart) >= window {
		return 0, 0
	}
	return b.requests, b.tokens
}

func (t *Tracker) getOrReset(providerKey string) *bucket {
	b, ok := t.buckets[providerKey]
	now := time.Now()
	if !ok {
		b = &bucket{windowStart: now}
		t.buckets[providerKey] = b
		return b
	}
	if now.Sub(b.windowStart) >= window {
		b.windowStart = now
		b.requests = 0
		b.tokens = 0
	}
	return b
}
