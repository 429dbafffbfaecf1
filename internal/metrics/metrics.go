// Package metrics exposes the gateway's Prometheus registry: request
// counts, latency, cost, token accounting, and fallback-tier distribution.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	RequestsTotal         *prometheus.CounterVec
	RequestErrorsByStatus *prometheus.CounterVec
	RequestLatency        *prometheus.HistogramVec
	CostUSD               *prometheus.CounterVec
	TokensTotal           *prometheus.CounterVec
	RateLimitedTotal      prometheus.Counter
	FallbackTierTotal     *prometheus.CounterVec
	QuotaDeniedTotal      *prometheus.CounterVec
}

func New() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		reg: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "synaxis_requests_total",
			Help: "Total requests routed through the gateway",
		}, []string{"endpoint", "model", "provider", "status"}),
		RequestErrorsByStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "synaxis_request_errors_total",
			Help: "Request errors by HTTP status",
		}, []string{"endpoint", "model", "provider", "status"}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "synaxis_request_latency_ms",
			Help:    "Request latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		}, []string{"endpoint", "model", "provider"}),
		CostUSD: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "synaxis_cost_usd_total",
			Help: "Accumulated USD cost",
		}, []string{"model", "provider"}),
		TokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "synaxis_tokens_total",
			Help: "Tokens processed",
		}, []string{"model", "provider", "direction"}),
		RateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "synaxis_rate_limited_total",
			Help: "Total requests rejected by the inbound rate limiter",
		}),
		FallbackTierTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "synaxis_fallback_tier_total",
			Help: "Successful completions by fallback tier (preferred/free/paid/emergency)",
		}, []string{"tier"}),
		QuotaDeniedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "synaxis_quota_denied_total",
			Help: "Candidate attempts skipped due to quota denial",
		}, []string{"provider"}),
	}
	reg.MustRegister(
		m.RequestsTotal, m.RequestErrorsByStatus, m.RequestLatency, m.CostUSD,
		m.TokensTotal, m.RateLimitedTotal, m.FallbackTierTotal, m.QuotaDeniedTotal,
	)
	return m
}

func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
