// Package app wires together the gateway's configuration store, fallback
// orchestrator, usage recorder and HTTP surface into a runnable server.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/synaxis-gateway/synaxis/internal/cost"
	"github.com/synaxis-gateway/synaxis/internal/gatewaycfg"
	"github.com/synaxis-gateway/synaxis/internal/health"
	"github.com/synaxis-gateway/synaxis/internal/httpapi"
	"github.com/synaxis-gateway/synaxis/internal/logging"
	"github.com/synaxis-gateway/synaxis/internal/metrics"
	"github.com/synaxis-gateway/synaxis/internal/orchestrator"
	"github.com/synaxis-gateway/synaxis/internal/quota"
	"github.com/synaxis-gateway/synaxis/internal/ratelimit"
	"github.com/synaxis-gateway/synaxis/internal/tracing"
	"github.com/synaxis-gateway/synaxis/internal/usage"
)

type Server struct {
	cfg Config

	r *chi.Mux

	gatewayConfig *gatewaycfg.Store
	orchestrator  *orchestrator.Orchestrator
	usage         *usage.Recorder
	metrics       *metrics.Registry
	healthStore   *health.Store
	prober        *health.Prober
	rateLimiter   *ratelimit.Limiter

	logger       *slog.Logger
	otelShutdown func(context.Context) error // nil when OTel disabled
	stopPrune    chan struct{}

	httpServer *http.Server
}

func NewServer(cfg Config) (*Server, error) {
	logger := logging.Setup(cfg.LogLevel)

	otelShutdown, err := tracing.Setup(tracing.Config{
		Enabled:     cfg.OTelEnabled,
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: cfg.OTelServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("otel setup: %w", err)
	}
	if cfg.OTelEnabled {
		logger.Info("opentelemetry tracing enabled",
			slog.String("endpoint", cfg.OTelEndpoint),
			slog.String("service", cfg.OTelServiceName),
		)
	}

	gwStore, err := gatewaycfg.Open(cfg.GatewayConfigPath, logger)
	if err != nil {
		return nil, fmt.Errorf("load gateway config: %w", err)
	}
	snap := gwStore.Current()

	usageRecorder, err := usage.Open(cfg.UsageDBDSN)
	if err != nil {
		return nil, fmt.Errorf("open usage recorder: %w", err)
	}

	m := metrics.New()

	rl := ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst, time.Second,
		ratelimit.WithCounter(m.RateLimitedTotal))

	healthStore := health.NewStore()

	registry, err := httpapi.BuildRegistry(snap)
	if err != nil {
		return nil, fmt.Errorf("build provider registry: %w", err)
	}

	var probeTargets []health.Probeable
	for _, sender := range registry {
		if p, ok := sender.(health.Probeable); ok {
			probeTargets = append(probeTargets, p)
		}
	}
	prober := health.NewProber(health.ProberConfig{
		Interval:     time.Duration(cfg.HealthProbeInterval) * time.Second,
		ProbeTimeout: 5 * time.Second,
	}, healthStore, probeTargets, logger)
	prober.Start()

	orch := &orchestrator.Orchestrator{
		Health:   healthStore,
		Quota:    quota.NewTracker(),
		Costs:    cost.New(gwStore),
		Senders:  registry,
		Snapshot: gwStore.Current,
	}

	s := &Server{
		cfg:           cfg,
		gatewayConfig: gwStore,
		orchestrator:  orch,
		usage:         usageRecorder,
		metrics:       m,
		healthStore:   healthStore,
		prober:        prober,
		rateLimiter:   rl,
		logger:        logger,
		otelShutdown:  otelShutdown,
		stopPrune:     make(chan struct{}),
	}

	s.r = s.buildRouter()

	go s.pruneLoop(time.Duration(cfg.UsageRetentionDays) * 24 * time.Hour)

	return s, nil
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	if s.cfg.OTelEnabled {
		r.Use(tracing.Middleware())
	}

	corsOrigins := s.cfg.CORSOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Synaxis-Tenant", "X-Synaxis-User"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	httpapi.MountRoutes(r, httpapi.Dependencies{
		GatewayConfig: s.gatewayConfig,
		Orchestrator:  s.orchestrator,
		Usage:         s.usage,
		Metrics:       s.metrics,
		RateLimiter:   s.rateLimiter,
	})

	return r
}

func (s *Server) Router() http.Handler { return s.r }

func (s *Server) SetHTTPServer(srv *http.Server) {
	s.httpServer = srv
}

// Reload re-reads the gateway configuration file and, if it parses and
// validates, publishes it to the live Store. The previous snapshot stays in
// force on error.
func (s *Server) Reload(cfg Config) {
	s.cfg = cfg
	if err := s.gatewayConfig.Reload(); err != nil {
		s.logger.Error("gateway config reload failed, keeping previous snapshot", slog.String("error", err.Error()))
	}
}

func (s *Server) Close() error {
	close(s.stopPrune)
	s.prober.Stop()
	if err := s.gatewayConfig.Close(); err != nil {
		s.logger.Error("gateway config store close error", slog.String("error", err.Error()))
	}
	if err := s.usage.Close(); err != nil {
		s.logger.Error("usage recorder close error", slog.String("error", err.Error()))
	}
	if s.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.otelShutdown(ctx); err != nil {
			s.logger.Error("otel shutdown error", slog.String("error", err.Error()))
		}
	}
	return nil
}

// pruneLoop periodically deletes usage records older than retention.
func (s *Server) pruneLoop(retention time.Duration) {
	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopPrune:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if n, err := s.usage.Prune(ctx, retention); err != nil {
				s.logger.Error("usage prune failed", slog.String("error", err.Error()))
			} else if n > 0 {
				s.logger.Info("usage records pruned", slog.Int64("count", n))
			}
			cancel()
		}
	}
}
