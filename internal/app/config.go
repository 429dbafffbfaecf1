package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	ListenAddr string
	LogLevel   string

	// GatewayConfigPath points at the JSON file defining providers,
	// canonical models, costs and routing policies (gatewaycfg.Load).
	GatewayConfigPath string

	// UsageDBDSN is the SQLite DSN backing the async usage recorder.
	UsageDBDSN          string
	UsageRetentionDays  int

	// Security & hardening.
	CORSOrigins    []string // allowed CORS origins; empty = ["*"]
	RateLimitRPS   int      // requests per second per IP
	RateLimitBurst int      // burst capacity per IP

	// OpenTelemetry tracing (opt-in).
	OTelEnabled     bool
	OTelEndpoint    string
	OTelServiceName string

	HealthProbeInterval int // seconds between provider health probes
}

func LoadConfig() (Config, error) {
	cfg := Config{
		ListenAddr: getEnv("SYNAXIS_LISTEN_ADDR", ":8080"),
		LogLevel:   getEnv("SYNAXIS_LOG_LEVEL", "info"),

		GatewayConfigPath: getEnv("SYNAXIS_CONFIG_PATH", "/data/synaxis.json"),

		UsageDBDSN:         getEnv("SYNAXIS_USAGE_DB_DSN", "file:/data/synaxis-usage.sqlite"),
		UsageRetentionDays: getEnvInt("SYNAXIS_USAGE_RETENTION_DAYS", 90),

		CORSOrigins:    getEnvStringSlice("SYNAXIS_CORS_ORIGINS", nil),
		RateLimitRPS:   getEnvInt("SYNAXIS_RATE_LIMIT_RPS", 60),
		RateLimitBurst: getEnvInt("SYNAXIS_RATE_LIMIT_BURST", 120),

		OTelEnabled:     getEnvBool("SYNAXIS_OTEL_ENABLED", false),
		OTelEndpoint:    getEnv("SYNAXIS_OTEL_ENDPOINT", "localhost:4318"),
		OTelServiceName: getEnv("SYNAXIS_OTEL_SERVICE_NAME", "synaxis"),

		HealthProbeInterval: getEnvInt("SYNAXIS_HEALTH_PROBE_INTERVAL_SECS", 30),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks config values for obviously invalid settings.
func (c Config) Validate() error {
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("SYNAXIS_RATE_LIMIT_RPS must be > 0, got %d", c.RateLimitRPS)
	}
	if c.RateLimitBurst <= 0 {
		return fmt.Errorf("SYNAXIS_RATE_LIMIT_BURST must be > 0, got %d", c.RateLimitBurst)
	}
	if c.UsageRetentionDays <= 0 {
		return fmt.Errorf("SYNAXIS_USAGE_RETENTION_DAYS must be > 0, got %d", c.UsageRetentionDays)
	}
	if c.HealthProbeInterval <= 0 {
		return fmt.Errorf("SYNAXIS_HEALTH_PROBE_INTERVAL_SECS must be > 0, got %d", c.HealthProbeInterval)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvStringSlice(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		var result []string
		for _, s := range strings.Split(v, ",") {
			s = strings.TrimSpace(s)
			if s != "" {
				result = append(result, s)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return def
}
