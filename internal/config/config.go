// Package config loads the small set of engine tunables the core needs:
// breaker thresholds, cache TTL, replay-window default, gap-scan limit,
// DB DSN, ports and log level. Provider overrides, credential storage and
// the full config-file surface stay out of this core, per the
// external-collaborator boundary.
package config

import (
	"os"
	"strconv"
	"time"
)

// Engine holds every tunable the ingestion engine reads. Load takes each
// field from its environment variable and uses the default below when the
// variable is unset or does not parse.
type Engine struct {
	// RHG
	BreakerFailureThreshold int
	BreakerCoolDown         time.Duration

	// PM
	ProviderCacheTTL time.Duration

	// IMP / AR
	ReplayWindowDefault int
	GapScanLimit        int

	// RS / CS / AR / SR persistence
	DatabaseDSN string

	// Ambient
	HealthPort    int
	MetricsPort   int
	LogLevel      string
}

// Load reads the engine configuration from the environment, falling back
// to documented defaults for anything unset.
func Load() *Engine {
	return &Engine{
		BreakerFailureThreshold: getEnvAsInt("RHG_FAILURE_THRESHOLD", 5),
		BreakerCoolDown:         getEnvAsDuration("RHG_COOLDOWN", 60*time.Second),
		ProviderCacheTTL:        getEnvAsDuration("PM_CACHE_TTL", 30*time.Second),
		ReplayWindowDefault:     getEnvAsInt("REPLAY_WINDOW_DEFAULT", 6),
		GapScanLimit:            getEnvAsInt("GAP_SCAN_LIMIT", 10),
		DatabaseDSN:             getEnvOrDefault("DATABASE_DSN", ""),
		HealthPort:              getEnvAsInt("HEALTH_PORT", 8088),
		MetricsPort:             getEnvAsInt("METRICS_PORT", 9090),
		LogLevel:                getEnvOrDefault("LOG_LEVEL", "info"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
