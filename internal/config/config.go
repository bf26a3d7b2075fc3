package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Relay backends.
const (
	BackendAuto     = ""
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	SQLitePath  string
	RedisURL    string

	// Relay
	RelayBackend     string
	SponsoredWrites  bool
	RelayMaxAttempts int
	BotName          string

	// Ownership gate
	OwnershipRPCURL     string
	GateQueryTimeout    time.Duration
	GateMinResponses    int
	WalletSwitchTimeout time.Duration

	// Caches
	ReadCacheTTL         time.Duration
	PreviewCacheTTL      time.Duration
	PreviewEvictInterval time.Duration

	// Rate limiting
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled   bool     // Enable auto-blocking after repeated violations
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  os.Getenv("SQLITE_PATH"),
		RedisURL:    os.Getenv("REDIS_URL"),

		RelayBackend:     strings.ToLower(os.Getenv("RELAY_BACKEND")),
		SponsoredWrites:  getEnv("SPONSORED_WRITES", "true") == "true",
		RelayMaxAttempts: getInt("RELAY_MAX_ATTEMPTS", 4),
		BotName:          getEnv("BOT_NAME", "Collection Bot"),

		OwnershipRPCURL:     os.Getenv("OWNERSHIP_RPC_URL"),
		GateQueryTimeout:    getDuration("GATE_QUERY_TIMEOUT", 5*time.Second),
		GateMinResponses:    getInt("GATE_MIN_RESPONSES", 1),
		WalletSwitchTimeout: getDuration("WALLET_SWITCH_TIMEOUT", 10*time.Second),

		ReadCacheTTL:         getDuration("READ_CACHE_TTL", 30*time.Second),
		PreviewCacheTTL:      getDuration("PREVIEW_CACHE_TTL", 5*time.Minute),
		PreviewEvictInterval: getDuration("PREVIEW_EVICT_INTERVAL", time.Minute),

		AutoBlockEnabled: getEnv("AUTO_BLOCK_ENABLED", "false") == "true",
	}

	// Parse whitelist (comma-separated IPs or CIDRs)
	if whitelist := os.Getenv("RATE_LIMIT_WHITELIST"); whitelist != "" {
		for _, entry := range strings.Split(whitelist, ",") {
			entry = strings.TrimSpace(entry)
			if entry != "" {
				cfg.RateLimitWhitelist = append(cfg.RateLimitWhitelist, entry)
			}
		}
	}

	switch cfg.RelayBackend {
	case BackendAuto, BackendRedis, BackendPostgres, BackendMemory:
	default:
		panic("RELAY_BACKEND must be one of redis, postgres, memory")
	}

	// In production, require a wallet registry, redis and an ownership source
	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required in production")
		}
		if cfg.RedisURL == "" {
			panic("REDIS_URL is required in production")
		}
		if cfg.OwnershipRPCURL == "" {
			panic("OWNERSHIP_RPC_URL is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
