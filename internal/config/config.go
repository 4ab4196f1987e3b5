// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/mbd888/reclaim/internal/amount"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Access control
	OwnerAddress string // Fixed owner identity, set at deployment

	// Reward settings
	RewardRate      int64  // Per-account reward in smallest units (2 decimals)
	BonusMultiplier int64  // Percent, e.g. 150 = 1.5x once the tier is reached
	BonusThreshold  int64  // Accounts-cleaned threshold for the bonus tier
	BonusMode       string // "cumulative" or "per-event"

	// Treasury settings
	RestrictFunding bool // When true, only the owner may fund the pool

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint for traces (optional)

	// Limits
	MaxPayloadBytes int // Cap on account data payload size
	RateLimitRPS    int
}

// Defaults
const (
	DefaultPort       = "8080"
	DefaultEnv        = "development"
	DefaultLogLevel   = "info"
	DefaultRewardRate = "1.00"
	DefaultMultiplier = 150
	DefaultThreshold  = 10
	DefaultBonusMode  = "cumulative"
	DefaultMaxPayload = 64 * 1024
	DefaultRateLimit  = 100
)

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	rate, ok := amount.Parse(getEnv("REWARD_RATE", DefaultRewardRate))
	if !ok {
		return nil, fmt.Errorf("REWARD_RATE is not a valid amount")
	}

	cfg := &Config{
		Port:            getEnv("PORT", DefaultPort),
		Env:             getEnv("ENV", DefaultEnv),
		LogLevel:        getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:     os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		OwnerAddress:    os.Getenv("OWNER_ADDRESS"),
		RewardRate:      rate,
		BonusMultiplier: getEnvInt64("BONUS_MULTIPLIER", DefaultMultiplier),
		BonusThreshold:  getEnvInt64("BONUS_THRESHOLD", DefaultThreshold),
		BonusMode:       getEnv("BONUS_MODE", DefaultBonusMode),
		RestrictFunding: getEnvBool("RESTRICT_FUNDING", false),
		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		MaxPayloadBytes: int(getEnvInt64("MAX_PAYLOAD_BYTES", DefaultMaxPayload)),
		RateLimitRPS:    int(getEnvInt64("RATE_LIMIT_RPS", DefaultRateLimit)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.OwnerAddress == "" {
		return fmt.Errorf("OWNER_ADDRESS is required")
	}
	if c.RewardRate <= 0 {
		return fmt.Errorf("REWARD_RATE must be positive")
	}
	if c.BonusMultiplier < 100 {
		return fmt.Errorf("BONUS_MULTIPLIER must be at least 100 (percent)")
	}
	if c.BonusThreshold <= 0 {
		return fmt.Errorf("BONUS_THRESHOLD must be positive")
	}
	switch c.BonusMode {
	case "cumulative", "per-event":
	default:
		return fmt.Errorf("BONUS_MODE must be cumulative or per-event, got %q", c.BonusMode)
	}
	if c.MaxPayloadBytes <= 0 {
		return fmt.Errorf("MAX_PAYLOAD_BYTES must be positive")
	}
	return nil
}

// IsProduction returns true in production environments.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
