// Package config handles application configuration from environment variables
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "text" or "json"

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Algorand node settings
	AlgodAddress string // algod REST endpoint (optional, uses fake chain if not set)
	AlgodToken   string

	// Funding confirmation policy
	ConfirmTimeout      time.Duration // bound on confirmation polling
	ConfirmPollInterval time.Duration // delay between confirmation checks
	ConfirmWaitRounds   uint64        // rounds to wait when blocking on a node

	// Security
	AdminSecretHash string // SHA-256 hex of the admin credential
	RateLimitRPM    int

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint for traces (optional)
}

const (
	DefaultPort                = "8080"
	DefaultEnv                 = "development"
	DefaultLogLevel            = "info"
	DefaultConfirmTimeout      = 10 * time.Second
	DefaultConfirmPollInterval = time.Second
	DefaultConfirmWaitRounds   = 4
	DefaultRateLimitRPM        = 120
)

// Load reads configuration from environment variables.
// It loads a .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", DefaultPort),
		Env:                 getEnv("ENV", DefaultEnv),
		LogLevel:            getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:           getEnv("LOG_FORMAT", "text"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		AlgodAddress:        os.Getenv("ALGOD_ADDRESS"),
		AlgodToken:          os.Getenv("ALGOD_TOKEN"),
		ConfirmTimeout:      getEnvDuration("CONFIRM_TIMEOUT", DefaultConfirmTimeout),
		ConfirmPollInterval: getEnvDuration("CONFIRM_POLL_INTERVAL", DefaultConfirmPollInterval),
		ConfirmWaitRounds:   uint64(getEnvInt64("CONFIRM_WAIT_ROUNDS", DefaultConfirmWaitRounds)),
		AdminSecretHash:     os.Getenv("ADMIN_SECRET_HASH"),
		RateLimitRPM:        int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimitRPM)),
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	// Local convenience: accept a raw ADMIN_SECRET and hash it at load time.
	// The raw value is never stored on the Config.
	if cfg.AdminSecretHash == "" {
		if raw := os.Getenv("ADMIN_SECRET"); raw != "" {
			sum := sha256.Sum256([]byte(raw))
			cfg.AdminSecretHash = hex.EncodeToString(sum[:])
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.AdminSecretHash == "" {
		return fmt.Errorf("ADMIN_SECRET_HASH (or ADMIN_SECRET) is required")
	}
	if len(c.AdminSecretHash) != 64 {
		return fmt.Errorf("ADMIN_SECRET_HASH must be 64 hex characters (SHA-256)")
	}
	if _, err := hex.DecodeString(c.AdminSecretHash); err != nil {
		return fmt.Errorf("ADMIN_SECRET_HASH must be valid hex: %w", err)
	}

	if c.ConfirmTimeout <= 0 {
		return fmt.Errorf("CONFIRM_TIMEOUT must be positive")
	}
	if c.ConfirmPollInterval <= 0 {
		return fmt.Errorf("CONFIRM_POLL_INTERVAL must be positive")
	}

	if c.IsProduction() && c.AlgodAddress == "" {
		return fmt.Errorf("ALGOD_ADDRESS is required in production")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
