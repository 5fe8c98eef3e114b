// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Currency settings
	BaseCurrency    string
	FXRateURL       string        // FX rate source endpoint (optional, uses static rates if not set)
	FXRefreshEvery  time.Duration // how often the rate snapshot is refreshed
	FXMaxStaleness  time.Duration // conversions older than this force a refresh first
	DefaultCurrency string

	// Platform fee settings
	DefaultFeePercent  float64 // platform fee when no fee config row is active
	GatewayFeePayer    string  // "buyer" or "seller" default
	ClientTotalBandPct float64 // tolerance band for client-supplied totals

	// Escrow settings
	AutoReleaseDays  int           // days after delivery before auto-release
	RetentionDays    int           // failed/cancelled purge window
	ArchiveAfterDays int           // completed transactions archive window
	GatewayTimeout   time.Duration // upper bound on gateway init/status calls

	// Gateways
	StripeSecretKey     string
	StripeWebhookSecret string
	PayTabsProfileID    string
	PayTabsServerKey    string
	PayTabsBaseURL      string

	// Tracing
	OTLPEndpoint string

	// Security
	AdminSecret  string
	RateLimitRPS int
}

// Defaults
const (
	DefaultPort            = "8080"
	DefaultEnv             = "development"
	DefaultLogLevel        = "info"
	DefaultBaseCurrency    = "USD"
	DefaultFeePercent      = 10.0
	DefaultGatewayFeePayer = "buyer"
	DefaultClientBandPct   = 10.0
	DefaultAutoReleaseDays = 3
	DefaultRetentionDays   = 30
	DefaultArchiveDays     = 90
	DefaultRateLimit       = 100
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", DefaultPort),
		Env:                 getEnv("ENV", DefaultEnv),
		LogLevel:            getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:         os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		BaseCurrency:        getEnv("BASE_CURRENCY", DefaultBaseCurrency),
		FXRateURL:           os.Getenv("FX_RATE_URL"),
		FXRefreshEvery:      getEnvDuration("FX_REFRESH_EVERY", time.Hour),
		FXMaxStaleness:      getEnvDuration("FX_MAX_STALENESS", 6*time.Hour),
		DefaultCurrency:     getEnv("DEFAULT_CURRENCY", DefaultBaseCurrency),
		DefaultFeePercent:   getEnvFloat("DEFAULT_FEE_PERCENT", DefaultFeePercent),
		GatewayFeePayer:     getEnv("GATEWAY_FEE_PAYER", DefaultGatewayFeePayer),
		ClientTotalBandPct:  getEnvFloat("CLIENT_TOTAL_BAND_PCT", DefaultClientBandPct),
		AutoReleaseDays:     int(getEnvInt64("AUTO_RELEASE_DAYS", DefaultAutoReleaseDays)),
		RetentionDays:       int(getEnvInt64("RETENTION_DAYS", DefaultRetentionDays)),
		ArchiveAfterDays:    int(getEnvInt64("ARCHIVE_AFTER_DAYS", DefaultArchiveDays)),
		GatewayTimeout:      getEnvDuration("GATEWAY_TIMEOUT", 30*time.Second),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		PayTabsProfileID:    os.Getenv("PAYTABS_PROFILE_ID"),
		PayTabsServerKey:    os.Getenv("PAYTABS_SERVER_KEY"),
		PayTabsBaseURL:      getEnv("PAYTABS_BASE_URL", "https://secure.paytabs.com"),
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		AdminSecret:         os.Getenv("ADMIN_SECRET"),
		RateLimitRPS:        int(getEnvInt64("RATE_LIMIT_RPS", int64(DefaultRateLimit))),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and coherent
func (c *Config) Validate() error {
	if c.GatewayFeePayer != "buyer" && c.GatewayFeePayer != "seller" {
		return fmt.Errorf("GATEWAY_FEE_PAYER must be \"buyer\" or \"seller\", got %q", c.GatewayFeePayer)
	}
	if c.DefaultFeePercent < 0 || c.DefaultFeePercent > 100 {
		return fmt.Errorf("DEFAULT_FEE_PERCENT must be between 0 and 100, got %v", c.DefaultFeePercent)
	}
	if c.ClientTotalBandPct < 0 {
		return fmt.Errorf("CLIENT_TOTAL_BAND_PCT must not be negative")
	}
	if c.AutoReleaseDays <= 0 {
		return fmt.Errorf("AUTO_RELEASE_DAYS must be positive, got %d", c.AutoReleaseDays)
	}
	if len(c.BaseCurrency) != 3 {
		return fmt.Errorf("BASE_CURRENCY must be a 3-letter ISO code, got %q", c.BaseCurrency)
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
