// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	ShutdownTimeout     time.Duration
	MaxRequestBodyBytes int64

	// Execution defaults applied when a run request does not override them.
	RunTimeout  time.Duration
	RunFailFast bool
	RunVerbose  bool

	// Run history (in-memory ring buffer).
	HistorySize int

	// Handoff settings.
	HandoffSweepInterval time.Duration
	SealPrivateKeyPath   string // Path to Ed25519 private key PEM file.
	SealPublicKeyPath    string // Path to Ed25519 public key PEM file.

	// Rate limiting.
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int

	// TrustProxy allows X-Forwarded-For to identify clients for rate
	// limiting. Only enable behind a proxy that sanitizes the header.
	TrustProxy bool

	// CORSAllowedOrigins lists origins allowed to call the API from a
	// browser. Empty disables CORS headers entirely.
	CORSAllowedOrigins []string

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible
// defaults. Every malformed variable is reported, not just the first.
func Load() (Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	var cfg Config
	var err error

	cfg.Port, err = envInt("SHIKKO_PORT", 8090)
	collect(err)
	cfg.ReadTimeout, err = envDuration("SHIKKO_READ_TIMEOUT", 30*time.Second)
	collect(err)
	cfg.WriteTimeout, err = envDuration("SHIKKO_WRITE_TIMEOUT", 60*time.Second)
	collect(err)
	cfg.ShutdownTimeout, err = envDuration("SHIKKO_SHUTDOWN_TIMEOUT", 10*time.Second)
	collect(err)
	maxBody, err := envInt("SHIKKO_MAX_REQUEST_BODY_BYTES", 1<<20)
	collect(err)
	cfg.MaxRequestBodyBytes = int64(maxBody)

	cfg.RunTimeout, err = envDuration("SHIKKO_RUN_TIMEOUT", 30*time.Second)
	collect(err)
	cfg.RunFailFast, err = envBool("SHIKKO_RUN_FAIL_FAST", false)
	collect(err)
	cfg.RunVerbose, err = envBool("SHIKKO_RUN_VERBOSE", false)
	collect(err)

	cfg.HistorySize, err = envInt("SHIKKO_HISTORY_SIZE", 256)
	collect(err)

	cfg.HandoffSweepInterval, err = envDuration("SHIKKO_HANDOFF_SWEEP_INTERVAL", time.Minute)
	collect(err)
	cfg.SealPrivateKeyPath = envStr("SHIKKO_SEAL_PRIVATE_KEY", "")
	cfg.SealPublicKeyPath = envStr("SHIKKO_SEAL_PUBLIC_KEY", "")

	cfg.RateLimitEnabled, err = envBool("SHIKKO_RATE_LIMIT_ENABLED", true)
	collect(err)
	cfg.RateLimitRPS, err = envFloat("SHIKKO_RATE_LIMIT_RPS", 10)
	collect(err)
	cfg.RateLimitBurst, err = envInt("SHIKKO_RATE_LIMIT_BURST", 30)
	collect(err)

	cfg.TrustProxy, err = envBool("SHIKKO_TRUST_PROXY", false)
	collect(err)
	if origins := envStr("SHIKKO_CORS_ALLOWED_ORIGINS", ""); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
			}
		}
	}

	cfg.OTELEndpoint = envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	cfg.OTELInsecure, err = envBool("OTEL_EXPORTER_OTLP_INSECURE", false)
	collect(err)
	cfg.ServiceName = envStr("OTEL_SERVICE_NAME", "shikko")

	cfg.LogLevel = envStr("SHIKKO_LOG_LEVEL", "info")

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: SHIKKO_PORT must be in 1-65535, got %d", c.Port)
	}
	if c.HistorySize <= 0 {
		return fmt.Errorf("config: SHIKKO_HISTORY_SIZE must be positive")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: SHIKKO_MAX_REQUEST_BODY_BYTES must be positive")
	}
	if c.HandoffSweepInterval <= 0 {
		return fmt.Errorf("config: SHIKKO_HANDOFF_SWEEP_INTERVAL must be positive")
	}
	if c.RateLimitEnabled && (c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0) {
		return fmt.Errorf("config: SHIKKO_RATE_LIMIT_RPS and SHIKKO_RATE_LIMIT_BURST must be positive when rate limiting is enabled")
	}
	// One seal key path without the other is a misconfiguration, not a
	// request for an ephemeral pair.
	if (c.SealPrivateKeyPath == "") != (c.SealPublicKeyPath == "") {
		return fmt.Errorf("config: SHIKKO_SEAL_PRIVATE_KEY and SHIKKO_SEAL_PUBLIC_KEY must be set together")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid number", key, v)
	}
	return f, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}
