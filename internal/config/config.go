// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisAddr enables Redis-backed rate-limit counters when set (host:port).
	// Empty means in-process counters, which are fine for a single replica.
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "fitstack-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "fitstack-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// RefreshTTLRaw is the refresh token / session lifetime (e.g. "720h").
	RefreshTTLRaw string `mapstructure:"REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// MaxConcurrentSessions is the per-identity active session cap; creating a
	// session beyond it evicts the least-recently-active one. Default 5.
	MaxConcurrentSessions int `mapstructure:"MAX_CONCURRENT_SESSIONS"`
	// SessionIdleTimeoutRaw is how long a session may sit untouched before the
	// sweeper deactivates it (e.g. "168h").
	SessionIdleTimeoutRaw string `mapstructure:"SESSION_IDLE_TIMEOUT"`
	// SessionSweepIntervalRaw is the background sweep cadence (e.g. "1h").
	SessionSweepIntervalRaw string `mapstructure:"SESSION_SWEEP_INTERVAL"`
	// TokenPurgeIntervalRaw is the expired-refresh-token purge cadence.
	TokenPurgeIntervalRaw string `mapstructure:"TOKEN_PURGE_INTERVAL"`
	// DependencyTimeoutRaw bounds every store/hasher call made by the facade.
	DependencyTimeoutRaw string `mapstructure:"DEPENDENCY_TIMEOUT"`
	// ResetTokenTTLRaw is the password-reset token lifetime.
	ResetTokenTTLRaw string `mapstructure:"RESET_TOKEN_TTL"`
	// PermissionCacheTTLRaw bounds staleness of cached permission sets; cache
	// entries are also invalidated explicitly on grant/role mutations.
	PermissionCacheTTLRaw string `mapstructure:"PERMISSION_CACHE_TTL"`

	// Rate-limit budgets. Each named config has an independent window and max.
	RateLimitAuthMax       int    `mapstructure:"RATE_LIMIT_AUTH_MAX"`
	RateLimitAuthWindowRaw string `mapstructure:"RATE_LIMIT_AUTH_WINDOW"`
	RateLimitAPIMax        int    `mapstructure:"RATE_LIMIT_API_MAX"`
	RateLimitAPIWindowRaw  string `mapstructure:"RATE_LIMIT_API_WINDOW"`
	RateLimitResetMax      int    `mapstructure:"RATE_LIMIT_RESET_MAX"`
	RateLimitResetWindow   string `mapstructure:"RATE_LIMIT_RESET_WINDOW"`

	// OTLPEndpoint enables OpenTelemetry metric export when set
	// (e.g. http://localhost:4317). Empty means no-op providers.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("JWT_ISSUER", "fitstack-auth")
	v.SetDefault("JWT_AUDIENCE", "fitstack-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("REFRESH_TTL", "720h") // 30d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("MAX_CONCURRENT_SESSIONS", 5)
	v.SetDefault("SESSION_IDLE_TIMEOUT", "168h") // 7d
	v.SetDefault("SESSION_SWEEP_INTERVAL", "1h")
	v.SetDefault("TOKEN_PURGE_INTERVAL", "1h")
	v.SetDefault("DEPENDENCY_TIMEOUT", "5s")
	v.SetDefault("RESET_TOKEN_TTL", "1h")
	v.SetDefault("PERMISSION_CACHE_TTL", "30s")
	v.SetDefault("RATE_LIMIT_AUTH_MAX", 5)
	v.SetDefault("RATE_LIMIT_AUTH_WINDOW", "15m")
	v.SetDefault("RATE_LIMIT_API_MAX", 100)
	v.SetDefault("RATE_LIMIT_API_WINDOW", "1m")
	v.SetDefault("RATE_LIMIT_RESET_MAX", 3)
	v.SetDefault("RATE_LIMIT_RESET_WINDOW", "1h")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.MaxConcurrentSessions <= 0 {
		return nil, errors.New("config: MAX_CONCURRENT_SESSIONS must be positive")
	}
	if cfg.RateLimitAuthMax <= 0 || cfg.RateLimitAPIMax <= 0 || cfg.RateLimitResetMax <= 0 {
		return nil, errors.New("config: rate-limit maximums must be positive")
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return durationOr(c.JWTAccessTTL, 15*time.Minute)
}

// RefreshTTL parses RefreshTTLRaw. Returns 720h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return durationOr(c.RefreshTTLRaw, 720*time.Hour)
}

// SessionIdleTimeout parses SessionIdleTimeoutRaw. Returns 168h if unset or invalid.
func (c *Config) SessionIdleTimeout() time.Duration {
	return durationOr(c.SessionIdleTimeoutRaw, 168*time.Hour)
}

// SessionSweepInterval parses SessionSweepIntervalRaw. Returns 1h if unset or invalid.
func (c *Config) SessionSweepInterval() time.Duration {
	return durationOr(c.SessionSweepIntervalRaw, time.Hour)
}

// TokenPurgeInterval parses TokenPurgeIntervalRaw. Returns 1h if unset or invalid.
func (c *Config) TokenPurgeInterval() time.Duration {
	return durationOr(c.TokenPurgeIntervalRaw, time.Hour)
}

// DependencyTimeout parses DependencyTimeoutRaw. Returns 5s if unset or invalid.
func (c *Config) DependencyTimeout() time.Duration {
	return durationOr(c.DependencyTimeoutRaw, 5*time.Second)
}

// ResetTokenTTL parses ResetTokenTTLRaw. Returns 1h if unset or invalid.
func (c *Config) ResetTokenTTL() time.Duration {
	return durationOr(c.ResetTokenTTLRaw, time.Hour)
}

// PermissionCacheTTL parses PermissionCacheTTLRaw. Returns 30s if unset or invalid.
func (c *Config) PermissionCacheTTL() time.Duration {
	return durationOr(c.PermissionCacheTTLRaw, 30*time.Second)
}

// AuthRateWindow parses RateLimitAuthWindowRaw. Returns 15m if unset or invalid.
func (c *Config) AuthRateWindow() time.Duration {
	return durationOr(c.RateLimitAuthWindowRaw, 15*time.Minute)
}

// APIRateWindow parses RateLimitAPIWindowRaw. Returns 1m if unset or invalid.
func (c *Config) APIRateWindow() time.Duration {
	return durationOr(c.RateLimitAPIWindowRaw, time.Minute)
}

// ResetRateWindow parses RateLimitResetWindow. Returns 1h if unset or invalid.
func (c *Config) ResetRateWindow() time.Duration {
	return durationOr(c.RateLimitResetWindow, time.Hour)
}

func durationOr(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
