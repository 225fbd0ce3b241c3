package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr: want :8080, got %q", cfg.HTTPAddr)
	}
	if cfg.AccessTTL() != 15*time.Minute {
		t.Errorf("AccessTTL: want 15m, got %v", cfg.AccessTTL())
	}
	if cfg.RefreshTTL() != 720*time.Hour {
		t.Errorf("RefreshTTL: want 720h, got %v", cfg.RefreshTTL())
	}
	if cfg.MaxConcurrentSessions != 5 {
		t.Errorf("MaxConcurrentSessions: want 5, got %d", cfg.MaxConcurrentSessions)
	}
	if cfg.RateLimitAuthMax != 5 {
		t.Errorf("RateLimitAuthMax: want 5, got %d", cfg.RateLimitAuthMax)
	}
	if cfg.AuthRateWindow() != 15*time.Minute {
		t.Errorf("AuthRateWindow: want 15m, got %v", cfg.AuthRateWindow())
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost: want 12, got %d", cfg.BcryptCost)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("JWT_ACCESS_TTL", "5m")
	t.Setenv("MAX_CONCURRENT_SESSIONS", "2")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AccessTTL() != 5*time.Minute {
		t.Errorf("AccessTTL override: want 5m, got %v", cfg.AccessTTL())
	}
	if cfg.MaxConcurrentSessions != 2 {
		t.Errorf("MaxConcurrentSessions override: want 2, got %d", cfg.MaxConcurrentSessions)
	}
}

func TestInvalidBcryptCost(t *testing.T) {
	t.Setenv("BCRYPT_COST", "50")
	if _, err := Load(); err == nil {
		t.Fatal("BCRYPT_COST=50 should fail validation")
	}
}

func TestDurationFallback(t *testing.T) {
	c := &Config{JWTAccessTTL: "garbage"}
	if c.AccessTTL() != 15*time.Minute {
		t.Errorf("invalid duration should fall back to 15m, got %v", c.AccessTTL())
	}
	c2 := &Config{SessionIdleTimeoutRaw: "-1h"}
	if c2.SessionIdleTimeout() != 168*time.Hour {
		t.Errorf("non-positive duration should fall back to 168h, got %v", c2.SessionIdleTimeout())
	}
}
