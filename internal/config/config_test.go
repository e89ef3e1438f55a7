package config

import (
	"testing"
	"time"

	"whatsapp-commerce-gateway/internal/core/remote"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_DefaultsApplyWhenUnset(t *testing.T) {
	clearEnv(t, "REQUEST_TIMEOUT_MS", "MAX_RETRIES", "RETRY_DELAY_MS", "RATE_LIMIT_MODE",
		"MAX_CONCURRENT_REQUESTS", "CONV_SYNC_ENABLED", "SESSION_IDLE_TTL_S", "PHRASE_TIMEOUT_MS",
		"PORT", "ENV", "SIZE_MULTIPLIERS", "EXTRAS_PRICE_TABLE")

	cfg := LoadConfig()

	if cfg.RequestTimeout != 10_000*time.Millisecond {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d", cfg.MaxRetries)
	}
	if cfg.RetryDelay != 1_000*time.Millisecond {
		t.Errorf("RetryDelay = %v", cfg.RetryDelay)
	}
	if cfg.RateLimitMode != remote.ModeExponential {
		t.Errorf("RateLimitMode = %v", cfg.RateLimitMode)
	}
	if cfg.MaxConcurrentRequests != 10 {
		t.Errorf("MaxConcurrentRequests = %d", cfg.MaxConcurrentRequests)
	}
	if !cfg.ConvSyncEnabled {
		t.Errorf("ConvSyncEnabled should default true")
	}
	if cfg.SessionIdleTTL != 1800*time.Second {
		t.Errorf("SessionIdleTTL = %v", cfg.SessionIdleTTL)
	}
	if cfg.PhraseTimeout != 500*time.Millisecond {
		t.Errorf("PhraseTimeout = %v", cfg.PhraseTimeout)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if len(cfg.ExtrasPriceTable) != 0 {
		t.Errorf("ExtrasPriceTable should be empty, got %v", cfg.ExtrasPriceTable)
	}
}

func TestLoadConfig_OverridesFromEnv(t *testing.T) {
	t.Setenv("RATE_LIMIT_MODE", "fixed")
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("CONV_SYNC_ENABLED", "false")
	t.Setenv("EXTRAS_PRICE_TABLE", `{"extra_cheese":"2.50","extra_egg":"1.00"}`)

	cfg := LoadConfig()

	if cfg.RateLimitMode != remote.ModeFixed {
		t.Errorf("RateLimitMode = %v", cfg.RateLimitMode)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d", cfg.MaxRetries)
	}
	if cfg.ConvSyncEnabled {
		t.Errorf("ConvSyncEnabled should be false")
	}
	if len(cfg.ExtrasPriceTable) != 2 {
		t.Fatalf("ExtrasPriceTable = %v", cfg.ExtrasPriceTable)
	}
	cheese, ok := cfg.ExtrasPriceTable["extra_cheese"]
	if !ok || cheese.String() != "2.50" {
		t.Errorf("extra_cheese = %v (ok=%v)", cheese, ok)
	}
}

func TestLoadConfig_MalformedRateLimitModeFallsBackToExponential(t *testing.T) {
	t.Setenv("RATE_LIMIT_MODE", "banana")
	cfg := LoadConfig()
	if cfg.RateLimitMode != remote.ModeExponential {
		t.Errorf("expected fallback to exp, got %v", cfg.RateLimitMode)
	}
}
