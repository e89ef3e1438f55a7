// Package config loads the gateway's environment-variable configuration
// into a single Config struct, following the teacher's own
// internal/shared/config pattern: plain fields, one LoadConfig
// constructor, defaults applied after the raw read.
package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"whatsapp-commerce-gateway/internal/core/cart"
	"whatsapp-commerce-gateway/internal/core/money"
	"whatsapp-commerce-gateway/internal/core/remote"
)

// Config is every environment-variable knob the gateway recognizes.
type Config struct {
	// RemoteClient (spec.md §6)
	RemoteBaseURL         string
	RemoteAPIKey          string
	RequestTimeout        time.Duration
	MaxRetries            int
	RetryDelay            time.Duration
	RateLimitMode         remote.Mode
	MaxConcurrentRequests int

	// ConversationStore
	ConvSyncEnabled bool

	// Dispatcher / session lifecycle
	SessionIdleTTL time.Duration

	// Tenant / pricing defaults (single-tenant deployments register one
	// tenant.Config from these; multi-tenant deployments use their own
	// tenant.Lookup and only read ExtrasPriceTable from here; SIZE_MULTIPLIERS
	// is applied to cart.SizeMultipliers by LoadConfig, not stored here)
	RestaurantLat    float64
	RestaurantLng    float64
	TaxRate          string
	ExtrasPriceTable map[string]money.Money

	// PhraseGenerator
	PhraseTimeout time.Duration
	OpenAIKey     string

	// HTTP server
	Port string
	Env  string
}

// LoadConfig reads .env (if present) and the process environment, applying
// spec.md §6's documented defaults for anything unset or unparsable.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("config: .env file not found, using system environment variables")
	}

	cfg := &Config{
		RemoteBaseURL:         os.Getenv("REMOTE_BASE_URL"),
		RemoteAPIKey:          os.Getenv("REMOTE_API_KEY"),
		RequestTimeout:        msEnv("REQUEST_TIMEOUT_MS", 10_000),
		MaxRetries:            intEnv("MAX_RETRIES", 3),
		RetryDelay:            msEnv("RETRY_DELAY_MS", 1_000),
		RateLimitMode:         remote.Mode(stringEnv("RATE_LIMIT_MODE", string(remote.ModeExponential))),
		MaxConcurrentRequests: intEnv("MAX_CONCURRENT_REQUESTS", 10),

		ConvSyncEnabled: boolEnv("CONV_SYNC_ENABLED", true),

		SessionIdleTTL: time.Duration(intEnv("SESSION_IDLE_TTL_S", 1800)) * time.Second,

		RestaurantLat: floatEnv("RESTAURANT_LAT", 0),
		RestaurantLng: floatEnv("RESTAURANT_LNG", 0),
		TaxRate:       stringEnv("TAX_RATE", "0"),

		PhraseTimeout: msEnv("PHRASE_TIMEOUT_MS", 500),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),

		Port: stringEnv("PORT", "8080"),
		Env:  stringEnv("ENV", "development"),
	}

	switch cfg.RateLimitMode {
	case remote.ModeExponential, remote.ModeFixed, remote.ModeAdaptive:
	default:
		log.Printf("config: unrecognized RATE_LIMIT_MODE %q, falling back to %q", cfg.RateLimitMode, remote.ModeExponential)
		cfg.RateLimitMode = remote.ModeExponential
	}

	if raw := os.Getenv("SIZE_MULTIPLIERS"); raw != "" {
		applySizeMultipliers(raw)
	}

	cfg.ExtrasPriceTable = parseExtrasPriceTable(os.Getenv("EXTRAS_PRICE_TABLE"))

	return cfg
}

// applySizeMultipliers overrides cart.SizeMultipliers in place from a JSON
// object like {"small":"0.8","medium":"1.0","large":"1.3","xlarge":"1.5"}.
// Unrecognized keys are ignored; a malformed value leaves the package
// default untouched for that size.
func applySizeMultipliers(raw string) {
	var overrides map[string]string
	if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
		log.Printf("config: ignoring malformed SIZE_MULTIPLIERS: %v", err)
		return
	}
	for size, factor := range overrides {
		if _, known := cart.SizeMultipliers[cart.Size(size)]; !known {
			log.Printf("config: ignoring unrecognized SIZE_MULTIPLIERS key %q", size)
			continue
		}
		if _, err := money.New(factor); err != nil {
			log.Printf("config: ignoring malformed SIZE_MULTIPLIERS value for %q: %v", size, err)
			continue
		}
		cart.SizeMultipliers[cart.Size(size)] = factor
	}
}

// parseExtrasPriceTable decodes a JSON object like {"extra_cheese":"2.50"}
// into a money.Money table; a malformed or empty value yields an empty
// (not nil) table so callers never need a nil check.
func parseExtrasPriceTable(raw string) map[string]money.Money {
	table := make(map[string]money.Money)
	if raw == "" {
		return table
	}
	var fields map[string]string
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		log.Printf("config: ignoring malformed EXTRAS_PRICE_TABLE: %v", err)
		return table
	}
	for id, amount := range fields {
		price, err := money.New(amount)
		if err != nil {
			log.Printf("config: skipping EXTRAS_PRICE_TABLE entry %q: %v", id, err)
			continue
		}
		table[id] = price
	}
	return table
}

func stringEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: ignoring malformed %s=%q, using default %d", key, v, def)
		return def
	}
	return n
}

func floatEnv(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("config: ignoring malformed %s=%q, using default %v", key, v, def)
		return def
	}
	return f
}

func boolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("config: ignoring malformed %s=%q, using default %v", key, v, def)
		return def
	}
	return b
}

func msEnv(key string, defMS int) time.Duration {
	return time.Duration(intEnv(key, defMS)) * time.Millisecond
}
