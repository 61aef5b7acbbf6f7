// Package config loads and validates environment/YAML configuration for
// the chat core, following the teacher's layered approach: built-in
// defaults, an optional YAML overlay merged on top (dario.cat/mergo), then
// environment variables applied last and validated before the server
// starts (spec §6.4: "Missing required keys fail fast at startup with a
// precise error identifying the missing variable").
package config

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config is the fully-resolved, validated configuration ready for use by
// every component.
type Config struct {
	LLMAPIKey           string
	LLMModelIntent      string
	LLMModelGeneration  string
	CacheURL            string
	CachePassword       string
	VectorStorePath     string
	DatabaseURL         string
	RetentionCron       string

	RateLimits   RateLimitConfig
	CacheTTLs    CacheTTLConfig
	Retention    RetentionConfig
	DatabasePool DatabasePoolConfig
}

// Stats summarizes configuration for the startup log line, mirroring the
// teacher's config.Stats() shape.
type Stats struct {
	RateLimitDimensions int
	CacheLayers         int
	RetentionDays       int
}

func (c *Config) Stats() Stats {
	return Stats{
		RateLimitDimensions: 6,
		CacheLayers:         4,
		RetentionDays:       c.Retention.StoredMessageRetentionDays,
	}
}

// Initialize is the primary entry point: load .env from configDir (if
// present — a missing .env is only a warning, matching cmd/tarsy/main.go),
// start from built-in defaults, merge the YAML overlay over them, apply
// environment-variable overrides last, and validate. On failure the
// returned error is an errors.Join that wraps a *MissingKeysError
// (reachable with errors.As) naming every missing required key at once
// rather than failing on the first one, as the teacher's validator.go
// does.
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	envPath := configDir + "/.env"
	if err := godotenv.Load(envPath); err != nil {
		// Matches cmd/tarsy/main.go: a missing .env is not fatal, required
		// keys are still enforced below via the real environment.
		_ = err
	}

	overlay, err := loadOverlay(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration overlay: %w", err)
	}

	cfg := &Config{
		LLMAPIKey:          os.Getenv("LLM_API_KEY"),
		LLMModelIntent:     getEnvDefault("LLM_MODEL_INTENT", "claude-3-5-haiku-20241022"),
		LLMModelGeneration: getEnvDefault("LLM_MODEL_GENERATION", "claude-sonnet-4-5-20250929"),
		CacheURL:           os.Getenv("CACHE_URL"),
		CachePassword:      os.Getenv("CACHE_PASSWORD"),
		VectorStorePath:    os.Getenv("VECTOR_STORE_PATH"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RetentionCron:      getEnvDefault("RETENTION_CRON", "@hourly"),
		RateLimits:         DefaultRateLimitConfig(),
		CacheTTLs:          DefaultCacheTTLConfig(),
		Retention:          DefaultRetentionConfig(),
		DatabasePool:       DefaultDatabasePoolConfig(),
	}

	if overlay != nil {
		if err := mergeOverlay(cfg, overlay); err != nil {
			return nil, fmt.Errorf("failed to merge configuration overlay: %w", err)
		}
	}

	applyRateLimitEnvOverrides(&cfg.RateLimits)
	applyCacheTTLEnvOverrides(&cfg.CacheTTLs)
	applyDatabasePoolEnvOverrides(&cfg.DatabasePool)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
