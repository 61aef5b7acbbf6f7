package config

import (
	"fmt"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// overlayFile is the optional YAML overlay shape, mirroring the teacher's
// TarsyYAMLConfig: a single file that lets an operator override defaults
// without a redeploy.
type overlayFile struct {
	RateLimits   *RateLimitConfig    `yaml:"rate_limits"`
	CacheTTLs    *CacheTTLConfig     `yaml:"cache_ttls"`
	Retention    *RetentionConfig    `yaml:"retention"`
	DatabasePool *DatabasePoolConfig `yaml:"database_pool"`
}

// loadOverlay reads configDir/limits.yaml if present. A missing file is
// not an error — the overlay is optional, defaults stand on their own.
func loadOverlay(configDir string) (*overlayFile, error) {
	path := filepath.Join(configDir, "limits.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	expanded := ExpandEnv(data)

	var overlay overlayFile
	if err := yaml.Unmarshal(expanded, &overlay); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	return &overlay, nil
}

// mergeOverlay merges a YAML overlay over the built-in defaults using the
// same mergo-with-override semantics the teacher's pkg/config/merge.go
// applies when combining built-in and user-defined configuration.
func mergeOverlay(cfg *Config, overlay *overlayFile) error {
	if overlay.RateLimits != nil {
		if err := mergo.Merge(&cfg.RateLimits, *overlay.RateLimits, mergo.WithOverride); err != nil {
			return err
		}
	}
	if overlay.CacheTTLs != nil {
		if err := mergo.Merge(&cfg.CacheTTLs, *overlay.CacheTTLs, mergo.WithOverride); err != nil {
			return err
		}
	}
	if overlay.Retention != nil {
		if err := mergo.Merge(&cfg.Retention, *overlay.Retention, mergo.WithOverride); err != nil {
			return err
		}
	}
	if overlay.DatabasePool != nil {
		if err := mergo.Merge(&cfg.DatabasePool, *overlay.DatabasePool, mergo.WithOverride); err != nil {
			return err
		}
	}
	return nil
}
