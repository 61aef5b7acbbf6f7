package config

import "time"

// RateLimitConfig holds the default/override admission-control thresholds
// for each dimension in spec §4.2's table.
type RateLimitConfig struct {
	PerUserPerMinute int `yaml:"per_user_per_minute"`
	PerUserPerHour   int `yaml:"per_user_per_hour"`
	PerUserPerDay    int `yaml:"per_user_per_day"`

	BurstCapacity     int           `yaml:"burst_capacity"`
	BurstRefillPerMin int           `yaml:"burst_refill_per_minute"`

	GlobalPerMinute int `yaml:"global_per_minute"`
	PerIPPerMinute  int `yaml:"per_ip_per_minute"`
}

// DefaultRateLimitConfig returns spec §4.2's table defaults.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		PerUserPerMinute:  10,
		PerUserPerHour:    100,
		PerUserPerDay:     1000,
		BurstCapacity:     20,
		BurstRefillPerMin: 10,
		GlobalPerMinute:   1000,
		PerIPPerMinute:    20,
	}
}

// CacheTTLConfig holds the default/override TTL for each cache layer
// (spec §4.3's table).
type CacheTTLConfig struct {
	L1 time.Duration `yaml:"l1_ttl"`
	L2 time.Duration `yaml:"l2_ttl"`
	L3 time.Duration `yaml:"l3_ttl"`
	L4 time.Duration `yaml:"l4_ttl"`
}

// DefaultCacheTTLConfig returns spec §4.3's table defaults.
func DefaultCacheTTLConfig() CacheTTLConfig {
	return CacheTTLConfig{
		L1: 30 * time.Minute,
		L2: 1 * time.Hour,
		L3: 1 * time.Hour,
		L4: 24 * time.Hour,
	}
}

// RetentionConfig controls StoredMessage / Session retention (spec §3, §9).
type RetentionConfig struct {
	StoredMessageRetentionDays int           `yaml:"stored_message_retention_days"`
	InactivityWindow           time.Duration `yaml:"inactivity_window"`
}

// DefaultRetentionConfig returns spec §3's defaults (90 days, 30 min).
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		StoredMessageRetentionDays: 90,
		InactivityWindow:           30 * time.Minute,
	}
}

// DatabasePoolConfig holds pgxpool tuning, layered through the same
// defaults/overlay/env pipeline as RateLimitConfig/CacheTTLConfig rather
// than read independently by pkg/database.
type DatabasePoolConfig struct {
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// DefaultDatabasePoolConfig returns the teacher's production defaults (25
// max open, 10 max idle, 1h/15m lifetimes).
func DefaultDatabasePoolConfig() DatabasePoolConfig {
	return DatabasePoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 1 * time.Hour,
		ConnMaxIdleTime: 15 * time.Minute,
	}
}
