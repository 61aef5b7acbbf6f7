package database

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the pgxpool connection string and pool tuning. Unlike the
// teacher's pkg/database.Config, it carries no discrete host/port/user
// fields of its own: DSN is resolved by pkg/config from DATABASE_URL
// (spec §6.4), and the pool-tuning fields come from that same
// defaults+overlay+env pipeline (pkg/config.DatabasePoolConfig) rather
// than being read independently here. See pkg/config/database.go.
type Config struct {
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Validate checks the configuration is internally consistent, collecting
// every violation rather than failing on the first one (matching
// pkg/config/validator.go's errors.Join pattern, per SPEC_FULL §10.3).
func (c Config) Validate() error {
	var errs []error
	if c.DSN == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
	}
	if c.MaxOpenConns < 1 {
		errs = append(errs, fmt.Errorf("DB_MAX_OPEN_CONNS must be at least 1"))
	}
	if c.MaxIdleConns < 0 {
		errs = append(errs, fmt.Errorf("DB_MAX_IDLE_CONNS cannot be negative"))
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		errs = append(errs, fmt.Errorf("DB_MAX_IDLE_CONNS (%d) cannot exceed DB_MAX_OPEN_CONNS (%d)", c.MaxIdleConns, c.MaxOpenConns))
	}
	return errors.Join(errs...)
}
