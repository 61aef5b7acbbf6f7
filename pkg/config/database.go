package config

import (
	"errors"

	"github.com/canadianpizza/orderbot-core/pkg/database"
)

// Database resolves the pgxpool configuration pkg/database.NewClient
// needs, folding DATABASE_URL together with this package's
// defaults+overlay+env-resolved DatabasePool tuning rather than letting
// pkg/database read its own environment variables independently.
func (c *Config) Database() (database.Config, error) {
	dbCfg := database.Config{
		DSN:             c.DatabaseURL,
		MaxOpenConns:    c.DatabasePool.MaxOpenConns,
		MaxIdleConns:    c.DatabasePool.MaxIdleConns,
		ConnMaxLifetime: c.DatabasePool.ConnMaxLifetime,
		ConnMaxIdleTime: c.DatabasePool.ConnMaxIdleTime,
	}
	if err := dbCfg.Validate(); err != nil {
		return database.Config{}, errors.Join(errors.New("database configuration"), err)
	}
	return dbCfg, nil
}
