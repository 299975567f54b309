package store

import (
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"

	"wallpaper-bot/internal/common/config"
)

// Dependencies carries the connection handles some drivers need.
type Dependencies struct {
	Redis    *redis.Client
	Postgres *sql.DB
}

// New selects a backend by cfg.Driver.
func New(cfg config.DatabaseConfig, deps Dependencies) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = config.DriverMemory
	}

	switch driver {
	case config.DriverMemory:
		return NewMemory(), nil
	case config.DriverRedis:
		if deps.Redis == nil {
			return nil, fmt.Errorf("redis driver requires a client")
		}
		return NewRedis(deps.Redis, cfg.Redis.KeyPrefix), nil
	case config.DriverPostgres:
		if deps.Postgres == nil {
			return nil, fmt.Errorf("postgres driver requires a database handle")
		}
		return NewPostgres(deps.Postgres), nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}
}
