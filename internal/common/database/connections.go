package database

import (
	"context"
	"errors"
	"fmt"

	"wallpaper-bot/internal/common/config"
)

// Connections holds whichever handles the configured driver needs. Unused ones stay nil.
type Connections struct {
	Redis    *RedisClient
	Postgres *PostgresClient
}

// Open creates the handles for cfg.Driver without dialing.
func Open(cfg config.DatabaseConfig) (*Connections, error) {
	conns := &Connections{}

	switch cfg.Driver {
	case "", config.DriverMemory:
	case config.DriverRedis:
		rc, err := NewRedis(cfg.Redis)
		if err != nil {
			return nil, err
		}
		conns.Redis = rc
	case config.DriverPostgres:
		pc, err := NewPostgres(cfg.Postgres)
		if err != nil {
			return nil, err
		}
		conns.Postgres = pc
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	return conns, nil
}

// Ping checks every open handle.
func (c *Connections) Ping(ctx context.Context) error {
	if c.Redis != nil {
		if err := c.Redis.Ping(ctx); err != nil {
			return err
		}
	}
	if c.Postgres != nil {
		if err := c.Postgres.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every open handle and joins the errors.
func (c *Connections) Close() error {
	var errs []error
	if c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	if c.Postgres != nil {
		errs = append(errs, c.Postgres.Close())
	}
	return errors.Join(errs...)
}
