// internal/workers/wallpaper/deliver-wallpaper/config.go
package deliverwallpaper

import (
	"fmt"
	"time"

	"wallpaper-bot/internal/common/config"
)

type Config struct {
	// Timeout bounds one whole pipeline run. Zero leaves only the per-request timeouts.
	Timeout         time.Duration
	DefaultCategory string
	// AtomicConsume takes the quota slot in one store operation instead of check then record.
	AtomicConsume bool
	// Maintenance is the fallback when the stored maintenance setting cannot be read.
	Maintenance bool
	OwnerUserID int64
}

func DefaultConfig() *Config {
	return &Config{
		Timeout:         2 * time.Minute,
		DefaultCategory: "nature",
	}
}

func ConfigFromApp(cfg *config.Config) *Config {
	c := DefaultConfig()
	c.AtomicConsume = cfg.Entitlement.AtomicConsume
	c.Maintenance = cfg.Bot.Maintenance
	c.OwnerUserID = cfg.Bot.OwnerUserID
	return c
}

func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	if c.DefaultCategory == "" {
		return fmt.Errorf("default category is required")
	}
	return nil
}
