// internal/workers/scheduling/post-scheduled/config.go
package postscheduled

import (
	"fmt"
	"time"

	"wallpaper-bot/internal/common/config"
)

type Config struct {
	CleanupInterval  time.Duration
	LogRetentionDays int
	// PostTimeout bounds one scheduled post from fetch to reaction.
	PostTimeout time.Duration
	// Maintenance is used when the stored maintenance setting cannot be read.
	Maintenance bool
}

func DefaultConfig() *Config {
	return &Config{
		CleanupInterval:  time.Hour,
		LogRetentionDays: 30,
		PostTimeout:      2 * time.Minute,
	}
}

func ConfigFromApp(cfg *config.Config) *Config {
	c := DefaultConfig()
	if cfg.Scheduler.CleanupInterval > 0 {
		c.CleanupInterval = cfg.Scheduler.CleanupInterval
	}
	c.LogRetentionDays = cfg.Scheduler.LogRetentionDays
	c.Maintenance = cfg.Bot.Maintenance
	return c
}

func (c *Config) Validate() error {
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("cleanup_interval must be positive")
	}
	if c.LogRetentionDays < 0 {
		return fmt.Errorf("log_retention_days cannot be negative")
	}
	if c.PostTimeout <= 0 {
		return fmt.Errorf("post_timeout must be positive")
	}
	return nil
}
