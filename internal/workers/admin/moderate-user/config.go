// internal/workers/admin/moderate-user/config.go
package moderateuser

import (
	"fmt"

	"wallpaper-bot/internal/common/config"
)

type Config struct {
	OwnerUserID        int64
	DefaultPremiumDays int
	MinPremiumDays     int
	MaxPremiumDays     int
	DefaultLogLimit    int
	MaxLogLimit        int
}

func DefaultConfig() *Config {
	return &Config{
		DefaultPremiumDays: 30,
		MinPremiumDays:     1,
		MaxPremiumDays:     365,
		DefaultLogLimit:    20,
		MaxLogLimit:        100,
	}
}

func ConfigFromApp(cfg *config.Config) *Config {
	c := DefaultConfig()
	c.OwnerUserID = cfg.Bot.OwnerUserID
	return c
}

func (c *Config) Validate() error {
	if c.MinPremiumDays <= 0 || c.MaxPremiumDays < c.MinPremiumDays {
		return fmt.Errorf("premium day bounds must satisfy 0 < min <= max")
	}
	if c.DefaultPremiumDays < c.MinPremiumDays || c.DefaultPremiumDays > c.MaxPremiumDays {
		return fmt.Errorf("default premium days must lie within bounds")
	}
	if c.DefaultLogLimit <= 0 || c.MaxLogLimit < c.DefaultLogLimit {
		return fmt.Errorf("log limits must satisfy 0 < default <= max")
	}
	return nil
}
