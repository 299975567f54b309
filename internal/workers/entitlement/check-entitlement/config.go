// internal/workers/entitlement/check-entitlement/config.go
package checkentitlement

import (
	"fmt"

	"wallpaper-bot/internal/common/config"
)

type Config struct {
	FreeDailyLimit int
	// EnforceExpirationInline treats a lapsed premium user as free before the sweep demotes them.
	EnforceExpirationInline bool
	OwnerUserID             int64
	OwnerHasPremium         bool
}

func DefaultConfig() *Config {
	return &Config{FreeDailyLimit: 5}
}

// ConfigFromApp maps the application config onto the tracker.
func ConfigFromApp(cfg *config.Config) *Config {
	return &Config{
		FreeDailyLimit:          cfg.Entitlement.FreeDailyLimit,
		EnforceExpirationInline: cfg.Entitlement.EnforceExpirationInline,
		OwnerUserID:             cfg.Bot.OwnerUserID,
		OwnerHasPremium:         cfg.Bot.OwnerHasPremium,
	}
}

func (c *Config) Validate() error {
	if c.FreeDailyLimit <= 0 {
		return fmt.Errorf("free_daily_limit must be positive")
	}
	return nil
}
