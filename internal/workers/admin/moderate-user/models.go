// internal/workers/admin/moderate-user/models.go
package moderateuser

import (
	"context"
	"time"

	"wallpaper-bot/internal/common/logger"
	"wallpaper-bot/internal/models"
)

type Store interface {
	SetUserTier(ctx context.Context, userID int64, tier models.Tier, expiration *time.Time) error
	BanUser(ctx context.Context, userID int64) error
	UnbanUser(ctx context.Context, userID int64) error
	SetSetting(ctx context.Context, key string, value bool) error
	LogEvent(ctx context.Context, level models.EventLevel, message string, userID *int64) error
	RecentEvents(ctx context.Context, limit int) ([]models.Event, error)
	CountUsers(ctx context.Context) (int, error)
}

type ServiceDependencies struct {
	Store  Store
	Logger logger.Logger
	Now    func() time.Time
}

// PremiumGrant is the result of GrantPremium.
type PremiumGrant struct {
	UserID     int64     `json:"userId"`
	Days       int       `json:"days"`
	Expiration time.Time `json:"expiration"`
}
