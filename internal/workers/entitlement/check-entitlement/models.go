// internal/workers/entitlement/check-entitlement/models.go
package checkentitlement

import (
	"context"
	"time"

	"wallpaper-bot/internal/common/logger"
	"wallpaper-bot/internal/models"
)

// Unlimited is the Remaining value for users without a quota.
const Unlimited = -1

// Allowance is the answer to "may this user fetch now".
type Allowance struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
}

func (a Allowance) IsUnlimited() bool {
	return a.Remaining == Unlimited
}

// UserStats is the per-user summary shown by the stats command.
type UserStats struct {
	UserID         int64       `json:"userId"`
	Username       string      `json:"username"`
	FirstName      string      `json:"firstName"`
	Tier           models.Tier `json:"tier"`
	TotalFetches   int         `json:"totalFetches"`
	TodayFetches   int         `json:"todayFetches"`
	Remaining      int         `json:"remaining"`
	JoinDate       time.Time   `json:"joinDate"`
	LastFetch      *time.Time  `json:"lastFetch,omitempty"`
	Banned         bool        `json:"banned"`
	PremiumExpires *time.Time  `json:"premiumExpires,omitempty"`
}

// UserStore is the slice of the persistence layer the tracker uses.
type UserStore interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	UpdateUser(ctx context.Context, userID int64, upd models.UserUpdate) error
	IncrementFetchCount(ctx context.Context, userID int64, at time.Time) error
	ConsumeFetch(ctx context.Context, userID int64, at time.Time, limit int) (bool, int, error)
}

type TrackerDependencies struct {
	Store  UserStore
	Logger logger.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}
