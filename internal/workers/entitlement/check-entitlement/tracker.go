// internal/workers/entitlement/check-entitlement/tracker.go
package checkentitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "wallpaper-bot/internal/common/errors"
	"wallpaper-bot/internal/common/logger"
	"wallpaper-bot/internal/common/metrics"
	"wallpaper-bot/internal/models"
	"wallpaper-bot/internal/store"
)

const (
	TaskType = "check-entitlement"
)

// Tracker gates fetches on tier, ban state and the free daily quota. It reads the
// user record fresh on every call.
type Tracker struct {
	config *Config
	store  UserStore
	logger logger.Logger
	now    func() time.Time
}

func NewTracker(deps TrackerDependencies, cfg *Config) (*Tracker, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewInvalidConfigurationError(err.Error())
	}
	if deps.Store == nil {
		return nil, apperrors.NewInvalidConfigurationError("tracker requires a user store")
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		config: cfg,
		store:  deps.Store,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:    now,
	}, nil
}

// Limit is the configured free daily quota.
func (t *Tracker) Limit() int {
	return t.config.FreeDailyLimit
}

// CanFetch decides whether userID may fetch now. Unknown users and store failures
// get a fresh free allowance. A free user whose last fetch was on an earlier UTC
// day has the stored count reset to zero.
func (t *Tracker) CanFetch(ctx context.Context, userID int64) Allowance {
	fields := map[string]interface{}{"userId": userID}

	u, err := t.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			t.logger.Debug("no user record, granting fresh allowance", fields)
		} else {
			fields["error"] = err.Error()
			t.logger.Warn("user lookup failed, granting fresh allowance", fields)
		}
		return t.decide("unknown", Allowance{Allowed: true, Remaining: t.config.FreeDailyLimit})
	}

	if a, decided := t.tierDecision(u); decided {
		return a
	}

	now := t.now()
	count := u.FetchCount
	if !u.FetchedOn(now) {
		count = 0
		if u.FetchCount != 0 {
			if err := t.store.UpdateUser(ctx, userID, models.UserUpdate{FetchCount: models.IntPtr(0)}); err != nil {
				fields["error"] = err.Error()
				t.logger.Warn("daily reset write failed", fields)
			}
		}
	}

	a := t.freeAllowance(count)
	if !a.Allowed {
		fields["limit"] = t.config.FreeDailyLimit
		t.logger.Info("daily limit reached", fields)
	}
	return t.decide(string(models.TierFree), a)
}

// RecordFetch counts one fetch against userID. It does not re-check the allowance.
func (t *Tracker) RecordFetch(ctx context.Context, userID int64) error {
	if err := t.store.IncrementFetchCount(ctx, userID, t.now()); err != nil {
		t.logger.Warn("record fetch failed", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NewUserNotFoundError(userID)
		}
		return apperrors.NewStoreUnavailableError("increment_fetch_count", err)
	}
	return nil
}

// TryConsume is the atomic alternative to CanFetch followed by RecordFetch. For
// free users the quota slot is taken in the same store operation as the check.
// On store failure it allows the fetch and returns the error for logging.
func (t *Tracker) TryConsume(ctx context.Context, userID int64) (Allowance, error) {
	u, err := t.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Allowance{}, apperrors.NewUserNotFoundError(userID)
		}
		return t.decide("unknown", Allowance{Allowed: true, Remaining: t.config.FreeDailyLimit}),
			apperrors.NewStoreUnavailableError("get_user", err)
	}

	if a, decided := t.tierDecision(u); decided {
		if a.Allowed {
			// Unlimited users are still counted.
			if err := t.RecordFetch(ctx, userID); err != nil {
				return a, err
			}
		}
		return a, nil
	}

	ok, count, err := t.store.ConsumeFetch(ctx, userID, t.now(), t.config.FreeDailyLimit)
	if err != nil {
		t.logger.Warn("atomic consume failed, allowing fetch", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
		return t.decide("unknown", Allowance{Allowed: true, Remaining: t.config.FreeDailyLimit}),
			apperrors.NewStoreUnavailableError("consume_fetch", err)
	}

	if !ok {
		return t.decide(string(models.TierFree), Allowance{Allowed: false, Remaining: 0}), nil
	}
	remaining := t.config.FreeDailyLimit - count
	if remaining < 0 {
		remaining = 0
	}
	// The slot is already taken, so Allowed holds even at zero remaining.
	return t.decide(string(models.TierFree), Allowance{Allowed: true, Remaining: remaining}), nil
}

// Statistics summarises userID's usage. Today's count is zero when the last fetch
// was on an earlier UTC day.
func (t *Tracker) Statistics(ctx context.Context, userID int64) (*UserStats, error) {
	u, err := t.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewUserNotFoundError(userID)
		}
		return nil, apperrors.NewStoreUnavailableError("get_user", err)
	}

	today := 0
	if u.FetchedOn(t.now()) {
		today = u.FetchCount
	}

	remaining := Unlimited
	if !t.unlimited(u) {
		remaining = t.freeAllowance(today).Remaining
	}

	return &UserStats{
		UserID:         u.UserID,
		Username:       u.Username,
		FirstName:      u.FirstName,
		Tier:           u.Tier,
		TotalFetches:   u.TotalFetches,
		TodayFetches:   today,
		Remaining:      remaining,
		JoinDate:       u.JoinDate,
		LastFetch:      u.LastFetchDate,
		Banned:         u.Banned,
		PremiumExpires: u.Expiration,
	}, nil
}

// tierDecision settles banned and unlimited users. decided is false for users on the quota.
func (t *Tracker) tierDecision(u *models.User) (Allowance, bool) {
	if u.Banned {
		t.logger.Info("fetch denied for banned user", map[string]interface{}{"userId": u.UserID})
		return t.decide("banned", Allowance{Allowed: false, Remaining: 0}), true
	}
	if t.unlimited(u) {
		return t.decide(string(models.TierPremium), Allowance{Allowed: true, Remaining: Unlimited}), true
	}
	return Allowance{}, false
}

func (t *Tracker) unlimited(u *models.User) bool {
	if t.config.OwnerHasPremium && t.config.OwnerUserID != 0 && u.UserID == t.config.OwnerUserID {
		return true
	}
	if !u.IsPremium() {
		return false
	}
	if t.config.EnforceExpirationInline && u.PremiumExpired(t.now()) {
		t.logger.Info("premium expired, applying free quota", map[string]interface{}{
			"userId":     u.UserID,
			"expiration": u.Expiration,
		})
		return false
	}
	return true
}

func (t *Tracker) freeAllowance(count int) Allowance {
	remaining := t.config.FreeDailyLimit - count
	if remaining < 0 {
		remaining = 0
	}
	return Allowance{Allowed: remaining > 0, Remaining: remaining}
}

func (t *Tracker) decide(tier string, a Allowance) Allowance {
	result := "allowed"
	if !a.Allowed {
		result = "denied"
	}
	metrics.EntitlementDecisions.WithLabelValues(tier, result).Inc()
	return a
}

func (a Allowance) String() string {
	if a.IsUnlimited() {
		return fmt.Sprintf("allowed=%t remaining=unlimited", a.Allowed)
	}
	return fmt.Sprintf("allowed=%t remaining=%d", a.Allowed, a.Remaining)
}
