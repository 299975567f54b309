// internal/workers/admin/moderate-user/service.go
package moderateuser

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "wallpaper-bot/internal/common/errors"
	"wallpaper-bot/internal/common/logger"
	"wallpaper-bot/internal/models"
	"wallpaper-bot/internal/store"
)

const (
	TaskType = "moderate-user"
)

// Service runs owner-only moderation actions. Each successful action is written to
// the event log at ADMIN level.
type Service struct {
	config *Config
	store  Store
	logger logger.Logger
	now    func() time.Time
}

func NewService(deps ServiceDependencies, cfg *Config) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewInvalidConfigurationError(err.Error())
	}
	if deps.Store == nil {
		return nil, apperrors.NewInvalidConfigurationError("moderation requires a store")
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		config: cfg,
		store:  deps.Store,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:    now,
	}, nil
}

// IsOwner reports whether userID is the configured owner. No owner configured
// means nobody is.
func (s *Service) IsOwner(userID int64) bool {
	return s.config.OwnerUserID != 0 && userID == s.config.OwnerUserID
}

func (s *Service) Ban(ctx context.Context, actorID, targetID int64) error {
	if err := s.authorize(actorID, "ban"); err != nil {
		return err
	}
	if err := s.store.BanUser(ctx, targetID); err != nil {
		return s.storeErr("ban_user", targetID, err)
	}
	s.audit(ctx, actorID, fmt.Sprintf("Admin %d banned user %d", actorID, targetID))
	return nil
}

func (s *Service) Unban(ctx context.Context, actorID, targetID int64) error {
	if err := s.authorize(actorID, "unban"); err != nil {
		return err
	}
	if err := s.store.UnbanUser(ctx, targetID); err != nil {
		return s.storeErr("unban_user", targetID, err)
	}
	s.audit(ctx, actorID, fmt.Sprintf("Admin %d unbanned user %d", actorID, targetID))
	return nil
}

// GrantPremium makes targetID premium for days, clamped to the configured bounds.
// A non-positive days uses the default.
func (s *Service) GrantPremium(ctx context.Context, actorID, targetID int64, days int) (*PremiumGrant, error) {
	if err := s.authorize(actorID, "grant_premium"); err != nil {
		return nil, err
	}
	days = s.clampDays(days)
	expiration := s.now().UTC().Add(time.Duration(days) * 24 * time.Hour)

	if err := s.store.SetUserTier(ctx, targetID, models.TierPremium, &expiration); err != nil {
		return nil, s.storeErr("set_user_tier", targetID, err)
	}
	s.audit(ctx, actorID, fmt.Sprintf("Admin %d granted premium to user %d for %d days", actorID, targetID, days))
	return &PremiumGrant{UserID: targetID, Days: days, Expiration: expiration}, nil
}

func (s *Service) RevokePremium(ctx context.Context, actorID, targetID int64) error {
	if err := s.authorize(actorID, "revoke_premium"); err != nil {
		return err
	}
	if err := s.store.SetUserTier(ctx, targetID, models.TierFree, nil); err != nil {
		return s.storeErr("set_user_tier", targetID, err)
	}
	s.audit(ctx, actorID, fmt.Sprintf("Admin %d removed premium from user %d", actorID, targetID))
	return nil
}

func (s *Service) SetMaintenance(ctx context.Context, actorID int64, on bool) error {
	if err := s.authorize(actorID, "maintenance"); err != nil {
		return err
	}
	if err := s.store.SetSetting(ctx, store.SettingMaintenance, on); err != nil {
		return apperrors.NewStoreUnavailableError("set_setting", err)
	}
	state := "disabled"
	if on {
		state = "enabled"
	}
	s.audit(ctx, actorID, fmt.Sprintf("Admin %d %s maintenance mode", actorID, state))
	return nil
}

// RecentLogs returns the newest events first. limit is clamped to the configured maximum.
func (s *Service) RecentLogs(ctx context.Context, actorID int64, limit int) ([]models.Event, error) {
	if err := s.authorize(actorID, "logs"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.config.DefaultLogLimit
	}
	if limit > s.config.MaxLogLimit {
		limit = s.config.MaxLogLimit
	}
	events, err := s.store.RecentEvents(ctx, limit)
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError("recent_events", err)
	}
	return events, nil
}

// TotalUsers reports how many users the store knows about.
func (s *Service) TotalUsers(ctx context.Context, actorID int64) (int, error) {
	if err := s.authorize(actorID, "stats"); err != nil {
		return 0, err
	}
	n, err := s.store.CountUsers(ctx)
	if err != nil {
		return 0, apperrors.NewStoreUnavailableError("count_users", err)
	}
	return n, nil
}

func (s *Service) clampDays(days int) int {
	if days <= 0 {
		return s.config.DefaultPremiumDays
	}
	if days < s.config.MinPremiumDays {
		return s.config.MinPremiumDays
	}
	if days > s.config.MaxPremiumDays {
		return s.config.MaxPremiumDays
	}
	return days
}

func (s *Service) authorize(actorID int64, action string) error {
	if s.IsOwner(actorID) {
		return nil
	}
	s.logger.Warn("admin action refused", map[string]interface{}{
		"userId": actorID,
		"action": action,
	})
	return apperrors.NewPermissionDeniedError(actorID, action)
}

func (s *Service) storeErr(op string, targetID int64, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NewUserNotFoundError(targetID)
	}
	return apperrors.NewStoreUnavailableError(op, err)
}

func (s *Service) audit(ctx context.Context, actorID int64, msg string) {
	s.logger.Info(msg, map[string]interface{}{"userId": actorID})
	if err := s.store.LogEvent(ctx, models.LevelAdmin, msg, &actorID); err != nil {
		s.logger.Warn("event log write failed", map[string]interface{}{"error": err.Error()})
	}
}
