// Package store persists users, audit events, bot settings and schedules.
package store

import (
	"context"
	"errors"
	"time"

	"wallpaper-bot/internal/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// SettingMaintenance is the bot-wide maintenance switch.
const SettingMaintenance = "maintenance"

// UserStore owns the entitlement records.
type UserStore interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	GetOrCreateUser(ctx context.Context, userID int64, username, firstName string, now time.Time) (*models.User, error)
	UpdateUser(ctx context.Context, userID int64, upd models.UserUpdate) error
	// IncrementFetchCount bumps the daily and lifetime counters and stamps the fetch time.
	IncrementFetchCount(ctx context.Context, userID int64, at time.Time) error
	// ConsumeFetch atomically resets the daily counter on a new UTC day and increments it
	// only while it is below limit. It returns whether a fetch was consumed and the
	// resulting daily count.
	ConsumeFetch(ctx context.Context, userID int64, at time.Time, limit int) (bool, int, error)
	SetUserTier(ctx context.Context, userID int64, tier models.Tier, expiration *time.Time) error
	BanUser(ctx context.Context, userID int64) error
	UnbanUser(ctx context.Context, userID int64) error
	ListExpiredPremium(ctx context.Context, now time.Time) ([]*models.User, error)
	CountUsers(ctx context.Context) (int, error)
}

// EventLog is the audit sink.
type EventLog interface {
	LogEvent(ctx context.Context, level models.EventLevel, message string, userID *int64) error
	RecentEvents(ctx context.Context, limit int) ([]models.Event, error)
	CleanupOldLogs(ctx context.Context, before time.Time) (int, error)
}

// SettingsStore holds boolean bot settings. Absent keys read as false.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (bool, error)
	SetSetting(ctx context.Context, key string, value bool) error
}

type ScheduleStore interface {
	SaveSchedule(ctx context.Context, schedule models.Schedule) error
	DeleteSchedule(ctx context.Context, chatID int64, category string) error
	ListSchedules(ctx context.Context) ([]models.Schedule, error)
	UpdateScheduleLastPost(ctx context.Context, chatID int64, category string, at time.Time) error
}

// Store is the full persistence surface used by the bot.
type Store interface {
	UserStore
	EventLog
	SettingsStore
	ScheduleStore
	Ping(ctx context.Context) error
	Close() error
}

func cloneUser(u *models.User) *models.User {
	c := *u
	if u.LastFetchDate != nil {
		t := *u.LastFetchDate
		c.LastFetchDate = &t
	}
	if u.Expiration != nil {
		t := *u.Expiration
		c.Expiration = &t
	}
	return &c
}

// consume applies the daily quota rule to u in place.
func consume(u *models.User, at time.Time, limit int) (bool, int) {
	count := u.FetchCount
	if !u.FetchedOn(at) {
		count = 0
	}
	if count >= limit {
		return false, count
	}
	count++
	t := at.UTC()
	u.FetchCount = count
	u.TotalFetches++
	u.LastFetchDate = &t
	return true, count
}

func increment(u *models.User, at time.Time) {
	t := at.UTC()
	u.FetchCount++
	u.TotalFetches++
	u.LastFetchDate = &t
}
