package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"wallpaper-bot/internal/models"
)

type scheduleKey struct {
	chatID   int64
	category string
}

type memoryStore struct {
	mu        sync.RWMutex
	users     map[int64]*models.User
	events    []models.Event
	settings  map[string]bool
	schedules map[scheduleKey]models.Schedule
}

// NewMemory builds a process-local store.
func NewMemory() Store {
	return &memoryStore{
		users:     make(map[int64]*models.User),
		settings:  make(map[string]bool),
		schedules: make(map[scheduleKey]models.Schedule),
	}
}

func (s *memoryStore) GetUser(_ context.Context, userID int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *memoryStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.UserID]; ok {
		return ErrAlreadyExists
	}
	s.users[user.UserID] = cloneUser(user)
	return nil
}

func (s *memoryStore) GetOrCreateUser(_ context.Context, userID int64, username, firstName string, now time.Time) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		return cloneUser(u), nil
	}
	u := models.NewFreeUser(userID, username, firstName, now)
	s.users[userID] = u
	return cloneUser(u), nil
}

func (s *memoryStore) mutate(userID int64, fn func(u *models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	fn(u)
	return nil
}

func (s *memoryStore) UpdateUser(_ context.Context, userID int64, upd models.UserUpdate) error {
	return s.mutate(userID, upd.Apply)
}

func (s *memoryStore) IncrementFetchCount(_ context.Context, userID int64, at time.Time) error {
	return s.mutate(userID, func(u *models.User) { increment(u, at) })
}

func (s *memoryStore) ConsumeFetch(_ context.Context, userID int64, at time.Time, limit int) (bool, int, error) {
	var ok bool
	var count int
	err := s.mutate(userID, func(u *models.User) { ok, count = consume(u, at, limit) })
	return ok, count, err
}

func (s *memoryStore) SetUserTier(_ context.Context, userID int64, tier models.Tier, expiration *time.Time) error {
	return s.mutate(userID, func(u *models.User) {
		u.Tier = tier
		if expiration == nil {
			u.Expiration = nil
			return
		}
		t := expiration.UTC()
		u.Expiration = &t
	})
}

func (s *memoryStore) BanUser(_ context.Context, userID int64) error {
	return s.mutate(userID, func(u *models.User) { u.Banned = true })
}

func (s *memoryStore) UnbanUser(_ context.Context, userID int64) error {
	return s.mutate(userID, func(u *models.User) { u.Banned = false })
}

func (s *memoryStore) ListExpiredPremium(_ context.Context, now time.Time) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.User
	for _, u := range s.users {
		if u.PremiumExpired(now) {
			out = append(out, cloneUser(u))
		}
	}
	sortUsers(out)
	return out, nil
}

func (s *memoryStore) CountUsers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

func (s *memoryStore) LogEvent(_ context.Context, level models.EventLevel, message string, userID *int64) error {
	ev := models.Event{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	if userID != nil {
		id := *userID
		ev.UserID = &id
	}
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) RecentEvents(_ context.Context, limit int) ([]models.Event, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Event, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

func (s *memoryStore) CleanupOldLogs(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.events[:0]
	for _, ev := range s.events {
		if !ev.Timestamp.Before(before) {
			kept = append(kept, ev)
		}
	}
	deleted := len(s.events) - len(kept)
	s.events = kept
	return deleted, nil
}

func (s *memoryStore) GetSetting(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings[key], nil
}

func (s *memoryStore) SetSetting(_ context.Context, key string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

func (s *memoryStore) SaveSchedule(_ context.Context, schedule models.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := scheduleKey{schedule.ChatID, schedule.Category}
	if existing, ok := s.schedules[key]; ok {
		schedule.CreatedAt = existing.CreatedAt
		schedule.LastPost = existing.LastPost
	}
	s.schedules[key] = schedule
	return nil
}

func (s *memoryStore) DeleteSchedule(_ context.Context, chatID int64, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := scheduleKey{chatID, category}
	if _, ok := s.schedules[key]; !ok {
		return ErrNotFound
	}
	delete(s.schedules, key)
	return nil
}

func (s *memoryStore) ListSchedules(_ context.Context) ([]models.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Schedule, 0, len(s.schedules))
	for _, sch := range s.schedules {
		out = append(out, sch)
	}
	sortSchedules(out)
	return out, nil
}

func (s *memoryStore) UpdateScheduleLastPost(_ context.Context, chatID int64, category string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := scheduleKey{chatID, category}
	sch, ok := s.schedules[key]
	if !ok {
		return ErrNotFound
	}
	t := at.UTC()
	sch.LastPost = &t
	s.schedules[key] = sch
	return nil
}

func (s *memoryStore) Ping(context.Context) error { return nil }

func (s *memoryStore) Close() error { return nil }

func sortUsers(list []*models.User) {
	sort.Slice(list, func(i, j int) bool { return list[i].UserID < list[j].UserID })
}

func sortSchedules(list []models.Schedule) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].ChatID != list[j].ChatID {
			return list[i].ChatID < list[j].ChatID
		}
		return list[i].Category < list[j].Category
	})
}
