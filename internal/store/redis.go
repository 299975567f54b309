package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"wallpaper-bot/internal/models"
)

const maxWatchRetries = 25

var errNoWrite = errors.New("no write")

type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedis builds a store over an existing client. Users are JSON strings, the user
// index is a set, events are a sorted set scored by unix millis.
func NewRedis(client *redis.Client, prefix string) Store {
	if prefix == "" {
		prefix = "wallpaper:"
	}
	return &redisStore{client: client, prefix: prefix}
}

func (s *redisStore) userKey(userID int64) string {
	return s.prefix + "user:" + strconv.FormatInt(userID, 10)
}

func (s *redisStore) usersKey() string     { return s.prefix + "users" }
func (s *redisStore) eventsKey() string    { return s.prefix + "events" }
func (s *redisStore) settingsKey() string  { return s.prefix + "settings" }
func (s *redisStore) schedulesKey() string { return s.prefix + "schedules" }

func scheduleField(chatID int64, category string) string {
	return strconv.FormatInt(chatID, 10) + ":" + category
}

func decodeUser(raw []byte) (*models.User, error) {
	var u models.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &u, nil
}

func (s *redisStore) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	raw, err := s.client.Get(ctx, s.userKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeUser(raw)
}

func (s *redisStore) CreateUser(ctx context.Context, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	created, err := s.client.SetNX(ctx, s.userKey(user.UserID), data, 0).Result()
	if err != nil {
		return err
	}
	if !created {
		return ErrAlreadyExists
	}
	return s.client.SAdd(ctx, s.usersKey(), user.UserID).Err()
}

func (s *redisStore) GetOrCreateUser(ctx context.Context, userID int64, username, firstName string, now time.Time) (*models.User, error) {
	u, err := s.GetUser(ctx, userID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	u = models.NewFreeUser(userID, username, firstName, now)
	if err := s.CreateUser(ctx, u); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return s.GetUser(ctx, userID)
		}
		return nil, err
	}
	return u, nil
}

// mutateUser runs fn inside a WATCH/MULTI transaction on the user key. fn may return
// errNoWrite to leave the record unchanged.
func (s *redisStore) mutateUser(ctx context.Context, userID int64, fn func(u *models.User) error) error {
	key := s.userKey(userID)

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}
		u, err := decodeUser(raw)
		if err != nil {
			return err
		}
		if err := fn(u); err != nil {
			return err
		}
		data, err := json.Marshal(u)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, errNoWrite) {
			return nil
		}
		return err
	}
	return fmt.Errorf("user %d: transaction retries exhausted", userID)
}

func (s *redisStore) UpdateUser(ctx context.Context, userID int64, upd models.UserUpdate) error {
	return s.mutateUser(ctx, userID, func(u *models.User) error {
		upd.Apply(u)
		return nil
	})
}

func (s *redisStore) IncrementFetchCount(ctx context.Context, userID int64, at time.Time) error {
	return s.mutateUser(ctx, userID, func(u *models.User) error {
		increment(u, at)
		return nil
	})
}

func (s *redisStore) ConsumeFetch(ctx context.Context, userID int64, at time.Time, limit int) (bool, int, error) {
	var ok bool
	var count int
	err := s.mutateUser(ctx, userID, func(u *models.User) error {
		ok, count = consume(u, at, limit)
		if !ok {
			return errNoWrite
		}
		return nil
	})
	return ok, count, err
}

func (s *redisStore) SetUserTier(ctx context.Context, userID int64, tier models.Tier, expiration *time.Time) error {
	upd := models.UserUpdate{Tier: &tier, Expiration: expiration, ClearExpiry: expiration == nil}
	return s.UpdateUser(ctx, userID, upd)
}

func (s *redisStore) BanUser(ctx context.Context, userID int64) error {
	return s.UpdateUser(ctx, userID, models.UserUpdate{Banned: models.BoolPtr(true)})
}

func (s *redisStore) UnbanUser(ctx context.Context, userID int64) error {
	return s.UpdateUser(ctx, userID, models.UserUpdate{Banned: models.BoolPtr(false)})
}

func (s *redisStore) ListExpiredPremium(ctx context.Context, now time.Time) ([]*models.User, error) {
	ids, err := s.client.SMembers(ctx, s.usersKey()).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, s.prefix+"user:"+id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var out []*models.User
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		u, err := decodeUser([]byte(str))
		if err != nil {
			return nil, err
		}
		if u.PremiumExpired(now) {
			out = append(out, u)
		}
	}
	sortUsers(out)
	return out, nil
}

func (s *redisStore) CountUsers(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, s.usersKey()).Result()
	return int(n), err
}

func (s *redisStore) LogEvent(ctx context.Context, level models.EventLevel, message string, userID *int64) error {
	ev := models.Event{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.client.ZAdd(ctx, s.eventsKey(), redis.Z{
		Score:  float64(ev.Timestamp.UnixMilli()),
		Member: string(data),
	}).Err()
}

func (s *redisStore) RecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	if limit <= 0 {
		return nil, nil
	}
	raws, err := s.client.ZRevRange(ctx, s.eventsKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.Event, 0, len(raws))
	for _, raw := range raws {
		var ev models.Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *redisStore) CleanupOldLogs(ctx context.Context, before time.Time) (int, error) {
	upper := "(" + strconv.FormatInt(before.UnixMilli(), 10)
	n, err := s.client.ZRemRangeByScore(ctx, s.eventsKey(), "-inf", upper).Result()
	return int(n), err
}

func (s *redisStore) GetSetting(ctx context.Context, key string) (bool, error) {
	val, err := s.client.HGet(ctx, s.settingsKey(), key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return strconv.ParseBool(val)
}

func (s *redisStore) SetSetting(ctx context.Context, key string, value bool) error {
	return s.client.HSet(ctx, s.settingsKey(), key, strconv.FormatBool(value)).Err()
}

func (s *redisStore) getSchedule(ctx context.Context, chatID int64, category string) (*models.Schedule, error) {
	raw, err := s.client.HGet(ctx, s.schedulesKey(), scheduleField(chatID, category)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var sch models.Schedule
	if err := json.Unmarshal(raw, &sch); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	return &sch, nil
}

func (s *redisStore) putSchedule(ctx context.Context, sch models.Schedule) error {
	data, err := json.Marshal(sch)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, s.schedulesKey(), scheduleField(sch.ChatID, sch.Category), data).Err()
}

func (s *redisStore) SaveSchedule(ctx context.Context, schedule models.Schedule) error {
	existing, err := s.getSchedule(ctx, schedule.ChatID, schedule.Category)
	switch {
	case err == nil:
		schedule.CreatedAt = existing.CreatedAt
		schedule.LastPost = existing.LastPost
	case !errors.Is(err, ErrNotFound):
		return err
	}
	return s.putSchedule(ctx, schedule)
}

func (s *redisStore) DeleteSchedule(ctx context.Context, chatID int64, category string) error {
	n, err := s.client.HDel(ctx, s.schedulesKey(), scheduleField(chatID, category)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *redisStore) ListSchedules(ctx context.Context) ([]models.Schedule, error) {
	all, err := s.client.HGetAll(ctx, s.schedulesKey()).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.Schedule, 0, len(all))
	for _, raw := range all {
		var sch models.Schedule
		if err := json.Unmarshal([]byte(raw), &sch); err != nil {
			return nil, fmt.Errorf("decode schedule: %w", err)
		}
		out = append(out, sch)
	}
	sortSchedules(out)
	return out, nil
}

func (s *redisStore) UpdateScheduleLastPost(ctx context.Context, chatID int64, category string, at time.Time) error {
	sch, err := s.getSchedule(ctx, chatID, category)
	if err != nil {
		return err
	}
	t := at.UTC()
	sch.LastPost = &t
	return s.putSchedule(ctx, *sch)
}

func (s *redisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
