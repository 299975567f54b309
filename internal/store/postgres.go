package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"wallpaper-bot/internal/models"
)

// Schema creates the tables used by the postgres backend.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id         BIGINT PRIMARY KEY,
	username        TEXT NOT NULL DEFAULT '',
	first_name      TEXT NOT NULL DEFAULT '',
	tier            TEXT NOT NULL DEFAULT 'free',
	fetch_count     INTEGER NOT NULL DEFAULT 0,
	total_fetches   INTEGER NOT NULL DEFAULT 0,
	last_fetch_date TIMESTAMPTZ,
	join_date       TIMESTAMPTZ NOT NULL,
	banned          BOOLEAN NOT NULL DEFAULT FALSE,
	expiration      TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS logs (
	id        TEXT PRIMARY KEY,
	level     TEXT NOT NULL,
	message   TEXT NOT NULL,
	user_id   BIGINT,
	timestamp TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS logs_timestamp_idx ON logs (timestamp);
CREATE TABLE IF NOT EXISTS bot_settings (
	key   TEXT PRIMARY KEY,
	value BOOLEAN NOT NULL
);
CREATE TABLE IF NOT EXISTS schedules (
	chat_id    BIGINT NOT NULL,
	category   TEXT NOT NULL,
	interval   TEXT NOT NULL,
	active     BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	last_post  TIMESTAMPTZ,
	PRIMARY KEY (chat_id, category)
);`

const userColumns = `user_id, username, first_name, tier, fetch_count, total_fetches, last_fetch_date, join_date, banned, expiration`

// consumeQuery resets the daily counter on a new UTC day and increments it only
// while it stays under the limit, in one statement.
const consumeQuery = `UPDATE users SET
	fetch_count = CASE
		WHEN last_fetch_date IS NOT NULL
			AND (last_fetch_date AT TIME ZONE 'UTC')::date = ($2::timestamptz AT TIME ZONE 'UTC')::date
		THEN fetch_count + 1
		ELSE 1
	END,
	total_fetches = total_fetches + 1,
	last_fetch_date = $2
WHERE user_id = $1
	AND (
		last_fetch_date IS NULL
		OR (last_fetch_date AT TIME ZONE 'UTC')::date <> ($2::timestamptz AT TIME ZONE 'UTC')::date
		OR fetch_count < $3
	)
RETURNING fetch_count`

type postgresStore struct {
	db *sql.DB
}

// NewPostgres builds a store over an open connection pool.
func NewPostgres(db *sql.DB) Store {
	return &postgresStore{db: db}
}

// Migrate creates missing tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u          models.User
		tier       string
		lastFetch  sql.NullTime
		expiration sql.NullTime
	)
	if err := row.Scan(&u.UserID, &u.Username, &u.FirstName, &tier, &u.FetchCount,
		&u.TotalFetches, &lastFetch, &u.JoinDate, &u.Banned, &expiration); err != nil {
		return nil, err
	}
	u.Tier = models.Tier(tier)
	u.JoinDate = u.JoinDate.UTC()
	if lastFetch.Valid {
		t := lastFetch.Time.UTC()
		u.LastFetchDate = &t
	}
	if expiration.Valid {
		t := expiration.Time.UTC()
		u.Expiration = &t
	}
	return &u, nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresStore) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, userID)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *postgresStore) CreateUser(ctx context.Context, user *models.User) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) ON CONFLICT (user_id) DO NOTHING`,
		user.UserID, user.Username, user.FirstName, string(user.Tier), user.FetchCount, user.TotalFetches,
		nullTime(user.LastFetchDate), user.JoinDate.UTC(), user.Banned, nullTime(user.Expiration),
	)
	if err != nil {
		return err
	}
	if err := expectOneRow(res); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *postgresStore) GetOrCreateUser(ctx context.Context, userID int64, username, firstName string, now time.Time) (*models.User, error) {
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

func (s *postgresStore) UpdateUser(ctx context.Context, userID int64, upd models.UserUpdate) error {
	var sets []string
	var args []interface{}
	add := func(col string, val interface{}) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.Username != nil {
		add("username", *upd.Username)
	}
	if upd.FirstName != nil {
		add("first_name", *upd.FirstName)
	}
	if upd.Tier != nil {
		add("tier", string(*upd.Tier))
	}
	if upd.FetchCount != nil {
		add("fetch_count", *upd.FetchCount)
	}
	if upd.TotalFetches != nil {
		add("total_fetches", *upd.TotalFetches)
	}
	if upd.LastFetchDate != nil {
		add("last_fetch_date", upd.LastFetchDate.UTC())
	}
	if upd.Banned != nil {
		add("banned", *upd.Banned)
	}
	if upd.ClearExpiry {
		add("expiration", nil)
	} else if upd.Expiration != nil {
		add("expiration", upd.Expiration.UTC())
	}

	if len(sets) == 0 {
		return nil
	}

	args = append(args, userID)
	query := fmt.Sprintf("UPDATE users SET %s WHERE user_id = $%d", strings.Join(sets, ", "), len(args))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (s *postgresStore) IncrementFetchCount(ctx context.Context, userID int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET fetch_count = fetch_count + 1, total_fetches = total_fetches + 1, last_fetch_date = $2 WHERE user_id = $1`,
		userID, at.UTC(),
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (s *postgresStore) ConsumeFetch(ctx context.Context, userID int64, at time.Time, limit int) (bool, int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, consumeQuery, userID, at.UTC(), limit).Scan(&count)
	if err == nil {
		return true, count, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, 0, err
	}

	// Either the user is missing or the quota is spent.
	err = s.db.QueryRowContext(ctx, `SELECT fetch_count FROM users WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, 0, ErrNotFound
		}
		return false, 0, err
	}
	return false, count, nil
}

func (s *postgresStore) SetUserTier(ctx context.Context, userID int64, tier models.Tier, expiration *time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET tier = $2, expiration = $3 WHERE user_id = $1`,
		userID, string(tier), nullTime(expiration),
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (s *postgresStore) setBanned(ctx context.Context, userID int64, banned bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET banned = $2 WHERE user_id = $1`, userID, banned)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (s *postgresStore) BanUser(ctx context.Context, userID int64) error {
	return s.setBanned(ctx, userID, true)
}

func (s *postgresStore) UnbanUser(ctx context.Context, userID int64) error {
	return s.setBanned(ctx, userID, false)
}

func (s *postgresStore) ListExpiredPremium(ctx context.Context, now time.Time) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE tier = $1 AND expiration IS NOT NULL AND expiration <= $2 ORDER BY user_id`,
		string(models.TierPremium), now.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *postgresStore) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func (s *postgresStore) LogEvent(ctx context.Context, level models.EventLevel, message string, userID *int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO logs (id, level, message, user_id, timestamp) VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), string(level), message, nullInt64(userID), time.Now().UTC(),
	)
	return err
}

func (s *postgresStore) RecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, level, message, user_id, timestamp FROM logs ORDER BY timestamp DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Event
	for rows.Next() {
		var (
			ev     models.Event
			level  string
			userID sql.NullInt64
		)
		if err := rows.Scan(&ev.ID, &level, &ev.Message, &userID, &ev.Timestamp); err != nil {
			return nil, err
		}
		ev.Level = models.EventLevel(level)
		if userID.Valid {
			id := userID.Int64
			ev.UserID = &id
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *postgresStore) CleanupOldLogs(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM logs WHERE timestamp < $1`, before.UTC())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *postgresStore) GetSetting(ctx context.Context, key string) (bool, error) {
	var value bool
	err := s.db.QueryRowContext(ctx, `SELECT value FROM bot_settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return value, nil
}

func (s *postgresStore) SetSetting(ctx context.Context, key string, value bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bot_settings (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value,
	)
	return err
}

func (s *postgresStore) SaveSchedule(ctx context.Context, schedule models.Schedule) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schedules (chat_id, category, interval, active, created_at, last_post) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (chat_id, category) DO UPDATE SET interval = EXCLUDED.interval, active = EXCLUDED.active`,
		schedule.ChatID, schedule.Category, schedule.Interval, schedule.Active,
		schedule.CreatedAt.UTC(), nullTime(schedule.LastPost),
	)
	return err
}

func (s *postgresStore) DeleteSchedule(ctx context.Context, chatID int64, category string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE chat_id = $1 AND category = $2`, chatID, category)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (s *postgresStore) ListSchedules(ctx context.Context) ([]models.Schedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, category, interval, active, created_at, last_post FROM schedules ORDER BY chat_id, category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Schedule
	for rows.Next() {
		var (
			sch      models.Schedule
			lastPost sql.NullTime
		)
		if err := rows.Scan(&sch.ChatID, &sch.Category, &sch.Interval, &sch.Active, &sch.CreatedAt, &lastPost); err != nil {
			return nil, err
		}
		if lastPost.Valid {
			t := lastPost.Time.UTC()
			sch.LastPost = &t
		}
		out = append(out, sch)
	}
	return out, rows.Err()
}

func (s *postgresStore) UpdateScheduleLastPost(ctx context.Context, chatID int64, category string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET last_post = $3 WHERE chat_id = $1 AND category = $2`,
		chatID, category, at.UTC(),
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (s *postgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *postgresStore) Close() error {
	return s.db.Close()
}
