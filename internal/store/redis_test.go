package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallpaper-bot/internal/models"
)

func newMiniredisStore(t *testing.T) Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, "test:")
}

func TestRedisStore_Contract(t *testing.T) {
	runStoreContract(t, newMiniredisStore)
}

// ==========================
// Key layout
// ==========================

func TestRedisStore_KeyLayout(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedis(client, "")
	ctx := context.Background()

	_, err := s.GetOrCreateUser(ctx, 42, "alice", "Alice", contractNow)
	require.NoError(t, err)
	require.NoError(t, s.SetSetting(ctx, SettingMaintenance, true))

	assert.True(t, mr.Exists("wallpaper:user:42"))
	ok, err := mr.SIsMember("wallpaper:users", "42")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", mr.HGet("wallpaper:settings", SettingMaintenance))
}

// ==========================
// Error paths
// ==========================

func TestRedisStore_GetUser_Errors(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := NewRedis(client, "test:")
	ctx := context.Background()

	mock.ExpectGet("test:user:1").RedisNil()
	_, err := s.GetUser(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectGet("test:user:2").SetErr(errors.New("connection reset"))
	_, err = s.GetUser(ctx, 2)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	mock.ExpectGet("test:user:3").SetVal("{not json")
	_, err = s.GetUser(ctx, 3)
	assert.ErrorContains(t, err, "decode user")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_CreateUser_Conflict(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := NewRedis(client, "test:")

	u := models.NewFreeUser(7, "bob", "Bob", contractNow)
	data, err := json.Marshal(u)
	require.NoError(t, err)

	mock.ExpectSetNX("test:user:7", data, 0).SetVal(false)
	assert.ErrorIs(t, s.CreateUser(context.Background(), u), ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_Settings_Errors(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := NewRedis(client, "test:")
	ctx := context.Background()

	mock.ExpectHGet("test:settings", SettingMaintenance).SetErr(errors.New("timeout"))
	_, err := s.GetSetting(ctx, SettingMaintenance)
	assert.Error(t, err)

	mock.ExpectHGet("test:settings", SettingMaintenance).SetVal("maybe")
	_, err = s.GetSetting(ctx, SettingMaintenance)
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_CleanupOldLogs_ExclusiveBound(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := NewRedis(client, "test:")

	mock.ExpectZRemRangeByScore("test:events", "-inf", "(1000").SetVal(4)
	n, err := s.CleanupOldLogs(context.Background(), time.UnixMilli(1000))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_DeleteSchedule_Missing(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := NewRedis(client, "test:")

	mock.ExpectHDel("test:schedules", "5:nature").SetVal(0)
	assert.ErrorIs(t, s.DeleteSchedule(context.Background(), 5, "nature"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_Ping_Error(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := NewRedis(client, "test:")

	mock.ExpectPing().SetErr(errors.New("refused"))
	err := s.Ping(context.Background())
	assert.ErrorContains(t, err, "redis ping failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}
