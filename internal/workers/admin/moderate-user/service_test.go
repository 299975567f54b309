package moderateuser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "wallpaper-bot/internal/common/errors"
	"wallpaper-bot/internal/common/logger"
	"wallpaper-bot/internal/models"
	"wallpaper-bot/internal/store"
)

const ownerID = 1000

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type brokenStore struct {
	store.Store
}

func (brokenStore) SetSetting(context.Context, string, bool) error { return errors.New("readonly") }
func (brokenStore) CountUsers(context.Context) (int, error) { return 0, errors.New("offline") }
func (brokenStore) LogEvent(context.Context, models.EventLevel, string, *int64) error {
	return errors.New("log full")
}

func createTestService(t *testing.T, st Store) *Service {
	t.Helper()
	cfg := DefaultConfig()
	cfg.OwnerUserID = ownerID
	svc, err := NewService(ServiceDependencies{
		Store:  st,
		Logger: logger.NewTestLogger(t),
		Now:    func() time.Time { return testNow },
	}, cfg)
	require.NoError(t, err)
	return svc
}

func seededStore(t *testing.T) store.Store {
	t.Helper()
	st := store.NewMemory()
	require.NoError(t, st.CreateUser(context.Background(), models.NewFreeUser(42, "alice", "Alice", testNow)))
	return st
}

// ==========================
// Authorization
// ==========================

func TestService_NonOwnerIsRefused(t *testing.T) {
	svc := createTestService(t, seededStore(t))
	ctx := context.Background()

	actions := map[string]func() error{
		"ban":    func() error { return svc.Ban(ctx, 42, 42) },
		"unban":  func() error { return svc.Unban(ctx, 42, 42) },
		"grant":  func() error { _, err := svc.GrantPremium(ctx, 42, 42, 10); return err },
		"revoke": func() error { return svc.RevokePremium(ctx, 42, 42) },
		"maint":  func() error { return svc.SetMaintenance(ctx, 42, true) },
		"logs":   func() error { _, err := svc.RecentLogs(ctx, 42, 5); return err },
		"stats":  func() error { _, err := svc.TotalUsers(ctx, 42); return err },
	}
	for name, fn := range actions {
		t.Run(name, func(t *testing.T) {
			err := fn()
			assert.Equal(t, apperrors.ErrCodePermissionDenied, apperrors.CodeOf(err))
			assert.Equal(t, apperrors.OutcomeDenied, apperrors.ToUserFacing(err))
		})
	}
}

func TestService_NoOwnerConfigured(t *testing.T) {
	svc, err := NewService(ServiceDependencies{Store: store.NewMemory()}, nil)
	require.NoError(t, err)
	assert.False(t, svc.IsOwner(0))
	assert.False(t, svc.IsOwner(ownerID))
}

// ==========================
// Actions
// ==========================

func TestService_BanAndUnban(t *testing.T) {
	st := seededStore(t)
	svc := createTestService(t, st)
	ctx := context.Background()

	require.NoError(t, svc.Ban(ctx, ownerID, 42))
	u, err := st.GetUser(ctx, 42)
	require.NoError(t, err)
	assert.True(t, u.Banned)

	require.NoError(t, svc.Unban(ctx, ownerID, 42))
	u, err = st.GetUser(ctx, 42)
	require.NoError(t, err)
	assert.False(t, u.Banned)

	events, err := svc.RecentLogs(ctx, ownerID, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, models.LevelAdmin, ev.Level)
		require.NotNil(t, ev.UserID)
		assert.Equal(t, int64(ownerID), *ev.UserID)
	}
	var msgs []string
	for _, ev := range events {
		msgs = append(msgs, ev.Message)
	}
	assert.ElementsMatch(t, []string{"Admin 1000 banned user 42", "Admin 1000 unbanned user 42"}, msgs)
}

func TestService_BanUnknownUser(t *testing.T) {
	svc := createTestService(t, seededStore(t))
	err := svc.Ban(context.Background(), ownerID, 7)
	assert.Equal(t, apperrors.ErrCodeUserNotFound, apperrors.CodeOf(err))
}

func TestService_GrantPremium(t *testing.T) {
	tests := []struct {
		name     string
		days     int
		wantDays int
	}{
		{"default", 0, 30},
		{"negative uses default", -3, 30},
		{"explicit", 90, 90},
		{"lower bound", 1, 1},
		{"capped", 1000, 365},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := seededStore(t)
			svc := createTestService(t, st)
			ctx := context.Background()

			grant, err := svc.GrantPremium(ctx, ownerID, 42, tt.days)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDays, grant.Days)
			want := testNow.Add(time.Duration(tt.wantDays) * 24 * time.Hour)
			assert.True(t, grant.Expiration.Equal(want))

			u, err := st.GetUser(ctx, 42)
			require.NoError(t, err)
			assert.Equal(t, models.TierPremium, u.Tier)
			require.NotNil(t, u.Expiration)
			assert.True(t, u.Expiration.Equal(want))
		})
	}
}

func TestService_RevokePremium(t *testing.T) {
	st := seededStore(t)
	svc := createTestService(t, st)
	ctx := context.Background()

	_, err := svc.GrantPremium(ctx, ownerID, 42, 10)
	require.NoError(t, err)
	require.NoError(t, svc.RevokePremium(ctx, ownerID, 42))

	u, err := st.GetUser(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, u.Tier)
	assert.Nil(t, u.Expiration)
}

func TestService_SetMaintenance(t *testing.T) {
	st := seededStore(t)
	svc := createTestService(t, st)
	ctx := context.Background()

	require.NoError(t, svc.SetMaintenance(ctx, ownerID, true))
	on, err := st.GetSetting(ctx, store.SettingMaintenance)
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, svc.SetMaintenance(ctx, ownerID, false))
	on, err = st.GetSetting(ctx, store.SettingMaintenance)
	require.NoError(t, err)
	assert.False(t, on)
}

func TestService_RecentLogsLimit(t *testing.T) {
	st := seededStore(t)
	ctx := context.Background()
	for i := 0; i < 120; i++ {
		require.NoError(t, st.LogEvent(ctx, models.LevelInfo, "entry", nil))
	}
	svc := createTestService(t, st)

	events, err := svc.RecentLogs(ctx, ownerID, 0)
	require.NoError(t, err)
	assert.Len(t, events, 20)

	events, err = svc.RecentLogs(ctx, ownerID, 500)
	require.NoError(t, err)
	assert.Len(t, events, 100)
}

func TestService_TotalUsers(t *testing.T) {
	st := seededStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateUser(ctx, models.NewFreeUser(43, "bob", "Bob", testNow)))
	svc := createTestService(t, st)

	n, err := svc.TotalUsers(ctx, ownerID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

// ==========================
// Store failures
// ==========================

func TestService_StoreFailures(t *testing.T) {
	st := brokenStore{Store: seededStore(t)}
	svc := createTestService(t, st)
	ctx := context.Background()

	err := svc.SetMaintenance(ctx, ownerID, true)
	assert.Equal(t, apperrors.ErrCodeStoreUnavailable, apperrors.CodeOf(err))

	_, err = svc.TotalUsers(ctx, ownerID)
	assert.Equal(t, apperrors.ErrCodeStoreUnavailable, apperrors.CodeOf(err))

	// Audit log failures do not fail the action.
	assert.NoError(t, svc.Ban(ctx, ownerID, 42))
}

func TestNewService_Config(t *testing.T) {
	_, err := NewService(ServiceDependencies{Store: store.NewMemory()}, &Config{MinPremiumDays: 5, MaxPremiumDays: 1})
	assert.Equal(t, apperrors.ErrCodeInvalidConfiguration, apperrors.CodeOf(err))

	_, err = NewService(ServiceDependencies{}, nil)
	assert.Error(t, err)
}
