package deliverwallpaper

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	apperrors "wallpaper-bot/internal/common/errors"
	"wallpaper-bot/internal/common/logger"
	"wallpaper-bot/internal/common/observability"
	"wallpaper-bot/internal/models"
	"wallpaper-bot/internal/sources"
	"wallpaper-bot/internal/store"
	checkentitlement "wallpaper-bot/internal/workers/entitlement/check-entitlement"
	fetchwallpaper "wallpaper-bot/internal/workers/wallpaper/fetch-wallpaper"
	validateimage "wallpaper-bot/internal/workers/wallpaper/validate-image"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := imaging.New(w, h, color.NRGBA{R: 30, G: 90, B: 160, A: 255})
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 75}))
	return buf.Bytes()
}

// fakeFetcher serves a fixed descriptor and body.
type fakeFetcher struct {
	result      *fetchwallpaper.Result
	fetchErr    error
	body        []byte
	downloadErr error
	fetches     int32
}

func (f *fakeFetcher) FetchWallpaper(context.Context, string) (*fetchwallpaper.Result, error) {
	atomic.AddInt32(&f.fetches, 1)
	return f.result, f.fetchErr
}

func (f *fakeFetcher) DownloadImage(context.Context, string) ([]byte, error) {
	return f.body, f.downloadErr
}

func goodFetcher(t *testing.T) *fakeFetcher {
	return &fakeFetcher{
		result: &fetchwallpaper.Result{
			Descriptor: &models.WallpaperDescriptor{
				ImageURL: "https://img.example/1.jpg", SourceName: "pexels", Width: 1920, Height: 1080,
			},
			Attempts: []fetchwallpaper.Attempt{{Source: "pexels", Success: true}},
		},
		body: encodeJPEG(t, 1920, 1080),
	}
}

// settingsErrStore fails the maintenance lookup.
type settingsErrStore struct {
	store.Store
}

func (settingsErrStore) GetSetting(context.Context, string) (bool, error) {
	return false, errors.New("connection reset")
}

type testEnv struct {
	handler *Handler
	store   store.Store
	spans   *tracetest.SpanRecorder
}

func createTestHandler(t *testing.T, f Fetcher, st store.Store, cfg *Config) *testEnv {
	t.Helper()
	if st == nil {
		st = store.NewMemory()
	}
	log := logger.NewTestLogger(t)

	tracker, err := checkentitlement.NewTracker(checkentitlement.TrackerDependencies{
		Store:  st,
		Logger: log,
		Now:    func() time.Time { return testNow },
	}, nil)
	require.NoError(t, err)

	validator, err := validateimage.NewValidator(nil, log)
	require.NoError(t, err)

	rec := tracetest.NewSpanRecorder()
	obs := observability.NewWithRegisterer("deliver-test", prometheus.NewRegistry(), sdktrace.WithSpanProcessor(rec))
	t.Cleanup(obs.Shutdown)

	h, err := NewHandler(HandlerDependencies{
		Fetcher:       f,
		Validator:     validator,
		Entitlements:  tracker,
		Store:         st,
		Logger:        log,
		Observability: obs,
		Now:           func() time.Time { return testNow },
		NewRequestID:  func() string { return "req-1" },
	}, cfg)
	require.NoError(t, err)
	return &testEnv{handler: h, store: st, spans: rec}
}

func request() Request {
	return Request{UserID: 42, Username: "alice", FirstName: "Alice", Category: "nature"}
}

// ==========================
// Delivered
// ==========================

func TestHandler_Delivered(t *testing.T) {
	env := createTestHandler(t, goodFetcher(t), nil, nil)
	ctx := context.Background()

	d, err := env.handler.Handle(ctx, request())
	require.NoError(t, err)

	assert.Equal(t, OutcomeDelivered, d.Outcome)
	assert.Equal(t, "req-1", d.RequestID)
	assert.Equal(t, "pexels", d.Descriptor.SourceName)
	assert.NotEmpty(t, d.Image)
	require.NotNil(t, d.Metadata)
	assert.Equal(t, "JPEG", d.Metadata.Format)
	assert.Equal(t, 1920, d.Metadata.Width)
	assert.Equal(t, checkentitlement.Allowance{Allowed: true, Remaining: 4}, d.Allowance)

	u, err := env.store.GetUser(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 1, u.FetchCount)
	assert.Equal(t, "alice", u.Username)

	events, err := env.store.RecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.LevelInfo, events[0].Level)
	assert.Equal(t, "User 42 fetched wallpaper from pexels", events[0].Message)

	ended := env.spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, TaskType, ended[0].Name())
}

func TestHandler_DefaultCategory(t *testing.T) {
	env := createTestHandler(t, goodFetcher(t), nil, nil)
	req := request()
	req.Category = "   "

	d, err := env.handler.Handle(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "nature", d.Category)
}

// ==========================
// Denied and maintenance
// ==========================

func TestHandler_DeniedAtLimit(t *testing.T) {
	st := store.NewMemory()
	u := models.NewFreeUser(42, "alice", "Alice", testNow)
	u.FetchCount = 5
	u.LastFetchDate = models.TimePtr(testNow.Add(-time.Hour))
	require.NoError(t, st.CreateUser(context.Background(), u))

	f := goodFetcher(t)
	env := createTestHandler(t, f, st, nil)

	d, err := env.handler.Handle(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, d.Outcome)
	assert.Equal(t, checkentitlement.Allowance{Allowed: false, Remaining: 0}, d.Allowance)
	assert.Zero(t, atomic.LoadInt32(&f.fetches))
}

func TestHandler_Maintenance(t *testing.T) {
	tests := []struct {
		name   string
		store  func() store.Store
		cfg    *Config
		userID int64
		want   Outcome
	}{
		{
			name: "stored setting on",
			store: func() store.Store {
				st := store.NewMemory()
				_ = st.SetSetting(context.Background(), store.SettingMaintenance, true)
				return st
			},
			userID: 42,
			want:   OutcomeMaintenance,
		},
		{
			name: "owner bypasses maintenance",
			store: func() store.Store {
				st := store.NewMemory()
				_ = st.SetSetting(context.Background(), store.SettingMaintenance, true)
				return st
			},
			cfg:    &Config{DefaultCategory: "nature", OwnerUserID: 42},
			userID: 42,
			want:   OutcomeDelivered,
		},
		{
			name:   "unreadable setting falls back to config",
			store:  func() store.Store { return settingsErrStore{Store: store.NewMemory()} },
			cfg:    &Config{DefaultCategory: "nature", Maintenance: true},
			userID: 42,
			want:   OutcomeMaintenance,
		},
		{
			name:   "unreadable setting with config off",
			store:  func() store.Store { return settingsErrStore{Store: store.NewMemory()} },
			userID: 42,
			want:   OutcomeDelivered,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := createTestHandler(t, goodFetcher(t), tt.store(), tt.cfg)
			req := request()
			req.UserID = tt.userID

			d, err := env.handler.Handle(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Outcome)
		})
	}
}

// ==========================
// Failures
// ==========================

func TestHandler_Failures(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(f *fakeFetcher)
		wantCode apperrors.ErrorCode
		wantIs   error
	}{
		{
			name: "all sources failed",
			mutate: func(f *fakeFetcher) {
				f.result = &fetchwallpaper.Result{Attempts: []fetchwallpaper.Attempt{{Source: "pexels"}}}
				f.fetchErr = errors.Join(fetchwallpaper.ErrAllSourcesFailed, apperrors.NewAllSourcesFailedError("nature", 1))
			},
			wantCode: apperrors.ErrCodeAllSourcesFailed,
			wantIs:   fetchwallpaper.ErrAllSourcesFailed,
		},
		{
			name: "download failed",
			mutate: func(f *fakeFetcher) {
				f.body = nil
				f.downloadErr = errors.Join(fetchwallpaper.ErrDownloadFailed, apperrors.NewDownloadFailedError("u", errors.New("eof")))
			},
			wantCode: apperrors.ErrCodeDownloadFailed,
			wantIs:   fetchwallpaper.ErrDownloadFailed,
		},
		{
			name:     "validation rejected",
			mutate:   func(f *fakeFetcher) { f.body = encodeJPEG(t, 1000, 500) },
			wantCode: apperrors.ErrCodeValidationRejected,
			wantIs:   validateimage.ErrValidationRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := goodFetcher(t)
			tt.mutate(f)
			env := createTestHandler(t, f, nil, nil)
			ctx := context.Background()

			d, err := env.handler.Handle(ctx, request())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantIs)
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
			assert.Equal(t, apperrors.OutcomeTryAgain, apperrors.ToUserFacing(err))
			assert.Equal(t, OutcomeFailed, d.Outcome)
			assert.Nil(t, d.Image)

			u, err := env.store.GetUser(ctx, 42)
			require.NoError(t, err)
			assert.Zero(t, u.FetchCount, "failed runs are not counted")

			events, err := env.store.RecentEvents(ctx, 10)
			require.NoError(t, err)
			require.Len(t, events, 1)
			assert.Equal(t, models.LevelError, events[0].Level)
		})
	}
}

func TestHandler_InvalidRequest(t *testing.T) {
	env := createTestHandler(t, goodFetcher(t), nil, nil)
	d, err := env.handler.Handle(context.Background(), Request{Category: "nature"})
	assert.Equal(t, apperrors.ErrCodeInvalidArgument, apperrors.CodeOf(err))
	assert.Equal(t, OutcomeFailed, d.Outcome)
}

// ==========================
// Atomic consume
// ==========================

func TestHandler_AtomicConsume(t *testing.T) {
	st := store.NewMemory()
	u := models.NewFreeUser(42, "alice", "Alice", testNow)
	u.FetchCount = 4
	u.LastFetchDate = models.TimePtr(testNow.Add(-time.Hour))
	require.NoError(t, st.CreateUser(context.Background(), u))

	cfg := DefaultConfig()
	cfg.AtomicConsume = true
	env := createTestHandler(t, goodFetcher(t), st, cfg)

	d, err := env.handler.Handle(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, d.Outcome)
	assert.Equal(t, 0, d.Allowance.Remaining)

	d, err = env.handler.Handle(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, d.Outcome)

	got, err := st.GetUser(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 5, got.FetchCount)
}

// ==========================
// End to end in demo mode
// ==========================

func TestHandler_DemoModeEndToEnd(t *testing.T) {
	body := encodeJPEG(t, 1920, 1080)
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	fcfg := fetchwallpaper.DefaultConfig()
	fcfg.BaseURLs = sources.BaseURLs{Demo: srv.URL}
	fetcher, err := fetchwallpaper.NewService(fetchwallpaper.ServiceDependencies{
		Logger:      logger.NewTestLogger(t),
		Credentials: fetchwallpaper.StaticCredentials{},
	}, fcfg)
	require.NoError(t, err)

	env := createTestHandler(t, fetcher, nil, nil)

	d, err := env.handler.Handle(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, OutcomeDelivered, d.Outcome)
	assert.True(t, d.Demo)
	assert.Equal(t, "demo", d.Descriptor.SourceName)
	assert.True(t, strings.HasPrefix(d.Descriptor.ImageURL, srv.URL+"/1920/1080"))
	assert.Equal(t, []string{"/1920/1080"}, paths)
	assert.Equal(t, body, d.Image)
}

func TestNewHandler_RequiresDependencies(t *testing.T) {
	_, err := NewHandler(HandlerDependencies{}, nil)
	assert.Equal(t, apperrors.ErrCodeInvalidConfiguration, apperrors.CodeOf(err))

	_, err = NewHandler(HandlerDependencies{}, &Config{DefaultCategory: ""})
	assert.Equal(t, apperrors.ErrCodeInvalidConfiguration, apperrors.CodeOf(err))
}
