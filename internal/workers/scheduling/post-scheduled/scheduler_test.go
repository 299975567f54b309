package postscheduled

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "wallpaper-bot/internal/common/errors"
	commonhttp "wallpaper-bot/internal/common/http"
	"wallpaper-bot/internal/common/logger"
	"wallpaper-bot/internal/models"
	"wallpaper-bot/internal/store"
	selectreaction "wallpaper-bot/internal/workers/engagement/select-reaction"
	fetchwallpaper "wallpaper-bot/internal/workers/wallpaper/fetch-wallpaper"
)

type fakeFetcher struct {
	err error
}

func (f *fakeFetcher) FetchWallpaper(_ context.Context, category string) (*fetchwallpaper.Result, error) {
	if f.err != nil {
		return &fetchwallpaper.Result{}, f.err
	}
	return &fetchwallpaper.Result{Descriptor: &models.WallpaperDescriptor{
		ImageURL:     "https://img.example/" + category + ".jpg",
		SourceName:   "unsplash",
		Width:        1920,
		Height:       1080,
		Photographer: "Jane",
	}}, nil
}

func (f *fakeFetcher) DownloadImage(context.Context, string) ([]byte, error) {
	return []byte("jpeg-bytes"), nil
}

type fakeChecker struct{ err error }

func (c fakeChecker) Check([]byte) error { return c.err }

type sentPhoto struct {
	chatID  int64
	caption string
}

type fakePoster struct {
	mu          sync.Mutex
	photos      []sentPhoto
	reactions   []string
	reactionErr error
}

func (p *fakePoster) PostPhoto(_ context.Context, chatID int64, _ []byte, caption string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.photos = append(p.photos, sentPhoto{chatID: chatID, caption: caption})
	return int64(len(p.photos)), nil
}

func (p *fakePoster) SetReaction(_ context.Context, _, _ int64, reaction string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reactions = append(p.reactions, reaction)
	return p.reactionErr
}

func (p *fakePoster) sent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.photos)
}

// manualTickers hands out tickers the test fires by hand.
type manualTickers struct {
	mu      sync.Mutex
	tickers map[time.Duration][]*manualTicker
}

type manualTicker struct {
	ch chan time.Time
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               {}

func (m *manualTickers) New(d time.Duration) Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time, 1)}
	m.tickers[d] = append(m.tickers[d], t)
	return t
}

func (m *manualTickers) fire(d time.Duration) {
	m.mu.Lock()
	ts := m.tickers[d]
	m.mu.Unlock()
	for _, t := range ts {
		t.ch <- time.Now()
	}
}

func (m *manualTickers) count(d time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tickers[d])
}

type testEnv struct {
	scheduler *Scheduler
	store     store.Store
	poster    *fakePoster
	tickers   *manualTickers
}

func createTestScheduler(t *testing.T, f Fetcher, checker ImageChecker, now func() time.Time) *testEnv {
	t.Helper()
	if now == nil {
		now = time.Now
	}
	selector, err := selectreaction.NewSelector(&selectreaction.Config{Reactions: []string{"👍", "🔥"}})
	require.NoError(t, err)

	env := &testEnv{
		store:   store.NewMemory(),
		poster:  &fakePoster{},
		tickers: &manualTickers{tickers: make(map[time.Duration][]*manualTicker)},
	}
	s, err := NewScheduler(SchedulerDependencies{
		Fetcher:   f,
		Validator: checker,
		Poster:    env.poster,
		Reactions: selector,
		Store:     env.store,
		Logger:    logger.NewTestLogger(t),
		Now:       now,
		NewTicker: env.tickers.New,
	}, DefaultConfig())
	require.NoError(t, err)
	env.scheduler = s
	return env
}

func saveSchedule(t *testing.T, st store.Store, chatID int64, category, interval string, active bool) {
	t.Helper()
	require.NoError(t, st.SaveSchedule(context.Background(), models.Schedule{
		ChatID: chatID, Category: category, Interval: interval, Active: active, CreatedAt: time.Now().UTC(),
	}))
}

// ==========================
// PostScheduled
// ==========================

func TestScheduler_PostScheduled(t *testing.T) {
	env := createTestScheduler(t, &fakeFetcher{}, fakeChecker{}, nil)
	ctx := context.Background()
	saveSchedule(t, env.store, -100, "nature", "daily", true)

	require.NoError(t, env.scheduler.PostScheduled(ctx, -100, "nature"))

	require.Len(t, env.poster.photos, 1)
	assert.Equal(t, int64(-100), env.poster.photos[0].chatID)
	assert.Contains(t, env.poster.photos[0].caption, "Category: Nature")
	assert.Contains(t, env.poster.photos[0].caption, "Photo by Jane on Unsplash")
	require.Len(t, env.poster.reactions, 1)
	assert.Contains(t, []string{"👍", "🔥"}, env.poster.reactions[0])

	schedules, err := env.store.ListSchedules(ctx)
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.NotNil(t, schedules[0].LastPost)

	events, err := env.store.RecentEvents(ctx, 5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Scheduled wallpaper sent to chat -100", events[0].Message)
}

func TestScheduler_PostScheduled_Outcomes(t *testing.T) {
	tests := []struct {
		name        string
		fetcher     *fakeFetcher
		checker     fakeChecker
		maintenance bool
		reactionErr error
		wantErr     bool
		wantSent    int
	}{
		{name: "maintenance skips", fetcher: &fakeFetcher{}, maintenance: true, wantSent: 0},
		{name: "fetch failure", fetcher: &fakeFetcher{err: errors.New("all failed")}, wantErr: true, wantSent: 0},
		{name: "validation failure", fetcher: &fakeFetcher{}, checker: fakeChecker{err: errors.New("too small")}, wantErr: true, wantSent: 0},
		{name: "reaction failure is tolerated", fetcher: &fakeFetcher{}, reactionErr: errors.New("not allowed"), wantSent: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := createTestScheduler(t, tt.fetcher, tt.checker, nil)
			env.poster.reactionErr = tt.reactionErr
			ctx := context.Background()
			saveSchedule(t, env.store, 7, "space", "hourly", true)
			require.NoError(t, env.store.SetSetting(ctx, store.SettingMaintenance, tt.maintenance))

			err := env.scheduler.PostScheduled(ctx, 7, "space")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantSent, env.poster.sent())
		})
	}
}

func TestCaption(t *testing.T) {
	c := Caption("city lights", &models.WallpaperDescriptor{
		ImageURL: "https://x/1.jpg", SourceName: "pexels", Width: 3840, Height: 2160,
	})
	assert.Contains(t, c, "Category: City Lights")
	assert.Contains(t, c, "Size: 3840×2160")
	assert.Contains(t, c, "Photo by Unknown on Pexels")
	assert.Contains(t, c, "[Download](https://x/1.jpg)")
}

// ==========================
// Job registration
// ==========================

func TestScheduler_StartLoadsActiveSchedules(t *testing.T) {
	env := createTestScheduler(t, &fakeFetcher{}, fakeChecker{}, nil)
	saveSchedule(t, env.store, 1, "nature", "hourly", true)
	saveSchedule(t, env.store, 2, "space", "15", true)
	saveSchedule(t, env.store, 3, "food", "daily", false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, env.scheduler.Start(ctx))
	defer env.scheduler.Stop()

	var ids []string
	for _, j := range env.scheduler.Jobs() {
		ids = append(ids, j.ID)
	}
	assert.Equal(t, []string{"schedule_1_nature_hourly", "schedule_2_space_15"}, ids)
	// The hourly schedule and the cleanup sweep.
	assert.Equal(t, 2, env.tickers.count(time.Hour))
	assert.ErrorIs(t, env.scheduler.Start(ctx), ErrAlreadyStarted)

	env.tickers.fire(15 * time.Minute)
	assert.Eventually(t, func() bool { return env.poster.sent() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_AddAndRemoveSchedule(t *testing.T) {
	env := createTestScheduler(t, &fakeFetcher{}, fakeChecker{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, env.scheduler.Start(ctx))
	defer env.scheduler.Stop()

	require.NoError(t, env.scheduler.AddSchedule(ctx, models.Schedule{ChatID: 5, Category: "nature", Interval: "daily"}))
	require.NoError(t, env.scheduler.AddSchedule(ctx, models.Schedule{ChatID: 5, Category: "nature", Interval: "weekly"}))

	jobs := env.scheduler.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "schedule_5_nature_weekly", jobs[0].ID)
	assert.Equal(t, 7*24*time.Hour, jobs[0].Every)

	stored, err := env.store.ListSchedules(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "weekly", stored[0].Interval)

	require.NoError(t, env.scheduler.RemoveSchedule(ctx, 5, "nature"))
	assert.Empty(t, env.scheduler.Jobs())

	err = env.scheduler.RemoveSchedule(ctx, 5, "nature")
	assert.Equal(t, apperrors.ErrCodeInvalidArgument, apperrors.CodeOf(err))
}

func TestScheduler_AddSchedule_Validation(t *testing.T) {
	env := createTestScheduler(t, &fakeFetcher{}, fakeChecker{}, nil)
	tests := []struct {
		name string
		sch  models.Schedule
	}{
		{"bad interval", models.Schedule{ChatID: 1, Category: "nature", Interval: "fortnightly"}},
		{"zero minutes", models.Schedule{ChatID: 1, Category: "nature", Interval: "0"}},
		{"missing chat", models.Schedule{Category: "nature", Interval: "daily"}},
		{"missing category", models.Schedule{ChatID: 1, Interval: "daily"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.scheduler.AddSchedule(context.Background(), tt.sch)
			assert.Equal(t, apperrors.ErrCodeInvalidArgument, apperrors.CodeOf(err))
		})
	}
}

func TestScheduler_AddScheduleBeforeStart(t *testing.T) {
	env := createTestScheduler(t, &fakeFetcher{}, fakeChecker{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, env.scheduler.AddSchedule(ctx, models.Schedule{ChatID: 9, Category: "cars", Interval: "hourly"}))
	assert.Empty(t, env.scheduler.Jobs())

	require.NoError(t, env.scheduler.Start(ctx))
	defer env.scheduler.Stop()
	require.Len(t, env.scheduler.Jobs(), 1)
}

func TestScheduler_AddScheduleAfterStop(t *testing.T) {
	env := createTestScheduler(t, &fakeFetcher{}, fakeChecker{}, nil)
	ctx := context.Background()

	require.NoError(t, env.scheduler.Start(ctx))
	env.scheduler.Stop()
	before := env.tickers.count(24 * time.Hour)

	require.NoError(t, env.scheduler.AddSchedule(ctx, models.Schedule{ChatID: 9, Category: "cars", Interval: "daily"}))
	assert.Empty(t, env.scheduler.Jobs())
	assert.Equal(t, before, env.tickers.count(24*time.Hour))

	stored, err := env.store.ListSchedules(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].Active)

	// A stopped scheduler can be started again and picks the schedule up.
	require.NoError(t, env.scheduler.Start(ctx))
	defer env.scheduler.Stop()
	assert.Len(t, env.scheduler.Jobs(), 1)
}

func TestScheduler_AddScheduleDuringStop(t *testing.T) {
	env := createTestScheduler(t, &fakeFetcher{}, fakeChecker{}, nil)
	ctx := context.Background()
	require.NoError(t, env.scheduler.Start(ctx))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(chat int64) {
			defer wg.Done()
			_ = env.scheduler.AddSchedule(ctx, models.Schedule{ChatID: chat, Category: "nature", Interval: "hourly"})
		}(int64(i + 1))
	}
	env.scheduler.Stop()
	wg.Wait()

	env.scheduler.Stop()
	assert.Empty(t, env.scheduler.Jobs())
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	env := createTestScheduler(t, &fakeFetcher{}, fakeChecker{}, nil)
	saveSchedule(t, env.store, 1, "nature", "hourly", true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.scheduler.Run(ctx) }()

	assert.Eventually(t, func() bool { return len(env.scheduler.Jobs()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Empty(t, env.scheduler.Jobs())
}

// ==========================
// Cleanup
// ==========================

func TestScheduler_Cleanup(t *testing.T) {
	later := time.Now().Add(31 * 24 * time.Hour)
	env := createTestScheduler(t, &fakeFetcher{}, fakeChecker{}, func() time.Time { return later })
	ctx := context.Background()

	lapsed := models.NewFreeUser(1, "a", "A", time.Now())
	lapsed.Tier = models.TierPremium
	lapsed.Expiration = models.TimePtr(later.Add(-time.Hour))
	current := models.NewFreeUser(2, "b", "B", time.Now())
	current.Tier = models.TierPremium
	current.Expiration = models.TimePtr(later.Add(time.Hour))
	free := models.NewFreeUser(3, "c", "C", time.Now())
	for _, u := range []*models.User{lapsed, current, free} {
		require.NoError(t, env.store.CreateUser(ctx, u))
	}
	require.NoError(t, env.store.LogEvent(ctx, models.LevelInfo, "old", nil))
	require.NoError(t, env.store.LogEvent(ctx, models.LevelInfo, "older", nil))

	report, err := env.scheduler.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, report.Demoted)
	assert.Equal(t, 2, report.LogsDeleted)

	u, err := env.store.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, u.Tier)
	assert.Nil(t, u.Expiration)

	u, err = env.store.GetUser(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, models.TierPremium, u.Tier)
}

// ==========================
// Posters
// ==========================

func TestWebhookPoster(t *testing.T) {
	var reaction map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/photo":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "-100", r.FormValue("chat_id"))
			assert.Equal(t, "hello", r.FormValue("caption"))
			f, _, err := r.FormFile("photo")
			require.NoError(t, err)
			data, _ := io.ReadAll(f)
			assert.Equal(t, "img", string(data))
			_, _ = w.Write([]byte(`{"message_id": 77}`))
		case "/reaction":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&reaction))
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewWebhookPoster(srv.URL+"/", commonhttp.NewClient(5*time.Second, "test-agent"))
	ctx := context.Background()

	id, err := p.PostPhoto(ctx, -100, []byte("img"), "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(77), id)

	require.NoError(t, p.SetReaction(ctx, -100, id, "🔥"))
	assert.Equal(t, "🔥", reaction["reaction"])
	assert.Equal(t, float64(77), reaction["message_id"])
}

func TestWebhookPoster_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "chat not found", http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewWebhookPoster(srv.URL, commonhttp.NewClient(5*time.Second, "test-agent"))
	_, err := p.PostPhoto(context.Background(), 1, []byte("img"), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "chat not found")
}

func TestLogPoster(t *testing.T) {
	p := NewLogPoster(logger.NewTestLogger(t))
	first, err := p.PostPhoto(context.Background(), 1, []byte("x"), "c")
	require.NoError(t, err)
	second, err := p.PostPhoto(context.Background(), 1, []byte("x"), "c")
	require.NoError(t, err)
	assert.Equal(t, first+1, second)
	assert.NoError(t, p.SetReaction(context.Background(), 1, first, "👍"))
}
