// internal/workers/scheduling/post-scheduled/models.go
package postscheduled

import (
	"context"
	"time"

	"wallpaper-bot/internal/common/logger"
	"wallpaper-bot/internal/common/observability"
	"wallpaper-bot/internal/models"
	"wallpaper-bot/internal/store"
	fetchwallpaper "wallpaper-bot/internal/workers/wallpaper/fetch-wallpaper"
)

// Poster delivers a photo into a chat and reacts to the resulting message.
type Poster interface {
	PostPhoto(ctx context.Context, chatID int64, image []byte, caption string) (int64, error)
	SetReaction(ctx context.Context, chatID, messageID int64, reaction string) error
}

type Fetcher interface {
	FetchWallpaper(ctx context.Context, category string) (*fetchwallpaper.Result, error)
	DownloadImage(ctx context.Context, url string) ([]byte, error)
}

type ImageChecker interface {
	Check(data []byte) error
}

type ReactionPicker interface {
	Random() string
}

type Store interface {
	store.UserStore
	store.EventLog
	store.SettingsStore
	store.ScheduleStore
}

// Ticker is the part of time.Ticker the job loops use.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

type SchedulerDependencies struct {
	Fetcher       Fetcher
	Validator     ImageChecker
	Poster        Poster
	Reactions     ReactionPicker
	Store         Store
	Logger        logger.Logger
	Observability *observability.Observability
	Now           func() time.Time
	NewTicker     func(d time.Duration) Ticker
}

// CleanupReport summarises one sweep.
type CleanupReport struct {
	Demoted     []int64 `json:"demoted"`
	LogsDeleted int     `json:"logsDeleted"`
}

// JobInfo describes one registered schedule job.
type JobInfo struct {
	ID       string          `json:"id"`
	Schedule models.Schedule `json:"schedule"`
	Every    time.Duration   `json:"every"`
}
