// internal/workers/scheduling/post-scheduled/scheduler.go
package postscheduled

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "wallpaper-bot/internal/common/errors"
	"wallpaper-bot/internal/common/logger"
	"wallpaper-bot/internal/common/metrics"
	"wallpaper-bot/internal/common/observability"
	"wallpaper-bot/internal/models"
	"wallpaper-bot/internal/store"
)

const (
	TaskType   = "post-scheduled"
	CleanupJob = "cleanup_job"
)

var (
	ErrNotStarted     = errors.New("SCHEDULER_NOT_STARTED")
	ErrAlreadyStarted = errors.New("SCHEDULER_ALREADY_STARTED")
)

type job struct {
	info JobInfo
	stop context.CancelFunc
}

// Scheduler runs one ticker goroutine per active schedule plus the cleanup sweep.
type Scheduler struct {
	config    *Config
	fetcher   Fetcher
	validator ImageChecker
	poster    Poster
	reactions ReactionPicker
	store     Store
	obs       *observability.Observability
	logger    logger.Logger
	now       func() time.Time
	newTicker func(d time.Duration) Ticker

	mu     sync.Mutex
	base   context.Context
	cancel context.CancelFunc
	jobs   map[string]*job
	wg     sync.WaitGroup
}

func NewScheduler(deps SchedulerDependencies, cfg *Config) (*Scheduler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewInvalidConfigurationError(err.Error())
	}
	if deps.Fetcher == nil || deps.Validator == nil || deps.Poster == nil || deps.Reactions == nil || deps.Store == nil {
		return nil, apperrors.NewInvalidConfigurationError("fetcher, validator, poster, reactions and store are required")
	}

	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	newTicker := deps.NewTicker
	if newTicker == nil {
		newTicker = newTimeTicker
	}

	return &Scheduler{
		config:    cfg,
		fetcher:   deps.Fetcher,
		validator: deps.Validator,
		poster:    deps.Poster,
		reactions: deps.Reactions,
		store:     deps.Store,
		obs:       deps.Observability,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:       now,
		newTicker: newTicker,
		jobs:      make(map[string]*job),
	}, nil
}

// Start loads the stored schedules and starts the cleanup sweep. A failed load is
// logged and leaves the scheduler running with no schedule jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.base != nil {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.base, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		s.logger.Error("loading schedules failed", map[string]interface{}{"error": err.Error()})
	}
	loaded := 0
	for _, sch := range schedules {
		if !sch.Active {
			continue
		}
		if err := s.register(sch); err != nil {
			s.logger.Warn("skipping schedule", map[string]interface{}{
				"jobId": sch.JobID(),
				"error": err.Error(),
			})
			continue
		}
		loaded++
	}

	s.spawn(s.config.CleanupInterval, func(ctx context.Context) {
		if _, err := s.Cleanup(ctx); err != nil {
			s.logger.Error("cleanup failed", map[string]interface{}{"error": err.Error()})
		}
	})

	s.logger.Info("scheduler started", map[string]interface{}{
		"schedules":       loaded,
		"cleanupInterval": s.config.CleanupInterval.String(),
	})
	return nil
}

// Run starts the scheduler and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// Stop cancels every job and waits for in-flight posts to return. Jobs added after
// Stop are stored but not started.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.base, s.cancel = nil, nil
	s.jobs = make(map[string]*job)
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	metrics.ActiveSchedules.Set(0)
	s.logger.Info("scheduler stopped", nil)
}

// AddSchedule persists sch as active and registers its job. Saving an existing
// chat and category keeps its last post time.
func (s *Scheduler) AddSchedule(ctx context.Context, sch models.Schedule) error {
	if sch.ChatID == 0 || strings.TrimSpace(sch.Category) == "" {
		return apperrors.NewInvalidArgumentError("chatId and category are required")
	}
	if _, err := models.ParseInterval(sch.Interval); err != nil {
		return apperrors.NewInvalidArgumentError(err.Error())
	}
	sch.Active = true
	if sch.CreatedAt.IsZero() {
		sch.CreatedAt = s.now().UTC()
	}
	if err := s.store.SaveSchedule(ctx, sch); err != nil {
		return apperrors.NewStoreUnavailableError("save_schedule", err)
	}

	// Another interval for the same chat and category replaces the old job.
	s.unregister(sch.ChatID, sch.Category)
	if err := s.register(sch); err != nil && !errors.Is(err, ErrNotStarted) {
		return err
	}

	s.logEvent(ctx, models.LevelInfo, fmt.Sprintf("Schedule %s added", sch.JobID()))
	return nil
}

// RemoveSchedule deletes the stored schedule and stops its job.
func (s *Scheduler) RemoveSchedule(ctx context.Context, chatID int64, category string) error {
	if err := s.store.DeleteSchedule(ctx, chatID, category); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NewInvalidArgumentError(fmt.Sprintf("no schedule for chat %d and category %s", chatID, category))
		}
		return apperrors.NewStoreUnavailableError("delete_schedule", err)
	}
	s.unregister(chatID, category)
	s.logEvent(ctx, models.LevelInfo, fmt.Sprintf("Schedule for chat %d category %s removed", chatID, category))
	return nil
}

// Jobs lists the registered schedule jobs ordered by id.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.info)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

func (s *Scheduler) register(sch models.Schedule) error {
	every, err := models.ParseInterval(sch.Interval)
	if err != nil {
		return apperrors.NewInvalidArgumentError(err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base == nil {
		return ErrNotStarted
	}

	id := sch.JobID()
	if old, ok := s.jobs[id]; ok {
		old.stop()
	}
	ctx, stop := context.WithCancel(s.base)
	s.jobs[id] = &job{info: JobInfo{ID: id, Schedule: sch, Every: every}, stop: stop}
	metrics.ActiveSchedules.Set(float64(len(s.jobs)))

	s.wg.Add(1)
	go s.loop(ctx, every, func(ctx context.Context) {
		if err := s.PostScheduled(ctx, sch.ChatID, sch.Category); err != nil {
			s.logger.Error("scheduled post failed", map[string]interface{}{
				"jobId": id,
				"error": err.Error(),
			})
		}
	})

	s.logger.Info("schedule job added", map[string]interface{}{"jobId": id, "every": every.String()})
	return nil
}

func (s *Scheduler) unregister(chatID int64, category string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, j := range s.jobs {
		if j.info.Schedule.ChatID == chatID && j.info.Schedule.Category == category {
			j.stop()
			delete(s.jobs, id)
			s.logger.Info("schedule job removed", map[string]interface{}{"jobId": id})
		}
	}
	metrics.ActiveSchedules.Set(float64(len(s.jobs)))
}

func (s *Scheduler) spawn(every time.Duration, fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base == nil {
		return
	}
	s.wg.Add(1)
	go s.loop(s.base, every, fn)
}

func (s *Scheduler) loop(ctx context.Context, every time.Duration, fn func(ctx context.Context)) {
	defer s.wg.Done()
	t := s.newTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			fn(ctx)
		}
	}
}

func (s *Scheduler) logEvent(ctx context.Context, level models.EventLevel, msg string) {
	if err := s.store.LogEvent(ctx, level, msg, nil); err != nil {
		s.logger.Warn("event log write failed", map[string]interface{}{"error": err.Error()})
	}
}
