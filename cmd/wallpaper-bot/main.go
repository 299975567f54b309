package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"wallpaper-bot/internal/api"
	"wallpaper-bot/internal/common/config"
	"wallpaper-bot/internal/common/database"
	commonhttp "wallpaper-bot/internal/common/http"
	"wallpaper-bot/internal/common/logger"
	"wallpaper-bot/internal/common/observability"
	"wallpaper-bot/internal/store"
	moderateuser "wallpaper-bot/internal/workers/admin/moderate-user"
	selectreaction "wallpaper-bot/internal/workers/engagement/select-reaction"
	checkentitlement "wallpaper-bot/internal/workers/entitlement/check-entitlement"
	postscheduled "wallpaper-bot/internal/workers/scheduling/post-scheduled"
	deliverwallpaper "wallpaper-bot/internal/workers/wallpaper/deliver-wallpaper"
	fetchwallpaper "wallpaper-bot/internal/workers/wallpaper/fetch-wallpaper"
	validateimage "wallpaper-bot/internal/workers/wallpaper/validate-image"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	boot := logger.New("info", "console")

	cfg, err := config.Load()
	if err != nil {
		boot.Fatal("config load failed", zap.Error(err))
	}
	_ = boot.Sync()

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting wallpaper bot...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("storeDriver", cfg.Database.Driver),
		zap.Bool("demoMode", cfg.Providers.DemoMode()),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Store with retry ---
	conns, err := database.Open(cfg.Database)
	if err != nil {
		zapLog.Fatal("database open failed", zap.Error(err))
	}
	err = retryWithBackoff(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return conns.Ping(pingCtx)
	}, 10, 2*time.Second, zapLog, "Store connection")
	if err != nil {
		zapLog.Fatal("store unreachable after retries", zap.Error(err))
	}

	deps := store.Dependencies{}
	if conns.Redis != nil {
		deps.Redis = conns.Redis.Client
	}
	if conns.Postgres != nil {
		deps.Postgres = conns.Postgres.DB
		if err := store.Migrate(ctx, conns.Postgres.DB); err != nil {
			zapLog.Fatal("schema migration failed", zap.Error(err))
		}
	}
	st, err := store.New(cfg.Database, deps)
	if err != nil {
		zapLog.Fatal("store init failed", zap.Error(err))
	}
	// Closing the store closes the underlying client.
	defer st.Close()
	zapLog.Info("Store ready", zap.String("driver", cfg.Database.Driver))

	// --- Services ---
	client := commonhttp.NewClient(cfg.Providers.Timeout(), cfg.Providers.UserAgent)

	fetcher, err := fetchwallpaper.NewService(fetchwallpaper.ServiceDependencies{
		Logger:      log,
		HTTPClient:  client,
		Credentials: fetchwallpaper.CredentialsFromConfig(cfg.Providers),
	}, fetchwallpaper.ConfigFromProviders(cfg.Providers))
	if err != nil {
		zapLog.Fatal("failed to create fetch service", zap.Error(err))
	}

	validator, err := validateimage.NewValidator(validateimage.DefaultConfig(), log)
	if err != nil {
		zapLog.Fatal("failed to create image validator", zap.Error(err))
	}

	tracker, err := checkentitlement.NewTracker(checkentitlement.TrackerDependencies{
		Store:  st,
		Logger: log,
	}, checkentitlement.ConfigFromApp(cfg))
	if err != nil {
		zapLog.Fatal("failed to create entitlement tracker", zap.Error(err))
	}

	deliverer, err := deliverwallpaper.NewHandler(deliverwallpaper.HandlerDependencies{
		Fetcher:       fetcher,
		Validator:     validator,
		Entitlements:  tracker,
		Store:         st,
		Logger:        log,
		Observability: obs,
	}, deliverwallpaper.ConfigFromApp(cfg))
	if err != nil {
		zapLog.Fatal("failed to create delivery handler", zap.Error(err))
	}

	reactions, err := selectreaction.NewSelector(&selectreaction.Config{Reactions: cfg.Reactions})
	if err != nil {
		zapLog.Fatal("failed to create reaction selector", zap.Error(err))
	}

	var poster postscheduled.Poster = postscheduled.NewLogPoster(log)
	if cfg.Scheduler.WebhookURL != "" {
		poster = postscheduled.NewWebhookPoster(cfg.Scheduler.WebhookURL, client)
	} else {
		zapLog.Warn("scheduler.webhook_url is empty, scheduled posts are logged only")
	}

	scheduler, err := postscheduled.NewScheduler(postscheduled.SchedulerDependencies{
		Fetcher:       fetcher,
		Validator:     validator,
		Poster:        poster,
		Reactions:     reactions,
		Store:         st,
		Logger:        log,
		Observability: obs,
	}, postscheduled.ConfigFromApp(cfg))
	if err != nil {
		zapLog.Fatal("failed to create scheduler", zap.Error(err))
	}

	admin, err := moderateuser.NewService(moderateuser.ServiceDependencies{
		Store:  st,
		Logger: log,
	}, moderateuser.ConfigFromApp(cfg))
	if err != nil {
		zapLog.Fatal("failed to create admin service", zap.Error(err))
	}

	// --- Gateway API, metrics and probes ---
	srv := &http.Server{
		Addr: cfg.Server.Address,
		Handler: api.NewServer(api.Dependencies{
			Deliverer:  deliverer,
			Stats:      tracker,
			Moderator:  admin,
			Scheduler:  scheduler,
			Store:      st,
			Logger:     log,
			Categories: cfg.Categories,
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zapLog.Info("API server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zapLog.Info("Shutdown signal received, stopping...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Scheduler.Enabled {
		g.Go(func() error {
			return scheduler.Run(gctx)
		})
	} else {
		zapLog.Info("Scheduler disabled")
	}

	if err := g.Wait(); err != nil {
		zapLog.Error("Wallpaper bot stopped with error", zap.Error(err))
		return
	}
	zapLog.Info("Wallpaper bot stopped gracefully")
}
