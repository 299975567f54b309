// internal/workers/wallpaper/deliver-wallpaper/handler.go
package deliverwallpaper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "wallpaper-bot/internal/common/errors"
	"wallpaper-bot/internal/common/logger"
	"wallpaper-bot/internal/common/metrics"
	"wallpaper-bot/internal/common/observability"
	"wallpaper-bot/internal/models"
	"wallpaper-bot/internal/store"
)

const (
	TaskType = "deliver-wallpaper"
)

// Handler runs one user fetch request end to end. Runs for different users share
// nothing but the store.
type Handler struct {
	config       *Config
	fetcher      Fetcher
	validator    ImageChecker
	entitlements Entitlements
	store        Store
	obs          *observability.Observability
	logger       logger.Logger
	now          func() time.Time
	newID        func() string
}

func NewHandler(deps HandlerDependencies, cfg *Config) (*Handler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewInvalidConfigurationError(err.Error())
	}
	if deps.Fetcher == nil || deps.Validator == nil || deps.Entitlements == nil || deps.Store == nil {
		return nil, apperrors.NewInvalidConfigurationError("fetcher, validator, entitlements and store are required")
	}

	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	newID := deps.NewRequestID
	if newID == nil {
		newID = uuid.NewString
	}

	return &Handler{
		config:       cfg,
		fetcher:      deps.Fetcher,
		validator:    deps.Validator,
		entitlements: deps.Entitlements,
		store:        deps.Store,
		obs:          deps.Observability,
		logger:       log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:          now,
		newID:        newID,
	}, nil
}

// Handle runs allowance, fetch, download, validation and recording in order. Denial
// and maintenance are returned as outcomes with a nil error. Failures return a
// Delivery with OutcomeFailed alongside a typed error.
func (h *Handler) Handle(ctx context.Context, req Request) (*Delivery, error) {
	start := h.now()
	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = h.config.DefaultCategory
	}

	d := &Delivery{RequestID: h.newID(), UserID: req.UserID, Category: category}
	log := h.logger.WithFields(map[string]interface{}{
		"requestId": d.RequestID,
		"userId":    req.UserID,
		"category":  category,
	})

	if req.UserID == 0 {
		return h.fail(ctx, log, d, start, apperrors.NewInvalidArgumentError("userId is required"))
	}

	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	ctx, span := h.obs.StartSpan(ctx, TaskType,
		attribute.Int64("user.id", req.UserID),
		attribute.String("wallpaper.category", category),
		attribute.String("request.id", d.RequestID),
	)
	defer span.End()

	log.Info("processing fetch request", nil)

	if _, err := h.store.GetOrCreateUser(ctx, req.UserID, req.Username, req.FirstName, start); err != nil {
		log.Warn("ensure user failed", map[string]interface{}{"error": err.Error()})
	}

	if req.UserID != h.config.OwnerUserID && h.maintenance(ctx, log) {
		d.Outcome = OutcomeMaintenance
		log.Info("request refused during maintenance", nil)
		return h.finish(ctx, d, start), nil
	}

	d.Allowance = h.entitlements.CanFetch(ctx, req.UserID)
	if !d.Allowance.Allowed {
		d.Outcome = OutcomeDenied
		log.Info("fetch denied", map[string]interface{}{"remaining": d.Allowance.Remaining})
		return h.finish(ctx, d, start), nil
	}

	result, err := h.fetcher.FetchWallpaper(ctx, category)
	if result != nil {
		d.Attempts = result.Attempts
		d.Demo = result.Demo
	}
	if err != nil {
		return h.fail(ctx, log, d, start, err)
	}
	d.Descriptor = result.Descriptor
	span.SetAttributes(attribute.String("wallpaper.source", d.Descriptor.SourceName))

	data, err := h.fetcher.DownloadImage(ctx, d.Descriptor.ImageURL)
	if err != nil {
		return h.fail(ctx, log, d, start, err)
	}

	meta, err := h.validator.CheckAndExtract(data)
	if err != nil {
		return h.fail(ctx, log, d, start, err)
	}
	d.Metadata = &meta
	d.Image = data

	if !h.record(ctx, log, d) {
		d.Outcome = OutcomeDenied
		d.Image = nil
		d.Metadata = nil
		log.Info("quota taken by a concurrent request", nil)
		return h.finish(ctx, d, start), nil
	}

	h.logEvent(ctx, log, models.LevelInfo,
		fmt.Sprintf("User %d fetched wallpaper from %s", req.UserID, d.Descriptor.SourceName), req.UserID)

	d.Outcome = OutcomeDelivered
	log.Info("wallpaper delivered", map[string]interface{}{
		"source":    d.Descriptor.SourceName,
		"bytes":     len(data),
		"remaining": d.Allowance.Remaining,
	})
	return h.finish(ctx, d, start), nil
}

// record counts the delivery. It reports false only when atomic mode finds the
// quota already spent.
func (h *Handler) record(ctx context.Context, log logger.Logger, d *Delivery) bool {
	if h.config.AtomicConsume {
		a, err := h.entitlements.TryConsume(ctx, d.UserID)
		if err != nil {
			log.Warn("consume failed, delivering anyway", map[string]interface{}{"error": err.Error()})
		}
		d.Allowance = a
		return a.Allowed
	}

	if err := h.entitlements.RecordFetch(ctx, d.UserID); err != nil {
		log.Warn("record fetch failed", map[string]interface{}{"error": err.Error()})
	}
	if !d.Allowance.IsUnlimited() && d.Allowance.Remaining > 0 {
		d.Allowance.Remaining--
	}
	return true
}

func (h *Handler) maintenance(ctx context.Context, log logger.Logger) bool {
	on, err := h.store.GetSetting(ctx, store.SettingMaintenance)
	if err != nil {
		log.Warn("maintenance setting unavailable, using configured default", map[string]interface{}{
			"error":       err.Error(),
			"maintenance": h.config.Maintenance,
		})
		return h.config.Maintenance
	}
	return on || h.config.Maintenance
}

func (h *Handler) logEvent(ctx context.Context, log logger.Logger, level models.EventLevel, msg string, userID int64) {
	if err := h.store.LogEvent(ctx, level, msg, &userID); err != nil {
		log.Warn("event log write failed", map[string]interface{}{"error": err.Error()})
	}
}

func (h *Handler) fail(ctx context.Context, log logger.Logger, d *Delivery, start time.Time, err error) (*Delivery, error) {
	d.Outcome = OutcomeFailed
	code := apperrors.CodeOf(err)
	log.Warn("fetch request failed", map[string]interface{}{
		"errorCode": string(code),
		"error":     err.Error(),
		"attempts":  len(d.Attempts),
	})
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, string(code))
	if code != apperrors.ErrCodeInvalidArgument {
		h.logEvent(ctx, log, models.LevelError,
			fmt.Sprintf("Wallpaper fetch failed for category %s: %s", d.Category, code), d.UserID)
	}
	return h.finish(ctx, d, start), err
}

func (h *Handler) finish(ctx context.Context, d *Delivery, start time.Time) *Delivery {
	d.Duration = h.now().Sub(start)
	outcome := string(d.Outcome)
	metrics.Deliveries.WithLabelValues(outcome).Inc()
	metrics.DeliveryDuration.WithLabelValues(outcome).Observe(d.Duration.Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, outcome)
	h.obs.RecordJobDuration(ctx, TaskType, d.Duration, outcome)
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("delivery.outcome", outcome))
	return d
}
