// internal/workers/scheduling/post-scheduled/post.go
package postscheduled

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.opentelemetry.io/otel/attribute"

	"wallpaper-bot/internal/common/metrics"
	"wallpaper-bot/internal/models"
	"wallpaper-bot/internal/store"
)

// PostScheduled fetches one wallpaper for category and posts it into chatID. It
// does nothing while maintenance is on.
func (s *Scheduler) PostScheduled(ctx context.Context, chatID int64, category string) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.PostTimeout)
	defer cancel()

	start := s.now()
	ctx, span := s.obs.StartSpan(ctx, TaskType,
		attribute.Int64("chat.id", chatID),
		attribute.String("wallpaper.category", category),
	)
	defer span.End()

	outcome, err := s.post(ctx, chatID, category)
	metrics.ScheduledPosts.WithLabelValues(outcome).Inc()
	s.obs.RecordJobProcessed(ctx, TaskType, outcome)
	s.obs.RecordJobDuration(ctx, TaskType, s.now().Sub(start), outcome)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (s *Scheduler) post(ctx context.Context, chatID int64, category string) (string, error) {
	fields := map[string]interface{}{"chatId": chatID, "category": category}

	if s.maintenance(ctx) {
		s.logger.Info("skipping scheduled post during maintenance", fields)
		return "skipped", nil
	}

	result, err := s.fetcher.FetchWallpaper(ctx, category)
	if err != nil {
		return "fetch_failed", fmt.Errorf("fetch for chat %d: %w", chatID, err)
	}
	desc := result.Descriptor

	data, err := s.fetcher.DownloadImage(ctx, desc.ImageURL)
	if err != nil {
		return "download_failed", fmt.Errorf("download for chat %d: %w", chatID, err)
	}
	if err := s.validator.Check(data); err != nil {
		return "rejected", fmt.Errorf("validate for chat %d: %w", chatID, err)
	}

	messageID, err := s.poster.PostPhoto(ctx, chatID, data, Caption(category, desc))
	if err != nil {
		return "post_failed", fmt.Errorf("post to chat %d: %w", chatID, err)
	}

	reaction := s.reactions.Random()
	if err := s.poster.SetReaction(ctx, chatID, messageID, reaction); err != nil {
		fields["error"] = err.Error()
		s.logger.Warn("setting reaction failed", fields)
		delete(fields, "error")
	}

	if err := s.store.UpdateScheduleLastPost(ctx, chatID, category, s.now()); err != nil {
		fields["error"] = err.Error()
		s.logger.Warn("updating last post failed", fields)
		delete(fields, "error")
	}
	s.logEvent(ctx, models.LevelInfo, fmt.Sprintf("Scheduled wallpaper sent to chat %d", chatID))

	fields["source"] = desc.SourceName
	fields["messageId"] = messageID
	s.logger.Info("scheduled wallpaper sent", fields)
	return "sent", nil
}

func (s *Scheduler) maintenance(ctx context.Context) bool {
	on, err := s.store.GetSetting(ctx, store.SettingMaintenance)
	if err != nil {
		s.logger.Warn("maintenance setting unavailable, using configured default", map[string]interface{}{
			"error": err.Error(),
		})
		return s.config.Maintenance
	}
	return on || s.config.Maintenance
}

// Caption renders the text sent with a scheduled wallpaper.
func Caption(category string, desc *models.WallpaperDescriptor) string {
	photographer := desc.Photographer
	if photographer == "" {
		photographer = "Unknown"
	}
	download := desc.DownloadURL
	if download == "" {
		download = desc.ImageURL
	}

	var b strings.Builder
	b.WriteString("🎨 **Scheduled Wallpaper**\n\n")
	fmt.Fprintf(&b, "📂 Category: %s\n", titleCase(category))
	fmt.Fprintf(&b, "📏 Size: %d×%d\n", desc.Width, desc.Height)
	fmt.Fprintf(&b, "📸 Photo by %s on %s\n", photographer, titleCase(desc.SourceName))
	fmt.Fprintf(&b, "🔗 [Download](%s)\n", download)
	return b.String()
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// Cleanup demotes lapsed premium users and drops events past the retention window.
// It keeps going after individual failures and reports them joined.
func (s *Scheduler) Cleanup(ctx context.Context) (*CleanupReport, error) {
	now := s.now()
	report := &CleanupReport{}
	var errs []error

	expired, err := s.store.ListExpiredPremium(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("list expired premium: %w", err))
	}
	for _, u := range expired {
		if err := s.store.SetUserTier(ctx, u.UserID, models.TierFree, nil); err != nil {
			errs = append(errs, fmt.Errorf("demote user %d: %w", u.UserID, err))
			continue
		}
		report.Demoted = append(report.Demoted, u.UserID)
		s.logger.Info("expired premium demoted", map[string]interface{}{"userId": u.UserID})
	}

	if s.config.LogRetentionDays > 0 {
		before := now.Add(-time.Duration(s.config.LogRetentionDays) * 24 * time.Hour)
		n, err := s.store.CleanupOldLogs(ctx, before)
		if err != nil {
			errs = append(errs, fmt.Errorf("cleanup old logs: %w", err))
		}
		report.LogsDeleted = n
		if n > 0 {
			s.logger.Info("old log entries deleted", map[string]interface{}{"deleted": n})
		}
	}

	status := "success"
	if len(errs) > 0 {
		status = "failed"
	}
	s.obs.RecordJobProcessed(ctx, CleanupJob, status)
	return report, errors.Join(errs...)
}
