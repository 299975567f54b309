// internal/workers/wallpaper/deliver-wallpaper/models.go
package deliverwallpaper

import (
	"context"
	"time"

	"wallpaper-bot/internal/common/logger"
	"wallpaper-bot/internal/common/observability"
	"wallpaper-bot/internal/models"
	checkentitlement "wallpaper-bot/internal/workers/entitlement/check-entitlement"
	fetchwallpaper "wallpaper-bot/internal/workers/wallpaper/fetch-wallpaper"
)

type Request struct {
	UserID    int64  `json:"userId"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	Category  string `json:"category"`
}

type Outcome string

const (
	OutcomeDelivered   Outcome = "delivered"
	OutcomeDenied      Outcome = "denied"
	OutcomeMaintenance Outcome = "maintenance"
	OutcomeFailed      Outcome = "failed"
)

// Delivery is what the messaging layer renders. Image and Metadata are set only
// when Outcome is delivered.
type Delivery struct {
	RequestID  string                      `json:"requestId"`
	UserID     int64                       `json:"userId"`
	Outcome    Outcome                     `json:"outcome"`
	Category   string                      `json:"category"`
	Allowance  checkentitlement.Allowance  `json:"allowance"`
	Descriptor *models.WallpaperDescriptor `json:"descriptor,omitempty"`
	Metadata   *models.ImageMetadata       `json:"metadata,omitempty"`
	Attempts   []fetchwallpaper.Attempt    `json:"attempts,omitempty"`
	Demo       bool                        `json:"demo"`
	Image      []byte                      `json:"-"`
	Duration   time.Duration               `json:"duration"`
}

type Fetcher interface {
	FetchWallpaper(ctx context.Context, category string) (*fetchwallpaper.Result, error)
	DownloadImage(ctx context.Context, url string) ([]byte, error)
}

// ImageChecker validates and describes an image from a single decode.
type ImageChecker interface {
	CheckAndExtract(data []byte) (models.ImageMetadata, error)
}

type Entitlements interface {
	CanFetch(ctx context.Context, userID int64) checkentitlement.Allowance
	RecordFetch(ctx context.Context, userID int64) error
	TryConsume(ctx context.Context, userID int64) (checkentitlement.Allowance, error)
}

// Store is the persistence the pipeline touches directly.
type Store interface {
	GetOrCreateUser(ctx context.Context, userID int64, username, firstName string, now time.Time) (*models.User, error)
	GetSetting(ctx context.Context, key string) (bool, error)
	LogEvent(ctx context.Context, level models.EventLevel, message string, userID *int64) error
}

type HandlerDependencies struct {
	Fetcher       Fetcher
	Validator     ImageChecker
	Entitlements  Entitlements
	Store         Store
	Logger        logger.Logger
	Observability *observability.Observability
	Now           func() time.Time
	NewRequestID  func() string
}
