// internal/workers/wallpaper/fetch-wallpaper/models.go
package fetchwallpaper

import (
	"time"

	"wallpaper-bot/internal/common/config"
	"wallpaper-bot/internal/common/logger"
	"wallpaper-bot/internal/models"
	"wallpaper-bot/internal/sources"
)

// CredentialProvider is consulted on every fetch, so rotated keys apply without a restart.
type CredentialProvider interface {
	Credential(kind sources.Kind) string
}

// StaticCredentials holds fixed provider keys.
type StaticCredentials struct {
	Unsplash string
	Pexels   string
	Pixabay  string
}

func (c StaticCredentials) Credential(kind sources.Kind) string {
	switch kind {
	case sources.KindUnsplash:
		return c.Unsplash
	case sources.KindPexels:
		return c.Pexels
	case sources.KindPixabay:
		return c.Pixabay
	default:
		return ""
	}
}

func CredentialsFromConfig(p config.ProvidersConfig) StaticCredentials {
	return StaticCredentials{Unsplash: p.UnsplashKey, Pexels: p.PexelsKey, Pixabay: p.PixabayKey}
}

// Attempt records one source call in the fallback chain.
type Attempt struct {
	Source   string        `json:"source"`
	Success  bool          `json:"success"`
	Reason   string        `json:"reason,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Result is the winning descriptor and the ordered attempts that led to it.
type Result struct {
	Descriptor *models.WallpaperDescriptor `json:"descriptor"`
	Attempts   []Attempt                   `json:"attempts"`
	Demo       bool                        `json:"demo"`
}

type ServiceDependencies struct {
	Logger      logger.Logger
	HTTPClient  sources.Doer
	Credentials CredentialProvider
	// Sources replaces the built-in providers by kind. Missing kinds use the defaults.
	Sources map[sources.Kind]sources.Source
}
