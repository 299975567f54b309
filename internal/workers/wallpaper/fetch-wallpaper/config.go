// internal/workers/wallpaper/fetch-wallpaper/config.go
package fetchwallpaper

import (
	"fmt"
	"time"

	"wallpaper-bot/internal/common/config"
	"wallpaper-bot/internal/sources"
)

type Config struct {
	RequestTimeout time.Duration
	UserAgent      string
	BaseURLs       sources.BaseURLs
	// MaxDownloadBytes caps one image body. It sits above the validator's size
	// limit so oversized files still reach validation.
	MaxDownloadBytes int64
}

func DefaultConfig() *Config {
	return &Config{
		RequestTimeout:   30 * time.Second,
		UserAgent:        "LastPerson07Bot/2.0.0",
		MaxDownloadBytes: 64 << 20,
	}
}

// ConfigFromProviders maps the application provider section onto this worker.
func ConfigFromProviders(p config.ProvidersConfig) *Config {
	cfg := DefaultConfig()
	if p.RequestTimeout > 0 {
		cfg.RequestTimeout = p.Timeout()
	}
	if p.UserAgent != "" {
		cfg.UserAgent = p.UserAgent
	}
	cfg.BaseURLs = sources.BaseURLs{
		Unsplash: p.UnsplashBaseURL,
		Pexels:   p.PexelsBaseURL,
		Pixabay:  p.PixabayBaseURL,
		Demo:     p.DemoBaseURL,
	}
	return cfg
}

func (c *Config) Validate() error {
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if c.MaxDownloadBytes <= 0 {
		return fmt.Errorf("max_download_bytes must be positive")
	}
	return nil
}
