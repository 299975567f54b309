// internal/workers/wallpaper/validate-image/config.go
package validateimage

import (
	"fmt"
	"strings"
)

type Config struct {
	MinWidth         int
	MinHeight        int
	MaxFileSizeBytes int
	// MaxPixels bounds width*height read from the header before any full decode.
	MaxPixels        int64
	// SupportedFormats holds lower-case names as reported by image.DecodeConfig.
	SupportedFormats []string
}

func DefaultConfig() *Config {
	return &Config{
		MinWidth:         1920,
		MinHeight:        1080,
		MaxFileSizeBytes: 20 * 1024 * 1024,
		MaxPixels:        89_478_485,
		SupportedFormats: []string{"jpeg", "png", "webp"},
	}
}

func (c *Config) Validate() error {
	if c.MinWidth <= 0 || c.MinHeight <= 0 {
		return fmt.Errorf("minimum dimensions must be positive")
	}
	if c.MaxFileSizeBytes <= 0 {
		return fmt.Errorf("max_file_size_bytes must be positive")
	}
	if c.MaxPixels < int64(c.MinWidth)*int64(c.MinHeight) {
		return fmt.Errorf("max_pixels must cover the minimum dimensions")
	}
	if len(c.SupportedFormats) == 0 {
		return fmt.Errorf("supported_formats cannot be empty")
	}
	return nil
}

func (c *Config) supports(format string) bool {
	for _, f := range c.SupportedFormats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}
