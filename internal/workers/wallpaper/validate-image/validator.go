// internal/workers/wallpaper/validate-image/validator.go
package validateimage

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"wallpaper-bot/internal/common/logger"
	"wallpaper-bot/internal/common/metrics"
	"wallpaper-bot/internal/models"
)

const (
	TaskType = "validate-image"
)

type Validator struct {
	config *Config
	logger logger.Logger
}

func NewValidator(cfg *Config, log logger.Logger) (*Validator, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Validator{
		config: cfg,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}, nil
}

// Validate reports whether data passes every quality check. It never panics.
func (v *Validator) Validate(data []byte) bool {
	return v.Check(data) == nil
}

// Check returns nil or a *Rejection naming the first failed check.
func (v *Validator) Check(data []byte) error {
	_, _, rej := v.inspect(data)
	return v.record(data, rej)
}

// CheckAndExtract runs Check and ExtractMetadata over a single full decode.
func (v *Validator) CheckAndExtract(data []byte) (models.ImageMetadata, error) {
	img, format, rej := v.inspect(data)
	if err := v.record(data, rej); err != nil {
		return models.ImageMetadata{Error: err.Error()}, err
	}
	return v.metadata(img, format, len(data)), nil
}

func (v *Validator) record(data []byte, rej *Rejection) error {
	if rej != nil {
		metrics.ValidationResults.WithLabelValues(string(rej.Reason)).Inc()
		v.logger.Warn("image rejected", map[string]interface{}{
			"reason": string(rej.Reason),
			"detail": rej.Detail,
			"bytes":  len(data),
		})
		return rej
	}
	metrics.ValidationResults.WithLabelValues("accepted").Inc()
	return nil
}

// inspect checks the header first and only decodes pixels once it has passed.
func (v *Validator) inspect(data []byte) (image.Image, string, *Rejection) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", reject(RejectDecodeFailed, "%v", err)
	}
	if !v.config.supports(format) {
		return nil, "", reject(RejectUnsupportedFormat, "format %s", format)
	}
	if cfg.Width < v.config.MinWidth || cfg.Height < v.config.MinHeight {
		return nil, "", reject(RejectTooSmall, "%dx%d below %dx%d",
			cfg.Width, cfg.Height, v.config.MinWidth, v.config.MinHeight)
	}
	if rej := v.pixelBudget(cfg); rej != nil {
		return nil, "", rej
	}
	if len(data) > v.config.MaxFileSizeBytes {
		return nil, "", reject(RejectTooLarge, "%d bytes above %d", len(data), v.config.MaxFileSizeBytes)
	}
	// The header can be intact while the pixel data is truncated.
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", reject(RejectDecodeFailed, "%v", err)
	}
	return img, format, nil
}

func (v *Validator) pixelBudget(cfg image.Config) *Rejection {
	if px := int64(cfg.Width) * int64(cfg.Height); px > v.config.MaxPixels {
		return reject(RejectTooManyPixels, "%dx%d is %d pixels, above %d",
			cfg.Width, cfg.Height, px, v.config.MaxPixels)
	}
	return nil
}

// ExtractMetadata decodes data in full. Failures come back error-tagged, not as an error.
func (v *Validator) ExtractMetadata(data []byte) models.ImageMetadata {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return v.metadataErr(err)
	}
	if rej := v.pixelBudget(cfg); rej != nil {
		return v.metadataErr(rej)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return v.metadataErr(err)
	}
	return v.metadata(img, format, len(data))
}

func (v *Validator) metadata(img image.Image, format string, size int) models.ImageMetadata {
	b := img.Bounds()
	if b.Dy() == 0 {
		return v.metadataErr(errors.New("image has zero height"))
	}

	return models.ImageMetadata{
		Format:        strings.ToUpper(format),
		Mode:          colorMode(img.ColorModel()),
		Width:         b.Dx(),
		Height:        b.Dy(),
		FileSizeBytes: size,
		FileSizeMB:    float64(size) / (1024 * 1024),
		ColorStats:    channelStats(img),
		AspectRatio:   float64(b.Dx()) / float64(b.Dy()),
	}
}

func (v *Validator) metadataErr(err error) models.ImageMetadata {
	v.logger.Debug("metadata extraction failed", map[string]interface{}{"error": err.Error()})
	return models.ImageMetadata{Error: err.Error()}
}

// channelStats computes population mean and standard deviation per RGB channel
// over the NRGBA form of img.
func channelStats(img image.Image) map[string]models.ChannelStats {
	n := imaging.Clone(img)
	var sum, sumSq [3]float64
	var count float64

	for y := 0; y < n.Rect.Dy(); y++ {
		row := n.Pix[y*n.Stride : y*n.Stride+n.Rect.Dx()*4]
		for i := 0; i < len(row); i += 4 {
			for c := 0; c < 3; c++ {
				p := float64(row[i+c])
				sum[c] += p
				sumSq[c] += p * p
			}
			count++
		}
	}

	names := [3]string{"red", "green", "blue"}
	out := make(map[string]models.ChannelStats, 3)
	for c, name := range names {
		if count == 0 {
			out[name] = models.ChannelStats{}
			continue
		}
		mean := sum[c] / count
		variance := sumSq[c]/count - mean*mean
		if variance < 0 {
			variance = 0
		}
		out[name] = models.ChannelStats{Mean: mean, StdDev: math.Sqrt(variance)}
	}
	return out
}

func colorMode(m color.Model) string {
	switch m {
	case color.GrayModel:
		return "L"
	case color.Gray16Model:
		return "I;16"
	case color.CMYKModel:
		return "CMYK"
	case color.RGBAModel, color.NRGBAModel, color.RGBA64Model, color.NRGBA64Model, color.NYCbCrAModel:
		return "RGBA"
	case color.YCbCrModel:
		return "RGB"
	}
	if _, ok := m.(color.Palette); ok {
		return "P"
	}
	return "RGB"
}
