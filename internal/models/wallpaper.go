package models

// WallpaperDescriptor is the provider-independent description of one fetchable image.
type WallpaperDescriptor struct {
	ImageURL        string `json:"imageUrl"`
	DownloadURL     string `json:"downloadUrl,omitempty"`
	SourceName      string `json:"sourceName"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	Description     string `json:"description,omitempty"`
	Photographer    string `json:"photographer,omitempty"`
	PhotographerURL string `json:"photographerUrl,omitempty"`
}

// Complete reports whether the descriptor carries a target URL and positive dimensions.
func (d *WallpaperDescriptor) Complete() bool {
	return d != nil && d.ImageURL != "" && d.SourceName != "" && d.Width > 0 && d.Height > 0
}

// ChannelStats is the mean and standard deviation of one colour channel, in 0..255.
type ChannelStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std"`
}

// ImageMetadata describes decoded image bytes. On failure only Error is set.
type ImageMetadata struct {
	Format        string                  `json:"format,omitempty"`
	Mode          string                  `json:"mode,omitempty"`
	Width         int                     `json:"width,omitempty"`
	Height        int                     `json:"height,omitempty"`
	FileSizeBytes int                     `json:"fileSizeBytes,omitempty"`
	FileSizeMB    float64                 `json:"fileSizeMb,omitempty"`
	ColorStats    map[string]ChannelStats `json:"colorStats,omitempty"`
	AspectRatio   float64                 `json:"aspectRatio,omitempty"`
	Error         string                  `json:"error,omitempty"`
}

// Failed reports whether extraction produced an error-tagged result.
func (m ImageMetadata) Failed() bool {
	return m.Error != ""
}
