package sources

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"wallpaper-bot/internal/models"
)

const (
	demoWidth  = 1920
	demoHeight = 1080
)

type demoSource struct {
	baseURL string
	intn    func(n int) int
}

// NewDemo synthesises placeholder descriptors without any network call. intn
// defaults to math/rand.
func NewDemo(baseURL string, intn func(n int) int) Source {
	if intn == nil {
		intn = rand.Intn
	}
	return &demoSource{baseURL: strings.TrimRight(baseURL, "/"), intn: intn}
}

func (s *demoSource) Kind() Kind   { return KindDemo }
func (s *demoSource) Name() string { return KindDemo.String() }

func (s *demoSource) Fetch(ctx context.Context, category, _ string) (*models.WallpaperDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, sourceErr(KindDemo, ReasonRequestFailed, err)
	}

	u := fmt.Sprintf("%s/%d/%d?random=%d", s.baseURL, demoWidth, demoHeight, s.intn(1000)+1)
	description := "Beautiful wallpaper"
	if c := strings.TrimSpace(category); c != "" {
		description = fmt.Sprintf("Beautiful %s wallpaper", c)
	}

	return &models.WallpaperDescriptor{
		ImageURL:     u,
		DownloadURL:  u,
		SourceName:   KindDemo.String(),
		Width:        demoWidth,
		Height:       demoHeight,
		Description:  description,
		Photographer: "Demo Photographer",
	}, nil
}
