package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"wallpaper-bot/internal/common/validation"
	"wallpaper-bot/internal/models"
)

// pixabayDemoKey is sent when no key is configured. Pixabay rejects it, which
// surfaces as a bad_status failure.
const pixabayDemoKey = "demo-key"

// pixabayCategories is the closed category set the API accepts.
var pixabayCategories = map[string]bool{
	"backgrounds": true, "fashion": true, "nature": true, "science": true,
	"education": true, "feelings": true, "health": true, "people": true,
	"religion": true, "places": true, "animals": true, "industry": true,
	"computer": true, "food": true, "sports": true, "transportation": true,
	"travel": true, "buildings": true, "business": true, "music": true,
}

var pixabayAliases = map[string]string{
	"architecture": "buildings",
	"technology":   "computer",
	"abstract":     "backgrounds",
}

// PixabayCategory maps a free-text category onto the closed set. ok is false
// when the parameter should be omitted.
func PixabayCategory(category string) (string, bool) {
	c := strings.ToLower(strings.TrimSpace(category))
	if alias, found := pixabayAliases[c]; found {
		c = alias
	}
	if pixabayCategories[c] {
		return c, true
	}
	return "", false
}

var pixabaySchema = validation.MustCompile("pixabay_hit", `{
	"type": "object",
	"required": ["imageWidth", "imageHeight", "largeImageURL"],
	"properties": {
		"imageWidth": {"type": "integer", "minimum": 1},
		"imageHeight": {"type": "integer", "minimum": 1},
		"largeImageURL": {"type": "string", "minLength": 1}
	}
}`)

type pixabayHit struct {
	ImageWidth    int    `json:"imageWidth"`
	ImageHeight   int    `json:"imageHeight"`
	Tags          string `json:"tags"`
	User          string `json:"user"`
	UserID        int64  `json:"user_id"`
	LargeImageURL string `json:"largeImageURL"`
	FullHDURL     string `json:"fullHDURL"`
}

type pixabayCodec struct{}

// NewPixabay queries /api/ with the key in the query string.
func NewPixabay(client Doer, baseURL string) Source {
	return &httpSource{kind: KindPixabay, baseURL: baseURL, client: client, codec: pixabayCodec{}}
}

func (pixabayCodec) request(ctx context.Context, baseURL, category, credential string) (*http.Request, error) {
	key := credential
	if key == "" {
		key = pixabayDemoKey
	}

	q := url.Values{}
	q.Set("key", key)
	q.Set("per_page", "3")
	q.Set("image_type", "photo")
	q.Set("orientation", "horizontal")
	q.Set("min_width", "1920")
	q.Set("min_height", "1080")
	q.Set("safesearch", "true")
	if c, ok := PixabayCategory(category); ok {
		q.Set("category", c)
	}

	return http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(baseURL, "/")+"/api/?"+q.Encode(), nil)
}

func (pixabayCodec) first(body []byte) ([]byte, error) {
	var page struct {
		Hits []json.RawMessage `json:"hits"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, err
	}
	if len(page.Hits) == 0 {
		return nil, errEmptyResult
	}
	return page.Hits[0], nil
}

func (pixabayCodec) schema() *validation.Schema { return pixabaySchema }

func (pixabayCodec) decode(doc []byte) (*models.WallpaperDescriptor, error) {
	var h pixabayHit
	if err := json.Unmarshal(doc, &h); err != nil {
		return nil, err
	}

	imageURL := h.FullHDURL
	if imageURL == "" {
		imageURL = h.LargeImageURL
	}
	photographer := h.User
	if photographer == "" {
		photographer = "Pixabay User"
	}
	var photographerURL string
	if h.UserID != 0 {
		photographerURL = fmt.Sprintf("https://pixabay.com/users/%d", h.UserID)
	}

	return &models.WallpaperDescriptor{
		ImageURL:        imageURL,
		DownloadURL:     h.LargeImageURL,
		SourceName:      KindPixabay.String(),
		Width:           h.ImageWidth,
		Height:          h.ImageHeight,
		Description:     h.Tags,
		Photographer:    photographer,
		PhotographerURL: photographerURL,
	}, nil
}
