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

var unsplashSchema = validation.MustCompile("unsplash_photo", `{
	"type": "object",
	"required": ["width", "height", "urls"],
	"properties": {
		"width": {"type": "integer", "minimum": 1},
		"height": {"type": "integer", "minimum": 1},
		"urls": {
			"type": "object",
			"anyOf": [{"required": ["full"]}, {"required": ["regular"]}]
		}
	}
}`)

type unsplashPhoto struct {
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Description    string `json:"description"`
	AltDescription string `json:"alt_description"`
	URLs           struct {
		Full    string `json:"full"`
		Regular string `json:"regular"`
	} `json:"urls"`
	Links struct {
		DownloadLocation string `json:"download_location"`
	} `json:"links"`
	User struct {
		Name  string `json:"name"`
		Links struct {
			HTML string `json:"html"`
		} `json:"links"`
	} `json:"user"`
}

type unsplashCodec struct{}

// NewUnsplash queries /photos/random with a Client-ID header.
func NewUnsplash(client Doer, baseURL string) Source {
	return &httpSource{kind: KindUnsplash, baseURL: baseURL, client: client, codec: unsplashCodec{}}
}

func (unsplashCodec) request(ctx context.Context, baseURL, category, credential string) (*http.Request, error) {
	q := url.Values{}
	q.Set("orientation", "landscape")
	q.Set("content_filter", "high")
	if c := strings.TrimSpace(category); c != "" {
		q.Set("query", c)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(baseURL, "/")+"/photos/random?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if credential != "" {
		req.Header.Set("Authorization", "Client-ID "+credential)
	}
	req.Header.Set("Accept-Version", "v1")
	return req, nil
}

func (unsplashCodec) first(body []byte) ([]byte, error) {
	if !json.Valid(body) {
		return nil, fmt.Errorf("invalid json body")
	}
	return body, nil
}

func (unsplashCodec) schema() *validation.Schema { return unsplashSchema }

func (unsplashCodec) decode(doc []byte) (*models.WallpaperDescriptor, error) {
	var p unsplashPhoto
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, err
	}

	imageURL := p.URLs.Full
	if imageURL == "" {
		imageURL = p.URLs.Regular
	}
	description := p.Description
	if description == "" {
		description = p.AltDescription
	}

	return &models.WallpaperDescriptor{
		ImageURL:        imageURL,
		DownloadURL:     p.Links.DownloadLocation,
		SourceName:      KindUnsplash.String(),
		Width:           p.Width,
		Height:          p.Height,
		Description:     description,
		Photographer:    p.User.Name,
		PhotographerURL: p.User.Links.HTML,
	}, nil
}
