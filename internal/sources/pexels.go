package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"wallpaper-bot/internal/common/validation"
	"wallpaper-bot/internal/models"
)

var pexelsSchema = validation.MustCompile("pexels_photo", `{
	"type": "object",
	"required": ["width", "height", "src"],
	"properties": {
		"width": {"type": "integer", "minimum": 1},
		"height": {"type": "integer", "minimum": 1},
		"src": {
			"type": "object",
			"required": ["original"],
			"properties": {"original": {"type": "string", "minLength": 1}}
		}
	}
}`)

type pexelsPhoto struct {
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	Alt             string `json:"alt"`
	Photographer    string `json:"photographer"`
	PhotographerURL string `json:"photographer_url"`
	Src             struct {
		Original string `json:"original"`
		Large2x  string `json:"large2x"`
	} `json:"src"`
}

type pexelsCodec struct{}

// NewPexels searches /v1/search, or /v1/curated when no category is given.
func NewPexels(client Doer, baseURL string) Source {
	return &httpSource{kind: KindPexels, baseURL: baseURL, client: client, codec: pexelsCodec{}}
}

func (pexelsCodec) request(ctx context.Context, baseURL, category, credential string) (*http.Request, error) {
	q := url.Values{}
	q.Set("per_page", "1")
	q.Set("orientation", "landscape")

	path := "/v1/curated"
	if c := strings.TrimSpace(category); c != "" {
		path = "/v1/search"
		q.Set("query", c)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(baseURL, "/")+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if credential != "" {
		req.Header.Set("Authorization", credential)
	}
	return req, nil
}

func (pexelsCodec) first(body []byte) ([]byte, error) {
	var page struct {
		Photos []json.RawMessage `json:"photos"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, err
	}
	if len(page.Photos) == 0 {
		return nil, errEmptyResult
	}
	return page.Photos[0], nil
}

func (pexelsCodec) schema() *validation.Schema { return pexelsSchema }

func (pexelsCodec) decode(doc []byte) (*models.WallpaperDescriptor, error) {
	var p pexelsPhoto
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, err
	}
	return &models.WallpaperDescriptor{
		ImageURL:        p.Src.Original,
		DownloadURL:     p.Src.Original,
		SourceName:      KindPexels.String(),
		Width:           p.Width,
		Height:          p.Height,
		Description:     p.Alt,
		Photographer:    p.Photographer,
		PhotographerURL: p.PhotographerURL,
	}, nil
}
