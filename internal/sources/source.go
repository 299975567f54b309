package sources

import (
	"context"
	"fmt"
	"net/http"

	"wallpaper-bot/internal/models"
)

// Source turns a category into exactly one wallpaper descriptor.
type Source interface {
	Kind() Kind
	Name() string
	Fetch(ctx context.Context, category, credential string) (*models.WallpaperDescriptor, error)
}

// Doer is the slice of an HTTP client the providers need.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Reason classifies why a provider attempt failed.
type Reason string

const (
	ReasonRequestFailed      Reason = "request_failed"
	ReasonBadStatus          Reason = "bad_status"
	ReasonEmptyResult        Reason = "empty_result"
	ReasonMalformedResponse  Reason = "malformed_response"
	ReasonIncompleteResponse Reason = "incomplete_response"
)

// SourceError is the typed failure every provider returns instead of panicking.
type SourceError struct {
	Source     string
	Reason     Reason
	StatusCode int
	Err        error
}

func (e *SourceError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Source, e.Reason)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

func sourceErr(kind Kind, reason Reason, err error) *SourceError {
	return &SourceError{Source: kind.String(), Reason: reason, Err: err}
}

// BaseURLs overrides provider endpoints, mostly for tests.
type BaseURLs struct {
	Unsplash string
	Pexels   string
	Pixabay  string
	Demo     string
}

const (
	DefaultUnsplashBaseURL = "https://api.unsplash.com"
	DefaultPexelsBaseURL   = "https://api.pexels.com"
	DefaultPixabayBaseURL  = "https://pixabay.com"
	DefaultDemoBaseURL     = "https://picsum.photos"
)

func pick(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// New builds the source for kind. The demo source ignores client.
func New(kind Kind, client Doer, urls BaseURLs) (Source, error) {
	switch kind {
	case KindUnsplash:
		return NewUnsplash(client, pick(urls.Unsplash, DefaultUnsplashBaseURL)), nil
	case KindPexels:
		return NewPexels(client, pick(urls.Pexels, DefaultPexelsBaseURL)), nil
	case KindPixabay:
		return NewPixabay(client, pick(urls.Pixabay, DefaultPixabayBaseURL)), nil
	case KindDemo:
		return NewDemo(pick(urls.Demo, DefaultDemoBaseURL), nil), nil
	default:
		return nil, fmt.Errorf("unsupported source kind: %s", kind)
	}
}
