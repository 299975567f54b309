package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"wallpaper-bot/internal/common/metrics"
	"wallpaper-bot/internal/common/validation"
	"wallpaper-bot/internal/models"
)

// maxResponseBytes caps how much of a provider JSON body is read.
const maxResponseBytes = 2 << 20

var errEmptyResult = errors.New("no results")

// codec is the per-provider half of an HTTP source.
type codec interface {
	// request builds the GET for category. credential may be empty.
	request(ctx context.Context, baseURL, category, credential string) (*http.Request, error)
	// first picks the single result document out of the body.
	first(body []byte) ([]byte, error)
	// schema checks the picked document before decoding.
	schema() *validation.Schema
	// decode maps the picked document onto a descriptor.
	decode(doc []byte) (*models.WallpaperDescriptor, error)
}

type httpSource struct {
	kind    Kind
	baseURL string
	client  Doer
	codec   codec
}

func (s *httpSource) Kind() Kind   { return s.kind }
func (s *httpSource) Name() string { return s.kind.String() }

func (s *httpSource) Fetch(ctx context.Context, category, credential string) (*models.WallpaperDescriptor, error) {
	start := time.Now()
	defer func() {
		metrics.SourceDuration.WithLabelValues(s.Name()).Observe(time.Since(start).Seconds())
	}()

	req, err := s.codec.request(ctx, s.baseURL, category, credential)
	if err != nil {
		return nil, sourceErr(s.kind, ReasonRequestFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, sourceErr(s.kind, ReasonRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		e := sourceErr(s.kind, ReasonBadStatus, nil)
		e.StatusCode = resp.StatusCode
		return nil, e
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, sourceErr(s.kind, ReasonRequestFailed, err)
	}

	doc, err := s.codec.first(body)
	if err != nil {
		if errors.Is(err, errEmptyResult) {
			return nil, sourceErr(s.kind, ReasonEmptyResult, err)
		}
		return nil, sourceErr(s.kind, ReasonMalformedResponse, err)
	}

	if err := s.codec.schema().ValidateBytes(doc).Err(); err != nil {
		return nil, sourceErr(s.kind, ReasonIncompleteResponse, err)
	}

	desc, err := s.codec.decode(doc)
	if err != nil {
		return nil, sourceErr(s.kind, ReasonMalformedResponse, err)
	}
	if !desc.Complete() {
		return nil, sourceErr(s.kind, ReasonIncompleteResponse,
			fmt.Errorf("descriptor missing url or dimensions"))
	}
	return desc, nil
}
