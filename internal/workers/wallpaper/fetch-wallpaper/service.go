// internal/workers/wallpaper/fetch-wallpaper/service.go
package fetchwallpaper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "wallpaper-bot/internal/common/errors"
	commonhttp "wallpaper-bot/internal/common/http"
	"wallpaper-bot/internal/common/logger"
	"wallpaper-bot/internal/common/metrics"
	"wallpaper-bot/internal/sources"
)

const (
	TaskType = "fetch-wallpaper"
)

var (
	ErrAllSourcesFailed = errors.New("ALL_SOURCES_FAILED")
	ErrDownloadFailed   = errors.New("DOWNLOAD_FAILED")
)

type Service struct {
	config      *Config
	client      sources.Doer
	credentials CredentialProvider
	providers   map[sources.Kind]sources.Source
	logger      logger.Logger
}

func NewService(deps ServiceDependencies, cfg *Config) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewInvalidConfigurationError(err.Error())
	}

	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	client := deps.HTTPClient
	if client == nil {
		client = commonhttp.NewClient(cfg.RequestTimeout, cfg.UserAgent)
	}
	creds := deps.Credentials
	if creds == nil {
		creds = StaticCredentials{}
	}

	providers := make(map[sources.Kind]sources.Source, 4)
	for _, kind := range append(append([]sources.Kind{}, sources.Priority...), sources.KindDemo) {
		if src, ok := deps.Sources[kind]; ok && src != nil {
			providers[kind] = src
			continue
		}
		src, err := sources.New(kind, client, cfg.BaseURLs)
		if err != nil {
			return nil, apperrors.NewInvalidConfigurationError(err.Error())
		}
		providers[kind] = src
	}

	return &Service{
		config:      cfg,
		client:      client,
		credentials: creds,
		providers:   providers,
		logger:      log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}, nil
}

// ActiveSources lists credentialed providers in priority order, or the demo
// source alone when none has a credential.
func (s *Service) ActiveSources() []sources.Source {
	var active []sources.Source
	for _, kind := range sources.Priority {
		if s.credentials.Credential(kind) != "" {
			active = append(active, s.providers[kind])
		}
	}
	if len(active) == 0 {
		active = append(active, s.providers[sources.KindDemo])
	}
	return active
}

// FetchWallpaper walks the active sources in order and stops at the first descriptor.
func (s *Service) FetchWallpaper(ctx context.Context, category string) (*Result, error) {
	active := s.ActiveSources()
	result := &Result{Demo: len(active) == 1 && active[0].Kind() == sources.KindDemo}

	for _, src := range active {
		s.logger.Debug("trying source", map[string]interface{}{
			"source":   src.Name(),
			"category": category,
		})

		start := time.Now()
		desc, err := src.Fetch(ctx, category, s.credentials.Credential(src.Kind()))
		attempt := Attempt{Source: src.Name(), Duration: time.Since(start)}

		if err == nil && !desc.Complete() {
			err = &sources.SourceError{Source: src.Name(), Reason: sources.ReasonIncompleteResponse}
		}
		if err != nil {
			attempt.Reason = reasonOf(err)
			attempt.Error = err.Error()
			result.Attempts = append(result.Attempts, attempt)
			metrics.SourceAttempts.WithLabelValues(src.Name(), attempt.Reason).Inc()

			s.logger.Warn("source failed", map[string]interface{}{
				"source":   src.Name(),
				"category": category,
				"reason":   attempt.Reason,
				"error":    err.Error(),
			})
			continue
		}

		attempt.Success = true
		result.Attempts = append(result.Attempts, attempt)
		result.Descriptor = desc
		metrics.SourceAttempts.WithLabelValues(src.Name(), "success").Inc()
		metrics.FetchOutcomes.WithLabelValues("success").Inc()

		s.logger.Info("wallpaper fetched", map[string]interface{}{
			"source":   src.Name(),
			"category": category,
			"width":    desc.Width,
			"height":   desc.Height,
			"attempts": len(result.Attempts),
		})
		return result, nil
	}

	metrics.FetchOutcomes.WithLabelValues("all_failed").Inc()
	s.logger.Error("all sources failed", map[string]interface{}{
		"category": category,
		"attempts": len(result.Attempts),
	})
	return result, fmt.Errorf("%w: %w", ErrAllSourcesFailed,
		apperrors.NewAllSourcesFailedError(category, len(result.Attempts)))
}

// DownloadImage performs one GET and returns the body on a 2xx response.
func (s *Service) DownloadImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, s.downloadErr(url, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, s.downloadErr(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, s.downloadErr(url, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.config.MaxDownloadBytes+1))
	if err != nil {
		return nil, s.downloadErr(url, err)
	}
	if int64(len(data)) > s.config.MaxDownloadBytes {
		return nil, s.downloadErr(url, fmt.Errorf("body exceeds %d bytes", s.config.MaxDownloadBytes))
	}

	s.logger.Debug("image downloaded", map[string]interface{}{
		"url":   url,
		"bytes": len(data),
	})
	return data, nil
}

func (s *Service) downloadErr(url string, err error) error {
	s.logger.Warn("image download failed", map[string]interface{}{
		"url":   url,
		"error": err.Error(),
	})
	return fmt.Errorf("%w: %w", ErrDownloadFailed, apperrors.NewDownloadFailedError(url, err))
}

func reasonOf(err error) string {
	var se *sources.SourceError
	if errors.As(err, &se) {
		return string(se.Reason)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return string(sources.ReasonRequestFailed)
	}
	return "unknown"
}
