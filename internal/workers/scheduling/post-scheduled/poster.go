// internal/workers/scheduling/post-scheduled/poster.go
package postscheduled

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"wallpaper-bot/internal/common/logger"
	"wallpaper-bot/internal/sources"
)

// WebhookPoster hands scheduled posts to the messaging gateway over HTTP. Photos go
// to <base>/photo as multipart, reactions to <base>/reaction as JSON.
type WebhookPoster struct {
	baseURL string
	client  sources.Doer
}

func NewWebhookPoster(baseURL string, client sources.Doer) *WebhookPoster {
	return &WebhookPoster{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type photoResponse struct {
	MessageID int64 `json:"message_id"`
}

func (p *WebhookPoster) PostPhoto(ctx context.Context, chatID int64, image []byte, caption string) (int64, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return 0, err
	}
	if err := mw.WriteField("caption", caption); err != nil {
		return 0, err
	}
	part, err := mw.CreateFormFile("photo", "wallpaper.jpg")
	if err != nil {
		return 0, err
	}
	if _, err := part.Write(image); err != nil {
		return 0, err
	}
	if err := mw.Close(); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/photo", &body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	raw, err := p.do(req)
	if err != nil {
		return 0, err
	}
	var out photoResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, fmt.Errorf("decode photo response: %w", err)
	}
	return out.MessageID, nil
}

func (p *WebhookPoster) SetReaction(ctx context.Context, chatID, messageID int64, reaction string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
		"reaction":   reaction,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/reaction", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	_, err = p.do(req)
	return err
}

func (p *WebhookPoster) do(req *http.Request) ([]byte, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}

// LogPoster records posts in the log without sending them. Used when no gateway
// is configured.
type LogPoster struct {
	logger logger.Logger
	nextID int64
}

func NewLogPoster(log logger.Logger) *LogPoster {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &LogPoster{logger: log}
}

func (p *LogPoster) PostPhoto(_ context.Context, chatID int64, image []byte, caption string) (int64, error) {
	id := atomic.AddInt64(&p.nextID, 1)
	p.logger.Info("scheduled post (dry run)", map[string]interface{}{
		"chatId":    chatID,
		"bytes":     len(image),
		"caption":   caption,
		"messageId": id,
	})
	return id, nil
}

func (p *LogPoster) SetReaction(_ context.Context, chatID, messageID int64, reaction string) error {
	p.logger.Debug("reaction (dry run)", map[string]interface{}{
		"chatId":    chatID,
		"messageId": messageID,
		"reaction":  reaction,
	})
	return nil
}
