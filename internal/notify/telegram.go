package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"dealwatch/internal/monitor"
)

// Telegram message bodies cap at 4096 characters; batches are split a
// little below that to leave headroom.
const maxMessageLen = 4000

const defaultAPIBase = "https://api.telegram.org"

// TelegramConfig configures the Telegram notifier.
type TelegramConfig struct {
	BotToken string
	ChatID   string
	APIBase  string        // override for tests
	Timeout  time.Duration // per-request, default 10s
}

// Telegram pushes batches to a chat via the bot sendMessage API.
type Telegram struct {
	cfg    TelegramConfig
	client *http.Client
	logger *zap.Logger
}

// NewTelegram builds a Telegram notifier.
func NewTelegram(cfg TelegramConfig, logger *zap.Logger) *Telegram {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Telegram{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notify formats the batch as one text body and sends it, splitting at
// the message length cap. Failures are returned once; the caller never
// retries within the cycle.
func (t *Telegram) Notify(ctx context.Context, items []monitor.Item) error {
	if len(items) == 0 {
		return nil
	}
	for _, chunk := range splitMessage(FormatBatch(items), maxMessageLen) {
		if err := t.send(ctx, chunk); err != nil {
			return err
		}
	}
	t.logger.Info("notification sent", zap.Int("items", len(items)))
	return nil
}

func (t *Telegram) send(ctx context.Context, text string) error {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:                t.cfg.ChatID,
		Text:                  text,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("marshal sendMessage: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.cfg.APIBase, t.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("post sendMessage: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var parsed sendMessageResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("decode sendMessage response (status %d): %w", resp.StatusCode, err)
	}
	if !parsed.OK {
		return fmt.Errorf("sendMessage rejected (status %d): %s", resp.StatusCode, parsed.Description)
	}
	return nil
}

// splitMessage cuts text into chunks of at most limit bytes, breaking
// on line boundaries where possible.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	for len(text) > limit {
		cut := limit
		if idx := lastNewlineBefore(text, limit); idx > 0 {
			cut = idx
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
		for len(text) > 0 && text[0] == '\n' {
			text = text[1:]
		}
	}
	if len(text) > 0 {
		chunks = append(chunks, text)
	}
	return chunks
}

func lastNewlineBefore(s string, limit int) int {
	for i := limit; i > 0; i-- {
		if s[i-1] == '\n' {
			return i - 1
		}
	}
	return -1
}
