// Package notify delivers alert messages to a Telegram chat.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fundingwatch/config"
	"fundingwatch/logger"
)

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// Telegram sends messages through the Bot API sendMessage method.
type Telegram struct {
	apiURL string
	cfg    config.TelegramConfig
	client *http.Client
	log    *logger.Log
}

func NewTelegram(cfg config.TelegramConfig) *Telegram {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = "https://api.telegram.org"
	}
	return &Telegram{
		apiURL: apiURL,
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		log:    logger.GetLogger(),
	}
}

// Send delivers text once and reports whether Telegram accepted it. Without
// credentials the message is only logged. Failures are logged, never returned.
func (t *Telegram) Send(ctx context.Context, text string) bool {
	log := t.log.WithComponent("telegram_notifier")
	if !t.cfg.Configured() {
		log.WithFields(logger.Fields{"message": text}).Info("telegram not configured, message not sent")
		return false
	}

	if err := t.send(ctx, text); err != nil {
		log.WithError(err).Warn("failed to send telegram message")
		return false
	}
	log.Debug("telegram message sent")
	return true
}

func (t *Telegram) send(ctx context.Context, text string) error {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:    t.cfg.ChatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.cfg.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// The request URL carries the bot token.
		return fmt.Errorf("http request failed: %s", strings.ReplaceAll(err.Error(), t.cfg.Token, "***"))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var out sendMessageResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if !out.OK {
		return fmt.Errorf("telegram rejected message: code=%d description=%s", out.ErrorCode, out.Description)
	}
	return nil
}
