// File: internal/notify/telegram.go

// Package notify delivers the success notification through the Telegram Bot
// API. Notifications are strictly best effort: the punch outcome never
// depends on delivery.
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

	"github.com/kitsched/autopunch/internal/config"
)

const telegramAPIBase = "https://api.telegram.org"

// Client posts messages to one Telegram chat. An unconfigured client (no
// token or chat ID) degrades every Send to a logged no-op.
type Client struct {
	cfg        config.TelegramConfig
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

// NewClient returns a Telegram client for the configured bot and chat.
func NewClient(cfg config.TelegramConfig, logger *zap.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    telegramAPIBase,
		logger:     logger.Named("notify"),
	}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// Send posts an HTML-formatted message to the configured chat. Returns nil
// without network traffic when the bot is not configured.
func (c *Client) Send(ctx context.Context, text string) error {
	if !c.cfg.Configured() {
		c.logger.Debug("Telegram bot not configured; skipping notification.")
		return nil
	}

	payload, err := json.Marshal(sendMessageRequest{
		ChatID:    c.cfg.ChatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram API returned %d: %s", resp.StatusCode, string(body))
	}

	c.logger.Info("Telegram notification delivered.")
	return nil
}
