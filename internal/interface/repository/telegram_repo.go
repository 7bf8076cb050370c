package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tkgm-sync-service/internal/domain/repository"
	"tkgm-sync-service/pkg/logger"
)

// TelegramRepository handles sending pull reports to a Telegram chat
type TelegramRepository struct {
	logger    logger.Logger
	apiBase   string
	botToken  string
	chatID    string
	parseMode string
	client    *http.Client
}

// NewTelegramRepository creates a new Telegram notifier repository. parseMode
// is an optional Telegram formatting mode ("HTML", "MarkdownV2"); empty means
// plain text.
func NewTelegramRepository(botToken, chatID, parseMode string, logger logger.Logger) repository.NotifierRepository {
	return &TelegramRepository{
		logger:    logger,
		apiBase:   "https://api.telegram.org",
		botToken:  botToken,
		chatID:    chatID,
		parseMode: parseMode,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// IsConfigured reports whether both bot token and chat ID are present.
func (r *TelegramRepository) IsConfigured() bool {
	return r.botToken != "" && r.chatID != ""
}

// SendMessage posts a text message to the configured chat
func (r *TelegramRepository) SendMessage(ctx context.Context, text string) error {
	if !r.IsConfigured() {
		return nil
	}

	body := map[string]interface{}{
		"chat_id":                  r.chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	}
	if r.parseMode != "" {
		body["parse_mode"] = r.parseMode
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", r.apiBase, r.botToken)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var response struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !response.OK {
		return fmt.Errorf("telegram API returned status %d: %s", resp.StatusCode, response.Description)
	}

	return nil
}
