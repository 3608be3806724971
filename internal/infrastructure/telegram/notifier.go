// Package telegram pushes capture outcomes and payment notices to
// customers through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"dropcode/internal/shared/config"
	"dropcode/internal/shared/logger"
)

// Notifier sends outbound messages and photos. It is push-only: the
// conversational front-end consuming updates is a separate system that
// calls this service's HTTP API.
type Notifier struct {
	cfg        config.TelegramConfig
	httpClient *http.Client
	baseURL    string
	logger     logger.Interface
}

func NewNotifier(cfg config.TelegramConfig, log logger.Interface) *Notifier {
	return &Notifier{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: fmt.Sprintf("https://api.telegram.org/bot%s", cfg.BotToken),
		logger:  log.Named("telegram"),
	}
}

// Enabled reports whether a bot token is configured. With no token the
// notifier silently drops sends; captures still complete.
func (n *Notifier) Enabled() bool {
	return n.cfg.BotToken != ""
}

// SendMessage sends a plain text message to a chat.
func (n *Notifier) SendMessage(ctx context.Context, chatID int64, text string) error {
	if !n.Enabled() {
		return nil
	}

	body := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	return n.makeRequest(ctx, n.baseURL+"/sendMessage", body)
}

// SendPhotoFile uploads a local image file as a photo message.
func (n *Notifier) SendPhotoFile(ctx context.Context, chatID int64, path, caption string) error {
	if !n.Enabled() {
		return nil
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open photo file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return fmt.Errorf("failed to write chat_id field: %w", err)
	}
	if caption != "" {
		if err := writer.WriteField("caption", caption); err != nil {
			return fmt.Errorf("failed to write caption field: %w", err)
		}
	}

	part, err := writer.CreateFormFile("photo", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to create photo part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to copy photo data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/sendPhoto", &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return n.do(req)
}

func (n *Notifier) makeRequest(ctx context.Context, url string, body map[string]any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return n.do(req)
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

func (n *Notifier) do(req *http.Request) error {
	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var result apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("telegram api error %d: %s", result.ErrorCode, result.Description)
	}
	return nil
}
