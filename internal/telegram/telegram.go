package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/deusflow/musichub/internal/logger"
	"github.com/deusflow/musichub/internal/retry"
)

const defaultBaseURL = "https://api.telegram.org"

// Client posts to one Telegram chat or channel.
type Client struct {
	token   string
	chatID  string
	baseURL string
	http    *http.Client
	retry   retry.RetryConfig
}

func New(token, chatID string) *Client {
	return &Client{
		token:   token,
		chatID:  chatID,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		retry:   retry.RetryConfig{MaxAttempts: 3, Delay: 2 * time.Second, Backoff: true},
	}
}

// WithBaseURL points the client at another API host.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

// WithRetry overrides the retry policy.
func (c *Client) WithRetry(rc retry.RetryConfig) *Client {
	c.retry = rc
	return c
}

func (c *Client) Configured() bool {
	return c != nil && c.token != "" && c.chatID != ""
}

// SendMessage posts an HTML message; previews are shown when preview is true.
func (c *Client) SendMessage(ctx context.Context, text string, preview bool) error {
	payload := map[string]interface{}{
		"chat_id":                  c.chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": !preview,
	}
	return c.call(ctx, "sendMessage", payload)
}

// SendPhoto posts a photo with an HTML caption.
func (c *Client) SendPhoto(ctx context.Context, photoURL, caption string) error {
	// Telegram caption max ~1024 chars
	if r := []rune(caption); len(r) > 1000 {
		caption = string(r[:1000])
	}
	payload := map[string]interface{}{
		"chat_id":    c.chatID,
		"photo":      photoURL,
		"caption":    caption,
		"parse_mode": "HTML",
	}
	return c.call(ctx, "sendPhoto", payload)
}

func (c *Client) call(ctx context.Context, method string, payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error make JSON: %w", err)
	}

	attempt := 0
	err = retry.WithRetry(ctx, c.retry, func() error {
		attempt++
		err := c.callOnce(ctx, method, body)
		if err != nil {
			logger.Warn("Telegram send failed", "method", method, "attempt", attempt, "error", err)
		}
		return err
	})
	if err != nil {
		return err
	}
	logger.Debug("Telegram message sent", "method", method, "attempt", attempt)
	return nil
}

func (c *Client) callOnce(ctx context.Context, method string, body []byte) error {
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Description string `json:"description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		err := fmt.Errorf("telegram API error: status %d %s", resp.StatusCode, apiErr.Description)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return retry.Permanent(err)
		}
		return err
	}
	return nil
}
