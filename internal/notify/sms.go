package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deusflow/musichub/internal/logger"
	"github.com/deusflow/musichub/internal/retry"
)

var ErrNotConfigured = errors.New("notification channel not configured")

// SMSSender delivers one text message and returns the provider message id.
type SMSSender interface {
	Send(ctx context.Context, to, body string) (string, error)
	Configured() bool
}

// Twilio sends SMS through the Twilio Messages REST resource.
type Twilio struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	client     *http.Client
	retry      retry.RetryConfig
}

func NewTwilio(accountSID, authToken, from, baseURL string, client *http.Client) *Twilio {
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Twilio{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     client,
		retry:      retry.RetryConfig{MaxAttempts: 2, Delay: time.Second},
	}
}

func (t *Twilio) Configured() bool {
	return t.accountSID != "" && t.authToken != "" && t.from != ""
}

func (t *Twilio) Send(ctx context.Context, to, body string) (string, error) {
	if !t.Configured() {
		logger.Info("SMS dry run", "to", to, "body", body)
		return "", ErrNotConfigured
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", t.from)
	form.Set("Body", body)
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.baseURL, url.PathEscape(t.accountSID))

	var sid string
	err := retry.WithRetry(ctx, t.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return retry.Permanent(err)
		}
		req.SetBasicAuth(t.accountSID, t.authToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := t.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		var out struct {
			SID     string `json:"sid"`
			Message string `json:"message"`
			Code    int    `json:"code"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&out)

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			err := fmt.Errorf("twilio: status %d code %d: %s", resp.StatusCode, out.Code, out.Message)
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return err
			}
			return retry.Permanent(err)
		}
		sid = out.SID
		return nil
	})
	return sid, err
}
