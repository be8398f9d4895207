// Command keepalive pings the site periodically so free-tier hosts do not
// spin it down.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deusflow/musichub/internal/config"
	"github.com/deusflow/musichub/internal/logger"
	"github.com/deusflow/musichub/internal/retry"
)

func main() {
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := &pinger{
		url:    cfg.KeepAliveURL,
		client: &http.Client{Timeout: 30 * time.Second},
		retry:  retry.RetryConfig{MaxAttempts: cfg.RetryAttempts, Delay: cfg.RetryDelay, Backoff: true},
	}
	logger.Info("Starting keep-alive", "url", p.url, "interval", cfg.KeepAliveInterval)
	p.run(ctx, cfg.KeepAliveInterval)
}

type pinger struct {
	url    string
	client *http.Client
	retry  retry.RetryConfig
}

func (p *pinger) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		p.pingAndLog(ctx)
		select {
		case <-ctx.Done():
			logger.Info("Keep-alive stopped")
			return
		case <-ticker.C:
		}
	}
}

func (p *pinger) pingAndLog(ctx context.Context) {
	status, err := p.ping(ctx)
	switch {
	case err != nil:
		logger.Error("Ping failed", "url", p.url, "error", err)
	case status == http.StatusOK:
		logger.Info("Pinged site", "url", p.url, "status", status)
	default:
		logger.Warn("Pinged site", "url", p.url, "status", status)
	}
}

// ping returns the final status code. 5xx responses and transport errors are
// retried; other statuses are reported as-is.
func (p *pinger) ping(ctx context.Context) (int, error) {
	var status int
	err := retry.WithRetry(ctx, p.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		status = resp.StatusCode
		if status >= 500 {
			return fmt.Errorf("server error: %d", status)
		}
		return nil
	})
	if err != nil && status >= 500 {
		return status, nil
	}
	return status, err
}
