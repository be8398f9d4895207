// Package app wires configuration, storage and services into the runnable
// web server and notification monitor.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/deusflow/musichub/internal/cache"
	"github.com/deusflow/musichub/internal/config"
	"github.com/deusflow/musichub/internal/gemini"
	"github.com/deusflow/musichub/internal/logger"
	"github.com/deusflow/musichub/internal/musicbrainz"
	"github.com/deusflow/musichub/internal/news"
	"github.com/deusflow/musichub/internal/notify"
	"github.com/deusflow/musichub/internal/ratelimit"
	"github.com/deusflow/musichub/internal/retry"
	"github.com/deusflow/musichub/internal/rss"
	"github.com/deusflow/musichub/internal/scraper"
	"github.com/deusflow/musichub/internal/storage"
	"github.com/deusflow/musichub/internal/telegram"
	"github.com/deusflow/musichub/internal/web"
)

const shutdownTimeout = 10 * time.Second

// App holds the shared resources of one process.
type App struct {
	Config  *config.Config
	DB      *sql.DB
	Feeds   *rss.FeedsConfig
	Fetcher *rss.Fetcher
	Emails  *storage.SubscriberStore
	Phones  *storage.SubscriberStore
	HTTP    *http.Client

	closers []func()
}

func New(cfg *config.Config) (*App, error) {
	feeds, err := rss.LoadFeeds(cfg.FeedsConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load feeds: %w", err)
	}

	db, err := storage.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a := &App{Config: cfg, DB: db, Feeds: feeds, HTTP: &http.Client{Timeout: cfg.RequestTimeout}}
	a.closers = append(a.closers, func() { db.Close() })

	if a.Emails, err = storage.NewSubscriberStore(db, storage.ChannelEmail); err != nil {
		a.Close()
		return nil, err
	}
	if a.Phones, err = storage.NewSubscriberStore(db, storage.ChannelSMS); err != nil {
		a.Close()
		return nil, err
	}

	a.Fetcher = rss.NewFetcher(a.HTTP, cfg.UserAgent, cfg.DefaultImageURL, retry.RetryConfig{
		MaxAttempts: cfg.RetryAttempts,
		Delay:       cfg.RetryDelay,
		Backoff:     true,
	})

	logger.Info("Configuration loaded",
		"feeds", len(feeds.Sources),
		"genres", len(feeds.Genres),
		"db", cfg.DBPath,
		"dedup_threshold", cfg.DedupThreshold)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// SMS returns the Twilio sender; unconfigured credentials give a dry-run sender.
func (a *App) SMS() *notify.Twilio {
	c := a.Config
	return notify.NewTwilio(c.TwilioAccountSID, c.TwilioAuthToken, c.TwilioPhoneNumber, c.TwilioBaseURL, a.HTTP)
}

// Server builds the web server and its collaborators.
func (a *App) Server(ctx context.Context) (*web.Server, error) {
	cfg := a.Config

	feedCache := cache.New(time.Minute)
	a.closers = append(a.closers, feedCache.Close)
	aggregator := news.NewAggregator(a.Fetcher, a.Feeds.ByKind(rss.KindNews), news.NewTagger(a.Feeds.Genres), news.Options{
		Threshold: cfg.DedupThreshold,
		PageSize:  cfg.PageSize,
		Cache:     feedCache,
		CacheTTL:  cfg.FeedCacheTTL,
	})

	quota := ratelimit.NewDailyQuota("gemini", cfg.MaxGeminiRequests)
	var gen gemini.Generator
	if cfg.GeminiAPIKey != "" {
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		gen = client
		logger.Info("Gemini summaries enabled", "model", cfg.GeminiModel, "daily_limit", cfg.MaxGeminiRequests)
	} else {
		logger.Warn("GEMINI_API_KEY not set, article summaries use excerpts")
	}
	summaryCache := cache.New(10 * time.Minute)
	a.closers = append(a.closers, summaryCache.Close)
	summarizer := gemini.NewSummarizer(gen, quota, summaryCache, cfg.ArticleCacheTTL)

	releaseCache := storage.NewReleaseCache(a.DB, cfg.ReleaseCacheDays)
	if n, err := releaseCache.Cleanup(ctx); err != nil {
		logger.Warn("Release cache cleanup failed", "error", err)
	} else if n > 0 {
		logger.Info("Expired release cache entries removed", "count", n)
	}
	mb := musicbrainz.NewClient(cfg.MusicBrainzURL, cfg.UserAgent, a.HTTP, ratelimit.NewPacer(1))

	return web.NewServer(web.Deps{
		Config:   cfg,
		News:     aggregator,
		Scraper:  scraper.New(scraper.PublicClient(cfg.RequestTimeout), cfg.UserAgent),
		Summary:  summarizer,
		Quota:    quota,
		Releases: musicbrainz.NewCachedClient(mb, releaseCache),
		Emails:   a.Emails,
		Phones:   a.Phones,
		Mailer:   notify.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom, cfg.SiteName),
		SMS:      a.SMS(),
	})
}

// Monitor builds the notification monitor with the configured ledger.
func (a *App) Monitor(ctx context.Context) (*notify.Monitor, error) {
	cfg := a.Config
	sources := a.Feeds.ByKind(rss.KindNotify)
	if len(sources) == 0 {
		return nil, errors.New("no notify feeds configured")
	}

	ledger, err := storage.OpenLedger(ctx, storage.LedgerOptions{
		DatabaseURL: cfg.DatabaseURL,
		FilePath:    cfg.LedgerFilePath,
		SQLite:      a.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	a.closers = append(a.closers, func() { ledger.Close() })

	m := notify.NewMonitor(a.Fetcher, sources, a.Phones, ledger, a.SMS(), ratelimit.NewPacer(cfg.SMSPerSecond), notify.MonitorConfig{
		SiteURL:      cfg.SiteURL,
		Threshold:    cfg.NotifyDedupThreshold,
		Limit:        cfg.NotifyLimit,
		Interval:     cfg.CheckInterval,
		ErrorBackoff: cfg.ErrorBackoff,
		RecentMemory: cfg.RecentURLMemory,
	})
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		m.WithAnnouncer(telegram.New(cfg.TelegramToken, cfg.TelegramChatID))
		logger.Info("Telegram announcements enabled", "chat", cfg.TelegramChatID)
	}
	return m, nil
}

// RunServer serves HTTP until ctx is cancelled, then shuts down gracefully.
func RunServer(ctx context.Context, cfg *config.Config) error {
	a, err := New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := a.Server(ctx)
	if err != nil {
		return err
	}
	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Music Hub listening", "addr", cfg.Addr, "site", cfg.SiteURL)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// RunNotifier runs the notification monitor until ctx is cancelled.
func RunNotifier(ctx context.Context, cfg *config.Config) error {
	a, err := New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	m, err := a.Monitor(ctx)
	if err != nil {
		return err
	}
	return m.Run(ctx)
}
