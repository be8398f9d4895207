package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/deusflow/musichub/internal/dedupe"
	"github.com/deusflow/musichub/internal/logger"
	"github.com/deusflow/musichub/internal/metrics"
	"github.com/deusflow/musichub/internal/ratelimit"
	"github.com/deusflow/musichub/internal/rss"
	"github.com/deusflow/musichub/internal/storage"
)

const maxTitleRunes = 100

// FeedFetcher is satisfied by *rss.Fetcher.
type FeedFetcher interface {
	Fetch(ctx context.Context, src rss.Source) ([]rss.Item, error)
}

// Recipients lists confirmed SMS subscribers.
type Recipients interface {
	ListConfirmed(ctx context.Context) ([]storage.Subscriber, error)
}

// Announcer mirrors new articles to a channel; satisfied by *telegram.Client.
type Announcer interface {
	Configured() bool
	SendMessage(ctx context.Context, text string, preview bool) error
}

type MonitorConfig struct {
	SiteURL      string
	Threshold    float64
	Limit        int // newest entries taken per feed
	Interval     time.Duration
	ErrorBackoff time.Duration
	RecentMemory int
}

// Monitor polls notify feeds and texts new articles to subscribers.
type Monitor struct {
	fetcher   FeedFetcher
	sources   []rss.Source
	subs      Recipients
	ledger    storage.Ledger
	sms       SMSSender
	pacer     *ratelimit.Pacer
	announcer Announcer
	cfg       MonitorConfig

	recent    []string
	recentSet map[string]struct{}
}

func NewMonitor(f FeedFetcher, sources []rss.Source, subs Recipients, ledger storage.Ledger, sms SMSSender, pacer *ratelimit.Pacer, cfg MonitorConfig) *Monitor {
	if cfg.Limit < 1 {
		cfg.Limit = 3
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Minute
	}
	if cfg.RecentMemory < 1 {
		cfg.RecentMemory = 50
	}
	if pacer == nil {
		pacer = ratelimit.NewPacer(1)
	}
	return &Monitor{
		fetcher:   f,
		sources:   sources,
		subs:      subs,
		ledger:    ledger,
		sms:       sms,
		pacer:     pacer,
		cfg:       cfg,
		recentSet: make(map[string]struct{}),
	}
}

// WithAnnouncer also posts each new article to a Telegram channel.
func (m *Monitor) WithAnnouncer(a Announcer) *Monitor {
	m.announcer = a
	return m
}

// Run checks feeds until ctx is cancelled. A failed cycle is retried after
// ErrorBackoff instead of the normal interval.
func (m *Monitor) Run(ctx context.Context) error {
	logger.Info("Notification monitor started",
		"feeds", len(m.sources),
		"interval", m.cfg.Interval,
		"sms_configured", m.sms.Configured())

	for {
		wait := m.cfg.Interval
		start := time.Now()
		sent, err := m.RunOnce(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			logger.Error("Notification cycle failed", "error", err)
			metrics.Global.SetError(err.Error())
			wait = m.cfg.ErrorBackoff
		} else {
			metrics.Global.SetLastRun()
			logger.Info("Checked notify feeds", "announced", sent, "duration", time.Since(start), "next_check", wait)
		}

		select {
		case <-ctx.Done():
			logger.Info("Notification monitor stopped")
			return nil
		case <-time.After(wait):
		}
	}
}

// RunOnce performs one check and returns the number of articles announced.
func (m *Monitor) RunOnce(ctx context.Context) (int, error) {
	items, err := m.latest(ctx)
	if err != nil {
		return 0, err
	}
	items = dedupe.Fuzzy(items, func(it rss.Item) string { return it.Title }, m.cfg.Threshold)

	announced := 0
	for _, it := range items {
		if it.Link == "" || m.seen(it.Link) {
			continue
		}
		sent, err := m.ledger.IsSent(ctx, it.Link)
		if err != nil {
			return announced, fmt.Errorf("check ledger: %w", err)
		}
		if sent {
			m.remember(it.Link)
			continue
		}

		delivered, err := m.announce(ctx, it)
		if err != nil {
			return announced, err
		}
		m.remember(it.Link)
		if delivered > 0 {
			if err := m.ledger.MarkSent(ctx, it.Link, it.Title, delivered); err != nil {
				return announced, fmt.Errorf("mark sent: %w", err)
			}
			announced++
		}
	}
	return announced, nil
}

func (m *Monitor) latest(ctx context.Context) ([]rss.Item, error) {
	var (
		items   []rss.Item
		lastErr error
		ok      int
	)
	for _, src := range m.sources {
		got, err := m.fetcher.Fetch(ctx, src)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("Notify feed failed", "source", src.Name, "error", err)
			lastErr = err
			continue
		}
		ok++
		if len(got) > m.cfg.Limit {
			got = got[:m.cfg.Limit]
		}
		items = append(items, got...)
	}
	if ok == 0 && lastErr != nil {
		return nil, fmt.Errorf("fetch notify feeds: %w", lastErr)
	}
	return items, nil
}

// announce sends the article to every confirmed subscriber and the optional
// channel, returning how many deliveries succeeded.
func (m *Monitor) announce(ctx context.Context, it rss.Item) (int, error) {
	link := ArticleLink(m.cfg.SiteURL, it.Link)
	body := SMSBody(it.Title, link)
	delivered := 0

	subs, err := m.subs.ListConfirmed(ctx)
	if err != nil {
		return 0, fmt.Errorf("list subscribers: %w", err)
	}

	if !m.sms.Configured() {
		logger.Info("SMS not configured, dry run", "title", it.Title, "recipients", len(subs))
	} else {
		for _, s := range subs {
			if err := m.pacer.Wait(ctx); err != nil {
				return delivered, err
			}
			sid, err := m.sms.Send(ctx, s.Address, body)
			if err != nil {
				metrics.Global.IncrementSMSFailed()
				logger.Warn("SMS failed", "to", s.Address, "error", err)
				continue
			}
			metrics.Global.IncrementSMSSent()
			logger.Debug("SMS sent", "to", s.Address, "sid", sid)
			delivered++
		}
	}

	if m.announcer != nil && m.announcer.Configured() {
		msg := fmt.Sprintf("🎵 <b>%s</b>\n\n<a href=\"%s\">Read more</a>", html.EscapeString(it.Title), html.EscapeString(link))
		if err := m.announcer.SendMessage(ctx, msg, true); err != nil {
			logger.Warn("Telegram announcement failed", "title", it.Title, "error", err)
		} else {
			metrics.Global.IncrementTelegramSent()
			delivered++
		}
	}

	logger.Info("Article announced", "title", it.Title, "delivered", delivered, "subscribers", len(subs))
	return delivered, nil
}

func (m *Monitor) seen(link string) bool {
	_, ok := m.recentSet[link]
	return ok
}

// remember keeps only the last RecentMemory URLs.
func (m *Monitor) remember(link string) {
	if m.seen(link) {
		return
	}
	m.recent = append(m.recent, link)
	m.recentSet[link] = struct{}{}
	for len(m.recent) > m.cfg.RecentMemory {
		delete(m.recentSet, m.recent[0])
		m.recent = m.recent[1:]
	}
}

// ArticleLink points at the site's proxied article view.
func ArticleLink(siteURL, articleURL string) string {
	return strings.TrimRight(siteURL, "/") + "/article?url=" + url.QueryEscape(articleURL)
}

// SMSBody formats the subscriber text, shortening long titles.
func SMSBody(title, link string) string {
	if r := []rune(title); len(r) > maxTitleRunes {
		title = string(r[:maxTitleRunes]) + "..."
	}
	return fmt.Sprintf("🎵 New on Music Hub:\n\n%s\n\nRead more: %s\n\nReply STOP to unsubscribe", title, link)
}
