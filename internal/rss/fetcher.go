package rss

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/deusflow/musichub/internal/logger"
	"github.com/deusflow/musichub/internal/metrics"
	"github.com/deusflow/musichub/internal/retry"
)

const DefaultImageURL = "/static/default-music.png"

var ErrEmptyFeed = errors.New("feed returned no entries")

// Item is a feed entry flattened to the fields the site renders.
type Item struct {
	Title       string
	Description string
	Link        string
	Image       string
	Source      string
	Genre       string
	Published   string // ISO-8601 UTC with Z suffix, or the raw feed value
	PublishedAt time.Time
}

type Fetcher struct {
	client       *http.Client
	userAgent    string
	defaultImage string
	retry        retry.RetryConfig
}

func NewFetcher(client *http.Client, userAgent, defaultImage string, rc retry.RetryConfig) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if defaultImage == "" {
		defaultImage = DefaultImageURL
	}
	return &Fetcher{client: client, userAgent: userAgent, defaultImage: defaultImage, retry: rc}
}

// Fetch downloads and parses one source. A feed that parses with problems
// but still yields entries is accepted.
func (f *Fetcher) Fetch(ctx context.Context, src Source) ([]Item, error) {
	var body []byte
	err := retry.WithRetry(ctx, f.retry, func() error {
		b, err := f.get(ctx, src.URL)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		metrics.Global.IncrementFeedErrors()
		return nil, fmt.Errorf("fetch %s: %w", src.Name, err)
	}

	feed, perr := gofeed.NewParser().Parse(bytes.NewReader(body))
	if feed == nil || len(feed.Items) == 0 {
		metrics.Global.IncrementFeedErrors()
		if perr != nil {
			return nil, fmt.Errorf("could not parse %s feed: %w", src.Name, perr)
		}
		return nil, fmt.Errorf("%s: %w", src.Name, ErrEmptyFeed)
	}
	if perr != nil {
		logger.Warn("Feed parsed with errors", "source", src.Name, "error", perr)
	}

	items := make([]Item, 0, len(feed.Items))
	for _, it := range feed.Items {
		items = append(items, f.convert(it, src))
	}

	metrics.Global.IncrementFeedsFetched()
	logger.Debug("Loaded feed", "source", src.Name, "items", len(items))
	return items, nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("HTTP error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}
	return io.ReadAll(io.LimitReader(resp.Body, 10<<20))
}

func (f *Fetcher) convert(it *gofeed.Item, src Source) Item {
	item := Item{
		Title:       strings.TrimSpace(it.Title),
		Description: it.Description,
		Link:        it.Link,
		Source:      src.Name,
		Genre:       src.Genre,
		Image:       extractImage(it, f.defaultImage),
	}
	item.Published, item.PublishedAt = parsePublished(it)
	return item
}

// parsePublished prefers the parsed timestamp and falls back to the raw
// published or updated string.
func parsePublished(it *gofeed.Item) (string, time.Time) {
	t := it.PublishedParsed
	if t == nil {
		t = it.UpdatedParsed
	}
	if t != nil {
		utc := t.UTC()
		return utc.Format("2006-01-02T15:04:05") + "Z", utc
	}
	raw := it.Published
	if raw == "" {
		raw = it.Updated
	}
	return raw, time.Time{}
}

// extractImage checks media:content, media:thumbnail, enclosures and the
// item image in that order.
func extractImage(it *gofeed.Item, fallback string) string {
	if media, ok := it.Extensions["media"]; ok {
		for _, name := range []string{"content", "thumbnail"} {
			for _, ext := range media[name] {
				if u := ext.Attrs["url"]; u != "" {
					return u
				}
			}
		}
	}
	for _, enc := range it.Enclosures {
		if enc != nil && enc.URL != "" {
			return enc.URL
		}
	}
	if it.Image != nil && it.Image.URL != "" {
		return it.Image.URL
	}
	return fallback
}
