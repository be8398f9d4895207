package news

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/deusflow/musichub/internal/cache"
	"github.com/deusflow/musichub/internal/dedupe"
	"github.com/deusflow/musichub/internal/logger"
	"github.com/deusflow/musichub/internal/metrics"
	"github.com/deusflow/musichub/internal/rss"
)

const DefaultPageSize = 40

// MaxPageSize bounds a single page regardless of what the caller asks for.
const MaxPageSize = 200

var ErrAllFeedsFailed = errors.New("could not fetch any news feed")

// FeedFetcher is satisfied by *rss.Fetcher.
type FeedFetcher interface {
	Fetch(ctx context.Context, src rss.Source) ([]rss.Item, error)
}

type Query struct {
	Text     string // case-insensitive match on title + description
	Genre    string
	PageSize int
}

func (q Query) key() string {
	return cache.GenerateKey("news", strings.ToLower(strings.TrimSpace(q.Text)), strings.ToLower(q.Genre), fmt.Sprint(q.PageSize))
}

type Options struct {
	Threshold float64
	PageSize  int
	Cache     *cache.Cache // nil disables caching
	CacheTTL  time.Duration
}

type Aggregator struct {
	fetcher FeedFetcher
	sources []rss.Source
	tagger  *Tagger
	opts    Options
}

func NewAggregator(f FeedFetcher, sources []rss.Source, tagger *Tagger, opts Options) *Aggregator {
	if opts.PageSize < 1 {
		opts.PageSize = DefaultPageSize
	}
	return &Aggregator{fetcher: f, sources: sources, tagger: tagger, opts: opts}
}

// Fetch returns the newest matching articles, near-duplicates removed. A
// failing feed is skipped; an error is returned only when every feed failed.
func (a *Aggregator) Fetch(ctx context.Context, q Query) ([]Article, error) {
	if q.PageSize < 1 {
		q.PageSize = a.opts.PageSize
	}
	q.PageSize = min(q.PageSize, MaxPageSize)
	q.Genre = strings.ToLower(strings.TrimSpace(q.Genre))

	if a.opts.Cache != nil {
		if v, ok := a.opts.Cache.Get(q.key()); ok {
			return v.([]Article), nil
		}
	}

	start := time.Now()
	items, err := a.fetchAll(ctx)
	if err != nil {
		metrics.Global.SetError(err.Error())
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool {
		return newer(items[i].PublishedAt, items[j].PublishedAt)
	})

	needle := strings.ToLower(strings.TrimSpace(q.Text))
	articles := make([]Article, 0, min(q.PageSize, len(items)))
	for _, it := range items {
		if needle != "" && !strings.Contains(strings.ToLower(it.Title+" "+it.Description), needle) {
			continue
		}

		art := fromItem(it)
		art.Genres = a.tagger.Tag(it.Title, it.Description)
		art.Genres = addGenre(art.Genres, it.Genre)
		if q.Genre != "" && !hasGenre(art.Genres, q.Genre) {
			continue
		}

		articles = append(articles, art)
		if len(articles) >= q.PageSize {
			break
		}
	}

	out, stats := dedupe.FuzzyWithStats(articles, titleOf, a.opts.Threshold)

	metrics.Global.AddDuplicatesFiltered(stats.Dropped)
	metrics.Global.AddArticlesServed(len(out))
	metrics.Global.RecordAggregationTime(time.Since(start))
	metrics.Global.SetLastRun()
	logger.Debug("Aggregated news", "query", needle, "genre", q.Genre, "kept", stats.Kept, "dropped", stats.Dropped)

	if a.opts.Cache != nil {
		a.opts.Cache.Set(q.key(), out, a.opts.CacheTTL)
	}
	return out, nil
}

// fetchAll fetches every source concurrently and concatenates the results
// in source order.
func (a *Aggregator) fetchAll(ctx context.Context) ([]rss.Item, error) {
	if len(a.sources) == 0 {
		return nil, ErrAllFeedsFailed
	}

	results := make([][]rss.Item, len(a.sources))
	errs := make([]error, len(a.sources))

	var wg sync.WaitGroup
	for i, src := range a.sources {
		wg.Add(1)
		go func(i int, src rss.Source) {
			defer wg.Done()
			results[i], errs[i] = a.fetcher.Fetch(ctx, src)
		}(i, src)
	}
	wg.Wait()

	var items []rss.Item
	failed := 0
	for i, src := range a.sources {
		if errs[i] != nil {
			failed++
			logger.Warn("Feed failed", "source", src.Name, "error", errs[i])
			continue
		}
		items = append(items, results[i]...)
	}

	if failed == len(a.sources) {
		return nil, fmt.Errorf("%w: %v", ErrAllFeedsFailed, errors.Join(errs...))
	}
	logger.Debug("Processed feeds", "ok", len(a.sources)-failed, "total", len(a.sources))
	return items, nil
}

// newer orders known timestamps before unknown ones.
func newer(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	if b.IsZero() {
		return true
	}
	return a.After(b)
}

// Genres lists the genre filter values the site offers.
func (a *Aggregator) Genres() []string {
	return a.tagger.Genres()
}
