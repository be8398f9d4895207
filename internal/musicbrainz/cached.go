package musicbrainz

import (
	"context"

	"github.com/deusflow/musichub/internal/logger"
)

// ResultCache persists lookups keyed by day and year range.
// *storage.ReleaseCache implements it.
type ResultCache interface {
	Get(ctx context.Context, mmdd string, startYear, endYear int, dst any) (bool, error)
	Save(ctx context.Context, mmdd string, startYear, endYear int, v any) error
}

type Lookup interface {
	ReleasesOnThisDay(ctx context.Context, mmdd string, startYear, endYear int) ([]Release, error)
}

// CachedClient serves lookups from the cache before asking the API.
type CachedClient struct {
	lookup Lookup
	cache  ResultCache
}

func NewCachedClient(lookup Lookup, cache ResultCache) *CachedClient {
	return &CachedClient{lookup: lookup, cache: cache}
}

// ReleasesOnThisDay reports whether the result came from the cache.
func (c *CachedClient) ReleasesOnThisDay(ctx context.Context, mmdd string, startYear, endYear int) ([]Release, bool, error) {
	mmdd, err := ParseMonthDay(mmdd)
	if err != nil {
		return nil, false, err
	}

	var cached []Release
	hit, err := c.cache.Get(ctx, mmdd, startYear, endYear, &cached)
	if err != nil {
		logger.Warn("Release cache read failed", "date", mmdd, "error", err)
	}
	if hit {
		return cached, true, nil
	}

	releases, err := c.lookup.ReleasesOnThisDay(ctx, mmdd, startYear, endYear)
	if err != nil {
		return nil, false, err
	}
	if releases == nil {
		releases = []Release{}
	}

	if err := c.cache.Save(ctx, mmdd, startYear, endYear, releases); err != nil {
		logger.Warn("Release cache write failed", "date", mmdd, "error", err)
	}
	return releases, false, nil
}
