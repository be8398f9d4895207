// Package musicbrainz looks up releases that came out on a given calendar
// day across a range of years.
package musicbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/deusflow/musichub/internal/dedupe"
	"github.com/deusflow/musichub/internal/logger"
	"github.com/deusflow/musichub/internal/ratelimit"
	"github.com/deusflow/musichub/internal/retry"
)

const (
	DefaultBaseURL = "https://musicbrainz.org/ws/2"
	maxYearSpan    = 60
	pageLimit      = 25
)

var (
	ErrInvalidDate  = errors.New("date must be MM-DD")
	ErrInvalidRange = errors.New("invalid year range")
)

type Release struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Artist  string `json:"artist"`
	Date    string `json:"date"`
	Country string `json:"country,omitempty"`
	Year    int    `json:"year"`
}

type Client struct {
	baseURL   string
	client    *http.Client
	userAgent string
	pacer     *ratelimit.Pacer
	retry     retry.RetryConfig
}

// NewClient builds a client paced by pacer; MusicBrainz asks for at most
// one request per second.
func NewClient(baseURL, userAgent string, client *http.Client, pacer *ratelimit.Pacer) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if pacer == nil {
		pacer = ratelimit.NewPacer(1)
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    client,
		userAgent: userAgent,
		pacer:     pacer,
		retry:     retry.RetryConfig{MaxAttempts: 2, Delay: time.Second},
	}
}

var monthDay = regexp.MustCompile(`^(0[1-9]|1[0-2])-(0[1-9]|[12][0-9]|3[01])$`)

// ParseMonthDay validates an MM-DD string against a leap year calendar.
func ParseMonthDay(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !monthDay.MatchString(s) {
		return "", ErrInvalidDate
	}
	if _, err := time.Parse("2006-01-02", "2024-"+s); err != nil {
		return "", ErrInvalidDate
	}
	return s, nil
}

// ValidateRange checks a year range the API will be asked about.
func ValidateRange(startYear, endYear int, now time.Time) error {
	if startYear < 1900 || endYear > now.Year() || startYear > endYear {
		return fmt.Errorf("%w: %d-%d", ErrInvalidRange, startYear, endYear)
	}
	if endYear-startYear+1 > maxYearSpan {
		return fmt.Errorf("%w: at most %d years", ErrInvalidRange, maxYearSpan)
	}
	return nil
}

type searchResponse struct {
	Releases []struct {
		ID           string `json:"id"`
		Title        string `json:"title"`
		Date         string `json:"date"`
		Country      string `json:"country"`
		ArtistCredit []struct {
			Name       string `json:"name"`
			JoinPhrase string `json:"joinphrase"`
		} `json:"artist-credit"`
	} `json:"releases"`
}

// ReleasesOnThisDay returns releases dated mmdd in each year of the range,
// oldest year first. Years that fail are skipped; an error is returned
// only if every year failed.
func (c *Client) ReleasesOnThisDay(ctx context.Context, mmdd string, startYear, endYear int) ([]Release, error) {
	mmdd, err := ParseMonthDay(mmdd)
	if err != nil {
		return nil, err
	}
	if err := ValidateRange(startYear, endYear, time.Now()); err != nil {
		return nil, err
	}

	var out []Release
	var errs []error
	for year := startYear; year <= endYear; year++ {
		rs, err := c.releasesOn(ctx, fmt.Sprintf("%d-%s", year, mmdd), year)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("MusicBrainz lookup failed", "year", year, "date", mmdd, "error", err)
			errs = append(errs, err)
			continue
		}
		out = append(out, rs...)
	}

	if len(errs) == endYear-startYear+1 {
		return nil, fmt.Errorf("musicbrainz: %w", errors.Join(errs...))
	}

	// Reissues and regional editions share artist and title.
	out = dedupe.Exact(out, func(r Release) string { return r.Artist + " " + r.Title })
	return out, nil
}

func (c *Client) releasesOn(ctx context.Context, date string, year int) ([]Release, error) {
	q := url.Values{}
	q.Set("query", fmt.Sprintf(`date:%s AND status:official`, date))
	q.Set("fmt", "json")
	q.Set("limit", fmt.Sprint(pageLimit))
	endpoint := c.baseURL + "/release?" + q.Encode()

	var parsed searchResponse
	err := retry.WithRetry(ctx, c.retry, func() error {
		if err := c.pacer.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("rate limited: %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return retry.Permanent(fmt.Errorf("HTTP error: %d", resp.StatusCode))
		}
		return json.NewDecoder(resp.Body).Decode(&parsed)
	})
	if err != nil {
		return nil, err
	}

	out := make([]Release, 0, len(parsed.Releases))
	for _, r := range parsed.Releases {
		if r.Date != date {
			continue
		}
		var artist strings.Builder
		for _, ac := range r.ArtistCredit {
			artist.WriteString(ac.Name)
			artist.WriteString(ac.JoinPhrase)
		}
		out = append(out, Release{
			ID:      r.ID,
			Title:   r.Title,
			Artist:  artist.String(),
			Date:    r.Date,
			Country: r.Country,
			Year:    year,
		})
	}
	return out, nil
}
