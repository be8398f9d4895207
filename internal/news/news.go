// Package news turns configured feeds into the deduplicated, genre-tagged
// article list the site and API serve.
package news

import (
	"time"

	"github.com/deusflow/musichub/internal/rss"
)

const humanLayout = "Jan 02, 2006 03:04 PM"

// Article is a normalized story from any source.
type Article struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Image       string    `json:"image"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"-"`
	Published   string    `json:"published_at,omitempty"`
	Genres      []string  `json:"genres,omitempty"`
}

func fromItem(it rss.Item) Article {
	return Article{
		Title:       it.Title,
		Description: it.Description,
		URL:         it.Link,
		Image:       it.Image,
		Source:      it.Source,
		PublishedAt: it.PublishedAt,
		Published:   it.Published,
	}
}

// FeedItem converts the article back into the syndication shape.
func (a Article) FeedItem() rss.Item {
	return rss.Item{
		Title:       a.Title,
		Description: a.Description,
		Link:        a.URL,
		Image:       a.Image,
		Source:      a.Source,
		Published:   a.Published,
		PublishedAt: a.PublishedAt,
	}
}

// HumanTime renders the publish time for display, e.g. "Jan 02, 2006 03:04 PM".
// Unparseable values are returned as-is.
func HumanTime(a Article) string {
	if !a.PublishedAt.IsZero() {
		return a.PublishedAt.Format(humanLayout)
	}
	if a.Published == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z"} {
		if t, err := time.Parse(layout, a.Published); err == nil {
			return t.Format(humanLayout)
		}
	}
	return a.Published
}

func titleOf(a Article) string { return a.Title }
