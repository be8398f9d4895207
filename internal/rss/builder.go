package rss

import (
	"fmt"
	"time"

	"github.com/gorilla/feeds"
)

// Channel describes the outgoing feed.
type Channel struct {
	Title       string
	Link        string
	Description string
	Author      string
}

// Format selects the syndication format produced by Build.
type Format int

const (
	FormatRSS Format = iota
	FormatAtom
)

// Build renders items as an RSS 2.0 or Atom document.
func Build(ch Channel, items []Item, format Format) (string, error) {
	feed := &feeds.Feed{
		Title:       ch.Title,
		Link:        &feeds.Link{Href: ch.Link},
		Description: ch.Description,
		Author:      &feeds.Author{Name: ch.Author},
		Created:     time.Now().UTC(),
	}

	for _, it := range items {
		fi := &feeds.Item{
			Title:       it.Title,
			Link:        &feeds.Link{Href: it.Link},
			Description: it.Description,
			Author:      &feeds.Author{Name: it.Source},
			Id:          it.Link,
			Created:     it.PublishedAt,
		}
		if it.Image != "" && it.Image != DefaultImageURL {
			fi.Enclosure = &feeds.Enclosure{Url: it.Image, Type: "image/jpeg", Length: "0"}
		}
		feed.Items = append(feed.Items, fi)
	}

	switch format {
	case FormatAtom:
		return feed.ToAtom()
	case FormatRSS:
		return feed.ToRss()
	default:
		return "", fmt.Errorf("unknown feed format %d", format)
	}
}
