package rss

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source kinds.
const (
	KindNews   = "news"   // shown on the site
	KindNotify = "notify" // polled by the SMS notifier
)

var ErrNoSources = errors.New("feeds config lists no sources")

// Source is one configured feed.
type Source struct {
	Name  string `yaml:"name"`
	URL   string `yaml:"url"`
	Kind  string `yaml:"kind"`
	Genre string `yaml:"genre"`
}

// FeedsConfig is the YAML config structure:
//
//	sources:
//	  - name: Blabbermouth.net
//	    url: https://blabbermouth.net/feed
//	    kind: news
//	genres:
//	  metal: [metal, thrash, doom]
type FeedsConfig struct {
	Sources []Source            `yaml:"sources"`
	Genres  map[string][]string `yaml:"genres"`
}

// LoadFeeds reads feed sources and genre keywords from a YAML file.
func LoadFeeds(path string) (*FeedsConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg FeedsConfig
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func (c *FeedsConfig) normalize() error {
	if len(c.Sources) == 0 {
		return ErrNoSources
	}
	for i := range c.Sources {
		s := &c.Sources[i]
		s.URL = strings.TrimSpace(s.URL)
		if s.URL == "" {
			return fmt.Errorf("source %d (%q) has no url", i, s.Name)
		}
		if s.Name == "" {
			s.Name = s.URL
		}
		switch s.Kind {
		case "":
			s.Kind = KindNews
		case KindNews, KindNotify:
		default:
			return fmt.Errorf("source %q: unknown kind %q", s.Name, s.Kind)
		}
	}
	return nil
}

// ByKind returns the sources of the given kind in file order.
func (c *FeedsConfig) ByKind(kind string) []Source {
	var out []Source
	for _, s := range c.Sources {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}
