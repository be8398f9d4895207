package web

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"

	"github.com/deusflow/musichub/internal/logger"
	"github.com/deusflow/musichub/internal/news"
	"github.com/deusflow/musichub/internal/rss"
)

// handleFeed serves /rss and /atom from the same article list.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	articles, err := s.News.Fetch(r.Context(), queryFrom(r))
	if err != nil {
		logger.Error("Feed aggregation failed", "error", err)
		http.Error(w, "feed temporarily unavailable", http.StatusBadGateway)
		return
	}

	items := make([]rss.Item, len(articles))
	for i, a := range articles {
		items[i] = a.FeedItem()
	}

	format, contentType := rss.FormatRSS, "application/rss+xml; charset=utf-8"
	if r.URL.Path == "/atom" {
		format, contentType = rss.FormatAtom, "application/atom+xml; charset=utf-8"
	}
	out, err := rss.Build(rss.Channel{
		Title:       s.Config.SiteName,
		Link:        s.Config.SiteURL,
		Description: s.Config.SiteDescription,
		Author:      s.Config.SiteName,
	}, items, format)
	if err != nil {
		logger.Error("Feed build failed", "error", err)
		http.Error(w, "feed build failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	fmt.Fprint(w, out)
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	set := urlSet{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs: []sitemapURL{
			{Loc: s.siteURL("/"), ChangeFreq: "hourly", Priority: "1.0"},
			{Loc: s.siteURL("/rss"), ChangeFreq: "hourly", Priority: "0.5"},
		},
	}
	for _, g := range s.News.Genres() {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        s.siteURL("/?genre=" + url.QueryEscape(g)),
			ChangeFreq: "hourly",
			Priority:   "0.8",
		})
	}

	articles, err := s.News.Fetch(r.Context(), news.Query{})
	if err != nil {
		logger.Warn("Sitemap without articles", "error", err)
	}
	for _, a := range articles {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:      s.siteURL("/article?url=" + url.QueryEscape(a.URL)),
			Priority: "0.6",
		})
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	fmt.Fprint(w, xml.Header)
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		logger.Error("Sitemap encode failed", "error", err)
	}
}

func (s *Server) handleRobots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "User-agent: *\nAllow: /\nDisallow: /api/\n\nSitemap: %s\n", s.siteURL("/sitemap.xml"))
}
