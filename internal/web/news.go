package web

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/deusflow/musichub/internal/config"
	"github.com/deusflow/musichub/internal/gemini"
	"github.com/deusflow/musichub/internal/logger"
	"github.com/deusflow/musichub/internal/musicbrainz"
	"github.com/deusflow/musichub/internal/news"
	"github.com/deusflow/musichub/internal/scraper"
)

// defaultYears is the lookback when start is omitted.
const defaultYears = 50

type indexPage struct {
	Site     *config.Config
	Articles []news.Article
	Genres   []string
	Query    string
	Genre    string
	Error    string
}

func queryFrom(r *http.Request) news.Query {
	return news.Query{
		Text:  strings.TrimSpace(r.URL.Query().Get("q")),
		Genre: strings.ToLower(strings.TrimSpace(r.URL.Query().Get("genre"))),
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	q := queryFrom(r)
	page := indexPage{Site: s.Config, Genres: s.News.Genres(), Query: q.Text, Genre: q.Genre}

	articles, err := s.News.Fetch(r.Context(), q)
	if err != nil {
		logger.Error("Index aggregation failed", "error", err)
		page.Error = "Could not load news right now. Please try again shortly."
	}
	page.Articles = articles
	s.render(w, http.StatusOK, "index.html", page)
}

type articlePage struct {
	Site      *config.Config
	Article   *scraper.Article
	Content   template.HTML
	Summary   string
	AISummary bool
	Source    string
}

func (s *Server) handleArticle(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if _, err := scraper.ValidateURL(raw); err != nil {
		s.message(w, http.StatusBadRequest, "Invalid article link", "That article link is not valid.")
		return
	}

	art, err := s.Scraper.Extract(r.Context(), raw)
	if errors.Is(err, scraper.ErrBlockedAddress) {
		logger.Warn("Refused non-public article host", "url", raw)
		s.message(w, http.StatusBadRequest, "Invalid article link", "That article link is not valid.")
		return
	}
	if err != nil {
		logger.Warn("Article extraction failed", "url", raw, "error", err)
		s.message(w, http.StatusBadGateway, "Article unavailable",
			"We could not load this article. You can read it on the original site: "+raw)
		return
	}

	page := articlePage{
		Site:    s.Config,
		Article: art,
		// HTML was sanitized by the scraper's bluemonday policy.
		Content: template.HTML(art.HTML),
		Source:  raw,
	}
	if s.Summary != nil && s.Summary.Enabled() {
		summary, err := s.Summary.Summarize(r.Context(), art.Title, art.Text)
		if err != nil {
			logger.Warn("Summary unavailable, using excerpt", "url", raw, "error", err)
		} else {
			page.Summary, page.AISummary = summary, true
		}
	}
	if page.Summary == "" {
		page.Summary = gemini.FallbackSummary(art.Text)
	}
	s.render(w, http.StatusOK, "article.html", page)
}

func (s *Server) handleAPINews(w http.ResponseWriter, r *http.Request) {
	q := queryFrom(r)
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > news.MaxPageSize {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be between 1 and %d", news.MaxPageSize))
			return
		}
		q.PageSize = n
	}

	articles, err := s.News.Fetch(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"articles": articles,
		"count":    len(articles),
	})
}

func (s *Server) handleOnThisDay(w http.ResponseWriter, r *http.Request) {
	if s.Releases == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("release lookup disabled"))
		return
	}
	now := s.now()
	params := r.URL.Query()

	date := params.Get("date")
	if date == "" {
		date = now.Format("01-02")
	}
	mmdd, err := musicbrainz.ParseMonthDay(date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	start, end := 0, now.Year()
	if v := params.Get("start"); v != "" {
		if start, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, musicbrainz.ErrInvalidRange)
			return
		}
	}
	if v := params.Get("end"); v != "" {
		if end, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, musicbrainz.ErrInvalidRange)
			return
		}
	}
	if params.Get("start") == "" {
		start = end - defaultYears + 1
	}
	if err := musicbrainz.ValidateRange(start, end, now); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	releases, cached, err := s.Releases.ReleasesOnThisDay(r.Context(), mmdd, start, end)
	if err != nil {
		if errors.Is(err, musicbrainz.ErrInvalidDate) || errors.Is(err, musicbrainz.ErrInvalidRange) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":       mmdd,
		"start_year": start,
		"end_year":   end,
		"releases":   releases,
		"count":      len(releases),
		"cached":     cached,
	})
}
