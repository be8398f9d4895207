// Package web serves the Music Hub site, its JSON API and syndication feeds.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/deusflow/musichub/internal/config"
	"github.com/deusflow/musichub/internal/logger"
	"github.com/deusflow/musichub/internal/musicbrainz"
	"github.com/deusflow/musichub/internal/news"
	"github.com/deusflow/musichub/internal/notify"
	"github.com/deusflow/musichub/internal/ratelimit"
	"github.com/deusflow/musichub/internal/scraper"
	"github.com/deusflow/musichub/internal/storage"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// NewsSource is satisfied by *news.Aggregator.
type NewsSource interface {
	Fetch(ctx context.Context, q news.Query) ([]news.Article, error)
	Genres() []string
}

// ArticleExtractor is satisfied by *scraper.Scraper.
type ArticleExtractor interface {
	Extract(ctx context.Context, rawURL string) (*scraper.Article, error)
}

// Summarizer is satisfied by *gemini.Summarizer.
type Summarizer interface {
	Enabled() bool
	Summarize(ctx context.Context, title, text string) (string, error)
}

// ReleaseFinder is satisfied by *musicbrainz.CachedClient.
type ReleaseFinder interface {
	ReleasesOnThisDay(ctx context.Context, mmdd string, startYear, endYear int) ([]musicbrainz.Release, bool, error)
}

// SubscriberList is satisfied by *storage.SubscriberStore.
type SubscriberList interface {
	Add(ctx context.Context, address, ip, userAgent string) (storage.AddResult, error)
	Confirm(ctx context.Context, token string) (bool, error)
	Unsubscribe(ctx context.Context, address string) (bool, error)
	Counts(ctx context.Context) (storage.SubscriberCounts, error)
}

// ConfirmationMailer is satisfied by *notify.Mailer.
type ConfirmationMailer interface {
	SendConfirmation(ctx context.Context, to, link string) error
}

// Deps are the collaborators behind the routes. Nil optional fields disable
// the matching feature.
type Deps struct {
	Config   *config.Config
	News     NewsSource
	Scraper  ArticleExtractor
	Summary  Summarizer
	Quota    *ratelimit.DailyQuota
	Releases ReleaseFinder
	Emails   SubscriberList
	Phones   SubscriberList
	Mailer   ConfirmationMailer
	SMS      notify.SMSSender
}

type Server struct {
	Deps
	pages *template.Template
	now   func() time.Time
}

func NewServer(d Deps) (*Server, error) {
	pages, err := template.New("pages").Funcs(template.FuncMap{
		"humanTime": news.HumanTime,
		"join":      strings.Join,
		"dict":      dict,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Server{Deps: d, pages: pages, now: time.Now}, nil
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/article", s.handleArticle)

	r.Route("/api", func(r chi.Router) {
		r.Get("/news", s.handleAPINews)
		r.Get("/releases/on-this-day", s.handleOnThisDay)
	})

	r.Get("/rss", s.handleFeed)
	r.Get("/atom", s.handleFeed)
	r.Get("/sitemap.xml", s.handleSitemap)
	r.Get("/robots.txt", s.handleRobots)

	r.Post("/subscribe", s.handleSubscribe)
	r.Get("/confirm/{token}", s.handleConfirm)
	r.Post("/unsubscribe", s.handleUnsubscribe)
	r.Route("/sms", func(r chi.Router) {
		r.Post("/subscribe", s.handleSMSSubscribe)
		r.Get("/confirm/{token}", s.handleSMSConfirm)
	})

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)

	static, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(static)))
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func (s *Server) render(w http.ResponseWriter, code int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := s.pages.ExecuteTemplate(w, name, data); err != nil {
		logger.Error("Template render failed", "template", name, "error", err)
	}
}

type messagePage struct {
	Site    *config.Config
	Title   string
	Message string
}

func (s *Server) message(w http.ResponseWriter, code int, title, msg string) {
	s.render(w, code, "message.html", messagePage{Site: s.Config, Title: title, Message: msg})
}

func (s *Server) siteURL(path string) string {
	return strings.TrimRight(s.Config.SiteURL, "/") + path
}

// dict builds a map from alternating keys and values for nested templates.
func dict(kv ...any) (map[string]any, error) {
	if len(kv)%2 != 0 {
		return nil, errors.New("dict needs key/value pairs")
	}
	m := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict key %v is not a string", kv[i])
		}
		m[k] = kv[i+1]
	}
	return m, nil
}

// clientIP returns the caller address after RealIP has run.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
