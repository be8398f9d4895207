package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/deusflow/musichub/internal/config"
)

func testConfig(t *testing.T, feeds string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "feeds.yaml")
	if err := os.WriteFile(path, []byte(feeds), 0o644); err != nil {
		t.Fatal(err)
	}
	return &config.Config{
		SiteURL:              "https://musichub.example",
		SiteName:             "Music Hub",
		FeedsConfigPath:      path,
		DBPath:               filepath.Join(dir, "musichub.db"),
		PageSize:             40,
		DedupThreshold:       0.85,
		NotifyDedupThreshold: 0.86,
		FeedCacheTTL:         time.Minute,
		ArticleCacheTTL:      time.Minute,
		RequestTimeout:       time.Second,
		RetryAttempts:        1,
		ReleaseCacheDays:     30,
		MusicBrainzURL:       "http://127.0.0.1:1",
		CheckInterval:        time.Minute,
		NotifyLimit:          3,
		RecentURLMemory:      50,
	}
}

const newsOnly = `
sources:
  - name: Blabbermouth.net
    url: http://127.0.0.1:1/feed
genres:
  metal: [metal]
`

func TestServerWiring(t *testing.T) {
	a, err := New(testConfig(t, newsOnly))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	srv, err := a.Server(context.Background())
	if err != nil {
		t.Fatalf("Server: %v", err)
	}
	h := srv.Routes()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/robots.txt", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "https://musichub.example/sitemap.xml") {
		t.Errorf("robots: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/news", nil))
	if w.Code != http.StatusBadGateway {
		t.Errorf("unreachable feeds should give 502, got %d", w.Code)
	}
}

func TestMonitorRequiresNotifyFeeds(t *testing.T) {
	a, err := New(testConfig(t, newsOnly))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if _, err := a.Monitor(context.Background()); err == nil {
		t.Error("expected error without notify feeds")
	}
}

func TestMonitorWiring(t *testing.T) {
	cfg := testConfig(t, `
sources:
  - name: Loudwire
    url: http://127.0.0.1:1/feed
    kind: notify
`)
	a, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	m, err := a.Monitor(context.Background())
	if err != nil {
		t.Fatalf("Monitor: %v", err)
	}
	if _, err := m.RunOnce(context.Background()); err == nil {
		t.Error("expected fetch error from unreachable feed")
	}
}

func TestNew_MissingFeeds(t *testing.T) {
	cfg := testConfig(t, newsOnly)
	cfg.FeedsConfigPath = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := New(cfg); err == nil {
		t.Error("expected error for missing feeds config")
	}
}
