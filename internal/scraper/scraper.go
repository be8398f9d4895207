// Package scraper extracts the readable body of an article page for the
// site's proxy view.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"

	"github.com/deusflow/musichub/internal/logger"
)

var (
	ErrInvalidURL = errors.New("only http and https article URLs are supported")
	ErrNoContent  = errors.New("no readable content found")
)

const maxPageBytes = 5 << 20

// Article is the readable content of a page.
type Article struct {
	URL      string
	Title    string
	SiteName string
	Byline   string
	Image    string
	Excerpt  string
	HTML     string // sanitized
	Text     string
}

type Scraper struct {
	client    *http.Client
	userAgent string
	policy    *bluemonday.Policy
}

func New(client *http.Client, userAgent string) *Scraper {
	if client == nil {
		client = PublicClient(15 * time.Second)
	}
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	return &Scraper{client: client, userAgent: userAgent, policy: policy}
}

// ValidateURL accepts absolute http(s) URLs only.
func ValidateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, ErrInvalidURL
	}
	return u, nil
}

// Extract fetches the page and returns its main content. Readability is
// tried first; paragraph selectors are the fallback.
func (s *Scraper) Extract(ctx context.Context, rawURL string) (*Article, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	body, err := s.fetch(ctx, u.String())
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", err)
	}

	art := &Article{URL: u.String()}

	if ra, err := readability.FromReader(bytes.NewReader(body), u); err == nil && strings.TrimSpace(ra.TextContent) != "" {
		art.Title = strings.TrimSpace(ra.Title)
		art.SiteName = ra.SiteName
		art.Byline = ra.Byline
		art.Image = ra.Image
		art.Excerpt = ra.Excerpt
		art.HTML = ra.Content
		art.Text = cleanContent(ra.TextContent)
	} else {
		if err != nil {
			logger.Debug("Readability failed, using selectors", "url", u.String(), "error", err)
		}
		paragraphs := extractParagraphs(doc)
		art.Text = cleanContent(strings.Join(paragraphs, "\n\n"))
		art.HTML = paragraphsHTML(paragraphs)
	}

	if art.Title == "" {
		art.Title = extractTitle(doc)
	}
	if art.SiteName == "" {
		art.SiteName = metaContent(doc, "og:site_name")
	}
	if art.Image == "" {
		art.Image = metaContent(doc, "og:image")
	}
	art.Image = resolve(u, art.Image)

	art.HTML = strings.TrimSpace(s.policy.Sanitize(art.HTML))
	if art.HTML == "" || art.Text == "" {
		return nil, ErrNoContent
	}
	return art, nil
}

func (s *Scraper) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error loading page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error %d: %w", resp.StatusCode, ErrNoContent)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
}

// extractParagraphs tries common article containers until one yields
// at least three paragraphs.
func extractParagraphs(doc *goquery.Document) []string {
	selectors := []string{
		"article p",
		".article-body p",
		".entry-content p",
		".post-content p",
		".article p",
		".content p",
		"main p",
		"#content p",
		"p",
	}

	var paragraphs []string
	for _, selector := range selectors {
		paragraphs = paragraphs[:0]
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if len(text) > 20 {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) >= 3 {
			break
		}
	}
	return paragraphs
}

func paragraphsHTML(paragraphs []string) string {
	var b strings.Builder
	for _, p := range paragraphs {
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(p))
		b.WriteString("</p>\n")
	}
	return b.String()
}

func extractTitle(doc *goquery.Document) string {
	if t := metaContent(doc, "og:title"); t != "" {
		return t
	}
	for _, selector := range []string{"h1", "title", ".entry-title", ".headline"} {
		if t := strings.TrimSpace(doc.Find(selector).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

func metaContent(doc *goquery.Document, property string) string {
	sel := doc.Find(`meta[property="` + property + `"], meta[name="` + property + `"]`).First()
	v, _ := sel.Attr("content")
	return strings.TrimSpace(v)
}

func resolve(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(r).String()
}

var junkPhrases = []string{
	"Subscribe to our newsletter",
	"Sign up for our newsletter",
	"Follow us on",
	"Click here to",
	"Share this article",
	"Advertisement",
	"Read more:",
	"Related:",
}

// cleanContent strips boilerplate phrases and collapses blank runs.
func cleanContent(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}
	for _, phrase := range junkPhrases {
		content = strings.ReplaceAll(content, phrase, "")
	}

	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
