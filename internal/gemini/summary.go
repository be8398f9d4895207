package gemini

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/deusflow/musichub/internal/cache"
	"github.com/deusflow/musichub/internal/logger"
	"github.com/deusflow/musichub/internal/metrics"
	"github.com/deusflow/musichub/internal/ratelimit"
)

var ErrDisabled = errors.New("summaries are disabled")

const maxPromptChars = 6000

// Generator produces text for a prompt. *Client implements it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Summarizer produces short article summaries under a daily quota,
// caching results by content.
type Summarizer struct {
	gen   Generator
	quota *ratelimit.DailyQuota
	cache *cache.Cache
	ttl   time.Duration
}

// NewSummarizer returns a summarizer; a nil gen yields one that always
// reports ErrDisabled.
func NewSummarizer(gen Generator, quota *ratelimit.DailyQuota, c *cache.Cache, ttl time.Duration) *Summarizer {
	return &Summarizer{gen: gen, quota: quota, cache: c, ttl: ttl}
}

func (s *Summarizer) Enabled() bool {
	return s != nil && s.gen != nil
}

func (s *Summarizer) Summarize(ctx context.Context, title, text string) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}

	key := cache.GenerateKey("summary", title, text)
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			if s.quota != nil {
				s.quota.RecordCacheHit()
			}
			return v.(string), nil
		}
	}

	if s.quota != nil {
		if err := s.quota.Use(); err != nil {
			return "", err
		}
	}

	resp, err := s.gen.Generate(ctx, buildPrompt(title, prepareContent(text)))
	if err != nil {
		metrics.Global.IncrementSummaryFailures()
		return "", err
	}

	summary, err := parseResponse(resp)
	if err != nil {
		metrics.Global.IncrementSummaryFailures()
		logger.Warn("Unparseable Gemini response", "title", title, "error", err)
		return "", err
	}

	metrics.Global.IncrementSummaries()
	if s.cache != nil {
		s.cache.Set(key, summary, s.ttl)
	}
	return summary, nil
}

func buildPrompt(title, content string) string {
	return fmt.Sprintf(`Summarize this music news story for a news aggregator.

STORY:
Title: %s
Text: %s

REQUIREMENTS:
Two or three sentences, at most 600 characters.
Keep band, album and venue names exactly as written.
Do not start with phrases like "This article".

Reply strictly in this format:

SUMMARY: <summary>
`, title, content)
}

// prepareContent collapses whitespace and cuts long bodies at a sentence
// boundary near the prompt limit.
func prepareContent(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(content) <= maxPromptChars {
		return content
	}
	runes := []rune(content)
	trimmed := string(runes[:maxPromptChars])
	if idx := strings.LastIndex(trimmed, ". "); idx > 1200 {
		trimmed = trimmed[:idx+1]
	}
	return trimmed + "\n[TRUNCATED]"
}

var summaryLabel = regexp.MustCompile(`(?i)^\**summary\**\s*:\s*`)

func parseResponse(response string) (string, error) {
	var b strings.Builder
	found := false

	for _, raw := range strings.Split(response, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if summaryLabel.MatchString(line) {
			found = true
			line = strings.TrimSpace(summaryLabel.ReplaceAllString(line, ""))
		} else if !found {
			continue
		}
		if line == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(line)
	}

	if !found {
		// Unlabelled reply: accept it whole when it is short enough.
		plain := strings.Join(strings.Fields(response), " ")
		if plain != "" && utf8.RuneCountInString(plain) <= 800 {
			return plain, nil
		}
		return "", fmt.Errorf("could not parse Gemini response: missing SUMMARY label")
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

// FallbackSummary picks the first two substantial sentences of content for
// use when no model is available.
func FallbackSummary(content string) string {
	c := strings.TrimSpace(content)
	if c == "" {
		return ""
	}
	sentences := strings.Split(c, ".")
	var picked []string
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if len(s) < 25 {
			continue
		}
		picked = append(picked, s)
		if len(picked) >= 2 {
			break
		}
	}
	if len(picked) == 0 {
		if utf8.RuneCountInString(c) > 160 {
			return string([]rune(c)[:160]) + "..."
		}
		return c
	}
	return strings.Join(picked, ". ") + "."
}
