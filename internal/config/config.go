// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Validation errors.
var (
	ErrInvalidThreshold = errors.New("dedup threshold must be within [0, 1]")
	ErrInvalidPageSize  = errors.New("PAGE_SIZE must be at least 1")
	ErrInvalidInterval  = errors.New("intervals must be positive")
	ErrMissingSiteURL   = errors.New("SITE_URL is required")
)

type Config struct {
	// HTTP server
	Addr            string
	SiteURL         string
	SiteName        string
	SiteDescription string
	DefaultImageURL string

	// Feeds and aggregation
	FeedsConfigPath      string
	PageSize             int
	DedupThreshold       float64 // similarity for page aggregation
	NotifyDedupThreshold float64 // similarity for notification batches
	FeedCacheTTL         time.Duration
	ArticleCacheTTL      time.Duration

	// Outbound HTTP
	RequestTimeout time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration
	UserAgent      string

	// Storage
	DBPath           string // SQLite file holding subscribers, ledger and release cache
	DatabaseURL      string // optional Postgres notification ledger
	LedgerFilePath   string // optional JSON notification ledger
	ReleaseCacheDays int

	// Gemini summaries on the article view
	GeminiAPIKey      string
	GeminiModel       string
	MaxGeminiRequests int // per day, 0 = unlimited

	// MusicBrainz
	MusicBrainzURL string

	// Twilio SMS
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string
	TwilioBaseURL     string
	SMSPerSecond      float64

	// Telegram channel mirror
	TelegramToken  string
	TelegramChatID string

	// SMTP for newsletter confirmations
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	// Notification monitor
	CheckInterval   time.Duration
	ErrorBackoff    time.Duration
	NotifyLimit     int
	RecentURLMemory int

	// Keep-alive pinger
	KeepAliveURL      string
	KeepAliveInterval time.Duration

	Debug    bool
	LogLevel string
}

func Load() (*Config, error) {
	cfg := &Config{
		Addr:            getEnvOrDefault("ADDR", ":"+getEnvOrDefault("PORT", "5000")),
		SiteURL:         getEnvOrDefault("SITE_URL", "http://localhost:5000"),
		SiteName:        getEnvOrDefault("SITE_NAME", "Music Hub"),
		SiteDescription: getEnvOrDefault("SITE_DESCRIPTION", "Latest heavy music news, deduplicated"),
		DefaultImageURL: getEnvOrDefault("DEFAULT_IMAGE_URL", "/static/default-music.png"),

		FeedsConfigPath:      getEnvOrDefault("FEEDS_CONFIG_PATH", "configs/feeds.yaml"),
		PageSize:             getEnvIntOrDefault("PAGE_SIZE", 40),
		DedupThreshold:       getEnvFloatOrDefault("DEDUP_THRESHOLD", 0.85),
		NotifyDedupThreshold: getEnvFloatOrDefault("NOTIFY_DEDUP_THRESHOLD", 0.86),
		FeedCacheTTL:         getEnvDurationOrDefault("FEED_CACHE_TTL", 5*time.Minute),
		ArticleCacheTTL:      getEnvDurationOrDefault("ARTICLE_CACHE_TTL", time.Hour),

		RequestTimeout: getEnvDurationOrDefault("REQUEST_TIMEOUT", 15*time.Second),
		RetryAttempts:  getEnvIntOrDefault("RETRY_ATTEMPTS", 3),
		RetryDelay:     getEnvDurationOrDefault("RETRY_DELAY", 2*time.Second),
		UserAgent:      getEnvOrDefault("USER_AGENT", "MusicHub/1.0 (+https://music-news-site.onrender.com)"),

		DBPath:           getEnvOrDefault("DB_PATH", "musichub.db"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		LedgerFilePath:   os.Getenv("LEDGER_FILE_PATH"),
		ReleaseCacheDays: getEnvIntOrDefault("RELEASE_CACHE_DAYS", 30),

		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		MaxGeminiRequests: getEnvIntOrDefault("MAX_GEMINI_REQUESTS", 50),

		MusicBrainzURL: getEnvOrDefault("MUSICBRAINZ_URL", "https://musicbrainz.org/ws/2"),

		TwilioAccountSID:  os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioPhoneNumber: os.Getenv("TWILIO_PHONE_NUMBER"),
		TwilioBaseURL:     getEnvOrDefault("TWILIO_BASE_URL", "https://api.twilio.com"),
		SMSPerSecond:      getEnvFloatOrDefault("SMS_PER_SECOND", 1),

		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID: os.Getenv("TELEGRAM_CHAT_ID"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvIntOrDefault("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),

		CheckInterval:   getEnvDurationOrDefault("CHECK_INTERVAL", 5*time.Minute),
		ErrorBackoff:    getEnvDurationOrDefault("ERROR_BACKOFF", time.Minute),
		NotifyLimit:     getEnvIntOrDefault("NOTIFY_LIMIT", 3),
		RecentURLMemory: getEnvIntOrDefault("RECENT_URL_MEMORY", 50),

		KeepAliveInterval: getEnvDurationOrDefault("KEEPALIVE_INTERVAL", 10*time.Minute),

		LogLevel: os.Getenv("LOG_LEVEL"),
	}

	cfg.KeepAliveURL = getEnvOrDefault("KEEPALIVE_URL", cfg.SiteURL)

	if debug := os.Getenv("DEBUG"); debug == "true" {
		cfg.Debug = true
	}

	return cfg, cfg.Validate()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDurationOrDefault accepts Go durations ("90s") or plain seconds ("300").
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// validThreshold is false for NaN, which compares false against both bounds.
func validThreshold(t float64) bool {
	return t >= 0 && t <= 1
}

func (c *Config) Validate() error {
	if !validThreshold(c.DedupThreshold) {
		return fmt.Errorf("DEDUP_THRESHOLD=%v: %w", c.DedupThreshold, ErrInvalidThreshold)
	}
	if !validThreshold(c.NotifyDedupThreshold) {
		return fmt.Errorf("NOTIFY_DEDUP_THRESHOLD=%v: %w", c.NotifyDedupThreshold, ErrInvalidThreshold)
	}
	if c.PageSize < 1 {
		return ErrInvalidPageSize
	}
	if c.CheckInterval <= 0 || c.KeepAliveInterval <= 0 || c.RequestTimeout <= 0 {
		return ErrInvalidInterval
	}
	if c.SiteURL == "" {
		return ErrMissingSiteURL
	}
	if c.RetryAttempts < 1 {
		c.RetryAttempts = 1
	}
	if c.NotifyLimit < 1 {
		c.NotifyLimit = 3
	}
	if c.SMSPerSecond <= 0 {
		c.SMSPerSecond = 1
	}
	return nil
}

// TwilioConfigured reports whether real SMS delivery is possible.
func (c *Config) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioPhoneNumber != ""
}

// SMTPConfigured reports whether confirmation emails can be sent.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}
