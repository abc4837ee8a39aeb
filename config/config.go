package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Output modes: cloud writes to the row store and blob store, local writes
// the per-item JSON/images layout to the filesystem.
const (
	ModeCloud = "cloud"
	ModeLocal = "local"
)

// Categories the search form knows how to tick.
var KnownCategories = []string{"tent", "caravan", "campervan", "lodge"}

// Config holds pipeline configuration.
type Config struct {
	BaseURL    string
	Keyword    string
	Categories []string
	MaxItems   int // 0 means no ceiling
	TestMode   bool

	Mode          string // cloud or local
	RowStoreDSN   string
	BlobEndpoint  string
	BlobAccessKey string
	BlobSecretKey string
	BlobBucket    string
	BlobUseSSL    bool
	LocalRoot     string
	StagingDir    string

	SettleDelay     time.Duration
	LandmarkTimeout time.Duration
	ImageDelay      time.Duration

	UserAgent   string
	Headless    bool
	MetricsAddr string
	Verbose     bool
}

// DefaultConfig returns conservative defaults for the pitchup.com target.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "https://www.pitchup.com",
		Keyword:         "",
		Categories:      []string{"tent", "caravan"},
		MaxItems:        100,
		TestMode:        false,
		Mode:            ModeCloud,
		RowStoreDSN:     "file:campsites.db",
		BlobBucket:      "campsite-images",
		BlobUseSSL:      true,
		LocalRoot:       "raw_data",
		StagingDir:      "staging",
		SettleDelay:     time.Second,
		LandmarkTimeout: 5 * time.Second,
		ImageDelay:      time.Second,
		UserAgent:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 12_2) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/98.0.4758.81 Safari/537.36",
		Headless:        true,
		MetricsAddr:     "",
		Verbose:         false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	for _, category := range c.Categories {
		if !knownCategory(category) {
			return fmt.Errorf("unknown category %q (choose from %s)", category, strings.Join(KnownCategories, ", "))
		}
	}

	if c.MaxItems < 0 {
		return fmt.Errorf("max items cannot be negative")
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("settle delay cannot be negative")
	}
	if c.ImageDelay < 0 {
		return fmt.Errorf("image delay cannot be negative")
	}
	if c.LandmarkTimeout <= 0 {
		return fmt.Errorf("landmark timeout must be positive")
	}

	switch c.Mode {
	case ModeCloud:
		if c.RowStoreDSN == "" {
			return fmt.Errorf("row store DSN cannot be empty in cloud mode")
		}
		if c.BlobBucket == "" {
			return fmt.Errorf("blob bucket cannot be empty in cloud mode")
		}
	case ModeLocal:
		if c.LocalRoot == "" {
			return fmt.Errorf("local root cannot be empty in local mode")
		}
	default:
		return fmt.Errorf("mode must be %s or %s", ModeCloud, ModeLocal)
	}

	if c.StagingDir == "" {
		return fmt.Errorf("staging dir cannot be empty")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

// ParseCategories splits a comma-separated category flag value.
func ParseCategories(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.ToLower(strings.TrimSpace(part)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func knownCategory(name string) bool {
	for _, known := range KnownCategories {
		if name == known {
			return true
		}
	}
	return false
}
