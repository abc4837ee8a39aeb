package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.BaseURL = ""
			},
			wantErr: "base URL",
		},
		{
			name: "url without host",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "http://"
			},
			wantErr: "base URL",
		},
		{
			name: "unknown category",
			mutate: func(cfg *Config) {
				cfg.Categories = []string{"tent", "yurt"}
			},
			wantErr: "unknown category",
		},
		{
			name: "negative max items",
			mutate: func(cfg *Config) {
				cfg.MaxItems = -1
			},
			wantErr: "max items",
		},
		{
			name: "zero landmark timeout",
			mutate: func(cfg *Config) {
				cfg.LandmarkTimeout = 0
			},
			wantErr: "landmark timeout",
		},
		{
			name: "negative settle delay",
			mutate: func(cfg *Config) {
				cfg.SettleDelay = -time.Second
			},
			wantErr: "settle delay",
		},
		{
			name: "bad mode",
			mutate: func(cfg *Config) {
				cfg.Mode = "hybrid"
			},
			wantErr: "mode must be",
		},
		{
			name: "cloud mode without dsn",
			mutate: func(cfg *Config) {
				cfg.Mode = ModeCloud
				cfg.RowStoreDSN = ""
			},
			wantErr: "row store DSN",
		},
		{
			name: "cloud mode without bucket",
			mutate: func(cfg *Config) {
				cfg.Mode = ModeCloud
				cfg.BlobBucket = ""
			},
			wantErr: "blob bucket",
		},
		{
			name: "local mode without root",
			mutate: func(cfg *Config) {
				cfg.Mode = ModeLocal
				cfg.LocalRoot = ""
			},
			wantErr: "local root",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestMaxItemsZeroMeansUnlimited(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxItems = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("max items 0 must be accepted (no ceiling): %v", err)
	}
}

func TestParseCategories(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "plain", raw: "tent,caravan", want: []string{"tent", "caravan"}},
		{name: "spaces and case", raw: " Tent , LODGE ", want: []string{"tent", "lodge"}},
		{name: "empty", raw: "", want: nil},
		{name: "dangling comma", raw: "tent,", want: []string{"tent"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseCategories(tt.raw); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ParseCategories(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("SCRAPER_TEST_STR", "hello")
	t.Setenv("SCRAPER_TEST_INT", "42")
	t.Setenv("SCRAPER_TEST_BOOL", "true")
	t.Setenv("SCRAPER_TEST_BAD_INT", "nope")

	if value, ok := EnvString("SCRAPER_TEST_STR"); !ok || value != "hello" {
		t.Fatalf("EnvString = %q, %v", value, ok)
	}
	if _, ok := EnvString("SCRAPER_TEST_UNSET"); ok {
		t.Fatalf("unset env var must not report ok")
	}
	if value, ok, err := EnvInt("SCRAPER_TEST_INT"); err != nil || !ok || value != 42 {
		t.Fatalf("EnvInt = %d, %v, %v", value, ok, err)
	}
	if _, _, err := EnvInt("SCRAPER_TEST_BAD_INT"); err == nil {
		t.Fatalf("expected error for non-integer value")
	}
	if value, ok, err := EnvBool("SCRAPER_TEST_BOOL"); err != nil || !ok || !value {
		t.Fatalf("EnvBool = %v, %v, %v", value, ok, err)
	}
}
