package source

import (
	"time"
)

// Config configures one source adapter and its decorators.
type Config struct {
	Enabled  bool   `mapstructure:"enabled"`
	Name     string `mapstructure:"name"`
	Endpoint string `mapstructure:"endpoint"`
	// APIKey may hold several comma separated keys, used in rotation.
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`

	Rate        float64       `mapstructure:"rate"` // requests per second
	Burst       int           `mapstructure:"burst"`
	MaxWait     time.Duration `mapstructure:"max_wait"`
	MaxInFlight int           `mapstructure:"max_in_flight"`
	Retry       RetryConfig   `mapstructure:"retry"`

	// Embedding only
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`

	// Keyword metrics only
	Paths ResponsePaths `mapstructure:"paths"`

	// Scraping adapters only
	Scrape ScrapeConfig `mapstructure:"scrape"`

	// SERP only: "scrape" parses result pages, "searxng" queries a
	// SearXNG-compatible JSON search API at Endpoint.
	Mode     string `mapstructure:"mode"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

const (
	SerpModeScrape  = "scrape"
	SerpModeSearXNG = "searxng"
)

// ScrapeConfig holds anti-detection and parsing settings for HTML sources.
type ScrapeConfig struct {
	UserAgents   []string      `mapstructure:"user_agents"`
	MinDelay     time.Duration `mapstructure:"min_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	ResultCount  int           `mapstructure:"result_count"`
	BlockMarkers []string      `mapstructure:"block_markers"`
	Selectors    SerpSelectors `mapstructure:"selectors"`
}

// SourcesConfig groups the configuration of every adapter.
type SourcesConfig struct {
	KeywordMetrics Config `mapstructure:"keyword_metrics"`
	Serp           Config `mapstructure:"serp"`
	Embedding      Config `mapstructure:"embedding"`
	Page           Config `mapstructure:"page"`
}

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

var defaultBlockMarkers = []string{
	"captcha",
	"unusual traffic",
	"/sorry/",
	"are you a robot",
	"access denied",
}

// DefaultSourcesConfig returns conservative defaults for every adapter.
func DefaultSourcesConfig() *SourcesConfig {
	return &SourcesConfig{
		KeywordMetrics: Config{
			Enabled:     true,
			Name:        "keyword_api",
			Timeout:     10 * time.Second,
			Rate:        5,
			Burst:       5,
			MaxWait:     5 * time.Second,
			MaxInFlight: 8,
			Retry:       DefaultRetryConfig(),
			Paths:       DefaultResponsePaths(),
		},
		Serp: Config{
			Enabled:     true,
			Name:        "serp_scraper",
			Timeout:     15 * time.Second,
			Rate:        0.5,
			Burst:       1,
			MaxWait:     10 * time.Second,
			MaxInFlight: 2,
			Retry:       DefaultRetryConfig(),
			Scrape: ScrapeConfig{
				UserAgents:   defaultUserAgents,
				MinDelay:     500 * time.Millisecond,
				MaxDelay:     2 * time.Second,
				MaxBodyBytes: 4 << 20,
				ResultCount:  10,
				BlockMarkers: defaultBlockMarkers,
				Selectors:    DefaultSerpSelectors(),
			},
		},
		Embedding: Config{
			Enabled:     true,
			Name:        "openai_embeddings",
			Model:       "text-embedding-3-small",
			Dimensions:  256,
			Timeout:     20 * time.Second,
			Rate:        20,
			Burst:       20,
			MaxWait:     5 * time.Second,
			MaxInFlight: 16,
			Retry:       DefaultRetryConfig(),
		},
		Page: Config{
			Enabled:     true,
			Name:        "page_fetcher",
			Timeout:     15 * time.Second,
			Rate:        2,
			Burst:       2,
			MaxWait:     10 * time.Second,
			MaxInFlight: 4,
			Retry:       DefaultRetryConfig(),
			Scrape: ScrapeConfig{
				UserAgents:   defaultUserAgents,
				MaxBodyBytes: 4 << 20,
				BlockMarkers: defaultBlockMarkers,
			},
		},
	}
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
