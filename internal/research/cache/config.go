package cache

import (
	"errors"
	"time"

	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

// Config controls both cache layers.
type Config struct {
	FastMaxEntries       int           `mapstructure:"fast_max_entries"`
	FastMaxBytes         int64         `mapstructure:"fast_max_bytes"`
	CompressionThreshold int           `mapstructure:"compression_threshold"`
	LockStripes          int           `mapstructure:"lock_stripes"`
	RemoteTimeout        time.Duration `mapstructure:"remote_timeout"`
	RemoteCooldown       time.Duration `mapstructure:"remote_cooldown"`
	// OptimizeTargetRatio is the share of FastMaxBytes Optimize trims down to.
	OptimizeTargetRatio float64   `mapstructure:"optimize_target_ratio"`
	TTL                 TTLConfig `mapstructure:"ttl"`
}

// TTLConfig holds the time-to-live of each category.
type TTLConfig struct {
	KeywordMetrics time.Duration `mapstructure:"keyword_metrics"`
	Serp           time.Duration `mapstructure:"serp"`
	Embedding      time.Duration `mapstructure:"embedding"`
	Clustering     time.Duration `mapstructure:"clustering"`
	PageScore      time.Duration `mapstructure:"page_score"`
}

// DefaultConfig returns placeholder defaults; deployments are expected to
// tune TTLs to their providers' refresh cadence.
func DefaultConfig() *Config {
	return &Config{
		FastMaxEntries:       10000,
		FastMaxBytes:         64 << 20,
		CompressionThreshold: 1024,
		LockStripes:          64,
		RemoteTimeout:        250 * time.Millisecond,
		RemoteCooldown:       30 * time.Second,
		OptimizeTargetRatio:  0.9,
		TTL: TTLConfig{
			KeywordMetrics: 7 * 24 * time.Hour,
			Serp:           24 * time.Hour,
			Embedding:      30 * 24 * time.Hour,
			Clustering:     12 * time.Hour,
			PageScore:      6 * time.Hour,
		},
	}
}

// For returns the TTL of a category, or zero when unknown.
func (t TTLConfig) For(c types.Category) time.Duration {
	switch c {
	case types.CategoryKeywordMetrics:
		return t.KeywordMetrics
	case types.CategorySerp:
		return t.Serp
	case types.CategoryEmbedding:
		return t.Embedding
	case types.CategoryClustering:
		return t.Clustering
	case types.CategoryPageScore:
		return t.PageScore
	}
	return 0
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.FastMaxEntries <= 0 {
		return errors.New("cache: fast_max_entries must be > 0")
	}
	if c.FastMaxBytes <= 0 {
		return errors.New("cache: fast_max_bytes must be > 0")
	}
	if c.CompressionThreshold < 0 {
		return errors.New("cache: compression_threshold must be >= 0")
	}
	if c.OptimizeTargetRatio <= 0 || c.OptimizeTargetRatio > 1 {
		return errors.New("cache: optimize_target_ratio must be in (0, 1]")
	}
	for _, cat := range types.AllCategories {
		if c.TTL.For(cat) <= 0 {
			return errors.New("cache: ttl." + string(cat) + " must be > 0")
		}
	}
	return nil
}
