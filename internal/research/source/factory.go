package source

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/logger"
	"github.com/lk2023060901/seo-research-backend/internal/pkg/metrics"
)

// Deps are the shared collaborators handed to every adapter.
type Deps struct {
	Logger     *logger.Logger
	Metrics    *metrics.Metrics
	HTTPClient *http.Client
	// Fetcher backs the scraping adapters. Nil means plain HTTP.
	Fetcher      PageFetcher
	RetryOptions []RetryOption
}

// NewRegistryFromConfig builds and decorates every enabled adapter.
func NewRegistryFromConfig(cfg *SourcesConfig, deps Deps) (*Registry, error) {
	if cfg == nil {
		cfg = DefaultSourcesConfig()
	}
	log := logger.OrGlobal(deps.Logger)
	reg := NewRegistry()

	add := func(a Adapter, c Config) error {
		if err := reg.Register(Decorate(a, c, deps), c.MaxInFlight); err != nil {
			return err
		}
		log.Info("source adapter registered",
			zap.String("source", a.Name()),
			zap.String("category", a.Category().String()),
			zap.Float64("rate", c.Rate),
			zap.Int("max_in_flight", c.MaxInFlight))
		return nil
	}

	if c := cfg.KeywordMetrics; c.Enabled {
		a, err := NewKeywordMetricsAdapter(c, deps.HTTPClient, log)
		if err != nil {
			return nil, err
		}
		if err := add(a, c); err != nil {
			return nil, err
		}
	}
	if c := cfg.Serp; c.Enabled {
		var a Adapter
		switch c.Mode {
		case "", SerpModeScrape:
			a = NewSerpAdapter(c, deps.Fetcher, log)
		case SerpModeSearXNG:
			sa, err := NewSearchAPIAdapter(c, deps.HTTPClient, log)
			if err != nil {
				return nil, err
			}
			a = sa
		default:
			return nil, fmt.Errorf("serp source: unknown mode %q", c.Mode)
		}
		if err := add(a, c); err != nil {
			return nil, err
		}
	}
	if c := cfg.Embedding; c.Enabled {
		a, err := NewEmbeddingAdapter(c, deps.HTTPClient, log)
		if err != nil {
			return nil, err
		}
		if err := add(a, c); err != nil {
			return nil, err
		}
	}
	if c := cfg.Page; c.Enabled {
		if err := add(NewPageAdapter(c, deps.Fetcher, log), c); err != nil {
			return nil, err
		}
	}

	if len(reg.Categories()) == 0 {
		return nil, fmt.Errorf("no source adapters enabled")
	}
	return reg, nil
}
