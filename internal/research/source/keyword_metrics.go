package source

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/logger"
	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

// ResponsePaths are gjson paths into the keyword API response.
type ResponsePaths struct {
	SearchVolume string `mapstructure:"search_volume"`
	Difficulty   string `mapstructure:"difficulty"`
	CPC          string `mapstructure:"cpc"`
	Competition  string `mapstructure:"competition"`
	// Error, when present in a 2xx body, marks the response as failed.
	Error string `mapstructure:"error"`
}

// DefaultResponsePaths matches a {"data": {...}} envelope.
func DefaultResponsePaths() ResponsePaths {
	return ResponsePaths{
		SearchVolume: "data.search_volume",
		Difficulty:   "data.keyword_difficulty",
		CPC:          "data.cpc",
		Competition:  "data.competition",
		Error:        "error.message",
	}
}

// KeywordMetricsAdapter reads search volume, difficulty and CPC from an HTTP
// JSON API.
type KeywordMetricsAdapter struct {
	*baseSource
	paths ResponsePaths
	now   func() time.Time
}

// NewKeywordMetricsAdapter creates the adapter. A nil client gets a pooled
// client using cfg.Timeout.
func NewKeywordMetricsAdapter(cfg Config, client *http.Client, log *logger.Logger) (*KeywordMetricsAdapter, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("keyword metrics source: endpoint is required")
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("keyword metrics source: invalid endpoint: %w", err)
	}
	paths := cfg.Paths
	def := DefaultResponsePaths()
	paths.SearchVolume = orDefault(paths.SearchVolume, def.SearchVolume)
	paths.Difficulty = orDefault(paths.Difficulty, def.Difficulty)
	paths.CPC = orDefault(paths.CPC, def.CPC)
	paths.Competition = orDefault(paths.Competition, def.Competition)
	paths.Error = orDefault(paths.Error, def.Error)

	return &KeywordMetricsAdapter{
		baseSource: newBaseSource("keyword_api", cfg, client, log),
		paths:      paths,
		now:        time.Now,
	}, nil
}

func (a *KeywordMetricsAdapter) Category() types.Category { return types.CategoryKeywordMetrics }

func (a *KeywordMetricsAdapter) Fetch(ctx context.Context, key types.ResearchKey) (*types.Payload, error) {
	u, err := url.Parse(a.config.Endpoint)
	if err != nil {
		return nil, types.NewSourceError(types.KindPermanent, a.name, "invalid endpoint", err)
	}
	q := u.Query()
	q.Set("keyword", key.Keyword)
	q.Set("country", key.Country)
	q.Set("language", key.Language)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, types.NewSourceError(types.KindPermanent, a.name, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "SEO-Research-Backend/1.0")
	if apiKey := a.keys.Next(); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, body, err := a.do(ctx, req, 1<<20)
	if err != nil {
		return nil, err
	}
	if err := classifyStatus(a.name, resp.StatusCode, body); err != nil {
		return nil, err
	}

	record, err := a.parse(key, body)
	if err != nil {
		return nil, err
	}
	record.SourceURL = u.String()

	a.logger.Debug("keyword metrics fetched",
		zap.String("source", a.name),
		zap.String("keyword", key.Keyword),
		zap.Int64("search_volume", record.SearchVolume),
	)
	return &types.Payload{Category: types.CategoryKeywordMetrics, Keyword: record}, nil
}

func (a *KeywordMetricsAdapter) parse(key types.ResearchKey, body []byte) (*types.KeywordRecord, error) {
	if !gjson.ValidBytes(body) {
		return nil, types.NewSourceError(types.KindPermanent, a.name, "malformed JSON response", nil)
	}
	res := gjson.ParseBytes(body)

	if msg := res.Get(a.paths.Error); msg.Exists() && msg.String() != "" {
		return nil, types.NewSourceError(types.KindPermanent, a.name, "provider error: "+msg.String(), nil)
	}

	volume := res.Get(a.paths.SearchVolume)
	if !volume.Exists() {
		return nil, types.NewSourceError(types.KindPermanent, a.name,
			fmt.Sprintf("response has no %s", a.paths.SearchVolume), nil)
	}

	return &types.KeywordRecord{
		Keyword:      key.Keyword,
		SearchVolume: max(volume.Int(), 0),
		Difficulty:   clamp(res.Get(a.paths.Difficulty).Float(), 0, 100),
		CPC:          clamp(res.Get(a.paths.CPC).Float(), 0, math.MaxFloat64),
		Competition:  clamp(res.Get(a.paths.Competition).Float(), 0, 1),
		FetchedAt:    a.now().UTC(),
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}
