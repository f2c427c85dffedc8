package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/logger"
	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

// SearchAPIAdapter reads results pages from a SearXNG-compatible JSON search
// API instead of scraping HTML. Rank follows the order of the results array.
type SearchAPIAdapter struct {
	*baseSource
	resultCount int
	now         func() time.Time
}

// NewSearchAPIAdapter creates the adapter. Endpoint is the API base URL,
// /search is appended.
func NewSearchAPIAdapter(cfg Config, client *http.Client, log *logger.Logger) (*SearchAPIAdapter, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("search api source: endpoint is required")
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("search api source: invalid endpoint: %w", err)
	}
	return &SearchAPIAdapter{
		baseSource:  newBaseSource("searxng", cfg, client, log),
		resultCount: orDefault(cfg.Scrape.ResultCount, 10),
		now:         time.Now,
	}, nil
}

func (a *SearchAPIAdapter) Category() types.Category { return types.CategorySerp }

func (a *SearchAPIAdapter) Fetch(ctx context.Context, key types.ResearchKey) (*types.Payload, error) {
	u, err := url.Parse(a.config.Endpoint)
	if err != nil {
		return nil, types.NewSourceError(types.KindPermanent, a.name, "invalid endpoint", err)
	}
	u = u.JoinPath("search")
	q := u.Query()
	q.Set("q", key.Keyword)
	q.Set("format", "json")
	q.Set("pageno", "1")
	if key.Language != "" {
		q.Set("language", key.Language+"-"+key.Country)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, types.NewSourceError(types.KindPermanent, a.name, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "SEO-Research-Backend/1.0")
	if a.config.Username != "" && a.config.Password != "" {
		req.SetBasicAuth(a.config.Username, a.config.Password)
	} else if apiKey := a.keys.Next(); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, body, err := a.do(ctx, req, 2<<20)
	if err != nil {
		return nil, err
	}
	if err := classifyStatus(a.name, resp.StatusCode, body); err != nil {
		return nil, err
	}

	serp, err := a.parse(key, body)
	if err != nil {
		return nil, err
	}
	serp.SourceURL = u.String()

	a.logger.Debug("search api results fetched",
		zap.String("source", a.name),
		zap.String("keyword", key.Keyword),
		zap.Int("results", len(serp.OrganicResults)),
	)
	return &types.Payload{Category: types.CategorySerp, Serp: serp}, nil
}

func (a *SearchAPIAdapter) parse(key types.ResearchKey, body []byte) (*types.SerpResult, error) {
	if !gjson.ValidBytes(body) {
		return nil, types.NewSourceError(types.KindPermanent, a.name, "malformed JSON response", nil)
	}
	res := gjson.ParseBytes(body)
	results := res.Get("results")
	if !results.IsArray() {
		return nil, types.NewSourceError(types.KindPermanent, a.name, "response has no results array", nil)
	}

	serp := &types.SerpResult{Query: key.Keyword, FetchedAt: a.now().UTC()}
	seen := make(map[string]struct{})
	results.ForEach(func(_, r gjson.Result) bool {
		link := r.Get("url").String()
		if link == "" {
			return true
		}
		if _, dup := seen[link]; dup {
			return true
		}
		seen[link] = struct{}{}
		serp.OrganicResults = append(serp.OrganicResults, types.OrganicResult{
			Rank:    len(serp.OrganicResults) + 1,
			URL:     link,
			Title:   r.Get("title").String(),
			Snippet: r.Get("content").String(),
		})
		return len(serp.OrganicResults) < a.resultCount
	})

	if box := res.Get("infoboxes.0"); box.Exists() {
		serp.FeaturedSnippet = &types.FeaturedSnippet{
			Title:   box.Get("infobox").String(),
			URL:     box.Get("id").String(),
			Content: box.Get("content").String(),
		}
	} else if answer := res.Get("answers.0"); answer.Exists() {
		content := answer.String()
		if answer.IsObject() {
			content = answer.Get("answer").String()
		}
		if content != "" {
			serp.FeaturedSnippet = &types.FeaturedSnippet{Content: content}
		}
	}
	res.Get("suggestions").ForEach(func(_, s gjson.Result) bool {
		serp.PeopleAlsoAsk = append(serp.PeopleAlsoAsk, s.String())
		return true
	})

	return serp, nil
}
