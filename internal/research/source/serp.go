package source

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/logger"
	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

const defaultSerpEndpoint = "https://www.google.com/search"

// SerpSelectors are the class names that identify parts of a results page.
type SerpSelectors struct {
	Result          string `mapstructure:"result"`
	Snippet         string `mapstructure:"snippet"`
	Featured        string `mapstructure:"featured"`
	FeaturedContent string `mapstructure:"featured_content"`
	PeopleAlsoAsk   string `mapstructure:"people_also_ask"`
}

// DefaultSerpSelectors returns class names used by the default search
// endpoint.
func DefaultSerpSelectors() SerpSelectors {
	return SerpSelectors{
		Result:          "g",
		Snippet:         "VwiC3b",
		Featured:        "xpdopen",
		FeaturedContent: "hgKElc",
		PeopleAlsoAsk:   "related-question-pair",
	}
}

// SerpAdapter scrapes a search engine results page.
type SerpAdapter struct {
	name     string
	endpoint string
	fetcher  PageFetcher
	scrape   ScrapeConfig
	rotator  *rotator
	logger   *logger.Logger
	now      func() time.Time
}

// NewSerpAdapter creates the adapter. A nil fetcher gets an HTTP fetcher.
func NewSerpAdapter(cfg Config, fetcher PageFetcher, log *logger.Logger) *SerpAdapter {
	name := orDefault(cfg.Name, "serp_scraper")
	if fetcher == nil {
		fetcher = NewHTTPPageFetcher(name, nil, cfg.Timeout)
	}
	scrape := cfg.Scrape
	def := DefaultSerpSelectors()
	scrape.Selectors.Result = orDefault(scrape.Selectors.Result, def.Result)
	scrape.Selectors.Snippet = orDefault(scrape.Selectors.Snippet, def.Snippet)
	scrape.Selectors.Featured = orDefault(scrape.Selectors.Featured, def.Featured)
	scrape.Selectors.FeaturedContent = orDefault(scrape.Selectors.FeaturedContent, def.FeaturedContent)
	scrape.Selectors.PeopleAlsoAsk = orDefault(scrape.Selectors.PeopleAlsoAsk, def.PeopleAlsoAsk)
	if len(scrape.BlockMarkers) == 0 {
		scrape.BlockMarkers = defaultBlockMarkers
	}
	scrape.ResultCount = orDefault(scrape.ResultCount, 10)

	return &SerpAdapter{
		name:     name,
		endpoint: orDefault(cfg.Endpoint, defaultSerpEndpoint),
		fetcher:  fetcher,
		scrape:   scrape,
		rotator:  newRotator(scrape),
		logger:   logger.OrGlobal(log),
		now:      time.Now,
	}
}

func (a *SerpAdapter) Name() string             { return a.name }
func (a *SerpAdapter) Category() types.Category { return types.CategorySerp }

func (a *SerpAdapter) Fetch(ctx context.Context, key types.ResearchKey) (*types.Payload, error) {
	if err := a.rotator.pause(ctx); err != nil {
		return nil, err
	}

	target, err := a.searchURL(key)
	if err != nil {
		return nil, types.NewSourceError(types.KindPermanent, a.name, "invalid endpoint", err)
	}

	page, err := a.fetcher.Fetch(ctx, FetchRequest{
		URL:          target,
		Headers:      a.rotator.headers(key.Language),
		MaxBodyBytes: a.scrape.MaxBodyBytes,
	})
	if err != nil {
		return nil, asSourceError(a.name, err)
	}

	if marker, blocked := detectBlock(page, a.scrape.BlockMarkers); blocked {
		a.logger.Warn("serp request blocked",
			zap.String("source", a.name),
			zap.String("keyword", key.Keyword),
			zap.Int("status", page.StatusCode),
			zap.String("marker", marker),
		)
		se := types.NewSourceError(types.KindBlocked, a.name, "block page detected: "+marker, nil)
		se.StatusCode = page.StatusCode
		return nil, se
	}
	if err := classifyStatus(a.name, page.StatusCode, page.Body); err != nil {
		return nil, err
	}

	result, err := ParseSerp(page.Body, a.scrape.Selectors, a.scrape.ResultCount)
	if err != nil {
		return nil, types.NewSourceError(types.KindPermanent, a.name, "parse results page", err)
	}
	result.Query = key.Keyword
	result.SourceURL = target
	result.FetchedAt = a.now().UTC()
	return &types.Payload{Category: types.CategorySerp, Serp: result}, nil
}

func (a *SerpAdapter) searchURL(key types.ResearchKey) (string, error) {
	u, err := url.Parse(a.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("q", key.Keyword)
	q.Set("gl", key.Country)
	q.Set("hl", key.Language)
	q.Set("num", strconv.Itoa(a.scrape.ResultCount))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// detectBlock reports whether the page is a captcha or block interstitial.
func detectBlock(page *FetchedPage, markers []string) (string, bool) {
	lowerURL := strings.ToLower(page.URL)
	lowerBody := bytes.ToLower(page.Body)
	for _, m := range markers {
		lm := strings.ToLower(m)
		if lm == "" {
			continue
		}
		if strings.Contains(lowerURL, lm) || bytes.Contains(lowerBody, []byte(lm)) {
			return m, true
		}
	}
	return "", false
}

// ParseSerp extracts organic results, the featured snippet and the
// people-also-ask questions from a results page. Organic results are ranked
// in document order starting at 1, with duplicate URLs dropped.
func ParseSerp(body []byte, sel SerpSelectors, limit int) (*types.SerpResult, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	result := &types.SerpResult{OrganicResults: []types.OrganicResult{}}
	seen := make(map[string]bool)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case hasClass(n, sel.Featured):
				if result.FeaturedSnippet == nil {
					result.FeaturedSnippet = parseFeatured(n, sel)
				}
				return
			case hasClass(n, sel.PeopleAlsoAsk):
				if q := paaQuestion(n); q != "" {
					result.PeopleAlsoAsk = append(result.PeopleAlsoAsk, q)
				}
				return
			case hasClass(n, sel.Result):
				if limit > 0 && len(result.OrganicResults) >= limit {
					return
				}
				if r, ok := parseOrganic(n, sel); ok && !seen[r.URL] {
					seen[r.URL] = true
					r.Rank = len(result.OrganicResults) + 1
					result.OrganicResults = append(result.OrganicResults, r)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if len(result.OrganicResults) == 0 && result.FeaturedSnippet == nil {
		return nil, fmt.Errorf("no results found in page")
	}
	return result, nil
}

func parseOrganic(n *html.Node, sel SerpSelectors) (types.OrganicResult, bool) {
	link := findFirst(n, func(c *html.Node) bool {
		return c.Type == html.ElementNode && c.DataAtom == atom.A && resultURL(attr(c, "href")) != ""
	})
	if link == nil {
		return types.OrganicResult{}, false
	}
	title := ""
	if h3 := findFirst(n, isElement(atom.H3)); h3 != nil {
		title = textContent(h3)
	} else {
		title = textContent(link)
	}
	if title == "" {
		return types.OrganicResult{}, false
	}
	snippet := ""
	if s := findFirst(n, withClass(sel.Snippet)); s != nil {
		snippet = textContent(s)
	}
	return types.OrganicResult{
		URL:     resultURL(attr(link, "href")),
		Title:   title,
		Snippet: snippet,
	}, true
}

func parseFeatured(n *html.Node, sel SerpSelectors) *types.FeaturedSnippet {
	fs := &types.FeaturedSnippet{}
	if h3 := findFirst(n, isElement(atom.H3)); h3 != nil {
		fs.Title = textContent(h3)
	}
	if link := findFirst(n, func(c *html.Node) bool {
		return c.Type == html.ElementNode && c.DataAtom == atom.A && resultURL(attr(c, "href")) != ""
	}); link != nil {
		fs.URL = resultURL(attr(link, "href"))
	}
	if content := findFirst(n, withClass(sel.FeaturedContent)); content != nil {
		fs.Content = textContent(content)
	} else {
		fs.Content = textContent(n)
	}
	if fs.Content == "" {
		return nil
	}
	return fs
}

func paaQuestion(n *html.Node) string {
	if q := strings.TrimSpace(attr(n, "data-q")); q != "" {
		return q
	}
	return textContent(n)
}

// resultURL resolves an organic link to an absolute http(s) URL, unwrapping
// "/url?q=" redirect links. It returns "" for anything else.
func resultURL(href string) string {
	if strings.HasPrefix(href, "/url?") {
		u, err := url.Parse(href)
		if err != nil {
			return ""
		}
		href = u.Query().Get("q")
	}
	u, err := url.Parse(href)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	return u.String()
}

// asSourceError keeps SourceErrors and context errors as they are and
// treats anything else from a fetcher as transient.
func asSourceError(source string, err error) error {
	if types.KindOf(err) != types.KindUnknown {
		return err
	}
	return types.NewSourceError(types.KindTransient, source, "fetch failed", err)
}

var _ Adapter = (*SerpAdapter)(nil)
