package source

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/logger"
	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

// PageAdapter downloads a URL and extracts the on-page signals used for
// scoring. The ResearchKey carries the URL in its Keyword field.
type PageAdapter struct {
	name    string
	fetcher PageFetcher
	scrape  ScrapeConfig
	rotator *rotator
	logger  *logger.Logger
	now     func() time.Time
}

// NewPageAdapter creates the adapter. A nil fetcher gets an HTTP fetcher.
func NewPageAdapter(cfg Config, fetcher PageFetcher, log *logger.Logger) *PageAdapter {
	name := orDefault(cfg.Name, "page_fetcher")
	if fetcher == nil {
		fetcher = NewHTTPPageFetcher(name, nil, cfg.Timeout)
	}
	return &PageAdapter{
		name:    name,
		fetcher: fetcher,
		scrape:  cfg.Scrape,
		rotator: newRotator(cfg.Scrape),
		logger:  logger.OrGlobal(log),
		now:     time.Now,
	}
}

func (a *PageAdapter) Name() string             { return a.name }
func (a *PageAdapter) Category() types.Category { return types.CategoryPageScore }

func (a *PageAdapter) Fetch(ctx context.Context, key types.ResearchKey) (*types.Payload, error) {
	if err := a.rotator.pause(ctx); err != nil {
		return nil, err
	}
	page, err := a.fetcher.Fetch(ctx, FetchRequest{
		URL:          key.Keyword,
		Headers:      a.rotator.headers(key.Language),
		MaxBodyBytes: a.scrape.MaxBodyBytes,
	})
	if err != nil {
		return nil, asSourceError(a.name, err)
	}
	if marker, blocked := detectBlock(page, a.scrape.BlockMarkers); blocked && page.StatusCode >= 400 {
		se := types.NewSourceError(types.KindBlocked, a.name, "block page detected: "+marker, nil)
		se.StatusCode = page.StatusCode
		return nil, se
	}
	if err := classifyStatus(a.name, page.StatusCode, nil); err != nil {
		return nil, err
	}

	signals, err := ExtractPageSignals(page.URL, bytes.NewReader(page.Body))
	if err != nil {
		return nil, types.NewSourceError(types.KindPermanent, a.name, "parse page", err)
	}
	signals.StatusCode = page.StatusCode
	signals.ContentLengthBytes = len(page.Body)
	signals.ResponseTime = page.Elapsed
	signals.FetchedAt = a.now().UTC()
	return &types.Payload{Category: types.CategoryPageScore, Page: signals}, nil
}

// ExtractPageSignals tokenizes an HTML document and counts the elements that
// matter for on-page scoring. pageURL decides which links are internal.
func ExtractPageSignals(pageURL string, r io.Reader) (*types.PageSignals, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	signals := &types.PageSignals{
		URL:   pageURL,
		HTTPS: base.Scheme == "https",
	}

	tokenizer := html.NewTokenizer(r)
	var (
		inTitle bool
		skip    int
		text    strings.Builder
	)

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			if tokenizer.Err() == io.EOF {
				signals.WordCount = len(strings.Fields(text.String()))
				return signals, nil
			}
			return nil, tokenizer.Err()

		case html.TextToken:
			if skip > 0 {
				continue
			}
			data := string(tokenizer.Text())
			if inTitle {
				signals.Title += strings.TrimSpace(data)
				continue
			}
			text.WriteString(data)
			text.WriteByte(' ')

		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			switch token.Data {
			case "script", "style", "noscript":
				if tt == html.StartTagToken {
					skip++
				}
			case "title":
				inTitle = tt == html.StartTagToken && signals.Title == ""
			case "html":
				signals.Lang = tokenAttr(token, "lang")
			case "h1":
				signals.H1Count++
			case "h2":
				signals.H2Count++
			case "img":
				signals.ImageCount++
				if strings.TrimSpace(tokenAttr(token, "alt")) != "" {
					signals.ImagesWithAlt++
				}
			case "a":
				countLink(signals, base, tokenAttr(token, "href"))
			case "meta":
				switch strings.ToLower(tokenAttr(token, "name")) {
				case "description":
					signals.MetaDescription = strings.TrimSpace(tokenAttr(token, "content"))
				case "viewport":
					signals.HasViewport = true
				}
			case "link":
				if strings.EqualFold(tokenAttr(token, "rel"), "canonical") {
					signals.Canonical = tokenAttr(token, "href")
				}
			}

		case html.EndTagToken:
			token := tokenizer.Token()
			switch token.Data {
			case "script", "style", "noscript":
				if skip > 0 {
					skip--
				}
			case "title":
				inTitle = false
			}
		}
	}
}

func tokenAttr(t html.Token, name string) string {
	for _, a := range t.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func countLink(s *types.PageSignals, base *url.URL, href string) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "tel:") {
		return
	}
	ref, err := url.Parse(href)
	if err != nil {
		return
	}
	abs := base.ResolveReference(ref)
	if strings.EqualFold(abs.Hostname(), base.Hostname()) {
		s.InternalLinks++
	} else {
		s.ExternalLinks++
	}
}
