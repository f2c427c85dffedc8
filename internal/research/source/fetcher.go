package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/validator"
	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

const maxRedirects = 10

// ErrRedirectRefused is returned when a redirect leaves the public web.
var ErrRedirectRefused = errors.New("redirect refused")

// FetchRequest describes one page download.
type FetchRequest struct {
	URL     string
	Headers http.Header
	// MaxBodyBytes caps how much of the body is read. Zero means 4 MiB.
	MaxBodyBytes int64
}

// FetchedPage is a downloaded document.
type FetchedPage struct {
	URL        string // final URL after redirects
	StatusCode int
	Header     http.Header
	Body       []byte
	Elapsed    time.Duration
}

// PageFetcher downloads documents for the scraping adapters. The HTTP
// implementation is the default; a headless browser can be plugged in
// behind the same interface.
type PageFetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (*FetchedPage, error)
}

// HTTPPageFetcher fetches pages with a plain HTTP client.
type HTTPPageFetcher struct {
	base *baseSource
}

// NewHTTPPageFetcher creates a fetcher. A nil client gets a pooled client
// with the given timeout. Redirects may stay on the requested host; a hop to
// any other host must point to a public one.
func NewHTTPPageFetcher(name string, client *http.Client, timeout time.Duration) *HTTPPageFetcher {
	if client == nil {
		client = newHTTPClient(timeout)
	}
	guarded := *client
	guarded.CheckRedirect = checkRedirect
	return &HTTPPageFetcher{base: newBaseSource(name, Config{Timeout: timeout}, &guarded, nil)}
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("%w: stopped after %d redirects", ErrRedirectRefused, maxRedirects)
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrRedirectRefused, req.URL.Scheme)
	}
	if len(via) > 0 && strings.EqualFold(req.URL.Host, via[0].URL.Host) {
		return nil
	}
	if !validator.IsPublicHost(req.URL.Hostname()) {
		return fmt.Errorf("%w: %s is not a public host", ErrRedirectRefused, req.URL.Host)
	}
	return nil
}

func (f *HTTPPageFetcher) Fetch(ctx context.Context, req FetchRequest) (*FetchedPage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, types.NewSourceError(types.KindPermanent, f.base.name, "build request", err)
	}
	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, body, err := f.base.do(ctx, httpReq, req.MaxBodyBytes)
	if err != nil {
		return nil, err
	}
	return &FetchedPage{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Elapsed:    time.Since(start),
	}, nil
}
