package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/logger"
	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

const pageFixture = `<!doctype html>
<html lang="en">
<head>
  <title>Trail Running Shoes Guide</title>
  <meta name="description" content="  Everything you need to know about trail running shoes. ">
  <meta name="viewport" content="width=device-width">
  <link rel="canonical" href="https://example.com/guide">
  <style>body { color: red }</style>
</head>
<body>
  <h1>Trail shoes</h1>
  <h2>Grip</h2><h2>Weight</h2>
  <p>Trail shoes need grip and protection.</p>
  <script>var ignored = "many words that should not count";</script>
  <img src="a.png" alt="Shoe sole">
  <img src="b.png" alt="">
  <img src="c.png"/>
  <a href="/about">About</a>
  <a href="https://example.com/contact">Contact</a>
  <a href="https://other.org/">Other</a>
  <a href="#top">Top</a>
  <a href="mailto:hi@example.com">Mail</a>
</body>
</html>`

func TestExtractPageSignals(t *testing.T) {
	s, err := ExtractPageSignals("https://example.com/guide", strings.NewReader(pageFixture))
	require.NoError(t, err)

	assert.Equal(t, "Trail Running Shoes Guide", s.Title)
	assert.Equal(t, "Everything you need to know about trail running shoes.", s.MetaDescription)
	assert.Equal(t, 1, s.H1Count)
	assert.Equal(t, 2, s.H2Count)
	assert.Equal(t, 3, s.ImageCount)
	assert.Equal(t, 1, s.ImagesWithAlt)
	assert.Equal(t, 2, s.InternalLinks)
	assert.Equal(t, 1, s.ExternalLinks)
	assert.Equal(t, "https://example.com/guide", s.Canonical)
	assert.True(t, s.HasViewport)
	assert.True(t, s.HTTPS)
	assert.Equal(t, "en", s.Lang)
	// Trail shoes / Grip Weight / Trail shoes need grip and protection. / About Contact Other Top Mail
	assert.Equal(t, 15, s.WordCount)
}

func TestPageAdapter_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gone":
			w.WriteHeader(http.StatusNotFound)
		case "/down":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			_, _ = w.Write([]byte(pageFixture))
		}
	}))
	defer srv.Close()

	a := NewPageAdapter(Config{}, NewHTTPPageFetcher("test", srv.Client(), 0), logger.NewNop())

	p, err := a.Fetch(context.Background(), types.ResearchKey{Keyword: srv.URL + "/guide"})
	require.NoError(t, err)
	require.NoError(t, p.Validate())
	assert.Equal(t, http.StatusOK, p.Page.StatusCode)
	assert.False(t, p.Page.HTTPS)
	assert.Equal(t, len(pageFixture), p.Page.ContentLengthBytes)

	_, err = a.Fetch(context.Background(), types.ResearchKey{Keyword: srv.URL + "/gone"})
	assert.Equal(t, types.KindPermanent, types.KindOf(err))

	_, err = a.Fetch(context.Background(), types.ResearchKey{Keyword: srv.URL + "/down"})
	assert.Equal(t, types.KindTransient, types.KindOf(err))
}

func TestPageAdapter_RefusesRedirectToPrivateHost(t *testing.T) {
	var adminHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/moved":
			http.Redirect(w, r, "/guide", http.StatusMovedPermanently)
		case "/leave":
			http.Redirect(w, r, "http://localhost:"+r.Host[strings.LastIndexByte(r.Host, ':')+1:]+"/admin", http.StatusFound)
		case "/admin":
			adminHits.Add(1)
			_, _ = w.Write([]byte(`<html><head><title>internal admin</title></head></html>`))
		default:
			_, _ = w.Write([]byte(pageFixture))
		}
	}))
	defer srv.Close()

	a := NewPageAdapter(Config{}, NewHTTPPageFetcher("test", srv.Client(), 0), logger.NewNop())

	p, err := a.Fetch(context.Background(), types.ResearchKey{Keyword: srv.URL + "/moved"})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/guide", p.Page.URL)

	_, err = a.Fetch(context.Background(), types.ResearchKey{Keyword: srv.URL + "/leave"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRedirectRefused)
	assert.Equal(t, types.KindPermanent, types.KindOf(err))
	assert.Zero(t, adminHits.Load())
}

func TestCheckRedirect(t *testing.T) {
	origin, err := http.NewRequest(http.MethodGet, "https://shop.example.com/a", nil)
	require.NoError(t, err)
	tests := []struct {
		name    string
		target  string
		via     int
		refused bool
	}{
		{"same host", "https://shop.example.com/b", 1, false},
		{"public host", "https://cdn.example.net/b", 1, false},
		{"loopback", "http://127.0.0.1/admin", 1, true},
		{"private range", "http://10.0.0.8/", 1, true},
		{"metadata endpoint", "http://169.254.169.254/latest/meta-data", 1, true},
		{"localhost name", "http://localhost:8080/", 1, true},
		{"non http scheme", "ftp://shop.example.com/file", 1, true},
		{"too many hops", "https://shop.example.com/b", maxRedirects, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			via := make([]*http.Request, tt.via)
			for i := range via {
				via[i] = origin
			}
			req, err := http.NewRequest(http.MethodGet, tt.target, nil)
			require.NoError(t, err)
			err = checkRedirect(req, via)
			if tt.refused {
				assert.ErrorIs(t, err, ErrRedirectRefused)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHTTPPageFetcher_MalformedURLIsPermanent(t *testing.T) {
	f := NewHTTPPageFetcher("test", nil, 0)
	_, err := f.Fetch(context.Background(), FetchRequest{URL: "http://exa mple.com/%zz"})
	require.Error(t, err)
	assert.Equal(t, types.KindPermanent, types.KindOf(err))
	assert.False(t, types.IsRetryable(err))
}

func TestNewRegistryFromConfig(t *testing.T) {
	cfg := DefaultSourcesConfig()
	cfg.KeywordMetrics.Endpoint = "http://127.0.0.1:1/metrics"
	cfg.Embedding.APIKey = "sk-a,sk-b"

	reg, err := NewRegistryFromConfig(cfg, Deps{Logger: logger.NewNop()})
	require.NoError(t, err)
	assert.Equal(t, []types.Category{
		types.CategoryEmbedding, types.CategoryKeywordMetrics, types.CategoryPageScore, types.CategorySerp,
	}, reg.Categories())
	assert.Equal(t, 2, reg.MaxInFlight(types.CategorySerp))

	_, err = reg.Get(types.CategoryClustering)
	assert.ErrorIs(t, err, types.ErrNoAdapter)

	cfg.Embedding.APIKey = ""
	_, err = NewRegistryFromConfig(cfg, Deps{Logger: logger.NewNop()})
	assert.Error(t, err)
}

func TestRegistry_RejectsDuplicateCategory(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&stubAdapter{name: "a", category: types.CategorySerp}, 1))
	assert.Error(t, reg.Register(&stubAdapter{name: "b", category: types.CategorySerp}, 1))
	assert.Equal(t, 1, reg.MaxInFlight(types.CategorySerp))
}
