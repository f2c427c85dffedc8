package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/logger"
	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

func TestKeywordMetricsAdapter_Fetch(t *testing.T) {
	var mu sync.Mutex
	var auths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auths = append(auths, r.Header.Get("Authorization"))
		mu.Unlock()
		assert.Equal(t, "running shoes", r.URL.Query().Get("keyword"))
		assert.Equal(t, "us", r.URL.Query().Get("country"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"search_volume":12000,"keyword_difficulty":140,"cpc":-1.5,"competition":0.4}}`))
	}))
	defer srv.Close()

	a, err := NewKeywordMetricsAdapter(Config{Endpoint: srv.URL, APIKey: "k1, k2"}, srv.Client(), logger.NewNop())
	require.NoError(t, err)

	for range 3 {
		p, err := a.Fetch(context.Background(), testKey)
		require.NoError(t, err)
		require.NoError(t, p.Validate())
		assert.Equal(t, int64(12000), p.Keyword.SearchVolume)
		assert.Equal(t, 100.0, p.Keyword.Difficulty, "clamped")
		assert.Equal(t, 0.0, p.Keyword.CPC, "clamped")
		assert.Equal(t, 0.4, p.Keyword.Competition)
		assert.Contains(t, p.Keyword.SourceURL, srv.URL)
	}
	assert.Equal(t, []string{"Bearer k1", "Bearer k2", "Bearer k1"}, auths)
}

func TestKeywordMetricsAdapter_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   types.ErrorKind
	}{
		{"server error is transient", http.StatusBadGateway, `{}`, types.KindTransient},
		{"throttle is transient", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, types.KindTransient},
		{"unauthorized is permanent", http.StatusUnauthorized, `{}`, types.KindPermanent},
		{"malformed body is permanent", http.StatusOK, `not json`, types.KindPermanent},
		{"missing field is permanent", http.StatusOK, `{"data":{}}`, types.KindPermanent},
		{"provider error is permanent", http.StatusOK, `{"error":{"message":"quota"}}`, types.KindPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			a, err := NewKeywordMetricsAdapter(Config{Endpoint: srv.URL}, srv.Client(), logger.NewNop())
			require.NoError(t, err)
			_, err = a.Fetch(context.Background(), testKey)
			require.Error(t, err)
			assert.Equal(t, tt.want, types.KindOf(err))
		})
	}
}

func TestKeywordMetricsAdapter_CustomPaths(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"vol":90,"kd":33.5,"cpc":1.25}]}`))
	}))
	defer srv.Close()

	a, err := NewKeywordMetricsAdapter(Config{
		Endpoint: srv.URL,
		Paths:    ResponsePaths{SearchVolume: "results.0.vol", Difficulty: "results.0.kd", CPC: "results.0.cpc"},
	}, srv.Client(), logger.NewNop())
	require.NoError(t, err)

	p, err := a.Fetch(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, int64(90), p.Keyword.SearchVolume)
	assert.Equal(t, 33.5, p.Keyword.Difficulty)
	assert.Equal(t, 1.25, p.Keyword.CPC)
}

func TestNewKeywordMetricsAdapter_RequiresEndpoint(t *testing.T) {
	_, err := NewKeywordMetricsAdapter(Config{}, nil, logger.NewNop())
	assert.Error(t, err)
}

func TestKeyRing_Rotation(t *testing.T) {
	r := newKeyRing("key1, key2,, key3")
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, "key1", r.Next())
	assert.Equal(t, "key2", r.Next())
	assert.Equal(t, "key3", r.Next())
	assert.Equal(t, "key1", r.Next())

	assert.Equal(t, "", newKeyRing("").Next())
}
