package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/logger"
	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

func newEmbeddingServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req["model"])
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestEmbeddingAdapter_Fetch(t *testing.T) {
	srv := newEmbeddingServer(t, http.StatusOK, `{
		"object": "list",
		"data": [{"object": "embedding", "index": 0, "embedding": [0.25, -0.5, 1]}],
		"model": "text-embedding-3-small",
		"usage": {"prompt_tokens": 2, "total_tokens": 2}
	}`)
	defer srv.Close()

	a, err := NewEmbeddingAdapter(Config{Endpoint: srv.URL + "/v1", APIKey: "sk-test"}, srv.Client(), logger.NewNop())
	require.NoError(t, err)

	p, err := a.Fetch(context.Background(), testKey)
	require.NoError(t, err)
	require.NoError(t, p.Validate())
	assert.Equal(t, types.CategoryEmbedding, p.Category)
	assert.Equal(t, []float32{0.25, -0.5, 1}, p.Embedding.Vector)
	assert.Equal(t, "running shoes", p.Embedding.Keyword)
	assert.Equal(t, "text-embedding-3-small", p.Embedding.Model)
}

func TestEmbeddingAdapter_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   types.ErrorKind
	}{
		{"throttled", http.StatusTooManyRequests, `{"error":{"message":"rate limited","type":"requests"}}`, types.KindTransient},
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`, types.KindTransient},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"bad input","type":"invalid_request_error"}}`, types.KindPermanent},
		{"empty data", http.StatusOK, `{"object":"list","data":[],"model":"m","usage":{}}`, types.KindPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newEmbeddingServer(t, tt.status, tt.body)
			defer srv.Close()

			a, err := NewEmbeddingAdapter(Config{Endpoint: srv.URL + "/v1", APIKey: "sk-test"}, srv.Client(), logger.NewNop())
			require.NoError(t, err)
			_, err = a.Fetch(context.Background(), testKey)
			require.Error(t, err)
			assert.Equal(t, tt.want, types.KindOf(err))
		})
	}
}

func TestNewEmbeddingAdapter_RequiresKey(t *testing.T) {
	_, err := NewEmbeddingAdapter(Config{}, nil, logger.NewNop())
	assert.Error(t, err)
}
