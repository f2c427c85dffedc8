package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/logger"
	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

// EmbeddingAdapter produces keyword vectors through an OpenAI compatible
// embeddings API.
type EmbeddingAdapter struct {
	name      string
	clients   []*openai.Client
	mu        sync.Mutex
	next      int
	model     string
	dimension int
	logger    *logger.Logger
	now       func() time.Time
}

// NewEmbeddingAdapter creates one API client per configured key and rotates
// between them. cfg.Endpoint overrides the API base URL.
func NewEmbeddingAdapter(cfg Config, httpClient *http.Client, log *logger.Logger) (*EmbeddingAdapter, error) {
	keys := newKeyRing(cfg.APIKey)
	if keys.Len() == 0 {
		return nil, fmt.Errorf("embedding source: api key is required")
	}
	if httpClient == nil {
		httpClient = newHTTPClient(cfg.Timeout)
	}
	model := orDefault(cfg.Model, string(openai.SmallEmbedding3))

	clients := make([]*openai.Client, 0, keys.Len())
	for range keys.Len() {
		clientCfg := openai.DefaultConfig(keys.Next())
		if cfg.Endpoint != "" {
			clientCfg.BaseURL = cfg.Endpoint
		}
		clientCfg.HTTPClient = httpClient
		clients = append(clients, openai.NewClientWithConfig(clientCfg))
	}

	lg := logger.OrGlobal(log)
	lg.Info("embedding source created",
		zap.String("model", model),
		zap.Int("dimension", cfg.Dimensions),
		zap.Int("keys", len(clients)))

	return &EmbeddingAdapter{
		name:      orDefault(cfg.Name, "openai_embeddings"),
		clients:   clients,
		model:     model,
		dimension: cfg.Dimensions,
		logger:    lg,
		now:       time.Now,
	}, nil
}

func (a *EmbeddingAdapter) Name() string             { return a.name }
func (a *EmbeddingAdapter) Category() types.Category { return types.CategoryEmbedding }

func (a *EmbeddingAdapter) client() *openai.Client {
	a.mu.Lock()
	defer a.mu.Unlock()
	c := a.clients[a.next]
	a.next = (a.next + 1) % len(a.clients)
	return c
}

func (a *EmbeddingAdapter) Fetch(ctx context.Context, key types.ResearchKey) (*types.Payload, error) {
	resp, err := a.client().CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input:      []string{key.Keyword},
		Model:      openai.EmbeddingModel(a.model),
		Dimensions: a.dimension,
	})
	if err != nil {
		return nil, a.classify(ctx, err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, types.NewSourceError(types.KindPermanent, a.name, "response has no embedding", nil)
	}

	a.logger.Debug("embedding created",
		zap.String("keyword", key.Keyword),
		zap.Int("dimension", len(resp.Data[0].Embedding)),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	return &types.Payload{
		Category: types.CategoryEmbedding,
		Embedding: &types.Embedding{
			Keyword:   key.Keyword,
			Vector:    resp.Data[0].Embedding,
			Model:     a.model,
			FetchedAt: a.now().UTC(),
		},
	}, nil
}

func (a *EmbeddingAdapter) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return types.NewSourceError(types.KindTransient, a.name, "create embeddings", err)
	}

	kind := types.KindPermanent
	if status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500 || status == 0 {
		kind = types.KindTransient
	}
	se := types.NewSourceError(kind, a.name, "create embeddings", err)
	se.StatusCode = status
	return se
}
