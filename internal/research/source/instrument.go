package source

import (
	"context"
	"time"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/metrics"
	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

type instrumented struct {
	next    Adapter
	metrics *metrics.Metrics
}

// WithMetrics records the outcome and latency of every Fetch.
func WithMetrics(next Adapter, m *metrics.Metrics) Adapter {
	if m == nil {
		return next
	}
	return &instrumented{next: next, metrics: m}
}

func (i *instrumented) Name() string             { return i.next.Name() }
func (i *instrumented) Category() types.Category { return i.next.Category() }

func (i *instrumented) Fetch(ctx context.Context, key types.ResearchKey) (*types.Payload, error) {
	start := time.Now()
	payload, err := i.next.Fetch(ctx, key)
	outcome := "ok"
	if err != nil {
		outcome = string(types.KindOf(err))
	}
	i.metrics.ObserveSource(i.Name(), outcome, time.Since(start))
	return payload, err
}

// Decorate applies the standard decorator chain: metrics around retry around
// rate limiting, so every retry attempt consumes a token.
func Decorate(a Adapter, cfg Config, deps Deps) Adapter {
	a = WithRateLimit(a, cfg.Rate, cfg.Burst, cfg.MaxWait, deps.Metrics)
	a = WithRetry(a, cfg.Retry, deps.Logger, deps.Metrics, deps.RetryOptions...)
	return WithMetrics(a, deps.Metrics)
}
