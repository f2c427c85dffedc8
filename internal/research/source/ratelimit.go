package source

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/metrics"
	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

type rateLimited struct {
	next    Adapter
	limiter *rate.Limiter
	maxWait time.Duration
	metrics *metrics.Metrics
}

// WithRateLimit puts a token bucket in front of next. Each Fetch waits for a
// token for at most maxWait and fails with ErrRateLimitExceeded after that.
// A non-positive rps disables limiting.
func WithRateLimit(next Adapter, rps float64, burst int, maxWait time.Duration, m *metrics.Metrics) Adapter {
	if rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		maxWait: maxWait,
		metrics: m,
	}
}

func (r *rateLimited) Name() string             { return r.next.Name() }
func (r *rateLimited) Category() types.Category { return r.next.Category() }

func (r *rateLimited) Fetch(ctx context.Context, key types.ResearchKey) (*types.Payload, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.Fetch(ctx, key)
}

func (r *rateLimited) wait(ctx context.Context) error {
	if r.limiter.Allow() {
		return nil
	}

	waitCtx := ctx
	if r.maxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, r.maxWait)
		defer cancel()
	}

	start := time.Now()
	err := r.limiter.Wait(waitCtx)
	r.metrics.ObserveRateLimitWait(r.Name(), time.Since(start))
	if err == nil {
		return nil
	}

	// The caller's own deadline is a timeout, not a rate limit. Anything else
	// means no token within maxWait.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return types.NewSourceError(types.KindRateLimited, r.Name(),
		fmt.Sprintf("no token within %s", r.maxWait), err)
}
