package source

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/logger"
	"github.com/lk2023060901/seo-research-backend/internal/pkg/metrics"
	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

type stubAdapter struct {
	name     string
	category types.Category
	calls    atomic.Int32
	fn       func(call int) (*types.Payload, error)
}

func (s *stubAdapter) Name() string             { return s.name }
func (s *stubAdapter) Category() types.Category { return s.category }
func (s *stubAdapter) Fetch(ctx context.Context, key types.ResearchKey) (*types.Payload, error) {
	n := int(s.calls.Add(1))
	return s.fn(n)
}

func okPayload() *types.Payload {
	return &types.Payload{Category: types.CategoryKeywordMetrics, Keyword: &types.KeywordRecord{Keyword: "k"}}
}

func noSleep(delays *[]time.Duration) RetryOption {
	return WithSleep(func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	})
}

var testKey = types.ResearchKey{Keyword: "running shoes", Country: "us", Language: "en"}

func TestWithRetry(t *testing.T) {
	transient := types.NewSourceError(types.KindTransient, "stub", "503", nil)

	tests := []struct {
		name      string
		fn        func(call int) (*types.Payload, error)
		wantCalls int32
		wantKind  types.ErrorKind
	}{
		{
			name: "succeeds after transient failures",
			fn: func(call int) (*types.Payload, error) {
				if call < 3 {
					return nil, transient
				}
				return okPayload(), nil
			},
			wantCalls: 3,
		},
		{
			name:      "gives up after max attempts",
			fn:        func(int) (*types.Payload, error) { return nil, transient },
			wantCalls: 3,
			wantKind:  types.KindTransient,
		},
		{
			name: "blocked is never retried",
			fn: func(int) (*types.Payload, error) {
				return nil, types.NewSourceError(types.KindBlocked, "stub", "captcha", nil)
			},
			wantCalls: 1,
			wantKind:  types.KindBlocked,
		},
		{
			name: "permanent is never retried",
			fn: func(int) (*types.Payload, error) {
				return nil, types.NewSourceError(types.KindPermanent, "stub", "404", nil)
			},
			wantCalls: 1,
			wantKind:  types.KindPermanent,
		},
		{
			name: "rate limit ceiling is never retried",
			fn: func(int) (*types.Payload, error) {
				return nil, types.NewSourceError(types.KindRateLimited, "stub", "no token", nil)
			},
			wantCalls: 1,
			wantKind:  types.KindRateLimited,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubAdapter{name: "stub", category: types.CategoryKeywordMetrics, fn: tt.fn}
			var delays []time.Duration
			a := WithRetry(stub, RetryConfig{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2},
				logger.NewNop(), nil, noSleep(&delays))

			p, err := a.Fetch(context.Background(), testKey)
			assert.Equal(t, tt.wantCalls, stub.calls.Load())
			assert.Len(t, delays, int(tt.wantCalls)-1)
			if tt.wantKind == "" {
				require.NoError(t, err)
				assert.NotNil(t, p)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, types.KindOf(err))
		})
	}
}

func TestWithRetry_FullJitterWithinBackoff(t *testing.T) {
	stub := &stubAdapter{name: "stub", category: types.CategorySerp, fn: func(int) (*types.Payload, error) {
		return nil, types.NewSourceError(types.KindTransient, "stub", "timeout", nil)
	}}
	var delays []time.Duration
	cfg := RetryConfig{MaxAttempts: 4, BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Multiplier: 2}
	a := WithRetry(stub, cfg, logger.NewNop(), nil, noSleep(&delays),
		WithJitter(func(n int64) int64 { return n - 1 }))

	_, err := a.Fetch(context.Background(), testKey)
	require.Error(t, err)
	require.Len(t, delays, 3)
	assert.Equal(t, 100*time.Millisecond-1, delays[0])
	assert.Equal(t, 200*time.Millisecond-1, delays[1])
	assert.Equal(t, 300*time.Millisecond-1, delays[2], "capped at max delay")
}

func TestWithRetry_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stub := &stubAdapter{name: "stub", category: types.CategorySerp, fn: func(int) (*types.Payload, error) {
		cancel()
		return nil, types.NewSourceError(types.KindTransient, "stub", "reset", nil)
	}}
	a := WithRetry(stub, DefaultRetryConfig(), logger.NewNop(), nil)

	_, err := a.Fetch(ctx, testKey)
	require.Error(t, err)
	assert.Equal(t, int32(1), stub.calls.Load())
}

func TestRetryConfig_Backoff(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second, Multiplier: 3}
	assert.Equal(t, 50*time.Millisecond, cfg.Backoff(1))
	assert.Equal(t, 150*time.Millisecond, cfg.Backoff(2))
	assert.Equal(t, 450*time.Millisecond, cfg.Backoff(3))
	assert.Equal(t, time.Second, cfg.Backoff(4))
	assert.Equal(t, time.Second, cfg.Backoff(10))
}

func TestWithRateLimit_Ceiling(t *testing.T) {
	stub := &stubAdapter{name: "stub", category: types.CategoryKeywordMetrics, fn: func(int) (*types.Payload, error) {
		return okPayload(), nil
	}}
	a := WithRateLimit(stub, 0.1, 1, 50*time.Millisecond, nil)

	_, err := a.Fetch(context.Background(), testKey)
	require.NoError(t, err)

	start := time.Now()
	_, err = a.Fetch(context.Background(), testKey)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrRateLimitExceeded))
	assert.Less(t, time.Since(start), time.Second, "must not wait for the token")
	assert.Equal(t, int32(1), stub.calls.Load())
}

func TestWithRateLimit_WaitsForToken(t *testing.T) {
	stub := &stubAdapter{name: "stub", category: types.CategoryKeywordMetrics, fn: func(int) (*types.Payload, error) {
		return okPayload(), nil
	}}
	a := WithRateLimit(stub, 50, 1, time.Second, nil)

	for range 3 {
		_, err := a.Fetch(context.Background(), testKey)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), stub.calls.Load())
}

func TestWithRateLimit_CallerCancel(t *testing.T) {
	stub := &stubAdapter{name: "stub", category: types.CategoryKeywordMetrics, fn: func(int) (*types.Payload, error) {
		return okPayload(), nil
	}}
	a := WithRateLimit(stub, 0.1, 1, time.Minute, nil)
	_, err := a.Fetch(context.Background(), testKey)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Fetch(ctx, testKey)
	require.Error(t, err)
	assert.Equal(t, types.KindTimeout, types.KindOf(err))
}

func TestWithRateLimit_DisabledReturnsNext(t *testing.T) {
	stub := &stubAdapter{name: "stub", category: types.CategorySerp}
	assert.Same(t, Adapter(stub), WithRateLimit(stub, 0, 0, 0, nil))
}

func TestDecorate_RecordsMetrics(t *testing.T) {
	m := metrics.New()
	stub := &stubAdapter{name: "stub", category: types.CategorySerp, fn: func(call int) (*types.Payload, error) {
		if call == 1 {
			return nil, types.NewSourceError(types.KindTransient, "stub", "503", nil)
		}
		return &types.Payload{Category: types.CategorySerp, Serp: &types.SerpResult{}}, nil
	}}
	var delays []time.Duration
	cfg := Config{Retry: RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond}}
	a := Decorate(stub, cfg, Deps{Logger: logger.NewNop(), Metrics: m, RetryOptions: []RetryOption{noSleep(&delays)}})

	_, err := a.Fetch(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "stub", a.Name())
	assert.Equal(t, types.CategorySerp, a.Category())

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	assert.True(t, found["seo_research_source_requests_total"])
	assert.True(t, found["seo_research_source_retries_total"])
}
