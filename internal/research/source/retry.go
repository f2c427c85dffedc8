package source

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/logger"
	"github.com/lk2023060901/seo-research-backend/internal/pkg/metrics"
	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

// RetryConfig configures exponential backoff with full jitter.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"` // including the first attempt
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	Multiplier  float64       `mapstructure:"multiplier"`
}

// DefaultRetryConfig returns three attempts starting at 200ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Multiplier:  2,
	}
}

// Backoff returns the ceiling of the delay before retry number attempt
// (1-based). The actual sleep is drawn uniformly from [0, Backoff).
func (c RetryConfig) Backoff(attempt int) time.Duration {
	mult := c.Multiplier
	if mult < 1 {
		mult = 2
	}
	d := float64(c.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= mult
		if c.MaxDelay > 0 && d >= float64(c.MaxDelay) {
			return c.MaxDelay
		}
	}
	if c.MaxDelay > 0 && time.Duration(d) > c.MaxDelay {
		return c.MaxDelay
	}
	return time.Duration(d)
}

type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type retrying struct {
	next    Adapter
	config  RetryConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	sleep   sleepFunc
	jitter  func(n int64) int64
}

// RetryOption customizes WithRetry.
type RetryOption func(*retrying)

// WithSleep replaces the backoff sleep. Tests use it to avoid real waits.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) RetryOption {
	return func(r *retrying) { r.sleep = fn }
}

// WithJitter replaces the jitter source, which must return a value in [0, n).
func WithJitter(fn func(n int64) int64) RetryOption {
	return func(r *retrying) { r.jitter = fn }
}

// WithRetry retries transient failures of next. Any other error kind is
// returned immediately.
func WithRetry(next Adapter, cfg RetryConfig, log *logger.Logger, m *metrics.Metrics, opts ...RetryOption) Adapter {
	if cfg.MaxAttempts <= 1 {
		return next
	}
	r := &retrying{
		next:    next,
		config:  cfg,
		logger:  logger.OrGlobal(log),
		metrics: m,
		sleep:   sleepContext,
		jitter:  rand.Int64N,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *retrying) Name() string             { return r.next.Name() }
func (r *retrying) Category() types.Category { return r.next.Category() }

func (r *retrying) Fetch(ctx context.Context, key types.ResearchKey) (*types.Payload, error) {
	var lastErr error
	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		payload, err := r.next.Fetch(ctx, key)
		if err == nil {
			return payload, nil
		}
		lastErr = err

		if ctx.Err() != nil || !types.IsRetryable(err) || attempt == r.config.MaxAttempts {
			break
		}

		delay := time.Duration(0)
		if ceiling := r.config.Backoff(attempt); ceiling > 0 {
			delay = time.Duration(r.jitter(int64(ceiling)))
		}
		r.logger.Debug("retrying source fetch",
			zap.String("source", r.Name()),
			zap.String("keyword", key.Keyword),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		r.metrics.IncRetry(r.Name())
		if err := r.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}
